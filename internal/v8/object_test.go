package v8

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"

	"v8heap/internal/v8/v8test"
)

func decode(t *testing.T, h *Heap, raw uint64) Object {
	t.Helper()
	o, err := h.Decode(raw)
	if err != nil {
		t.Fatalf("Decode(0x%x): %v", raw, err)
	}
	return o
}

func TestDecodeDispatch(t *testing.T) {
	fx, h := newHeap(t)
	date := fx.NewObject(fx.NewMap(v8test.TypeJSDate, 4, 4))
	tests := []struct {
		name string
		raw  uint64
		want string
	}{
		{"string", fx.NewString("hi"), "v8.String"},
		{"map", fx.MetaMap, "v8.Map"},
		{"number", fx.NewHeapNumber(1.5), "v8.HeapNumber"},
		{"oddball", fx.Null, "v8.Oddball"},
		{"function", fx.NewFunction("f"), "v8.JSFunction"},
		{"array", fx.NewArray(), "v8.JSArray"},
		{"buffer", fx.NewArrayBuffer(0, 0), "v8.JSArrayBuffer"},
		{"date", date, "v8.JSDate"},
		{"fixed array", fx.Empty, "v8.FixedArray"},
		{"code", fx.NewCode([]byte{0xc3}), "v8.Code"},
		{"object", fx.NewObject(fx.NewClass("A")), "v8.JSObject"},
		{"other", fx.NewObject(fx.NewMap(500, 2, 2)), "v8.Other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprintf("%T", decode(t, h, tt.raw)); got != tt.want {
				t.Errorf("Decode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecodeStable(t *testing.T) {
	fx, h := newHeap(t)
	tests := []struct {
		name string
		raw  uint64
	}{
		{"string", fx.NewString("hi")},
		{"map", fx.MetaMap},
		{"number", fx.NewHeapNumber(2.5)},
		{"function", fx.NewFunction("g")},
		{"array", fx.NewArray(v8test.Smi(1))},
		{"object", fx.NewObject(fx.NewClass("B", "x"), v8test.Smi(1))},
		{"code", fx.NewCode([]byte{0x90, 0xc3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := decode(t, h, tt.raw).Base(), decode(t, h, tt.raw).Base()
			t1, ok1 := first.CheckedType().Get()
			t2, ok2 := second.CheckedType().Get()
			if !ok1 || !ok2 || t1 != t2 {
				t.Errorf("instance type %d,%v then %d,%v", t1, ok1, t2, ok2)
			}
			size := func(o HeapObject) (int64, bool) {
				m, ok := o.Map().Get()
				if !ok {
					return 0, false
				}
				return m.InstanceSize().Get()
			}
			s1, ok1 := size(first)
			s2, ok2 := size(second)
			if !ok1 || !ok2 || s1 != s2 {
				t.Errorf("instance size %d,%v then %d,%v", s1, ok1, s2, ok2)
			}
		})
	}

	for _, n := range []int64{0, 1, -1, 1 << 30} {
		if _, err := h.Decode(v8test.Smi(n)); !errors.Is(err, ErrInvalid) {
			t.Errorf("Decode(Smi(%d)) err = %v, want ErrInvalid", n, err)
		}
	}
}

func TestTypeName(t *testing.T) {
	fx, h := newHeap(t)

	base := fx.NewClass("Base")
	derived := fx.NewMap(v8test.TypeJSObject, 3, 3)
	fx.SetConstructor(derived, base)

	loop := fx.NewMap(v8test.TypeJSObject, 3, 3)
	fx.SetConstructor(loop, loop)

	buf := fx.NewArrayBuffer(0, 0)
	tests := []struct {
		name string
		raw  uint64
		want string
	}{
		{"class", fx.NewObject(fx.NewClass("Point", "x")), "Point"},
		{"back pointer", fx.NewObject(derived), "Base"},
		{"constructor loop", fx.NewObject(loop), "(Object)"},
		{"no constructor", fx.NewObject(fx.NewMap(v8test.TypeJSObject, 3, 3)), "(Object)"},
		{"api object", fx.NewObject(fx.NewMap(v8test.TypeAPIObject, 3, 3)), "(Object)"},
		{"global", fx.NewObject(fx.NewMap(v8test.TypeGlobalObject, 3, 3)), "(Global)"},
		{"global proxy", fx.NewObject(fx.NewMap(v8test.TypeGlobalProxy, 3, 3)), "(Global proxy)"},
		{"code", fx.NewCode(nil), "(Code)"},
		{"map", fx.MetaMap, "(Map)"},
		{"number", fx.NewHeapNumber(2), "(HeapNumber)"},
		{"array", fx.NewArray(v8test.Smi(1)), "(Array)"},
		{"oddball", fx.True, "(Oddball)"},
		{"function", fx.NewFunction("f"), "(Function)"},
		{"regexp", fx.NewObject(fx.NewMap(v8test.TypeJSRegExp, 5, 5)), "(RegExp)"},
		{"string", fx.NewString("s"), "(String)"},
		{"two-byte string", fx.NewTwoByteString("s"), "(String)"},
		{"fixed array", fx.NewFixedArray(v8test.Smi(1)), "(FixedArray)"},
		{"array buffer", buf, "(ArrayBuffer)"},
		{"typed array", fx.NewTypedArray(buf, 0, 0, 0, 0), "(ArrayBufferView)"},
		{"date", fx.NewObject(fx.NewMap(v8test.TypeJSDate, 4, 4)), "(Date)"},
		{"unknown", fx.NewObject(fx.NewMap(500, 2, 2)), "unknown: 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, ok := h.Object(tt.raw).Get()
			if !ok {
				t.Fatal("not a heap object")
			}
			got, err := o.TypeName()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("TypeName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructorHopLimit(t *testing.T) {
	fx := v8test.New()
	h := New(newSchema(fx), Options{MaxConstructorHops: 2})

	ctor := fx.NewFunction("Deep")
	m1 := fx.NewMap(v8test.TypeJSObject, 3, 3)
	fx.SetConstructor(m1, ctor)
	m2 := fx.NewMap(v8test.TypeJSObject, 3, 3)
	fx.SetConstructor(m2, m1)
	m3 := fx.NewMap(v8test.TypeJSObject, 3, 3)
	fx.SetConstructor(m3, m2)

	name := func(m uint64) string {
		o, _ := h.Object(fx.NewObject(m)).Get()
		n, _ := o.TypeName()
		return n
	}
	if got := name(m2); got != "Deep" {
		t.Errorf("two hops = %q", got)
	}
	if got := name(m3); got != "(Object)" {
		t.Errorf("three hops with limit 2 = %q", got)
	}
}

func props(t *testing.T, h *Heap, raw uint64) map[string]Property {
	t.Helper()
	obj, ok := decode(t, h, raw).(JSObject)
	if !ok {
		t.Fatalf("0x%x is not a JSObject", raw)
	}
	list, err := obj.OwnProperties()
	if err != nil {
		t.Fatalf("OwnProperties: %v", err)
	}
	out := make(map[string]Property, len(list))
	for _, p := range list {
		out[p.Key] = p
	}
	return out
}

func smiOf(t *testing.T, p Property) int64 {
	t.Helper()
	v, ok := p.Value.Smi().Get()
	if !ok {
		t.Fatalf("property %s = %s, not a Smi", p.Key, p.Value)
	}
	return v
}

func TestInObjectProperties(t *testing.T) {
	fx, h := newHeap(t)
	o := fx.NewObject(fx.NewClass("Point", "x", "y"), v8test.Smi(3), v8test.Smi(4))

	jo := decode(t, h, o).(JSObject)
	keys, err := jo.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(keys) != "[x y]" {
		t.Errorf("Keys = %v", keys)
	}
	p := props(t, h, o)
	if smiOf(t, p["x"]) != 3 || smiOf(t, p["y"]) != 4 {
		t.Errorf("x=%s y=%s", p["x"].Value, p["y"].Value)
	}
	if p["x"].Kind != FieldProperty {
		t.Errorf("x kind = %v", p["x"].Kind)
	}
	if got, ok, _ := jo.Get("y"); !ok || smiOf(t, got) != 4 {
		t.Errorf("Get(y) = %v,%v", got, ok)
	}
	if _, ok, _ := jo.Get("z"); ok {
		t.Error("Get(z) found a missing property")
	}
}

func TestOutOfObjectAndSpecialProperties(t *testing.T) {
	fx, h := newHeap(t)

	// One in-object slot; field 1 lives in the properties store.
	m := fx.NewMap(v8test.TypeJSObject, 4, 3)
	boxed := fx.NewHeapNumber(1.5)
	desc := fx.NewDescriptorArray(
		v8test.Descriptor{Key: fx.NewString("a"), Details: v8test.FieldDetails(0, false)},
		v8test.Descriptor{Key: fx.NewString("b"), Details: v8test.FieldDetails(1, false)},
		v8test.Descriptor{Key: fx.NewString("c"), Details: v8test.ConstDetails(), Value: v8test.Smi(7)},
		v8test.Descriptor{Key: fx.NewString("d"), Details: v8test.AccessorDetails()},
		v8test.Descriptor{Key: fx.NewString("e"), Details: v8test.FieldDetails(2, true)},
		v8test.Descriptor{Key: fx.NewString("f"), Details: v8test.FieldDetails(3, true)},
	)
	fx.SetDescriptors(m, desc, 6)
	fx.SetConstructor(m, fx.NewFunction("Mixed"))
	o := fx.NewObject(m, v8test.Smi(10))
	fx.SetProperties(o, fx.NewFixedArray(v8test.Smi(20), boxed, math.Float64bits(2.25)))

	p := props(t, h, o)
	if len(p) != 6 {
		t.Fatalf("got %d properties", len(p))
	}
	if smiOf(t, p["a"]) != 10 {
		t.Errorf("a = %s", p["a"].Value)
	}
	if smiOf(t, p["b"]) != 20 {
		t.Errorf("b = %s", p["b"].Value)
	}
	if p["c"].Kind != ConstProperty || smiOf(t, p["c"]) != 7 {
		t.Errorf("c = %v %s", p["c"].Kind, p["c"].Value)
	}
	if p["d"].Kind != AccessorProperty || p["d"].Display() != "<accessor>" {
		t.Errorf("d = %v", p["d"].Kind)
	}
	if !p["e"].IsDouble || p["e"].Double != 1.5 {
		t.Errorf("boxed double e = %v %v", p["e"].IsDouble, p["e"].Double)
	}
	if !p["f"].IsDouble || p["f"].Double != 2.25 {
		t.Errorf("unboxed double f = %v %v", p["f"].IsDouble, p["f"].Double)
	}
}

func TestFieldIndexPastPropertiesStore(t *testing.T) {
	fx, h := newHeap(t)
	m := fx.NewMap(v8test.TypeJSObject, 4, 3)
	desc := fx.NewDescriptorArray(
		v8test.Descriptor{Key: fx.NewString("a"), Details: v8test.FieldDetails(0, false)},
		v8test.Descriptor{Key: fx.NewString("far"), Details: v8test.FieldDetails(5, false)},
	)
	fx.SetDescriptors(m, desc, 2)
	o := fx.NewObject(m, v8test.Smi(1))
	fx.SetProperties(o, fx.NewFixedArray(v8test.Smi(2)))

	got, err := decode(t, h, o).(JSObject).OwnProperties()
	var ce *CorruptError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CorruptError", err)
	}
	if len(got) != 1 || got[0].Key != "a" {
		t.Errorf("properties before the bad slot = %v", got)
	}
}

func TestDictionaryProperties(t *testing.T) {
	fx, h := newHeap(t)
	m := fx.NewMap(v8test.TypeJSObject, 3, 3)
	fx.SetDictionaryMap(m)
	o := fx.NewObject(m)
	fx.SetProperties(o, fx.NewNameDictionary(
		fx.NewString("alpha"), v8test.Smi(1),
		fx.NewString("beta"), fx.NewString("two"),
	))

	p := props(t, h, o)
	if len(p) != 2 {
		t.Fatalf("got %d properties, want 2: %v", len(p), p)
	}
	if smiOf(t, p["alpha"]) != 1 || p["alpha"].Kind != DictionaryProperty {
		t.Errorf("alpha = %v", p["alpha"])
	}
	if s, err := h.StringOf(p["beta"].Value); err != nil || s != "two" {
		t.Errorf("beta = %q, %v", s, err)
	}
}

func TestArrayAndElements(t *testing.T) {
	fx, h := newHeap(t)
	a := decode(t, h, fx.NewArray(v8test.Smi(1), v8test.Smi(2), fx.NewString("x"))).(JSArray)
	if n := a.Length().Or(-1); n != 3 {
		t.Errorf("Length = %d", n)
	}
	if n := a.ElementCount().Or(-1); n != 3 {
		t.Errorf("ElementCount = %d", n)
	}
	items, err := a.Items(2)
	if err != nil || len(items) != 2 {
		t.Fatalf("Items(2) = %v, %v", items, err)
	}
	if v, _ := items[1].Smi().Get(); v != 2 {
		t.Errorf("items[1] = %s", items[1])
	}
}

func TestScalars(t *testing.T) {
	fx, h := newHeap(t)

	if f := decode(t, h, fx.NewHeapNumber(-0.5)).(HeapNumber).Value().Or(0); f != -0.5 {
		t.Errorf("HeapNumber = %v", f)
	}

	oddballs := map[uint64]string{
		fx.Undefined: "<undefined>",
		fx.Null:      "<null>",
		fx.True:      "<true>",
		fx.False:     "<false>",
		fx.TheHole:   "<hole>",
	}
	for raw, want := range oddballs {
		if got := decode(t, h, raw).(Oddball).Name(); got != want {
			t.Errorf("oddball 0x%x = %s, want %s", raw, got, want)
		}
	}
	if !h.IsHoleOrUndefined(h.Value(fx.TheHole)) || h.IsHoleOrUndefined(h.Value(fx.Null)) {
		t.Error("IsHoleOrUndefined")
	}

	dm := fx.NewMap(v8test.TypeJSDate, 4, 4)
	d := fx.NewObject(dm)
	fx.SetWord(d, 24, v8test.Smi(86400000))
	date := decode(t, h, d).(JSDate)
	if ts, ok := date.Time().Get(); !ok || ts.Format("2006-01-02") != "1970-01-02" {
		t.Errorf("Date = %v,%v", ts, ok)
	}

	rm := fx.NewMap(v8test.TypeJSRegExp, 5, 5)
	r := fx.NewObject(rm)
	fx.SetWord(r, 32, fx.NewString("a+b"))
	if src, err := decode(t, h, r).(JSRegExp).Source(); err != nil || src != "a+b" {
		t.Errorf("RegExp source = %q, %v", src, err)
	}

	code := decode(t, h, fx.NewCode([]byte{0x55, 0x48, 0x89, 0xe5, 0xc3})).(Code)
	b, err := code.Instructions(4)
	if err != nil || !bytes.Equal(b, []byte{0x55, 0x48, 0x89, 0xe5}) {
		t.Errorf("Instructions = %x, %v", b, err)
	}
}

func TestFunctions(t *testing.T) {
	fx, h := newHeap(t)
	script := fx.NewScript("app.js", "a()\nb()\nfunction bar() {}\n", 10)
	fn := decode(t, h, fx.NewFunctionWith(fx.NewSharedInfo("bar", script, 8))).(JSFunction)

	if name, err := fn.Name(); err != nil || name != "bar" {
		t.Errorf("Name = %q, %v", name, err)
	}
	sfi, _ := fn.Shared().Get()
	if pos := sfi.StartPosition().Or(-1); pos != 8 {
		t.Errorf("StartPosition = %d", pos)
	}
	if end := sfi.EndPosition().Or(-1); end != 18 {
		t.Errorf("EndPosition = %d", end)
	}
	if got := fn.Source(); got != "bar app.js:13" {
		t.Errorf("Source = %q", got)
	}

	anon := decode(t, h, fx.NewFunction("")).(JSFunction)
	if got := anon.DisplayName(); got != "(anonymous js function)" {
		t.Errorf("anonymous DisplayName = %q", got)
	}
}

func TestContextLocals(t *testing.T) {
	fx, h := newHeap(t)
	fnRaw := fx.NewScopedFunction("outer", "count", "label")
	ctxRaw := fx.NewContext(fnRaw, 0, v8test.Smi(3), fx.NewString("x"))
	fx.SetContext(fnRaw, ctxRaw)
	fn := decode(t, h, fnRaw).(JSFunction)

	if name, err := fn.Name(); err != nil || name != "outer" {
		t.Errorf("Name = %q, %v", name, err)
	}
	ctx, ok := fn.Context().Get()
	if !ok {
		t.Fatal("no context")
	}
	if c, ok := ctx.Closure().Get(); !ok || c.Raw() != fnRaw {
		t.Errorf("Closure = %v", c)
	}
	locals, err := ctx.NamedLocals(10)
	if err != nil || len(locals) != 2 {
		t.Fatalf("NamedLocals = %+v, %v", locals, err)
	}
	if locals[0].Name != "count" || locals[0].Value.Raw() != v8test.Smi(3) {
		t.Errorf("local 0 = %+v", locals[0])
	}
	if locals[1].Name != "label" {
		t.Errorf("local 1 = %+v", locals[1])
	}

	// Without scope info the slots are still listed.
	plain := fx.NewFunction("plain")
	bare := Context{FixedArray{decode(t, h, fx.NewContext(plain, 0, v8test.Smi(1))).Base()}}
	locals, err = bare.NamedLocals(10)
	if err != nil || len(locals) != 1 || locals[0].Name != "???" {
		t.Errorf("bare NamedLocals = %+v, %v", locals, err)
	}
}

func TestArrayBuffers(t *testing.T) {
	fx, h := newHeap(t)
	const data = 0x50000000
	copy(fx.Mem.Map(data, 16), []byte("0123456789abcdef"))

	buf := fx.NewArrayBuffer(data, 8)
	ab := decode(t, h, buf).(JSArrayBuffer)
	if b, err := ab.Bytes(100); err != nil || string(b) != "01234567" {
		t.Errorf("buffer bytes = %q, %v", b, err)
	}
	if b, _ := ab.Bytes(3); string(b) != "012" {
		t.Errorf("capped bytes = %q", b)
	}

	view := decode(t, h, fx.NewTypedArray(buf, 2, 3, 0, 0)).(JSTypedArray)
	if b, err := view.Bytes(100); err != nil || string(b) != "234" {
		t.Errorf("view bytes = %q, %v", b, err)
	}

	// On-heap typed array: no backing store, data at base+external.
	onHeap := fx.NewArrayBuffer(0, 0)
	inline := decode(t, h, fx.NewTypedArray(onHeap, 0, 4, 0, data+10)).(JSTypedArray)
	if b, err := inline.Bytes(100); err != nil || string(b) != "abcd" {
		t.Errorf("on-heap bytes = %q, %v", b, err)
	}

	fx.SetNeutered(buf)
	var ce *CorruptError
	if _, err := ab.Bytes(100); !errors.As(err, &ce) {
		t.Errorf("neutered buffer err = %v", err)
	}
	if _, err := view.Bytes(100); !errors.As(err, &ce) {
		t.Errorf("view of neutered buffer err = %v", err)
	}
}

func TestFrames(t *testing.T) {
	fx, h := newHeap(t)
	const base = 0x60000000
	fx.Mem.Map(base, 64)
	fp := uint64(base + 32)

	fn := fx.NewFunction("handler")
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(fx.Mem.PutWord(fp-16, fn))
	must(fx.Mem.PutWord(fp-8, fx.Empty))
	must(fx.Mem.PutWord(fp+16, v8test.Smi(2)))
	must(fx.Mem.PutWord(fp+24, v8test.Smi(1)))

	f := h.Frame(fp)
	if got := f.Describe(); got != "handler" {
		t.Errorf("Describe = %q", got)
	}
	if v, _ := f.Arg(0, 2).Get(); v.Smi().Or(0) != 1 {
		t.Errorf("Arg(0) = %s", v)
	}
	if v, _ := f.Arg(1, 2).Get(); v.Smi().Or(0) != 2 {
		t.Errorf("Arg(1) = %s", v)
	}

	must(fx.Mem.PutWord(fp-8, v8test.Smi(3)))
	if got := f.Describe(); got != "<exit>" {
		t.Errorf("exit frame Describe = %q", got)
	}
}
