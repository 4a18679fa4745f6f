package v8

import (
	"testing"

	"v8heap/internal/constants"
	"v8heap/internal/diag"
	"v8heap/internal/v8/v8test"
)

func newSchema(fx *v8test.Heap) *constants.Schema {
	return constants.New(fx.Target(), &diag.Diags{Quiet: true})
}

func newHeap(t *testing.T, opts ...v8test.Option) (*v8test.Heap, *Heap) {
	t.Helper()
	fx := v8test.New(opts...)
	return fx, New(newSchema(fx), Options{})
}

func TestClassify(t *testing.T) {
	fx, h := newHeap(t)
	tests := []struct {
		name string
		raw  uint64
		want Kind
	}{
		{"smi zero", v8test.Smi(0), SmallIntKind},
		{"smi negative", v8test.Smi(-7), SmallIntKind},
		{"heap ref", fx.Undefined, HeapReference},
		{"weak-looking", 0x1003, Unrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(0x%x) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	if v, ok := h.Value(v8test.Smi(-7)).Smi().Get(); !ok || v != -7 {
		t.Errorf("Smi(-7) = %d,%v", v, ok)
	}
	if _, ok := h.Value(fx.Undefined).Smi().Get(); ok {
		t.Error("heap reference must not untag as Smi")
	}
	if _, ok := h.Value(v8test.Smi(1)).HeapObject().Get(); ok {
		t.Error("Smi must not be a heap object")
	}
}

func TestClassifyFailsClosed(t *testing.T) {
	fx, h := newHeap(t, v8test.Without("SmiTag"))
	for _, raw := range []uint64{v8test.Smi(3), fx.Undefined} {
		if k := h.Classify(raw); k != Unrecognized {
			t.Errorf("Classify(0x%x) = %v without tag constants", raw, k)
		}
	}
	if _, err := h.Decode(fx.Undefined); err != ErrInvalid {
		t.Errorf("Decode without tags: err = %v", err)
	}
}

func TestSmi32(t *testing.T) {
	h := &Heap{ptr: 4, tagsOK: true, smiMask: 1, smiShift: 1, hoMask: 3, hoTag: 1}
	tests := []struct {
		raw  uint64
		want int64
	}{
		{0x2, 1},
		{0xfffffffe, -1},
		{0x7ffffffe, 0x3fffffff},
		// Upper bits are ignored on 32-bit targets.
		{0xdead0000_00000004, 2},
	}
	for _, tt := range tests {
		if got, ok := h.Value(tt.raw).Smi().Get(); !ok || got != tt.want {
			t.Errorf("Smi(0x%x) = %d,%v want %d", tt.raw, got, ok, tt.want)
		}
	}
}

func TestFieldAtUnusableOffset(t *testing.T) {
	fx, h := newHeap(t)
	o, ok := h.Object(fx.Undefined).Get()
	if !ok {
		t.Fatal("undefined is not a heap object")
	}
	absent := constants.Constant{Name: "missing", Value: -1, State: constants.Absent}
	if FieldAt[uint64](o, absent, 0).Ok() {
		t.Error("absent offset must not be read")
	}
	defaulted := constants.Constant{Name: "defaulted", Value: 0, State: constants.Absent}
	if !FieldAt[uint64](o, defaulted, 0).Ok() {
		t.Error("absent offset with a non-negative default should be usable")
	}
	if FieldAt[uint64](o, at(heapEnd(fx)), 0).Ok() {
		t.Error("read past the heap should fail")
	}
}

func TestBytesAt(t *testing.T) {
	fx, h := newHeap(t)
	o, ok := h.Object(fx.NewString("inline")).Get()
	if !ok {
		t.Fatal("string is not a heap object")
	}
	chars := h.Schema().Strings().OneByteChars
	if b, ok := BytesAt(o, chars, 0, 6); !ok || string(b) != "inline" {
		t.Errorf("BytesAt = %q,%v", b, ok)
	}
	if b, ok := BytesAt(o, chars, 2, 3); !ok || string(b) != "lin" {
		t.Errorf("BytesAt with delta = %q,%v", b, ok)
	}
	absent := constants.Constant{Name: "missing", Value: -1, State: constants.Absent}
	if _, ok := BytesAt(o, absent, 0, 1); ok {
		t.Error("absent offset must not be read")
	}
	if _, ok := BytesAt(o, chars, 0, -1); ok {
		t.Error("negative length must fail")
	}
	if _, ok := BytesAt(o, at(heapEnd(fx)), 0, 8); ok {
		t.Error("read past the heap should fail")
	}
}

// heapEnd returns an offset from Undefined that lands past the mapped heap.
func heapEnd(fx *v8test.Heap) int64 {
	return int64(v8test.HeapBase+v8test.HeapSize) - int64(v8test.Untag(fx.Undefined))
}

func TestChecked(t *testing.T) {
	c := Valid(2)
	d := Then(c, func(v int) Checked[int] { return Valid(v * 3) })
	if v, ok := d.Get(); !ok || v != 6 {
		t.Errorf("Then = %d,%v", v, ok)
	}
	bad := Then(Invalid[int](), func(v int) Checked[int] {
		t.Error("continuation ran on invalid value")
		return Valid(v)
	})
	if bad.Ok() || bad.Or(-1) != -1 {
		t.Error("invalid value leaked through Then")
	}
	if s := Apply(c, func(v int) string { return "x" }).Or(""); s != "x" {
		t.Errorf("Apply = %q", s)
	}
}

func TestMapValidation(t *testing.T) {
	fx, h := newHeap(t)
	// An object whose map slot points at a FixedArray rather than a map.
	bogus := fx.NewObject(fx.Empty)
	o, _ := h.Object(bogus).Get()
	if !o.Type().Ok() {
		t.Fatal("unvalidated type read should succeed")
	}
	if o.CheckedType().Ok() {
		t.Error("CheckedType accepted an object whose map is not a map")
	}
	if _, err := h.Decode(bogus); err != ErrInvalid {
		t.Errorf("Decode = %v, want ErrInvalid", err)
	}
}

func TestMapFields(t *testing.T) {
	fx, h := newHeap(t)
	m := fx.NewClass("Point", "x", "y")
	mo, _ := h.Object(m).Get()
	mp := Map{mo}

	if !mp.IsMap() {
		t.Fatal("class map is not a map")
	}
	if got := mp.InstanceType().Or(-1); got != v8test.TypeJSObject {
		t.Errorf("InstanceType = %d", got)
	}
	if got := mp.InstanceSize().Or(-1); got != 5*8 {
		t.Errorf("InstanceSize = %d", got)
	}
	if got := mp.InObjectProperties().Or(-1); got != 2 {
		t.Errorf("InObjectProperties = %d", got)
	}
	if got := mp.NumberOfOwnDescriptors().Or(-1); got != 2 {
		t.Errorf("NumberOfOwnDescriptors = %d", got)
	}
	if dict := mp.IsDictionary().Or(true); dict {
		t.Error("fresh map reported dictionary mode")
	}
	fx.SetDictionaryMap(m)
	if !mp.IsDictionary().Or(false) {
		t.Error("dictionary bit not seen")
	}
}
