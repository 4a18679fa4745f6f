package printer

import (
	"fmt"
	"math"
	"strings"

	"v8heap/internal/constants"
	"v8heap/internal/v8"
)

func isType(c constants.Constant, t int64) bool {
	v, ok := c.Get()
	return ok && v == t
}

// Inspect renders the tagged value raw: "<Smi: 3>" for small integers,
// "0x...:<Object: Point>" and friends for heap objects.
func (p *Printer) Inspect(raw uint64) (string, error) {
	v := p.h.Value(raw)
	switch v.Kind() {
	case v8.SmallIntKind:
		return p.smi(v), nil
	case v8.HeapReference:
		o, _ := v.HeapObject().Get()
		return p.object(o)
	}
	return "", fmt.Errorf("printer: 0x%x is neither an object nor a small integer", raw)
}

// value renders a value nested in another listing. Failures print as "???"
// so that one bad slot does not hide its siblings.
func (p *Printer) value(v v8.Value) string {
	s, err := p.nested().Inspect(v.Raw())
	if err != nil {
		return p.pal.bad.Sprint("???")
	}
	return s
}

func (p *Printer) smi(v v8.Value) string {
	return p.pal.value.Sprintf("<Smi: %d>", v.Smi().Or(0))
}

func (p *Printer) prefix(o v8.HeapObject) string {
	if p.opts.PrintMap {
		var m uint64
		if mo, ok := o.Map().Get(); ok {
			m = mo.Raw()
		}
		return fmt.Sprintf("0x%016x(map=0x%016x):", o.Raw(), m)
	}
	return p.pal.addr.Sprintf("0x%x", o.Raw()) + ":"
}

func (p *Printer) object(o v8.HeapObject) (string, error) {
	obj, err := o.Decode()
	if err != nil {
		return "", fmt.Errorf("printer: 0x%x: %w", o.Raw(), err)
	}
	pre := p.prefix(o)
	types := p.h.Schema().Types()
	switch x := obj.(type) {
	case v8.Map:
		return pre + p.mapString(x), nil
	case v8.JSFunction:
		return pre + p.function(x), nil
	case v8.JSArray:
		return pre + p.array(x), nil
	case v8.JSArrayBuffer:
		return pre + p.arrayBuffer(x), nil
	case v8.JSTypedArray:
		return pre + p.typedArray(x), nil
	case v8.JSRegExp:
		return pre + p.regexp(x), nil
	case v8.JSDate:
		return pre + p.date(x), nil
	case v8.JSObject:
		t := o.Type().Or(-1)
		switch {
		case isType(types.GlobalObject, t):
			return pre + p.pal.value.Sprint("<Global>"), nil
		case isType(types.GlobalProxy, t):
			return pre + p.pal.value.Sprint("<Global proxy>"), nil
		}
		return pre + p.jsObject(x), nil
	case v8.HeapNumber:
		f, ok := x.Value().Get()
		if !ok {
			return "", fmt.Errorf("printer: 0x%x: %w", o.Raw(), v8.ErrInvalid)
		}
		return pre + p.pal.value.Sprintf("<Number: %f>", f), nil
	case v8.Oddball:
		return pre + p.pal.value.Sprint(x.Name()), nil
	case v8.String:
		s, err := p.stringValue(x)
		if err != nil {
			return "", fmt.Errorf("printer: 0x%x: %w", o.Raw(), err)
		}
		return pre + s, nil
	case v8.FixedArray:
		return pre + p.fixedArray(x), nil
	case v8.Code:
		return pre + p.pal.value.Sprint("<Code>"), nil
	}
	return pre + p.pal.value.Sprint("<unknown>"), nil
}

func (p *Printer) stringValue(s v8.String) (string, error) {
	text, err := s.Text()
	if err != nil {
		return "", err
	}
	if r := []rune(text); len(r) > p.opts.Length {
		text = string(r[:p.opts.Length]) + "..."
	}
	return p.pal.value.Sprint(`<String: "` + text + `">`), nil
}

func (p *Printer) mapString(m v8.Map) string {
	sc := p.h.Schema()
	label := "constructor_index"
	var n int64
	if t, ok := m.InstanceType().Get(); ok && (sc.Types().IsObjectType(t) || isType(sc.Types().JSArray, t)) {
		label = "in_object_size"
		n = m.InObjectProperties().Or(0)
	} else if v, ok := v8.FieldAt[uint8](m.HeapObject, sc.Map().InObjectPropertiesStart, 0).Get(); ok {
		n = int64(v)
	}
	res := fmt.Sprintf("<Map own_descriptors=%d %s=%d instance_size=%d descriptors=",
		m.NumberOfOwnDescriptors().Or(0), label, n, m.InstanceSize().Or(0))
	desc, ok := m.InstanceDescriptors().Get()
	if !ok {
		return p.pal.value.Sprint(res) + p.pal.bad.Sprint("???") + ">"
	}
	res = p.pal.value.Sprint(res + fmt.Sprintf("0x%016x", desc.Raw()))
	if !p.opts.Detailed {
		return res + ">"
	}
	return res + ":" + p.fixedArray(desc.FixedArray) + ">"
}

func (p *Printer) fixedArray(a v8.FixedArray) string {
	n := a.Length().Or(0)
	res := fmt.Sprintf("<FixedArray, len=%d", n)
	if !p.opts.Detailed {
		return p.pal.value.Sprint(res + ">")
	}
	if max := p.h.Options().MaxProperties; n > max {
		n = max
	}
	slots, _ := a.Slots(n)
	lines := make([]string, len(slots))
	for i, v := range slots {
		lines[i] = p.pal.key.Sprintf("    [%d]", i) + "=" + p.value(v)
	}
	if len(lines) == 0 {
		return p.pal.header.Sprint(res) + ">"
	}
	return p.pal.header.Sprint(res+" contents") + "={\n" + strings.Join(lines, ",\n") + "}>"
}

// constructorName names an object for "<Object: ...>".
func (p *Printer) constructorName(o v8.JSObject) string {
	m, ok := o.Map().Get()
	if !ok {
		return "no constructor"
	}
	if _, ok := m.Constructor().Get(); !ok {
		return "no constructor"
	}
	name, err := o.TypeName()
	if err != nil {
		return "no constructor"
	}
	return name
}

func (p *Printer) jsObject(o v8.JSObject) string {
	res := p.pal.value.Sprint("<Object: " + p.constructorName(o))
	if p.opts.Detailed {
		res += " " + p.properties(o)
		if fields := p.internalFields(o); fields != "" {
			res += "\n" + p.pal.header.Sprint("  internal fields") + " {\n" + fields + "}"
		}
	}
	return res + p.pal.value.Sprint(">")
}

// properties renders the elements and named properties blocks.
func (p *Printer) properties(o v8.JSObject) string {
	var res string
	if elems := p.elements(o, o.ElementCount().Or(0)); elems != "" {
		res = p.pal.header.Sprint("elements") + " {\n" + elems + "}"
	}
	props, _ := o.OwnProperties()
	lines := make([]string, 0, len(props))
	for _, prop := range props {
		var val string
		switch {
		case prop.Kind == v8.AccessorProperty, prop.Kind == v8.UnknownProperty:
			val = p.pal.bad.Sprint(prop.Display())
		case prop.IsDouble:
			val = fmt.Sprintf("%f", prop.Double)
		default:
			val = p.value(prop.Value)
		}
		lines = append(lines, p.pal.key.Sprint("    ."+prop.Key)+"="+val)
	}
	if len(lines) > 0 {
		if res != "" {
			res += "\n  "
		}
		res += p.pal.header.Sprint("properties") + " {\n" + strings.Join(lines, ",\n") + "}"
	}
	return res
}

// elements renders up to n indexed elements, skipping holes.
func (p *Printer) elements(o v8.JSObject, n int64) string {
	fa, ok := o.Elements().Get()
	if !ok || n <= 0 {
		return ""
	}
	slots, _ := fa.Slots(n)
	var lines []string
	for i, v := range slots {
		if p.isHole(v) {
			continue
		}
		lines = append(lines, p.pal.key.Sprintf("    [%d]", i)+"="+p.value(v))
	}
	return strings.Join(lines, ",\n")
}

func (p *Printer) isHole(v v8.Value) bool {
	o, ok := v.HeapObject().Get()
	if !ok {
		return false
	}
	if t, ok := o.Type().Get(); !ok || !isType(p.h.Schema().Types().Oddball, t) {
		return false
	}
	k, ok := (v8.Oddball{HeapObject: o}).Kind().Get()
	return ok && isType(p.h.Schema().Oddball().TheHole, k)
}

// internalFields lists the embedder slots between the header and the
// in-object properties.
func (p *Printer) internalFields(o v8.JSObject) string {
	m, ok := o.Map().Get()
	if !ok {
		return ""
	}
	if t, ok := m.InstanceType().Get(); !ok || !p.h.Schema().Types().IsObjectType(t) {
		return ""
	}
	size, ok := m.InstanceSize().Get()
	if !ok || size == 0 {
		return ""
	}
	ptr := p.h.PointerSize()
	size -= m.InObjectProperties().Or(0) * ptr
	start, ok := p.h.Schema().JSObject().InternalFields.Get()
	if !ok {
		return ""
	}
	var lines []string
	for off := start; off < size; off += ptr {
		w, ok := p.h.Reader().ReadWord(o.Addr() + uint64(off))
		if !ok {
			break
		}
		lines = append(lines, p.pal.addr.Sprintf("    0x%016x", w))
	}
	return strings.Join(lines, ",\n  ")
}

func (p *Printer) array(a v8.JSArray) string {
	n := a.Length().Or(0)
	res := fmt.Sprintf("<Array: length=%d", n)
	if !p.opts.Detailed {
		return p.pal.value.Sprint(res + ">")
	}
	res = p.pal.header.Sprint(res)
	shown := n
	if shown > int64(p.opts.Length) {
		shown = int64(p.opts.Length)
	}
	if elems := p.elements(a.JSObject, shown); elems != "" {
		res += " {\n" + elems + "}"
	}
	return res + ">"
}

func (p *Printer) regexp(r v8.JSRegExp) string {
	src, err := r.Source()
	if err != nil {
		return p.jsObject(r.JSObject)
	}
	res := "<JSRegExp source=/" + src + "/"
	if !p.opts.Detailed {
		return p.pal.value.Sprint(res + ">")
	}
	return p.pal.header.Sprint(res) + " " + p.properties(r.JSObject) + ">"
}

func (p *Printer) date(d v8.JSDate) string {
	f, ok := d.Value().Get()
	switch {
	case !ok:
		return p.pal.value.Sprint("<JSDate: >")
	case f == math.Trunc(f) && !math.IsInf(f, 0):
		return p.pal.value.Sprintf("<JSDate: %d>", int64(f))
	}
	return p.pal.value.Sprintf("<JSDate: %f>", f)
}

func orUnknown[T any](c v8.Checked[T], format string) string {
	v, ok := c.Get()
	if !ok {
		return "???"
	}
	return fmt.Sprintf(format, v)
}

func formatBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, ", ")
}

// bytesBlock renders the " [\n  aa, bb ...\n]" preview of a buffer.
func (p *Printer) bytesBlock(b []byte, total int64) string {
	res := " [\n  " + formatBytes(b)
	if int64(len(b)) < total {
		res += " ..."
	}
	return res + "\n]"
}

func (p *Printer) arrayBuffer(b v8.JSArrayBuffer) string {
	if dead, ok := b.WasNeutered().Get(); ok && dead {
		return p.pal.value.Sprint("<ArrayBuffer [neutered]>")
	}
	res := fmt.Sprintf("<ArrayBuffer: backingStore=%s, byteLength=%s",
		orUnknown(b.BackingStore(), "0x%016x"), orUnknown(b.ByteLength(), "%d"))
	if !p.opts.Detailed {
		return p.pal.value.Sprint(res + ">")
	}
	res = p.pal.header.Sprint(res + ":")
	if data, err := b.Bytes(int64(p.opts.Length)); err == nil {
		res += p.pal.value.Sprint(p.bytesBlock(data, b.ByteLength().Or(0)))
	}
	return res + ">"
}

func (p *Printer) typedArray(t v8.JSTypedArray) string {
	if buf, ok := t.Buffer().Get(); ok {
		if dead, ok := buf.WasNeutered().Get(); ok && dead {
			return p.pal.value.Sprint("<ArrayBufferView [neutered]>")
		}
	}
	res := fmt.Sprintf("<ArrayBufferView: backingStore=%s, byteOffset=%s, byteLength=%s",
		orUnknown(t.Data(), "0x%016x"), orUnknown(t.ByteOffset(), "%d"), orUnknown(t.ByteLength(), "%d"))
	if !p.opts.Detailed {
		return p.pal.value.Sprint(res + ">")
	}
	res = p.pal.header.Sprint(res + ":")
	if data, err := t.Bytes(int64(p.opts.Length)); err == nil {
		res += p.pal.value.Sprint(p.bytesBlock(data, t.ByteLength().Or(0)))
	}
	return res + ">"
}
