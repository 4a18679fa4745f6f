package v8

import (
	"strings"
	"unicode/utf16"

	"v8heap/internal/constants"
)

// String is any V8 string representation.
type String struct {
	HeapObject
	typ int64
}

// IsStringType reports whether t is a string instance type.
func (h *Heap) IsStringType(t int64) bool {
	fn := h.c.Types().FirstNonstring
	return fn.Ok() && t < fn.Value
}

// AsString returns o as a String when its instance type says it is one.
func (o HeapObject) AsString() Checked[String] {
	t, ok := o.Type().Get()
	if !ok || !o.h.IsStringType(t) {
		return Invalid[String]()
	}
	return Valid(String{HeapObject: o, typ: t})
}

// Length returns the length in code units.
func (s String) Length() Checked[int64] {
	sc := s.h.c.Strings()
	return intField(s.HeapObject, sc.Length, sc.LengthIsSmi())
}

// Representation returns the representation tag (seq, cons, sliced, external, thin).
func (s String) Representation() Checked[int64] {
	m := s.h.c.Strings().RepresentationMask
	if !m.Ok() {
		return Invalid[int64]()
	}
	return Valid(s.typ & m.Value)
}

// Encoding returns the encoding tag (one-byte or two-byte).
func (s String) Encoding() Checked[int64] {
	m := s.h.c.Strings().EncodingMask
	if !m.Ok() {
		return Invalid[int64]()
	}
	return Valid(s.typ & m.Value)
}

// Text resolves the string to its contents. Cons, sliced and thin strings
// are followed within the heap's limits; external strings render as
// "(external)".
func (s String) Text() (string, error) {
	w := stringWalker{h: s.h}
	units, err := w.units(s, 0)
	if err != nil {
		return "", err
	}
	return s.h.render(units), nil
}

// StringOf resolves v as a string.
func (h *Heap) StringOf(v Value) (string, error) {
	o, ok := v.HeapObject().Get()
	if !ok {
		return "", ErrInvalid
	}
	s, ok := o.AsString().Get()
	if !ok {
		return "", ErrInvalid
	}
	return s.Text()
}

func (h *Heap) render(units []uint16) string {
	if h.opts.Wide == WideUTF16 {
		return string(utf16.Decode(units))
	}
	b := make([]byte, len(units))
	for i, u := range units {
		b[i] = byte(u)
	}
	return string(b)
}

var externalText = []uint16{'(', 'e', 'x', 't', 'e', 'r', 'n', 'a', 'l', ')'}

type stringWalker struct {
	h     *Heap
	nodes int
}

func (w *stringWalker) visit(s String) error {
	w.nodes++
	if w.nodes > w.h.opts.MaxStringNodes {
		return corruptf(s.Addr(), "string has more than %d nodes", w.h.opts.MaxStringNodes)
	}
	return nil
}

func (w *stringWalker) units(s String, depth int) ([]uint16, error) {
	if depth > w.h.opts.MaxStringDepth {
		return nil, corruptf(s.Addr(), "string nesting deeper than %d", w.h.opts.MaxStringDepth)
	}
	if err := w.visit(s); err != nil {
		return nil, err
	}
	sc := w.h.c.Strings()
	repr, ok := s.Representation().Get()
	if !ok {
		return nil, ErrInvalid
	}
	switch {
	case sc.SeqTag.Ok() && repr == sc.SeqTag.Value:
		return w.seq(s)
	case sc.ConsTag.Ok() && repr == sc.ConsTag.Value:
		return w.cons(s, depth)
	case sc.SlicedTag.Ok() && repr == sc.SlicedTag.Value:
		return w.sliced(s, depth)
	case sc.ThinTag.Ok() && repr == sc.ThinTag.Value:
		actual, ok := FieldAt[HeapObject](s.HeapObject, sc.ThinActual, 0).Get()
		if !ok {
			return nil, ErrInvalid
		}
		as, ok := actual.AsString().Get()
		if !ok {
			return nil, corruptf(s.Addr(), "thin string target 0x%x is not a string", actual.Raw())
		}
		return w.units(as, depth+1)
	case sc.ExternalTag.Ok() && repr == sc.ExternalTag.Value:
		return externalText, nil
	}
	return nil, corruptf(s.Addr(), "unknown string representation %d", repr)
}

func (w *stringWalker) length(s String) (int64, error) {
	n, ok := s.Length().Get()
	if !ok {
		return 0, ErrInvalid
	}
	if n < 0 || n > w.h.opts.MaxStringLength {
		return 0, corruptf(s.Addr(), "string length %d out of range", n)
	}
	return n, nil
}

func (w *stringWalker) seq(s String) ([]uint16, error) {
	sc := w.h.c.Strings()
	n, err := w.length(s)
	if err != nil {
		return nil, err
	}
	enc, ok := s.Encoding().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if sc.TwoByteTag.Ok() && enc == sc.TwoByteTag.Value {
		b, ok := BytesAt(s.HeapObject, sc.TwoByteChars, 0, 2*n)
		if !ok {
			return nil, ErrInvalid
		}
		out := make([]uint16, n)
		order := w.h.t.ByteOrder()
		for i := range out {
			out[i] = order.Uint16(b[2*i:])
		}
		return out, nil
	}
	b, ok := BytesAt(s.HeapObject, sc.OneByteChars, 0, n)
	if !ok {
		return nil, ErrInvalid
	}
	out := make([]uint16, n)
	for i, c := range b {
		out[i] = uint16(c)
	}
	return out, nil
}

// cons flattens a rope with an explicit stack so deep left or right
// chains do not grow the Go stack.
func (w *stringWalker) cons(s String, depth int) ([]uint16, error) {
	sc := w.h.c.Strings()
	want, err := w.length(s)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, want)
	stack := []String{s}
	first := true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		repr, ok := cur.Representation().Get()
		if !ok {
			return nil, ErrInvalid
		}
		if sc.ConsTag.Ok() && repr == sc.ConsTag.Value {
			if !first {
				if err := w.visit(cur); err != nil {
					return nil, err
				}
			}
			first = false
			a, ok1 := FieldAt[HeapObject](cur.HeapObject, sc.ConsFirst, 0).Get()
			b, ok2 := FieldAt[HeapObject](cur.HeapObject, sc.ConsSecond, 0).Get()
			if !ok1 || !ok2 {
				return nil, ErrInvalid
			}
			as, ok1 := a.AsString().Get()
			bs, ok2 := b.AsString().Get()
			if !ok1 || !ok2 {
				return nil, corruptf(cur.Addr(), "cons string part is not a string")
			}
			stack = append(stack, bs, as)
			continue
		}
		part, err := w.units(cur, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
		if int64(len(out)) > w.h.opts.MaxStringLength {
			return nil, corruptf(s.Addr(), "cons string longer than %d", w.h.opts.MaxStringLength)
		}
	}
	return out, nil
}

func (w *stringWalker) sliced(s String, depth int) ([]uint16, error) {
	sc := w.h.c.Strings()
	p, ok := FieldAt[HeapObject](s.HeapObject, sc.SlicedParent, 0).Get()
	if !ok {
		return nil, ErrInvalid
	}
	parent, ok := p.AsString().Get()
	if !ok {
		return nil, corruptf(s.Addr(), "sliced string parent 0x%x is not a string", p.Raw())
	}
	if repr, ok := parent.Representation().Get(); ok && sc.ExternalTag.Ok() && repr == sc.ExternalTag.Value {
		return externalText, nil
	}
	offset, ok := smiField(s.HeapObject, sc.SlicedOffset).Get()
	if !ok {
		return nil, ErrInvalid
	}
	length, err := w.length(s)
	if err != nil {
		return nil, err
	}
	text, err := w.units(parent, depth+1)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+length > int64(len(text)) {
		return nil, corruptf(s.Addr(), "sliced string offset %d length %d exceeds parent length %d",
			offset, length, len(text))
	}
	return text[offset : offset+length], nil
}

// Quote renders text for display, truncated to max runes.
func Quote(text string, max int) string {
	r := []rune(text)
	if max > 0 && len(r) > max {
		return `"` + strings.ReplaceAll(string(r[:max]), `"`, `\"`) + `..."`
	}
	return `"` + strings.ReplaceAll(text, `"`, `\"`) + `"`
}

// StringPart is a string that a cons, sliced or thin string points at.
type StringPart struct {
	Role  string // "<First>", "<Second>", "<Parent>" or "<Actual>"
	Value Value
}

// Parts returns the strings s is built from. Sequential and external
// strings have none; unreadable slots are omitted.
func (s String) Parts() []StringPart {
	sc := s.h.c.Strings()
	repr, ok := s.Representation().Get()
	if !ok {
		return nil
	}
	var out []StringPart
	add := func(role string, off constants.Constant) {
		if v, ok := FieldAt[Value](s.HeapObject, off, 0).Get(); ok && v.IsHeapObject() {
			out = append(out, StringPart{Role: role, Value: v})
		}
	}
	switch {
	case sc.ConsTag.Ok() && repr == sc.ConsTag.Value:
		add("<First>", sc.ConsFirst)
		add("<Second>", sc.ConsSecond)
	case sc.SlicedTag.Ok() && repr == sc.SlicedTag.Value:
		add("<Parent>", sc.SlicedParent)
	case sc.ThinTag.Ok() && repr == sc.ThinTag.Value:
		add("<Actual>", sc.ThinActual)
	}
	return out
}
