package v8

import (
	"fmt"
	"time"

	"v8heap/internal/constants"
)

// HeapNumber is a boxed double.
type HeapNumber struct{ HeapObject }

// Value returns the double.
func (n HeapNumber) Value() Checked[float64] {
	return FieldAt[float64](n.HeapObject, n.h.c.HeapNumber().Value, 0)
}

// Oddball is one of undefined, null, true, false, the hole and friends.
type Oddball struct{ HeapObject }

// Kind returns the oddball kind.
func (o Oddball) Kind() Checked[int64] {
	return smiField(o.HeapObject, o.h.c.Oddball().Kind)
}

// Name renders the oddball.
func (o Oddball) Name() string {
	k, ok := o.Kind().Get()
	if !ok {
		return "<Oddball>"
	}
	oc := o.h.c.Oddball()
	match := func(c constants.Constant) bool {
		v, ok := c.Get()
		return ok && v == k
	}
	switch {
	case match(oc.Undefined):
		return "<undefined>"
	case match(oc.Null):
		return "<null>"
	case match(oc.True):
		return "<true>"
	case match(oc.False):
		return "<false>"
	case match(oc.TheHole):
		return "<hole>"
	case match(oc.Uninitialized):
		return "<uninitialized>"
	case match(oc.Exception):
		return "<exception>"
	}
	return fmt.Sprintf("<Oddball kind=%d>", k)
}

// IsHoleOrUndefined reports whether v is the hole or undefined oddball.
func (h *Heap) IsHoleOrUndefined(v Value) bool {
	o, ok := v.HeapObject().Get()
	if !ok {
		return false
	}
	ot := h.c.Types().Oddball
	if t, ok := o.Type().Get(); !ok || !ot.Ok() || t != ot.Value {
		return false
	}
	k, ok := (Oddball{o}).Kind().Get()
	oc := h.c.Oddball()
	return ok && ((oc.TheHole.Ok() && k == oc.TheHole.Value) || (oc.Undefined.Ok() && k == oc.Undefined.Value))
}

// Code is a compiled code object.
type Code struct{ HeapObject }

// Start returns the address of the first instruction.
func (c Code) Start() Checked[uint64] {
	off := c.h.c.Code().InstructionStart
	if !off.Usable() {
		return Invalid[uint64]()
	}
	return Valid(c.Addr() + uint64(off.Value))
}

// Size returns the instruction size in bytes.
func (c Code) Size() Checked[int64] {
	return Apply(FieldAt[int32](c.HeapObject, c.h.c.Code().InstructionSize, 0), func(v int32) int64 { return int64(v) })
}

// Instructions returns up to max bytes of machine code.
func (c Code) Instructions(max int64) ([]byte, error) {
	n, ok := c.Size().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n < 0 {
		return nil, corruptf(c.Addr(), "negative instruction size %d", n)
	}
	if n > max {
		n = max
	}
	b, ok := BytesAt(c.HeapObject, c.h.c.Code().InstructionStart, 0, n)
	if !ok {
		return nil, ErrInvalid
	}
	return b, nil
}

// JSDate is a Date object.
type JSDate struct{ JSObject }

// Value returns the time value in milliseconds since the epoch.
func (d JSDate) Value() Checked[float64] {
	v, ok := FieldAt[Value](d.HeapObject, d.h.c.JSDate().Value, 0).Get()
	if !ok {
		return Invalid[float64]()
	}
	if n, ok := v.Smi().Get(); ok {
		return Valid(float64(n))
	}
	o, ok := v.HeapObject().Get()
	if !ok {
		return Invalid[float64]()
	}
	return HeapNumber{o}.Value()
}

// Time converts the date to a time.Time.
func (d JSDate) Time() Checked[time.Time] {
	return Apply(d.Value(), func(ms float64) time.Time { return time.UnixMilli(int64(ms)).UTC() })
}

// JSRegExp is a RegExp object.
type JSRegExp struct{ JSObject }

// Source returns the pattern text.
func (r JSRegExp) Source() (string, error) {
	v, ok := FieldAt[Value](r.HeapObject, r.h.c.JSRegExp().Source, 0).Get()
	if !ok {
		return "", ErrInvalid
	}
	return r.h.StringOf(v)
}
