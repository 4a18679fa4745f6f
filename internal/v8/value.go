package v8

import (
	"fmt"

	"v8heap/internal/constants"
)

// Kind classifies a tagged word.
type Kind int

const (
	Unrecognized Kind = iota
	SmallIntKind
	HeapReference
)

func (k Kind) String() string {
	switch k {
	case SmallIntKind:
		return "smi"
	case HeapReference:
		return "heap"
	}
	return "unrecognized"
}

// SmallInt is an untagged small integer read out of a tagged slot.
type SmallInt int64

// Value is one tagged word from the target.
type Value struct {
	h   *Heap
	raw uint64
}

// Value wraps a raw tagged word.
func (h *Heap) Value(raw uint64) Value { return Value{h: h, raw: raw} }

// Classify reports what a tagged word holds. It fails closed: without the
// tag constants nothing is recognized.
func (h *Heap) Classify(raw uint64) Kind {
	if !h.tagsOK {
		return Unrecognized
	}
	if raw&h.smiMask == h.smiTag {
		return SmallIntKind
	}
	if raw&h.hoMask == h.hoTag {
		return HeapReference
	}
	return Unrecognized
}

func (h *Heap) untagSmi(raw uint64) int64 {
	if h.ptr == 4 {
		return int64(int32(uint32(raw))) >> h.smiShift
	}
	return int64(raw) >> h.smiShift
}

// Raw returns the tagged word.
func (v Value) Raw() uint64 { return v.raw }

// Kind classifies v.
func (v Value) Kind() Kind { return v.h.Classify(v.raw) }

// IsSmi reports whether v is a small integer.
func (v Value) IsSmi() bool { return v.Kind() == SmallIntKind }

// IsHeapObject reports whether v references a heap object.
func (v Value) IsHeapObject() bool { return v.Kind() == HeapReference }

// Smi untags v when it is a small integer.
func (v Value) Smi() Checked[int64] {
	if !v.IsSmi() {
		return Invalid[int64]()
	}
	return Valid(v.h.untagSmi(v.raw))
}

// HeapObject returns v as an object reference when it is one.
func (v Value) HeapObject() Checked[HeapObject] { return v.h.Object(v.raw) }

func (v Value) String() string {
	switch v.Kind() {
	case SmallIntKind:
		return fmt.Sprintf("<Smi: %d>", v.h.untagSmi(v.raw))
	case HeapReference:
		return fmt.Sprintf("0x%x", v.raw)
	}
	return fmt.Sprintf("<unrecognized 0x%x>", v.raw)
}

// HeapObject is a tagged reference to an object in the target heap.
type HeapObject struct {
	h   *Heap
	raw uint64
}

// Object returns raw as a heap object when it carries the heap-object tag.
func (h *Heap) Object(raw uint64) Checked[HeapObject] {
	if h.Classify(raw) != HeapReference {
		return Invalid[HeapObject]()
	}
	return Valid(HeapObject{h: h, raw: raw})
}

// Raw returns the tagged reference.
func (o HeapObject) Raw() uint64 { return o.raw }

// Addr returns the untagged object address.
func (o HeapObject) Addr() uint64 { return o.raw - o.h.hoTag }

// Heap returns the decoding context.
func (o HeapObject) Heap() *Heap { return o.h }

// Value returns o as a tagged value.
func (o HeapObject) Value() Value { return Value{h: o.h, raw: o.raw} }

// Field is the set of types a heap object field can be read as.
// uint64 is a raw pointer-width word.
type Field interface {
	uint8 | uint16 | uint32 | int32 | uint64 | float64 | SmallInt | Value | HeapObject
}

// FieldAt reads the field at off+delta of o. Every decoder reads object
// fields through here: an unusable offset or unreadable memory yields an
// invalid result.
func FieldAt[T Field](o HeapObject, off constants.Constant, delta int64) Checked[T] {
	if o.h == nil || !off.Usable() {
		return Invalid[T]()
	}
	addr := o.raw - o.h.hoTag + uint64(off.Value+delta)
	r := o.h.r

	var zero T
	var out any
	switch any(zero).(type) {
	case uint8:
		v, ok := r.ReadUnsigned(addr, 1)
		if !ok {
			return Invalid[T]()
		}
		out = uint8(v)
	case uint16:
		v, ok := r.ReadUnsigned(addr, 2)
		if !ok {
			return Invalid[T]()
		}
		out = uint16(v)
	case uint32:
		v, ok := r.ReadUnsigned(addr, 4)
		if !ok {
			return Invalid[T]()
		}
		out = uint32(v)
	case int32:
		v, ok := r.ReadSigned(addr, 4)
		if !ok {
			return Invalid[T]()
		}
		out = int32(v)
	case uint64:
		v, ok := r.ReadWord(addr)
		if !ok {
			return Invalid[T]()
		}
		out = v
	case float64:
		v, ok := r.ReadDouble(addr)
		if !ok {
			return Invalid[T]()
		}
		out = v
	case SmallInt:
		w, ok := r.ReadWord(addr)
		if !ok || o.h.Classify(w) != SmallIntKind {
			return Invalid[T]()
		}
		out = SmallInt(o.h.untagSmi(w))
	case Value:
		w, ok := r.ReadWord(addr)
		if !ok {
			return Invalid[T]()
		}
		out = Value{h: o.h, raw: w}
	case HeapObject:
		w, ok := r.ReadWord(addr)
		if !ok || o.h.Classify(w) != HeapReference {
			return Invalid[T]()
		}
		out = HeapObject{h: o.h, raw: w}
	}
	return Valid(out.(T))
}

// BytesAt reads n bytes starting at the field at off+delta of o. It is the
// bulk form of FieldAt, for payloads stored inline in an object.
func BytesAt(o HeapObject, off constants.Constant, delta, n int64) ([]byte, bool) {
	if o.h == nil || !off.Usable() || n < 0 {
		return nil, false
	}
	return o.h.r.ReadBytes(o.raw-o.h.hoTag+uint64(off.Value+delta), int(n))
}

// smiField reads a tagged small integer field as int64.
func smiField(o HeapObject, off constants.Constant) Checked[int64] {
	return Apply(FieldAt[SmallInt](o, off, 0), func(v SmallInt) int64 { return int64(v) })
}

// intField reads a field that is either a tagged small integer or a raw
// int32, depending on which constant name resolved.
func intField(o HeapObject, off constants.Constant, smi bool) Checked[int64] {
	if smi {
		return smiField(o, off)
	}
	return Apply(FieldAt[int32](o, off, 0), func(v int32) int64 { return int64(v) })
}
