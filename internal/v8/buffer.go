package v8

// JSArrayBuffer is an ArrayBuffer.
type JSArrayBuffer struct{ JSObject }

// BackingStore returns the raw address of the buffer's data.
func (b JSArrayBuffer) BackingStore() Checked[uint64] {
	return FieldAt[uint64](b.HeapObject, b.h.c.JSArrayBuffer().BackingStore, 0)
}

// ByteLength returns the buffer size in bytes.
func (b JSArrayBuffer) ByteLength() Checked[int64] {
	bc := b.h.c.JSArrayBuffer()
	if bc.ByteLengthIsSmi() {
		return b.h.number(FieldAt[Value](b.HeapObject, bc.ByteLength, 0))
	}
	return Apply(FieldAt[uint64](b.HeapObject, bc.ByteLength, 0), func(v uint64) int64 { return int64(v) })
}

// WasNeutered reports whether the buffer was detached.
func (b JSArrayBuffer) WasNeutered() Checked[bool] {
	bc := b.h.c.JSArrayBuffer()
	return Apply(FieldAt[uint32](b.HeapObject, bc.BitField, 0), func(v uint32) bool {
		return int64(v)&bc.WasNeuteredMask.Value != 0
	})
}

// Bytes returns up to max bytes of buffer contents.
func (b JSArrayBuffer) Bytes(max int64) ([]byte, error) {
	if dead, ok := b.WasNeutered().Get(); ok && dead {
		return nil, corruptf(b.Addr(), "array buffer was neutered")
	}
	data, ok := b.BackingStore().Get()
	if !ok {
		return nil, ErrInvalid
	}
	n, ok := b.ByteLength().Get()
	if !ok {
		return nil, ErrInvalid
	}
	return b.h.readData(b.Addr(), data, n, max)
}

// number reads a tagged length that is a Smi or a HeapNumber.
func (h *Heap) number(c Checked[Value]) Checked[int64] {
	v, ok := c.Get()
	if !ok {
		return Invalid[int64]()
	}
	if n, ok := v.Smi().Get(); ok {
		return Valid(n)
	}
	o, ok := v.HeapObject().Get()
	if !ok {
		return Invalid[int64]()
	}
	return Apply(HeapNumber{o}.Value(), func(f float64) int64 { return int64(f) })
}

func (h *Heap) readData(owner, data uint64, n, max int64) ([]byte, error) {
	if n < 0 {
		return nil, corruptf(owner, "negative byte length %d", n)
	}
	if n > max {
		n = max
	}
	if n == 0 {
		return []byte{}, nil
	}
	// Bulk payload read: backing stores live outside the heap, at the
	// address a field of owner points to.
	buf, ok := h.r.ReadBytes(data, int(n))
	if !ok {
		return nil, ErrInvalid
	}
	return buf, nil
}

// JSTypedArray is a typed view over an ArrayBuffer.
type JSTypedArray struct{ JSObject }

// Buffer returns the viewed buffer.
func (t JSTypedArray) Buffer() Checked[JSArrayBuffer] {
	return Apply(FieldAt[HeapObject](t.HeapObject, t.h.c.JSArrayBufferView().Buffer, 0), func(o HeapObject) JSArrayBuffer {
		return JSArrayBuffer{JSObject{o}}
	})
}

func (t JSTypedArray) size(c Checked[Value], raw Checked[uint64]) Checked[int64] {
	if t.h.c.JSArrayBufferView().RawSizes() {
		return Apply(raw, func(v uint64) int64 { return int64(v) })
	}
	return t.h.number(c)
}

// ByteOffset returns the view's offset into its buffer.
func (t JSTypedArray) ByteOffset() Checked[int64] {
	off := t.h.c.JSArrayBufferView().ByteOffset
	return t.size(FieldAt[Value](t.HeapObject, off, 0), FieldAt[uint64](t.HeapObject, off, 0))
}

// ByteLength returns the view's length in bytes.
func (t JSTypedArray) ByteLength() Checked[int64] {
	off := t.h.c.JSArrayBufferView().ByteLength
	return t.size(FieldAt[Value](t.HeapObject, off, 0), FieldAt[uint64](t.HeapObject, off, 0))
}

// Data returns the address of the first viewed byte. Off-heap buffers use
// backing_store+byte_offset; on-heap ones use base_pointer+external_pointer.
func (t JSTypedArray) Data() Checked[uint64] {
	buf, ok := t.Buffer().Get()
	if !ok {
		return Invalid[uint64]()
	}
	if bs, ok := buf.BackingStore().Get(); ok && bs != 0 {
		off, ok := t.ByteOffset().Get()
		if !ok {
			return Invalid[uint64]()
		}
		return Valid(bs + uint64(off))
	}

	tc := t.h.c.JSTypedArray()
	if tc.BasePointer.Ok() && tc.ExternalPointer.Ok() {
		base, ok1 := FieldAt[uint64](t.HeapObject, tc.BasePointer, 0).Get()
		ext, ok2 := FieldAt[uint64](t.HeapObject, tc.ExternalPointer, 0).Get()
		if !ok1 || !ok2 {
			return Invalid[uint64]()
		}
		return Valid(base + ext)
	}

	// Older layouts keep the pair on a FixedTypedArrayBase elements object.
	elems, ok := t.JSObject.Elements().Get()
	if !ok {
		return Invalid[uint64]()
	}
	fc := t.h.c.FixedTypedArrayBase()
	base, ok1 := FieldAt[uint64](elems.HeapObject, fc.BasePointer, 0).Get()
	ext, ok2 := FieldAt[uint64](elems.HeapObject, fc.ExternalPointer, 0).Get()
	if !ok1 || !ok2 {
		return Invalid[uint64]()
	}
	return Valid(base + ext)
}

// Bytes returns up to max viewed bytes.
func (t JSTypedArray) Bytes(max int64) ([]byte, error) {
	if buf, ok := t.Buffer().Get(); ok {
		if dead, ok := buf.WasNeutered().Get(); ok && dead {
			return nil, corruptf(t.Addr(), "underlying array buffer was neutered")
		}
	}
	data, ok := t.Data().Get()
	if !ok {
		return nil, ErrInvalid
	}
	n, ok := t.ByteLength().Get()
	if !ok {
		return nil, ErrInvalid
	}
	return t.h.readData(t.Addr(), data, n, max)
}
