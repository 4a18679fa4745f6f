// Package target abstracts the debugged process image: raw memory reads,
// symbol lookup and the pointer width of the inspected process.
package target

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrUnmapped = errors.New("target: address not readable")
	ErrNoSymbol = errors.New("target: symbol not found")
)

// Symbol is a resolved data symbol in the target's address space.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// Target is a read-only view of a stopped process or a core dump.
type Target interface {
	// ID identifies the process image; two targets with the same ID see the same memory.
	ID() string
	PointerSize() int
	ByteOrder() binary.ByteOrder
	// ReadMemory fills buf from addr. Partial reads are failures.
	ReadMemory(addr uint64, buf []byte) error
	LookupSymbol(name string) (Symbol, bool)
}

// Reader is the hot-path memory reader. Every read returns ok=false on failure
// and never logs.
type Reader struct {
	t     Target
	ptr   int
	order binary.ByteOrder
}

// NewReader returns a Reader over t.
func NewReader(t Target) *Reader {
	return &Reader{t: t, ptr: t.PointerSize(), order: t.ByteOrder()}
}

// Target returns the underlying target.
func (r *Reader) Target() Target { return r.t }

// PointerSize returns the target word size in bytes.
func (r *Reader) PointerSize() int { return r.ptr }

// ByteOrder returns the target byte order.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }

// ReadBytes reads n bytes at addr.
func (r *Reader) ReadBytes(addr uint64, n int) ([]byte, bool) {
	if n < 0 {
		return nil, false
	}
	buf := make([]byte, n)
	if r.t.ReadMemory(addr, buf) != nil {
		return nil, false
	}
	return buf, true
}

// ReadInto fills buf from addr.
func (r *Reader) ReadInto(addr uint64, buf []byte) bool {
	return r.t.ReadMemory(addr, buf) == nil
}

// ReadWord reads one pointer-width unsigned word.
func (r *Reader) ReadWord(addr uint64) (uint64, bool) {
	return r.ReadUnsigned(addr, r.ptr)
}

// ReadUnsigned reads an unsigned integer of width 1, 2, 4 or 8 bytes.
func (r *Reader) ReadUnsigned(addr uint64, width int) (uint64, bool) {
	var buf [8]byte
	if width != 1 && width != 2 && width != 4 && width != 8 {
		return 0, false
	}
	b := buf[:width]
	if r.t.ReadMemory(addr, b) != nil {
		return 0, false
	}
	return Decode(b, r.order), true
}

// ReadSigned reads a sign-extended integer of width 1, 2, 4 or 8 bytes.
func (r *Reader) ReadSigned(addr uint64, width int) (int64, bool) {
	v, ok := r.ReadUnsigned(addr, width)
	if !ok {
		return 0, false
	}
	return SignExtend(v, width), true
}

// ReadDouble reads an IEEE-754 double.
func (r *Reader) ReadDouble(addr uint64) (float64, bool) {
	v, ok := r.ReadUnsigned(addr, 8)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

// Decode interprets b (1, 2, 4 or 8 bytes) as an unsigned integer.
func Decode(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	return 0
}

// SignExtend widens the low width bytes of v to int64.
func SignExtend(v uint64, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	case 4:
		return int64(int32(v))
	}
	return int64(v)
}
