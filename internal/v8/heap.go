// Package v8 decodes V8 heap objects out of a read-only process image using
// the postmortem constant schema.
package v8

import (
	"errors"
	"fmt"

	"v8heap/internal/constants"
	"v8heap/internal/target"
)

// ErrInvalid reports that a value could not be read or classified.
var ErrInvalid = errors.New("v8: invalid value")

// CorruptError reports an object whose fields contradict each other.
type CorruptError struct {
	Addr uint64
	Msg  string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("v8: corrupt object at 0x%x: %s", e.Addr, e.Msg)
}

func corruptf(addr uint64, format string, args ...any) error {
	return &CorruptError{Addr: addr, Msg: fmt.Sprintf(format, args...)}
}

// WideMode selects how two-byte strings are rendered.
type WideMode int

const (
	// WideLowByte keeps the low byte of every UTF-16 code unit.
	WideLowByte WideMode = iota
	// WideUTF16 decodes code units as UTF-16.
	WideUTF16
)

// ParseWideMode maps "lowbyte" and "utf16" to a WideMode.
func ParseWideMode(s string) (WideMode, error) {
	switch s {
	case "", "lowbyte", "low-byte":
		return WideLowByte, nil
	case "utf16", "utf-16":
		return WideUTF16, nil
	}
	return WideLowByte, fmt.Errorf("v8: unknown wide string mode %q", s)
}

// Options bounds traversal of untrusted heap structures.
type Options struct {
	MaxConstructorHops int   // hidden-class back-pointer hops; 0 = 64
	MaxStringDepth     int   // sliced/thin/cons nesting; 0 = 1024
	MaxStringNodes     int   // string nodes visited per resolution; 0 = 1<<20
	MaxStringLength    int64 // code units; 0 = 1<<26
	MaxProperties      int64 // properties per object; 0 = 1<<16
	Wide               WideMode
}

func (o Options) withDefaults() Options {
	if o.MaxConstructorHops <= 0 {
		o.MaxConstructorHops = 64
	}
	if o.MaxStringDepth <= 0 {
		o.MaxStringDepth = 1024
	}
	if o.MaxStringNodes <= 0 {
		o.MaxStringNodes = 1 << 20
	}
	if o.MaxStringLength <= 0 {
		o.MaxStringLength = 1 << 26
	}
	if o.MaxProperties <= 0 {
		o.MaxProperties = 1 << 16
	}
	return o
}

// Heap is the decoding context: schema, memory reader and limits for one target.
type Heap struct {
	t    target.Target
	r    *target.Reader
	c    *constants.Schema
	opts Options
	ptr  int64

	tagsOK   bool
	smiTag   uint64
	smiMask  uint64
	smiShift uint64
	hoTag    uint64
	hoMask   uint64
}

// New binds a schema to its target. The schema's session-wide groups are loaded here.
func New(c *constants.Schema, opts Options) *Heap {
	t := c.Loader().Target()
	c.Load()
	h := &Heap{
		t:    t,
		r:    target.NewReader(t),
		c:    c,
		opts: opts.withDefaults(),
		ptr:  c.Common().PointerSize,
	}
	smi := c.Smi()
	ho := c.HeapObject()
	if smi.Tag.Ok() && smi.TagMask.Ok() && smi.ShiftSize.Ok() && ho.Tag.Ok() && ho.TagMask.Ok() {
		h.tagsOK = true
		h.smiTag = uint64(smi.Tag.Value)
		h.smiMask = uint64(smi.TagMask.Value)
		h.smiShift = uint64(smi.ShiftSize.Value + smi.TagMask.Value)
		h.hoTag = uint64(ho.Tag.Value)
		h.hoMask = uint64(ho.TagMask.Value)
	}
	return h
}

// Target returns the inspected target.
func (h *Heap) Target() target.Target { return h.t }

// Reader returns the memory reader.
func (h *Heap) Reader() *target.Reader { return h.r }

// Schema returns the constant schema.
func (h *Heap) Schema() *constants.Schema { return h.c }

// Options returns the effective limits.
func (h *Heap) Options() Options { return h.opts }

// PointerSize returns the target word size in bytes.
func (h *Heap) PointerSize() int64 { return h.ptr }

// HeapObjectTag returns the tag added to heap object addresses.
func (h *Heap) HeapObjectTag() uint64 { return h.hoTag }

// at builds an ad hoc resolved offset for computed field positions.
func at(off int64) constants.Constant {
	return constants.Constant{Name: "computed", Value: off, State: constants.Resolved}
}
