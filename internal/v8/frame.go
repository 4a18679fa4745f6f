package v8

import (
	"fmt"

	"v8heap/internal/constants"
)

// Frame is a JavaScript or internal stack frame identified by its frame pointer.
type Frame struct {
	h  *Heap
	FP uint64
}

// Frame returns the frame at fp.
func (h *Heap) Frame(fp uint64) Frame { return Frame{h: h, FP: fp} }

func (f Frame) slot(off constants.Constant, delta int64) Checked[Value] {
	if !off.Ok() {
		return Invalid[Value]()
	}
	w, ok := f.h.r.ReadWord(f.FP + uint64(off.Value+delta))
	if !ok {
		return Invalid[Value]()
	}
	return Valid(f.h.Value(w))
}

// Marker returns the frame-type marker when the frame carries one.
func (f Frame) Marker() Checked[int64] {
	return Then(f.slot(f.h.c.Frame().MarkerOffset, 0), Value.Smi)
}

// Kind names internal frames ("<exit>", "<stub>", ...) and returns "" for
// JavaScript frames.
func (f Frame) Kind() string {
	m, ok := f.Marker().Get()
	if !ok {
		return ""
	}
	fc := f.h.c.Frame()
	for _, k := range []struct {
		c    constants.Constant
		name string
	}{
		{fc.EntryFrame, "<entry>"},
		{fc.EntryConstructFrame, "<entry_construct>"},
		{fc.ExitFrame, "<exit>"},
		{fc.InternalFrame, "<internal>"},
		{fc.ConstructFrame, "<constructor>"},
		{fc.AdaptorFrame, "<adaptor>"},
		{fc.StubFrame, "<stub>"},
	} {
		if is(k.c, m) {
			return k.name
		}
	}
	return fmt.Sprintf("<frame type %d>", m)
}

// Function returns the JSFunction of a JavaScript frame.
func (f Frame) Function() Checked[JSFunction] {
	v, ok := f.slot(f.h.c.Frame().FunctionOffset, 0).Get()
	if !ok {
		return Invalid[JSFunction]()
	}
	o, ok := v.HeapObject().Get()
	if !ok {
		return Invalid[JSFunction]()
	}
	if t, ok := o.CheckedType().Get(); !ok || !is(f.h.c.Types().JSFunction, t) {
		return Invalid[JSFunction]()
	}
	return Valid(JSFunction{JSObject{o}})
}

// Context returns the frame's context slot.
func (f Frame) Context() Checked[Value] {
	return f.slot(f.h.c.Frame().ContextOffset, 0)
}

// Arg returns argument i of argc. Arguments are pushed left to right, so
// the last one sits closest to the frame pointer.
func (f Frame) Arg(i, argc int64) Checked[Value] {
	if i < 0 || i >= argc {
		return Invalid[Value]()
	}
	return f.slot(f.h.c.Frame().ArgsOffset, (argc-1-i)*f.h.ptr)
}

// Receiver returns the implicit this argument, pushed before the arguments.
func (f Frame) Receiver(argc int64) Checked[Value] {
	return f.slot(f.h.c.Frame().ArgsOffset, argc*f.h.ptr)
}

// Describe renders the frame for backtraces.
func (f Frame) Describe() string {
	if k := f.Kind(); k != "" {
		return k
	}
	fn, ok := f.Function().Get()
	if !ok {
		return "<unknown frame>"
	}
	return fn.Source()
}
