package v8

import (
	"fmt"
	"strings"
)

// JSFunction is a closure.
type JSFunction struct{ JSObject }

// Shared returns the function's SharedFunctionInfo.
func (f JSFunction) Shared() Checked[SharedFunctionInfo] {
	return Apply(FieldAt[HeapObject](f.HeapObject, f.h.c.JSFunction().Shared, 0), func(o HeapObject) SharedFunctionInfo {
		return SharedFunctionInfo{o}
	})
}

// Context returns the function's context.
func (f JSFunction) Context() Checked[Context] {
	return Apply(FieldAt[HeapObject](f.HeapObject, f.h.c.JSFunction().Context, 0), func(o HeapObject) Context {
		return Context{FixedArray{o}}
	})
}

// Name returns the function's name, falling back to its inferred name.
// Anonymous functions yield "".
func (f JSFunction) Name() (string, error) {
	sfi, ok := f.Shared().Get()
	if !ok {
		return "", ErrInvalid
	}
	return sfi.ProperName()
}

// DisplayName is Name with a placeholder for anonymous functions.
func (f JSFunction) DisplayName() string {
	name, err := f.Name()
	if err != nil || name == "" {
		return "(anonymous js function)"
	}
	return name
}

// Source describes where the function is defined, "name file:line".
func (f JSFunction) Source() string {
	name := f.DisplayName()
	sfi, ok := f.Shared().Get()
	if !ok {
		return name
	}
	loc := sfi.Location()
	if loc == "" {
		return name
	}
	return name + " " + loc
}

// SharedFunctionInfo holds everything closures of one function have in common.
type SharedFunctionInfo struct{ HeapObject }

// Name returns the declared name, "" when anonymous.
func (s SharedFunctionInfo) Name() (string, error) {
	sc := s.h.c.SharedInfo()
	if sc.Name.Ok() {
		v, ok := FieldAt[Value](s.HeapObject, sc.Name, 0).Get()
		if !ok {
			return "", ErrInvalid
		}
		return s.h.StringOf(v)
	}
	o, ok := FieldAt[HeapObject](s.HeapObject, sc.NameOrScopeInfo, 0).Get()
	if !ok {
		// A Smi here means no name was recorded.
		return "", nil
	}
	if str, ok := o.AsString().Get(); ok {
		return str.Text()
	}
	if str, ok := (ScopeInfo{FixedArray{o}}).MaybeFunctionName().Get(); ok {
		return str.Text()
	}
	return "", nil
}

// ScopeInfo returns the function's scope description. Older layouts keep it
// in a dedicated slot; newer ones share the slot with the name.
func (s SharedFunctionInfo) ScopeInfo() Checked[ScopeInfo] {
	sc := s.h.c.SharedInfo()
	off := sc.ScopeInfo
	if !off.Ok() {
		off = sc.NameOrScopeInfo
	}
	o, ok := FieldAt[HeapObject](s.HeapObject, off, 0).Get()
	if !ok {
		return Invalid[ScopeInfo]()
	}
	if _, isString := o.AsString().Get(); isString {
		return Invalid[ScopeInfo]()
	}
	if t, ok := o.Type().Get(); !ok || !is(s.h.c.Types().FixedArray, t) {
		return Invalid[ScopeInfo]()
	}
	return Valid(ScopeInfo{FixedArray{o}})
}

// InferredName returns the name V8 inferred from the function's context.
func (s SharedFunctionInfo) InferredName() (string, error) {
	v, ok := FieldAt[Value](s.HeapObject, s.h.c.SharedInfo().InferredName, 0).Get()
	if !ok {
		return "", ErrInvalid
	}
	return s.h.StringOf(v)
}

// ProperName returns Name, or InferredName when the function is anonymous.
func (s SharedFunctionInfo) ProperName() (string, error) {
	name, err := s.Name()
	if err == nil && name != "" {
		return name, nil
	}
	if inferred, ierr := s.InferredName(); ierr == nil && inferred != "" {
		return inferred, nil
	}
	return name, err
}

// Script returns the script the function was compiled from.
func (s SharedFunctionInfo) Script() Checked[Script] {
	o, ok := FieldAt[HeapObject](s.HeapObject, s.h.c.SharedInfo().Script, 0).Get()
	if !ok {
		return Invalid[Script]()
	}
	st := s.h.c.Types().Script
	if t, ok := o.Type().Get(); !ok || !st.Ok() || t != st.Value {
		return Invalid[Script]()
	}
	return Valid(Script{o})
}

// StartPosition returns the source offset of the function.
func (s SharedFunctionInfo) StartPosition() Checked[int64] {
	sc := s.h.c.SharedInfo()
	smi := sc.StartPosition.Is("class_SharedFunctionInfo__start_position_and_type__SMI")
	return Apply(intField(s.HeapObject, sc.StartPosition, smi), func(v int64) int64 {
		if sc.StartPositionMask.Ok() {
			v &= sc.StartPositionMask.Value
		}
		return v >> sc.StartPositionShift.Value
	})
}

// EndPosition returns the source offset just past the function.
func (s SharedFunctionInfo) EndPosition() Checked[int64] {
	sc := s.h.c.SharedInfo()
	smi := sc.EndPosition.Is("class_SharedFunctionInfo__end_position__SMI")
	return Apply(intField(s.HeapObject, sc.EndPosition, smi), func(v int64) int64 { return v >> sc.EndPositionShift })
}

// ParameterCount returns the formal parameter count.
func (s SharedFunctionInfo) ParameterCount() Checked[int64] {
	sc := s.h.c.SharedInfo()
	smi := strings.HasSuffix(sc.ParameterCount.Name, "__SMI")
	return intField(s.HeapObject, sc.ParameterCount, smi)
}

// Location returns "script:line" for the function's start, or "".
func (s SharedFunctionInfo) Location() string {
	script, ok := s.Script().Get()
	if !ok {
		return ""
	}
	name, err := script.Name()
	if err != nil || name == "" {
		name = "(no script)"
	}
	pos, ok := s.StartPosition().Get()
	if !ok {
		return name
	}
	if line, ok := script.LineAt(pos).Get(); ok {
		return fmt.Sprintf("%s:%d", name, line+1)
	}
	return name
}

// Script is a compiled source unit.
type Script struct{ HeapObject }

// Name returns the script's file name or URL.
func (s Script) Name() (string, error) {
	v, ok := FieldAt[Value](s.HeapObject, s.h.c.Script().Name, 0).Get()
	if !ok {
		return "", ErrInvalid
	}
	return s.h.StringOf(v)
}

// Source returns the script text.
func (s Script) Source() (string, error) {
	v, ok := FieldAt[Value](s.HeapObject, s.h.c.Script().Source, 0).Get()
	if !ok {
		return "", ErrInvalid
	}
	return s.h.StringOf(v)
}

// LineOffset returns the line the script starts at inside its resource.
func (s Script) LineOffset() Checked[int64] {
	return smiField(s.HeapObject, s.h.c.Script().LineOffset)
}

// LineAt returns the zero-based line of source offset pos, including LineOffset.
func (s Script) LineAt(pos int64) Checked[int64] {
	src, err := s.Source()
	if err != nil || pos < 0 || pos > int64(len(src)) {
		return Invalid[int64]()
	}
	line := int64(strings.Count(src[:pos], "\n"))
	return Valid(line + s.LineOffset().Or(0))
}
