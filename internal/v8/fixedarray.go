package v8

import "v8heap/internal/constants"

// FixedArray is a length-prefixed array of tagged slots.
type FixedArray struct{ HeapObject }

// Length returns the number of slots.
func (a FixedArray) Length() Checked[int64] {
	return smiField(a.HeapObject, a.h.c.FixedArray().Length)
}

func (a FixedArray) slot(i int64) int64 { return i * a.h.ptr }

// Get returns slot i. It does not check i against Length.
func (a FixedArray) Get(i int64) Checked[Value] {
	return FieldAt[Value](a.HeapObject, a.h.c.FixedArray().Data, a.slot(i))
}

// GetSmi returns slot i as a small integer.
func (a FixedArray) GetSmi(i int64) Checked[int64] {
	return Apply(FieldAt[SmallInt](a.HeapObject, a.h.c.FixedArray().Data, a.slot(i)), func(v SmallInt) int64 { return int64(v) })
}

// GetObject returns slot i as a heap object.
func (a FixedArray) GetObject(i int64) Checked[HeapObject] {
	return FieldAt[HeapObject](a.HeapObject, a.h.c.FixedArray().Data, a.slot(i))
}

// Slots returns up to max leading slots. A negative or unreadable length yields an error.
func (a FixedArray) Slots(max int64) ([]Value, error) {
	n, ok := a.Length().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n < 0 {
		return nil, corruptf(a.Addr(), "negative array length %d", n)
	}
	if n > max {
		n = max
	}
	out := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		v, ok := a.Get(i).Get()
		if !ok {
			return out, ErrInvalid
		}
		out = append(out, v)
	}
	return out, nil
}

// DescriptorArray describes the named properties of a fast-mode map.
type DescriptorArray struct{ FixedArray }

func (d DescriptorArray) index(i int64, part constants.Constant) (int64, bool) {
	dc := d.h.c.DescriptorArray()
	if !dc.FirstIndex.Ok() || !dc.Size.Ok() || !part.Ok() {
		return 0, false
	}
	return dc.FirstIndex.Value + i*dc.Size.Value + part.Value, true
}

// Key returns the property name of descriptor i.
func (d DescriptorArray) Key(i int64) Checked[Value] {
	idx, ok := d.index(i, d.h.c.DescriptorArray().Key)
	if !ok {
		return Invalid[Value]()
	}
	return d.Get(idx)
}

// Details returns the property details word of descriptor i.
func (d DescriptorArray) Details(i int64) Checked[int64] {
	idx, ok := d.index(i, d.h.c.DescriptorArray().Details)
	if !ok {
		return Invalid[int64]()
	}
	return d.GetSmi(idx)
}

// Value returns the value slot of descriptor i.
func (d DescriptorArray) Value(i int64) Checked[Value] {
	idx, ok := d.index(i, d.h.c.DescriptorArray().Value)
	if !ok {
		return Invalid[Value]()
	}
	return d.Get(idx)
}

// NameDictionary is the hash table used by dictionary-mode objects.
type NameDictionary struct{ FixedArray }

// Entries returns the number of hash table entries.
func (d NameDictionary) Entries() Checked[int64] {
	nd := d.h.c.NameDictionary()
	if !nd.EntrySize.Ok() || !nd.PrefixSize.Ok() || nd.EntrySize.Value <= 0 {
		return Invalid[int64]()
	}
	return Apply(d.Length(), func(n int64) int64 {
		if n < nd.PrefixSize.Value {
			return 0
		}
		return (n - nd.PrefixSize.Value) / nd.EntrySize.Value
	})
}

func (d NameDictionary) entry(i, part int64) int64 {
	nd := d.h.c.NameDictionary()
	return nd.PrefixSize.Value + i*nd.EntrySize.Value + part
}

// Key returns the key of entry i.
func (d NameDictionary) Key(i int64) Checked[Value] {
	return d.Get(d.entry(i, d.h.c.NameDictionary().KeyOffset))
}

// Value returns the value of entry i.
func (d NameDictionary) Value(i int64) Checked[Value] {
	return d.Get(d.entry(i, d.h.c.NameDictionary().ValueOffset))
}

// Context is a function context: a FixedArray with well-known header slots.
type Context struct{ FixedArray }

func (c Context) indexed(idx constants.Constant) Checked[Value] {
	if !idx.Ok() {
		return Invalid[Value]()
	}
	return c.Get(idx.Value)
}

// Closure returns the function that created the context.
func (c Context) Closure() Checked[JSFunction] {
	return Then(c.indexed(c.h.c.Context().ClosureIndex), func(v Value) Checked[JSFunction] {
		return Apply(v.HeapObject(), func(o HeapObject) JSFunction { return JSFunction{JSObject{o}} })
	})
}

// Previous returns the enclosing context.
func (c Context) Previous() Checked[Context] {
	return Then(c.indexed(c.h.c.Context().PreviousIndex), func(v Value) Checked[Context] {
		return Apply(v.HeapObject(), func(o HeapObject) Context { return Context{FixedArray{o}} })
	})
}

// Native returns the native context slot.
func (c Context) Native() Checked[Value] {
	return c.indexed(c.h.c.Context().NativeIndex)
}

// Locals returns the context-allocated variable slots past the header.
func (c Context) Locals(max int64) ([]Value, error) {
	min := c.h.c.Context().MinContextSlots
	if !min.Ok() {
		return nil, ErrInvalid
	}
	n, ok := c.Length().Get()
	if !ok {
		return nil, ErrInvalid
	}
	var out []Value
	for i := min.Value; i < n && int64(len(out)) < max; i++ {
		v, ok := c.Get(i).Get()
		if !ok {
			return out, ErrInvalid
		}
		out = append(out, v)
	}
	return out, nil
}

// Local is a named context slot.
type Local struct {
	Name  string
	Value Value
}

// NamedLocals pairs the context's variable slots with the names recorded
// in its closure's scope info. Unnamed slots are reported as "???".
func (c Context) NamedLocals(max int64) ([]Local, error) {
	vals, err := c.Locals(max)
	if err != nil {
		return nil, err
	}
	var scope ScopeInfo
	haveScope := false
	if fn, ok := c.Closure().Get(); ok {
		if sfi, ok := fn.Shared().Get(); ok {
			scope, haveScope = sfi.ScopeInfo().Get()
		}
	}
	out := make([]Local, len(vals))
	for i, v := range vals {
		out[i] = Local{Name: "???", Value: v}
		if !haveScope {
			continue
		}
		if s, ok := scope.ContextLocalName(int64(i)).Get(); ok {
			if name, err := s.Text(); err == nil {
				out[i].Name = name
			}
		}
	}
	return out, nil
}

// ScopeInfo describes a function's variables.
type ScopeInfo struct{ FixedArray }

func (s ScopeInfo) count(idx constants.Constant) Checked[int64] {
	if !idx.Ok() {
		return Invalid[int64]()
	}
	return s.GetSmi(idx.Value)
}

// ParameterCount returns the number of formal parameters.
func (s ScopeInfo) ParameterCount() Checked[int64] { return s.count(s.h.c.ScopeInfo().ParameterCount) }

// StackLocalCount returns the number of stack-allocated locals.
func (s ScopeInfo) StackLocalCount() Checked[int64] { return s.count(s.h.c.ScopeInfo().StackLocalCount) }

// ContextLocalCount returns the number of context-allocated locals.
func (s ScopeInfo) ContextLocalCount() Checked[int64] {
	return s.count(s.h.c.ScopeInfo().ContextLocalCount)
}

// ContextLocalName returns the name of context-allocated local i. Names
// follow the variable part header, after any parameter and stack local
// names the layout embeds.
func (s ScopeInfo) ContextLocalName(i int64) Checked[String] {
	vp := s.h.c.ScopeInfo().VariablePartIndex
	n, ok := s.ContextLocalCount().Get()
	if !vp.Ok() || !ok || i < 0 || i >= n {
		return Invalid[String]()
	}
	params := s.ParameterCount().Or(0)
	stack := s.StackLocalCount().Or(0)
	return Then(s.GetObject(vp.Value+params+stack+i), HeapObject.AsString)
}

// MaybeFunctionName looks for the function name among the first slots
// after the context locals. Its exact slot is not described by the
// postmortem metadata, so up to three candidates are tried.
func (s ScopeInfo) MaybeFunctionName() Checked[String] {
	vp := s.h.c.ScopeInfo().VariablePartIndex
	locals, ok := s.ContextLocalCount().Get()
	if !vp.Ok() || !ok {
		return Invalid[String]()
	}
	n, ok := s.Length().Get()
	if !ok {
		return Invalid[String]()
	}
	slot := vp.Value + locals
	for tries := 0; tries < 3 && slot < n; tries++ {
		if o, ok := s.GetObject(slot).Get(); ok {
			if str, ok := o.AsString().Get(); ok {
				if l, ok := str.Length().Get(); ok && l > 0 {
					return Valid(str)
				}
			}
		}
		slot++
	}
	return Invalid[String]()
}
