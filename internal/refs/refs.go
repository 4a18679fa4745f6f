// Package refs answers "who points at this?" over the objects found by a
// heap scan. Three indexes are built on first use and kept for later
// queries: holders by referenced value, by property name and by string
// contents.
package refs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"v8heap/internal/scan"
	"v8heap/internal/v8"
)

// ErrSmi rejects small integers as search values; they are not references.
var ErrSmi = errors.New("refs: search value is a small integer")

// Mode selects what a query matches.
type Mode int

const (
	ByValue  Mode = iota // slots holding a given tagged value
	ByName               // properties with a given name
	ByString             // slots holding a string with given contents
)

// Ref is one matching slot.
type Ref struct {
	Holder   uint64 // tagged address of the object holding the slot
	TypeName string
	Field    string // property name, or a string role such as "<Parent>"
	Index    int64  // element index; -1 for named slots
	Value    uint64 // tagged slot contents
	Text     string // string contents for ByString matches
}

func (r Ref) String() string {
	var s string
	if r.Index >= 0 {
		s = fmt.Sprintf("0x%x: %s[%d]=0x%x", r.Holder, r.TypeName, r.Index, r.Value)
	} else {
		s = fmt.Sprintf("0x%x: %s.%s=0x%x", r.Holder, r.TypeName, r.Field, r.Value)
	}
	if r.Text != "" {
		s += " '" + r.Text + "'"
	}
	return s
}

// slot is a reference-carrying slot of a holder.
type slot struct {
	field string
	index int64
	value v8.Value
}

// Options bounds the work done per holder.
type Options struct {
	MaxElements int64 // elements examined per object; 0 = 1<<20
	MaxParts    int   // string parts followed per reachable string; 0 = 64
}

// Finder indexes the instances of one histogram.
type Finder struct {
	h    *v8.Heap
	hist *scan.Histogram
	opts Options

	mu       sync.Mutex
	byValue  map[uint64][]uint64
	byName   map[string][]uint64
	byString map[string][]uint64
}

// New creates a finder over hist. Nothing is read until the first query.
func New(h *v8.Heap, hist *scan.Histogram, opts Options) *Finder {
	if opts.MaxElements <= 0 {
		opts.MaxElements = 1 << 20
	}
	if opts.MaxParts <= 0 {
		opts.MaxParts = 64
	}
	return &Finder{h: h, hist: hist, opts: opts}
}

// Heap returns the decoding context.
func (f *Finder) Heap() *v8.Heap { return f.h }

// Histogram returns the scan the finder indexes.
func (f *Finder) Histogram() *scan.Histogram { return f.hist }

// Loaded reports whether the index for m has been built.
func (f *Finder) Loaded(m Mode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m {
	case ByValue:
		return f.byValue != nil
	case ByName:
		return f.byName != nil
	}
	return f.byString != nil
}

// FindValue lists slots holding the tagged value raw.
func (f *Finder) FindValue(ctx context.Context, raw uint64) ([]Ref, error) {
	if f.h.Value(raw).IsSmi() {
		return nil, ErrSmi
	}
	if err := f.load(ctx, ByValue); err != nil {
		return nil, err
	}
	f.mu.Lock()
	holders := f.byValue[raw]
	f.mu.Unlock()
	return f.collect(holders, func(s slot) (Ref, bool) {
		return Ref{Field: s.field, Index: s.index, Value: raw}, s.value.Raw() == raw
	}), nil
}

// FindName lists named properties called name.
func (f *Finder) FindName(ctx context.Context, name string) ([]Ref, error) {
	if err := f.load(ctx, ByName); err != nil {
		return nil, err
	}
	f.mu.Lock()
	holders := f.byName[name]
	f.mu.Unlock()
	return f.collect(holders, func(s slot) (Ref, bool) {
		return Ref{Field: s.field, Index: -1, Value: s.value.Raw()}, s.index < 0 && !isRole(s.field) && s.field == name
	}), nil
}

// FindString lists slots holding a string whose contents equal text.
func (f *Finder) FindString(ctx context.Context, text string) ([]Ref, error) {
	if err := f.load(ctx, ByString); err != nil {
		return nil, err
	}
	f.mu.Lock()
	holders := f.byString[text]
	f.mu.Unlock()
	return f.collect(holders, func(s slot) (Ref, bool) {
		got, ok := f.stringAt(s.value)
		return Ref{Field: s.field, Index: s.index, Value: s.value.Raw(), Text: got}, ok && got == text
	}), nil
}

// collect re-examines each holder and keeps the slots match accepts.
func (f *Finder) collect(holders []uint64, match func(slot) (Ref, bool)) []Ref {
	var out []Ref
	for _, raw := range holders {
		o, ok := f.h.Object(raw).Get()
		if !ok {
			continue
		}
		name, err := o.TypeName()
		if err != nil {
			name = "(unknown)"
		}
		for _, s := range f.slots(o) {
			if r, ok := match(s); ok {
				r.Holder, r.TypeName = raw, name
				out = append(out, r)
			}
		}
	}
	return out
}

func isRole(field string) bool {
	return len(field) > 1 && field[0] == '<' && field[len(field)-1] == '>'
}

func (f *Finder) stringAt(v v8.Value) (string, bool) {
	o, ok := v.HeapObject().Get()
	if !ok {
		return "", false
	}
	s, ok := o.AsString().Get()
	if !ok {
		return "", false
	}
	text, err := s.Text()
	return text, err == nil
}

// slots lists the reference slots of o: indexed elements and named
// properties of objects, or the parts of cons, sliced and thin strings.
func (f *Finder) slots(o v8.HeapObject) []slot {
	if s, ok := o.AsString().Get(); ok {
		var out []slot
		for _, p := range s.Parts() {
			out = append(out, slot{field: p.Role, index: -1, value: p.Value})
		}
		return out
	}

	obj := v8.JSObject{HeapObject: o}
	var out []slot
	if _, ok := obj.ElementCount().Get(); ok {
		if fa, ok := obj.Elements().Get(); ok {
			// A broken elements store ends the walk; what was read still counts.
			elems, _ := fa.Slots(f.opts.MaxElements)
			for i, v := range elems {
				out = append(out, slot{index: int64(i), value: v})
			}
		}
	}
	props, _ := obj.OwnProperties()
	for _, p := range props {
		if p.IsDouble || p.Kind == v8.AccessorProperty || p.Kind == v8.UnknownProperty {
			continue
		}
		out = append(out, slot{field: p.Key, index: -1, value: p.Value})
	}
	return out
}

// holders returns every scanned instance, tagged, in address order,
// followed by strings reachable from their slots that are built from other
// strings.
func (f *Finder) holders(ctx context.Context) ([]uint64, error) {
	tag := f.h.HeapObjectTag()
	var objs []uint64
	for _, r := range f.hist.Records() {
		for _, a := range r.Instances() {
			objs = append(objs, a+tag)
		}
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i] < objs[j] })

	seen := make(map[uint64]bool, len(objs))
	for _, raw := range objs {
		seen[raw] = true
	}
	var strs []uint64
	var queue []v8.Value
	for i, raw := range objs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		o, ok := f.h.Object(raw).Get()
		if !ok {
			continue
		}
		for _, s := range f.slots(o) {
			queue = append(queue, s.value)
		}
		// Follow composite strings a bounded number of steps per holder.
		for steps := 0; len(queue) > 0 && steps < f.opts.MaxParts; {
			v := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			if !v.IsHeapObject() || seen[v.Raw()] {
				continue
			}
			so, ok := v.HeapObject().Get()
			if !ok {
				continue
			}
			s, ok := so.AsString().Get()
			if !ok {
				continue
			}
			seen[v.Raw()] = true
			parts := s.Parts()
			if len(parts) == 0 {
				continue
			}
			steps++
			strs = append(strs, v.Raw())
			for _, p := range parts {
				queue = append(queue, p.Value)
			}
		}
		queue = queue[:0]
	}
	sort.Slice(strs, func(i, j int) bool { return strs[i] < strs[j] })
	return append(objs, strs...), nil
}

func (f *Finder) load(ctx context.Context, m Mode) error {
	if f.Loaded(m) {
		return nil
	}
	holders, err := f.holders(ctx)
	if err != nil {
		return err
	}
	byValue := make(map[uint64][]uint64)
	byName := make(map[string][]uint64)
	byString := make(map[string][]uint64)
	for i, raw := range holders {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		o, ok := f.h.Object(raw).Get()
		if !ok {
			continue
		}
		values := make(map[uint64]bool)
		names := make(map[string]bool)
		texts := make(map[string]bool)
		for _, s := range f.slots(o) {
			switch m {
			case ByValue:
				if !values[s.value.Raw()] {
					values[s.value.Raw()] = true
					byValue[s.value.Raw()] = append(byValue[s.value.Raw()], raw)
				}
			case ByName:
				if s.index < 0 && !isRole(s.field) && !names[s.field] {
					names[s.field] = true
					byName[s.field] = append(byName[s.field], raw)
				}
			case ByString:
				if text, ok := f.stringAt(s.value); ok && !texts[text] {
					texts[text] = true
					byString[text] = append(byString[text], raw)
				}
			}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch m {
	case ByValue:
		f.byValue = byValue
	case ByName:
		f.byName = byName
	default:
		f.byString = byString
	}
	return nil
}
