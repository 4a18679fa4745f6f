package v8

import (
	"fmt"
	"math"

	"v8heap/internal/constants"
)

// JSObject is an ordinary JavaScript object.
type JSObject struct{ HeapObject }

// PropertyKind says where a property's value came from.
type PropertyKind int

const (
	FieldProperty PropertyKind = iota
	ConstProperty
	DictionaryProperty
	AccessorProperty
	UnknownProperty
)

func (k PropertyKind) String() string {
	switch k {
	case FieldProperty:
		return "field"
	case ConstProperty:
		return "const"
	case DictionaryProperty:
		return "dictionary"
	case AccessorProperty:
		return "accessor"
	}
	return "unknown"
}

// Property is one named own property.
type Property struct {
	Key  string
	Kind PropertyKind
	// Value is the tagged slot contents. For unboxed doubles it holds the raw bits.
	Value    Value
	IsDouble bool
	Double   float64
}

// Display renders the value for listings.
func (p Property) Display() string {
	switch {
	case p.Kind == AccessorProperty:
		return "<accessor>"
	case p.Kind == UnknownProperty:
		return "<unknown field type>"
	case p.IsDouble:
		return FormatDouble(p.Double)
	}
	return p.Value.String()
}

// FormatDouble prints a double the way listings show numbers.
func FormatDouble(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Sprint(f)
	}
	return fmt.Sprintf("%g", f)
}

// PropertiesStore returns the out-of-line properties backing store.
func (o JSObject) PropertiesStore() Checked[FixedArray] {
	return Apply(FieldAt[HeapObject](o.HeapObject, o.h.c.JSObject().Properties, 0), func(p HeapObject) FixedArray {
		return FixedArray{p}
	})
}

// Elements returns the indexed elements backing store.
func (o JSObject) Elements() Checked[FixedArray] {
	return Apply(FieldAt[HeapObject](o.HeapObject, o.h.c.JSObject().Elements, 0), func(p HeapObject) FixedArray {
		return FixedArray{p}
	})
}

// ElementCount returns the number of elements slots, or invalid when the
// elements store is not a FixedArray.
func (o JSObject) ElementCount() Checked[int64] {
	fa, ok := o.Elements().Get()
	if !ok {
		return Invalid[int64]()
	}
	ft := o.h.c.Types().FixedArray
	if t, ok := fa.Type().Get(); !ok || !ft.Ok() || t != ft.Value {
		return Invalid[int64]()
	}
	return fa.Length()
}

// Keys returns own property names in descriptor or dictionary order.
func (o JSObject) Keys() ([]string, error) {
	props, err := o.OwnProperties()
	keys := make([]string, len(props))
	for i, p := range props {
		keys[i] = p.Key
	}
	return keys, err
}

// Get returns the own property named key.
func (o JSObject) Get(key string) (Property, bool, error) {
	props, err := o.OwnProperties()
	for _, p := range props {
		if p.Key == key {
			return p, true, nil
		}
	}
	return Property{}, false, err
}

// OwnProperties lists named own properties. Fast-mode objects are read
// through the map's descriptor array, dictionary-mode objects through their
// NameDictionary. Properties read before an error are still returned.
func (o JSObject) OwnProperties() ([]Property, error) {
	m, ok := o.Map().Get()
	if !ok {
		return nil, ErrInvalid
	}
	dict, ok := m.IsDictionary().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if dict {
		return o.dictionaryProperties()
	}
	return o.descriptorProperties(m)
}

func (o JSObject) keyText(v Value) string {
	if s, err := o.h.StringOf(v); err == nil {
		return s
	}
	return fmt.Sprintf("<non-string key %s>", v)
}

func (o JSObject) dictionaryProperties() ([]Property, error) {
	store, ok := o.PropertiesStore().Get()
	if !ok {
		return nil, ErrInvalid
	}
	d := NameDictionary{store}
	n, ok := d.Entries().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n > o.h.opts.MaxProperties {
		return nil, corruptf(o.Addr(), "dictionary with %d entries", n)
	}
	var out []Property
	for i := int64(0); i < n; i++ {
		k, ok := d.Key(i).Get()
		if !ok {
			return out, ErrInvalid
		}
		key, err := o.h.StringOf(k)
		if err != nil {
			// Empty and deleted slots hold undefined or the hole.
			continue
		}
		v, ok := d.Value(i).Get()
		if !ok {
			return out, ErrInvalid
		}
		out = append(out, Property{Key: key, Kind: DictionaryProperty, Value: v})
	}
	return out, nil
}

func (o JSObject) descriptorProperties(m Map) ([]Property, error) {
	dc := o.h.c.DescriptorArray()
	n, ok := m.NumberOfOwnDescriptors().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n == 0 {
		return nil, nil
	}
	desc, ok := m.InstanceDescriptors().Get()
	if !ok {
		return nil, ErrInvalid
	}
	inObject, ok := m.InObjectProperties().Get()
	if !ok {
		return nil, ErrInvalid
	}
	size, ok := m.InstanceSize().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n > o.h.opts.MaxProperties {
		return nil, corruptf(o.Addr(), "map with %d descriptors", n)
	}

	var store FixedArray
	haveStore := false

	var out []Property
	for i := int64(0); i < n; i++ {
		details, ok := desc.Details(i).Get()
		if !ok {
			return out, ErrInvalid
		}
		k, ok := desc.Key(i).Get()
		if !ok {
			return out, ErrInvalid
		}
		p := Property{Key: o.keyText(k)}

		switch {
		case dc.IsConstField(details):
			v, ok := desc.Value(i).Get()
			if !ok {
				return out, ErrInvalid
			}
			p.Kind = ConstProperty
			p.Value = v
		case dc.IsField(details):
			idx, ok := dc.FieldIndex(details)
			if !ok {
				return out, ErrInvalid
			}
			idx -= inObject
			var v Value
			if idx < 0 {
				// Negative indexes count back from the end of the object.
				v, ok = FieldAt[Value](o.HeapObject, at(size), idx*o.h.ptr).Get()
			} else {
				if !haveStore {
					store, haveStore = o.PropertiesStore().Get()
					if !haveStore {
						return out, ErrInvalid
					}
				}
				slots, lok := store.Length().Get()
				if !lok {
					return out, ErrInvalid
				}
				if idx >= slots {
					return out, corruptf(o.Addr(), "property %s at index %d past properties store of length %d", p.Key, idx, slots)
				}
				v, ok = store.Get(idx).Get()
			}
			if !ok {
				return out, ErrInvalid
			}
			p.Kind = FieldProperty
			p.Value = v
			if dc.IsDoubleField(details) {
				p.IsDouble = true
				p.Double = o.h.unboxDouble(v)
			}
		case dc.Layout == constants.LayoutModern && o.h.isAccessor(details):
			p.Kind = AccessorProperty
		default:
			p.Kind = UnknownProperty
		}
		out = append(out, p)
	}
	return out, nil
}

// DescriptorKeys returns up to max own property names recorded in m's
// descriptor array. Non-string keys are skipped.
func (m Map) DescriptorKeys(max int64) ([]string, error) {
	n, ok := m.NumberOfOwnDescriptors().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n > max {
		n = max
	}
	if n <= 0 {
		return nil, nil
	}
	desc, ok := m.InstanceDescriptors().Get()
	if !ok {
		return nil, ErrInvalid
	}
	keys := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		k, ok := desc.Key(i).Get()
		if !ok {
			return keys, ErrInvalid
		}
		if s, err := m.h.StringOf(k); err == nil {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

func (h *Heap) isAccessor(details int64) bool {
	m := &h.c.DescriptorArray().Modern
	return m.KindMask.Ok() && m.KindAccessor.Ok() && details&m.KindMask.Value == m.KindAccessor.Value
}

// unboxDouble reads a double field that is either boxed in a HeapNumber or
// stored as raw bits in the slot.
func (h *Heap) unboxDouble(v Value) float64 {
	if o, ok := v.HeapObject().Get(); ok {
		hn := h.c.Types().HeapNumber
		if t, ok := o.Type().Get(); ok && hn.Ok() && t == hn.Value {
			if f, ok := (HeapNumber{o}).Value().Get(); ok {
				return f
			}
		}
	}
	return math.Float64frombits(v.raw)
}

// JSArray is a JavaScript array.
type JSArray struct{ JSObject }

// Length returns the array's length property.
func (a JSArray) Length() Checked[int64] {
	return smiField(a.HeapObject, a.h.c.JSArray().Length)
}

// Items returns up to max leading elements.
func (a JSArray) Items(max int64) ([]Value, error) {
	n, ok := a.Length().Get()
	if !ok {
		return nil, ErrInvalid
	}
	fa, ok := a.JSObject.Elements().Get()
	if !ok {
		return nil, ErrInvalid
	}
	if n > max {
		n = max
	}
	return fa.Slots(n)
}
