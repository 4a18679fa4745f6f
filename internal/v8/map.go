package v8

// Map is a hidden class.
type Map struct{ HeapObject }

// Map reads o's map pointer without validating it.
func (o HeapObject) Map() Checked[Map] {
	return Apply(FieldAt[HeapObject](o, o.h.c.HeapObject().MapOffset, 0), func(m HeapObject) Map { return Map{m} })
}

// InstanceType reads the instance type stored in the map.
func (m Map) InstanceType() Checked[int64] {
	mc := m.h.c.Map()
	if mc.TypeMask == 0xff {
		return Apply(FieldAt[uint8](m.HeapObject, mc.TypeOffset, 0), func(v uint8) int64 { return int64(v) })
	}
	return Apply(FieldAt[uint16](m.HeapObject, mc.TypeOffset, 0), func(v uint16) int64 { return int64(v) })
}

// IsMap reports whether m's own map has MAP_TYPE, the check that
// distinguishes a real hidden class from an arbitrary tagged word.
func (m Map) IsMap() bool {
	mt := m.h.c.Types().Map
	if !mt.Ok() {
		return false
	}
	meta, ok := m.HeapObject.Map().Get()
	if !ok {
		return false
	}
	t, ok := meta.InstanceType().Get()
	return ok && t == mt.Value
}

// Type reads o's instance type through its map, without validating the map.
func (o HeapObject) Type() Checked[int64] {
	return Then(o.Map(), Map.InstanceType)
}

// CheckedType reads o's instance type after validating that its map is a
// real map. This is the validation used when the object came from an
// untrusted word such as a scanned memory slot.
func (o HeapObject) CheckedType() Checked[int64] {
	m, ok := o.Map().Get()
	if !ok || !m.IsMap() {
		return Invalid[int64]()
	}
	return m.InstanceType()
}

// InstanceSize returns the object size in bytes.
func (m Map) InstanceSize() Checked[int64] {
	ptr := m.h.ptr
	return Apply(FieldAt[uint8](m.HeapObject, m.h.c.Map().InstanceSize, 0), func(v uint8) int64 { return int64(v) * ptr })
}

// InObjectProperties returns the number of property slots stored inside the object.
func (m Map) InObjectProperties() Checked[int64] {
	mc := m.h.c.Map()
	if mc.InObjectProperties.Ok() {
		return Apply(FieldAt[uint8](m.HeapObject, mc.InObjectProperties, 0), func(v uint8) int64 { return int64(v) })
	}
	start, ok := FieldAt[uint8](m.HeapObject, mc.InObjectPropertiesStart, 0).Get()
	if !ok {
		return Invalid[int64]()
	}
	words, ok := FieldAt[uint8](m.HeapObject, mc.InstanceSize, 0).Get()
	if !ok {
		return Invalid[int64]()
	}
	return Valid(int64(words) - int64(start))
}

// BitField3 reads bit_field3.
func (m Map) BitField3() Checked[int64] {
	mc := m.h.c.Map()
	if mc.BitField3IsSmi() {
		return smiField(m.HeapObject, mc.BitField3)
	}
	return Apply(FieldAt[uint32](m.HeapObject, mc.BitField3, 0), func(v uint32) int64 { return int64(v) })
}

// IsDictionary reports whether objects of this map keep properties in a NameDictionary.
func (m Map) IsDictionary() Checked[bool] {
	shift := m.h.c.Map().DictionaryMapShift
	if !shift.Ok() {
		return Invalid[bool]()
	}
	return Apply(m.BitField3(), func(bf3 int64) bool { return (bf3>>shift.Value)&1 == 1 })
}

// NumberOfOwnDescriptors returns how many descriptors belong to this map.
func (m Map) NumberOfOwnDescriptors() Checked[int64] {
	mc := m.h.c.Map()
	if !mc.OwnDescriptorsMask.Ok() || !mc.OwnDescriptorsShift.Ok() {
		return Invalid[int64]()
	}
	return Apply(m.BitField3(), func(bf3 int64) int64 {
		return (bf3 & mc.OwnDescriptorsMask.Value) >> mc.OwnDescriptorsShift.Value
	})
}

// InstanceDescriptors returns the map's descriptor array.
func (m Map) InstanceDescriptors() Checked[DescriptorArray] {
	return Apply(FieldAt[HeapObject](m.HeapObject, m.h.c.Map().InstanceDescriptors, 0), func(o HeapObject) DescriptorArray {
		return DescriptorArray{FixedArray{o}}
	})
}

// MaybeConstructor reads the constructor-or-back-pointer slot.
func (m Map) MaybeConstructor() Checked[HeapObject] {
	return FieldAt[HeapObject](m.HeapObject, m.h.c.Map().MaybeConstructor, 0)
}

// Constructor follows back pointers through the transition tree until it
// reaches something that is not a map. The walk gives up after
// Options.MaxConstructorHops maps.
func (m Map) Constructor() Checked[HeapObject] {
	mapType := m.h.c.Types().Map
	current := m.HeapObject
	for i := 0; i < m.h.opts.MaxConstructorHops; i++ {
		next, ok := Map{current}.MaybeConstructor().Get()
		if !ok {
			return Invalid[HeapObject]()
		}
		t, ok := next.Type().Get()
		if !ok {
			return Invalid[HeapObject]()
		}
		if !mapType.Ok() || t != mapType.Value {
			return Valid(next)
		}
		current = next
	}
	return Invalid[HeapObject]()
}
