package constants

// Layout identifies the property-details encoding used by descriptor arrays.
type Layout int

const (
	// LayoutLegacy encodes a property type field (DATA, DATA_CONSTANT, ...).
	LayoutLegacy Layout = iota
	// LayoutModern encodes kind, location and attributes separately.
	LayoutModern
)

func (l Layout) String() string {
	if l == LayoutLegacy {
		return "legacy"
	}
	return "modern"
}

// DescriptorArray holds descriptor slot indices and property-details bit fields.
// Exactly one of the Legacy or Modern field sets is populated, per Layout.
type DescriptorArray struct {
	Layout Layout

	Details, Key, Value Constant
	FirstIndex, Size    Constant
	IndexMask           Constant
	IndexShift          Constant

	RepresentationShift  Constant
	RepresentationMask   Constant
	RepresentationDouble Constant

	Legacy struct {
		TypeMask, FieldType, ConstFieldType Constant
	}
	Modern struct {
		AttributesMask, AttributesShift, AttributeReadOnly Constant
		KindMask, KindAccessor, KindData                   Constant
		LocationMask, LocationShift                        Constant
		LocationDescriptor, LocationField                  Constant
	}
}

func (s *Schema) DescriptorArray() *DescriptorArray {
	return s.descriptors.get(func(c *DescriptorArray) {
		c.Details = s.c("prop_desc_details")
		c.Key = s.c("prop_desc_key")
		c.Value = s.c("prop_desc_value")
		c.FirstIndex = s.c("prop_idx_first")
		c.Size = s.c("prop_desc_size")
		c.IndexMask = s.c("prop_index_mask")
		c.IndexShift = s.c("prop_index_shift")

		// prop_type_mask only exists in the legacy encoding.
		typeMask := s.c("prop_type_mask")
		if typeMask.Ok() {
			c.Layout = LayoutLegacy
			c.Legacy.TypeMask = typeMask
			c.Legacy.FieldType = s.c("prop_type_field")
			c.Legacy.ConstFieldType = s.c("prop_type_const_field")
			if !c.Legacy.ConstFieldType.Ok() && c.Legacy.FieldType.Ok() {
				c.Legacy.ConstFieldType = Derived("prop_type_field|2", c.Legacy.FieldType.Value|0x2)
			}
		} else {
			c.Layout = LayoutModern
			m := &c.Modern
			m.AttributesMask = s.c("prop_attributes_mask")
			m.AttributesShift = s.c("prop_attributes_shift")
			m.AttributeReadOnly = s.c("prop_attributes_READ_ONLY")
			m.KindMask = s.c("prop_kind_mask")
			m.KindAccessor = s.c("prop_kind_Accessor")
			m.KindData = s.c("prop_kind_Data")
			m.LocationMask = s.c("prop_location_mask")
			m.LocationShift = s.c("prop_location_shift")
			m.LocationDescriptor = s.c("prop_location_Descriptor")
			m.LocationField = s.c("prop_location_Field")
		}

		c.RepresentationShift = s.c("prop_representation_shift")
		c.RepresentationMask = s.c("prop_representation_mask")
		if !c.RepresentationShift.Ok() {
			c.RepresentationShift = Derived("prop_representation_shift(default)", 5)
			c.RepresentationMask = Derived("prop_representation_mask(default)", ((1<<4)-1)<<5)
		}
		c.RepresentationDouble = s.c("prop_representation_double")
		if !c.RepresentationDouble.Ok() {
			c.RepresentationDouble = Derived("prop_representation_double(default)", 7)
		}
	})
}

// IsConstField reports whether details describe a value stored in the descriptor itself.
func (c *DescriptorArray) IsConstField(details int64) bool {
	if c.Layout == LayoutLegacy {
		l := &c.Legacy
		return l.TypeMask.Ok() && l.ConstFieldType.Ok() && details&l.TypeMask.Value == l.ConstFieldType.Value
	}
	m := &c.Modern
	if !m.KindMask.Ok() || !m.KindData.Ok() || !m.LocationMask.Ok() || !m.LocationShift.Ok() || !m.LocationDescriptor.Ok() {
		return false
	}
	return details&m.KindMask.Value == m.KindData.Value &&
		(details&m.LocationMask.Value)>>m.LocationShift.Value == m.LocationDescriptor.Value
}

// IsField reports whether details describe a value stored in an object slot.
func (c *DescriptorArray) IsField(details int64) bool {
	if c.Layout == LayoutLegacy {
		l := &c.Legacy
		return l.TypeMask.Ok() && l.FieldType.Ok() && details&l.TypeMask.Value == l.FieldType.Value
	}
	m := &c.Modern
	if !m.LocationMask.Ok() || !m.LocationShift.Ok() || !m.LocationField.Ok() {
		return false
	}
	if m.KindMask.Ok() && m.KindData.Ok() && details&m.KindMask.Value != m.KindData.Value {
		return false
	}
	return (details&m.LocationMask.Value)>>m.LocationShift.Value == m.LocationField.Value
}

// IsDoubleField reports whether a field holds an unboxed or boxed double.
func (c *DescriptorArray) IsDoubleField(details int64) bool {
	return (details&c.RepresentationMask.Value)>>c.RepresentationShift.Value == c.RepresentationDouble.Value
}

// FieldIndex extracts the field index from details.
func (c *DescriptorArray) FieldIndex(details int64) (int64, bool) {
	if !c.IndexMask.Ok() || !c.IndexShift.Ok() {
		return 0, false
	}
	return (details & c.IndexMask.Value) >> c.IndexShift.Value, true
}

// NameDictionary holds the hash-table layout used by dictionary-mode objects.
type NameDictionary struct {
	EntrySize        Constant
	PrefixStartIndex Constant
	PrefixSize       Constant
	KeyOffset        int64
	ValueOffset      int64
}

func (s *Schema) NameDictionary() *NameDictionary {
	return s.dictionary.get(func(c *NameDictionary) {
		c.KeyOffset = 0
		c.ValueOffset = 1
		c.EntrySize = s.c("class_NameDictionaryShape__entry_size__int", "namedictionaryshape_entry_size")
		c.PrefixStartIndex = s.c("class_NameDictionary__prefix_start_index__int", "namedictionary_prefix_start_index")
		if !c.PrefixStartIndex.Ok() && c.EntrySize.Ok() {
			c.PrefixStartIndex = Derived("entry_size", c.EntrySize.Value)
		}
		prefix := s.c("class_NameDictionaryShape__prefix_size__int", "namedictionaryshape_prefix_size")
		if prefix.Ok() && c.PrefixStartIndex.Ok() {
			c.PrefixSize = Derived("prefix_size+prefix_start_index", prefix.Value+c.PrefixStartIndex.Value)
		} else {
			c.PrefixSize = Constant{Name: "namedictionaryshape_prefix_size", Value: -1, State: Absent}
		}
	})
}
