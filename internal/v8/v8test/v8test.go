// Package v8test builds synthetic 64-bit V8 heaps in an in-memory target.
// The constant table mirrors a node 10 era build with string length stored
// as a raw int32 and the modern descriptor encoding.
package v8test

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"

	"v8heap/internal/target"
)

const (
	ConstBase   = 0x10000
	HeapBase    = 0x100000
	HeapSize    = 1 << 20
	RegionBase  = 0x40000000
	RegionSpace = 0x100000
	PointerSize = 8
)

// Instance type ids used by Constants.
const (
	TypeSeqOneByteString  = 8
	TypeSeqTwoByteString  = 0
	TypeConsOneByteString = 9
	TypeExternalOneByte   = 10
	TypeSlicedOneByte     = 11
	TypeThinOneByte       = 13
	TypeFirstNonstring    = 64
	TypeHeapNumber        = 65
	TypeOddball           = 67
	TypeMap               = 68
	TypeCode              = 69
	TypeFixedArray        = 120
	TypeSharedFunction    = 150
	TypeScript            = 151
	TypeGlobalProxy       = 1024
	TypeGlobalObject      = 1025
	TypeSpecialAPIObject  = 1040
	TypeAPIObject         = 1056
	TypeJSObject          = 1057
	TypeJSArrayBuffer     = 1059
	TypeJSArray           = 1060
	TypeJSTypedArray      = 1062
	TypeJSDate            = 1070
	TypeJSRegExp          = 1071
	TypeJSFunction        = 1105
)

// Oddball kinds.
const (
	KindFalse         = 0
	KindTrue          = 1
	KindTheHole       = 2
	KindNull          = 3
	KindUndefined     = 5
	KindUninitialized = 6
	KindException     = 8
)

// Constants is the default postmortem constant table (names without prefix).
func Constants() map[string]int64 {
	return map[string]int64{
		"PointerSizeLog2": 3,
		"SmiTag":          0,
		"SmiTagMask":      1,
		"SmiShiftSize":    31,

		"HeapObjectTag":              1,
		"HeapObjectTagMask":          3,
		"class_HeapObject__map__Map": 0,

		"class_Map__instance_size_in_words__char":                                  8,
		"class_Map__inobject_properties_start_or_constructor_function_index__char": 9,
		"class_Map__instance_type__uint16_t":                                       12,
		"class_Map__bit_field3__int":                                               16,
		"class_Map__instance_descriptors__DescriptorArray":                         24,
		"class_Map__constructor_or_backpointer__Object":                            32,
		"bit_field3_dictionary_map_shift":                                          21,
		"bit_field3_number_of_own_descriptors_shift":                               10,
		"bit_field3_number_of_own_descriptors_mask":                                0x3ff << 10,

		"FirstNonstringType":                                 TypeFirstNonstring,
		"type_HeapNumber__HEAP_NUMBER_TYPE":                  TypeHeapNumber,
		"type_Oddball__ODDBALL_TYPE":                         TypeOddball,
		"type_Map__MAP_TYPE":                                 TypeMap,
		"type_Code__CODE_TYPE":                               TypeCode,
		"type_FixedArray__FIXED_ARRAY_TYPE":                  TypeFixedArray,
		"type_SharedFunctionInfo__SHARED_FUNCTION_INFO_TYPE": TypeSharedFunction,
		"type_Script__SCRIPT_TYPE":                           TypeScript,
		"type_JSGlobalProxy__JS_GLOBAL_PROXY_TYPE":           TypeGlobalProxy,
		"type_JSGlobalObject__JS_GLOBAL_OBJECT_TYPE":         TypeGlobalObject,
		"SpecialAPIObjectType":                               TypeSpecialAPIObject,
		"APIObjectType":                                      TypeAPIObject,
		"type_JSObject__JS_OBJECT_TYPE":                      TypeJSObject,
		"type_JSArrayBuffer__JS_ARRAY_BUFFER_TYPE":           TypeJSArrayBuffer,
		"type_JSArray__JS_ARRAY_TYPE":                        TypeJSArray,
		"type_JSTypedArray__JS_TYPED_ARRAY_TYPE":             TypeJSTypedArray,
		"type_JSDate__JS_DATE_TYPE":                          TypeJSDate,
		"type_JSRegExp__JS_REGEXP_TYPE":                      TypeJSRegExp,
		"type_JSFunction__JS_FUNCTION_TYPE":                  TypeJSFunction,

		"StringEncodingMask":                  8,
		"StringRepresentationMask":            7,
		"OneByteStringTag":                    8,
		"TwoByteStringTag":                    0,
		"SeqStringTag":                        0,
		"ConsStringTag":                       1,
		"ExternalStringTag":                   2,
		"SlicedStringTag":                     3,
		"ThinStringTag":                       5,
		"class_String__length__int32_t":       12,
		"class_SeqOneByteString__chars__char": 16,
		"class_SeqTwoByteString__chars__char": 16,
		"class_ConsString__first__String":     16,
		"class_ConsString__second__String":    24,
		"class_SlicedString__parent__String":  16,
		"class_SlicedString__offset__SMI":     24,
		"class_ThinString__actual__String":    16,

		"class_FixedArrayBase__length__SMI": 8,
		"class_FixedArray__data__uintptr_t": 16,

		"class_JSReceiver__raw_properties_or_hash__Object": 8,
		"class_JSObject__elements__Object":                 16,
		"class_JSArray__length__Object":                    24,
		"class_JSFunction__shared__SharedFunctionInfo":     24,
		"class_JSFunction__context__Context":               32,
		"class_HeapNumber__value__double":                  8,
		"class_JSRegExp__source__Object":                   32,
		"class_JSDate__value__Object":                      24,

		"class_Oddball__kind_offset__int": 40,
		"OddballFalse":                    KindFalse,
		"OddballTrue":                     KindTrue,
		"OddballTheHole":                  KindTheHole,
		"OddballNull":                     KindNull,
		"OddballUndefined":                KindUndefined,
		"OddballUninitialized":            KindUninitialized,
		"OddballException":                KindException,

		"class_SharedFunctionInfo__name_or_scope_info__Object":           8,
		"class_SharedFunctionInfo__script__Object":                       16,
		"class_SharedFunctionInfo__start_position_and_type__int":         24,
		"class_SharedFunctionInfo__end_position__int":                    28,
		"class_SharedFunctionInfo__internal_formal_parameter_count__int": 32,
		"sharedfunctioninfo_start_position_shift":                        2,
		"sharedfunctioninfo_start_position_mask":                         -4,

		"class_Script__source__Object":             8,
		"class_Script__name__Object":               16,
		"class_Script__line_offset__SMI":           24,
		"class_Script__line_ends__Object":          32,
		"class_Code__instruction_size__int":        8,
		"class_Code__instruction_start__uintptr_t": 32,

		"context_idx_closure":          0,
		"context_idx_prev":             1,
		"context_idx_native":           2,
		"context_min_slots":            4,
		"scopeinfo_idx_nparams":        1,
		"scopeinfo_idx_nstacklocals":   2,
		"scopeinfo_idx_ncontextlocals": 3,
		"scopeinfo_idx_first_vars":     4,

		"off_fp_context":                  -8,
		"off_fp_function":                 -16,
		"off_fp_args":                     16,
		"frametype_EntryFrame":            1,
		"frametype_ConstructEntryFrame":   2,
		"frametype_ExitFrame":             3,
		"frametype_OptimizedFrame":        5,
		"frametype_StubFrame":             7,
		"frametype_InternalFrame":         10,
		"frametype_ConstructFrame":        11,
		"frametype_ArgumentsAdaptorFrame": 12,

		"prop_desc_key":              0,
		"prop_desc_details":          1,
		"prop_desc_value":            2,
		"prop_desc_size":             3,
		"prop_idx_first":             2,
		"prop_kind_mask":             1,
		"prop_kind_Data":             0,
		"prop_kind_Accessor":         1,
		"prop_location_mask":         2,
		"prop_location_shift":        1,
		"prop_location_Field":        0,
		"prop_location_Descriptor":   1,
		"prop_attributes_mask":       0x38,
		"prop_attributes_shift":      3,
		"prop_attributes_READ_ONLY":  1,
		"prop_representation_shift":  6,
		"prop_representation_mask":   0x1c0,
		"prop_representation_double": 2,
		"prop_index_shift":           9,
		"prop_index_mask":            0x3ff << 9,

		"namedictionaryshape_entry_size":    3,
		"namedictionary_prefix_start_index": 2,
		"namedictionaryshape_prefix_size":   1,

		"class_JSArrayBuffer__byte_length__Object":         24,
		"class_JSArrayBuffer__backing_store__Object":       32,
		"class_JSArrayBufferView__buffer__Object":          24,
		"class_JSArrayBufferView__raw_byte_offset__Object": 32,
		"class_JSArrayBufferView__raw_byte_length__Object": 40,
		"class_JSTypedArray__external_pointer__uintptr_t":  56,
		"class_JSTypedArray__base_pointer__Object":         64,
	}
}

// Representation values encoded in property details.
const (
	reprTagged = 4
	reprDouble = 2
)

// Option adjusts the constant table before it is written.
type Option func(map[string]int64)

// WithConstant sets or overrides a constant.
func WithConstant(name string, v int64) Option {
	return func(m map[string]int64) { m[name] = v }
}

// Without removes a constant so it resolves as absent.
func Without(names ...string) Option {
	return func(m map[string]int64) {
		for _, n := range names {
			delete(m, n)
		}
	}
}

// Heap is a synthetic heap under construction.
type Heap struct {
	Mem    *target.Memory
	Consts map[string]int64

	heap    []byte
	next    uint64
	regions int

	MetaMap   uint64
	Undefined uint64
	Null      uint64
	TheHole   uint64
	True      uint64
	False     uint64
	Empty     uint64 // empty FixedArray

	fixedArrayMap uint64
	heapNumberMap uint64
	oddballMap    uint64
	sfiMap        uint64
	scriptMap     uint64
	functionMap   uint64
	arrayMap      uint64
	bufferMap     uint64
	typedMap      uint64
	stringMaps    map[int64]uint64
}

// New lays out constants and the root objects (meta map, oddballs, empty array).
func New(opts ...Option) *Heap {
	consts := Constants()
	for _, o := range opts {
		o(consts)
	}
	h := &Heap{
		Mem:        target.NewMemory("v8test", PointerSize),
		Consts:     consts,
		next:       HeapBase,
		stringMaps: make(map[int64]uint64),
	}

	// Constants are 4-byte ints like the real v8dbg_ symbols.
	cbuf := h.Mem.Map(ConstBase, 8*len(consts)+8)
	i := 0
	for name, v := range consts {
		addr := uint64(ConstBase + 8*i)
		binary.LittleEndian.PutUint32(cbuf[8*i:], uint32(int32(v)))
		h.Mem.DefineSymbol("v8dbg_"+name, addr, 4)
		i++
	}
	h.heap = h.Mem.Map(HeapBase, HeapSize)

	h.MetaMap = h.Tag(h.Alloc(48))
	h.initMap(h.MetaMap, TypeMap, 6, 0)

	h.fixedArrayMap = h.NewMap(TypeFixedArray, 0, 0)
	h.Empty = h.NewFixedArray()
	h.oddballMap = h.NewMap(TypeOddball, 6, 0)
	h.Undefined = h.newOddball(KindUndefined)
	h.Null = h.newOddball(KindNull)
	h.TheHole = h.newOddball(KindTheHole)
	h.True = h.newOddball(KindTrue)
	h.False = h.newOddball(KindFalse)
	h.heapNumberMap = h.NewMap(TypeHeapNumber, 2, 0)
	h.sfiMap = h.NewMap(TypeSharedFunction, 5, 0)
	h.scriptMap = h.NewMap(TypeScript, 5, 0)
	h.functionMap = h.NewMap(TypeJSFunction, 5, 5)
	h.arrayMap = h.NewMap(TypeJSArray, 4, 4)
	h.bufferMap = h.NewMap(TypeJSArrayBuffer, 6, 6)
	h.typedMap = h.NewMap(TypeJSTypedArray, 9, 9)
	return h
}

// Target returns the heap as a target.Target.
func (h *Heap) Target() target.Target { return h.Mem }

// Tag converts an object base address to a tagged reference.
func (h *Heap) Tag(addr uint64) uint64 { return addr | 1 }

// Untag converts a tagged reference to the object base address.
func Untag(v uint64) uint64 { return v &^ 1 }

// Smi encodes a small integer.
func Smi(v int64) uint64 { return uint64(v) << 32 }

// Alloc reserves size bytes (8-aligned) in the main heap and returns the base address.
func (h *Heap) Alloc(size int) uint64 {
	size = (size + 7) &^ 7
	if h.next+uint64(size) > HeapBase+HeapSize {
		panic("v8test: heap exhausted")
	}
	a := h.next
	h.next += uint64(size)
	return a
}

// Place maps a fresh region of size bytes at addr and returns the tagged reference to it.
func (h *Heap) Place(addr uint64, size int) uint64 {
	h.Mem.Map(addr, (size+7)&^7)
	return h.Tag(addr)
}

// Region maps a scan region holding words and returns its start and length in bytes.
func (h *Heap) Region(words ...uint64) (uint64, uint64) {
	start := uint64(RegionBase + h.regions*RegionSpace)
	h.regions++
	n := len(words) * PointerSize
	if n == 0 {
		n = PointerSize
	}
	buf := h.Mem.Map(start, n)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*PointerSize:], w)
	}
	return start, uint64(n)
}

func (h *Heap) must(err error) {
	if err != nil {
		panic(fmt.Sprintf("v8test: %v", err))
	}
}

// SetWord writes a pointer-width word at tagged+off-1.
func (h *Heap) SetWord(tagged uint64, off int64, v uint64) {
	h.must(h.Mem.PutUnsigned(Untag(tagged)+uint64(off), v, PointerSize))
}

// SetU writes an unsigned value of width bytes at tagged+off-1.
func (h *Heap) SetU(tagged uint64, off int64, v uint64, width int) {
	h.must(h.Mem.PutUnsigned(Untag(tagged)+uint64(off), v, width))
}

// Word reads a word back, for assertions.
func (h *Heap) Word(tagged uint64, off int64) uint64 {
	v, ok := target.NewReader(h.Mem).ReadWord(Untag(tagged) + uint64(off))
	if !ok {
		panic("v8test: word unreadable")
	}
	return v
}

func (h *Heap) c(name string) int64 {
	v, ok := h.Consts[name]
	if !ok {
		return -1
	}
	return v
}

func (h *Heap) initMap(m uint64, instanceType int64, words, inobjectStart int) {
	h.SetWord(m, 0, h.MetaMap)
	h.SetU(m, 8, uint64(words), 1)
	h.SetU(m, 9, uint64(inobjectStart), 1)
	h.SetU(m, 12, uint64(instanceType), 2)
	h.SetU(m, 16, 0, 4)
	if h.Undefined != 0 {
		h.SetWord(m, 24, h.Empty)
		h.SetWord(m, 32, h.Undefined)
	}
}

// NewMap allocates a hidden class. words is the instance size in words and
// inobjectStart the first in-object property slot.
func (h *Heap) NewMap(instanceType int64, words, inobjectStart int) uint64 {
	m := h.Tag(h.Alloc(48))
	h.initMap(m, instanceType, words, inobjectStart)
	return m
}

// NewMapAt places a hidden class at a fixed address.
func (h *Heap) NewMapAt(addr uint64, instanceType int64, words, inobjectStart int) uint64 {
	m := h.Place(addr, 48)
	h.initMap(m, instanceType, words, inobjectStart)
	return m
}

// SetConstructor stores ctor in the map's constructor-or-back-pointer slot.
func (h *Heap) SetConstructor(m, ctor uint64) { h.SetWord(m, 32, ctor) }

// SetBitField3 overwrites bit_field3.
func (h *Heap) SetBitField3(m uint64, v uint32) { h.SetU(m, 16, uint64(v), 4) }

// SetDictionaryMap marks the map as dictionary mode.
func (h *Heap) SetDictionaryMap(m uint64) {
	bf3 := h.Word(m, 16) & 0xffffffff
	h.SetBitField3(m, uint32(bf3|1<<21))
}

// SetDescriptors attaches a descriptor array holding n own descriptors.
func (h *Heap) SetDescriptors(m, desc uint64, n int) {
	h.SetWord(m, 24, desc)
	bf3 := h.Word(m, 16) & 0xffffffff
	bf3 = bf3&^(0x3ff<<10) | uint64(n)<<10
	h.SetBitField3(m, uint32(bf3))
}

// FieldDetails encodes data-field property details for field index idx.
func FieldDetails(idx int, double bool) uint64 {
	repr := int64(reprTagged)
	if double {
		repr = reprDouble
	}
	return Smi(int64(idx)<<9 | repr<<6)
}

// ConstDetails encodes data-constant (descriptor located) property details.
func ConstDetails() uint64 { return Smi(1<<1 | reprTagged<<6) }

// AccessorDetails encodes accessor property details.
func AccessorDetails() uint64 { return Smi(1 | 1<<1) }

// Descriptor is one entry of a descriptor array.
type Descriptor struct {
	Key     uint64
	Details uint64
	Value   uint64
}

// NewDescriptorArray lays out descriptors after the two header slots.
func (h *Heap) NewDescriptorArray(ds ...Descriptor) uint64 {
	vals := []uint64{Smi(int64(len(ds))), h.Undefined}
	for _, d := range ds {
		v := d.Value
		if v == 0 {
			v = h.Undefined
		}
		vals = append(vals, d.Key, d.Details, v)
	}
	return h.NewFixedArray(vals...)
}

// NewFixedArray allocates a FixedArray holding vals.
func (h *Heap) NewFixedArray(vals ...uint64) uint64 {
	a := h.Tag(h.Alloc(16 + 8*len(vals)))
	h.SetWord(a, 0, h.fixedArrayMap)
	h.SetWord(a, 8, Smi(int64(len(vals))))
	for i, v := range vals {
		h.SetWord(a, 16+8*int64(i), v)
	}
	return a
}

// NewNameDictionary builds a dictionary-mode properties table. Keys and
// values alternate in kv.
func (h *Heap) NewNameDictionary(kv ...uint64) uint64 {
	vals := []uint64{Smi(int64(len(kv) / 2)), Smi(0), Smi(int64(len(kv) / 2))}
	for i := 0; i+1 < len(kv); i += 2 {
		vals = append(vals, kv[i], kv[i+1], Smi(0))
	}
	// An empty slot the decoder must skip.
	vals = append(vals, h.Undefined, h.Undefined, Smi(0))
	return h.NewFixedArray(vals...)
}

func (h *Heap) newOddball(kind int64) uint64 {
	o := h.Tag(h.Alloc(48))
	h.SetWord(o, 0, h.oddballMap)
	h.SetWord(o, 40, Smi(kind))
	return o
}

// NewHeapNumber boxes f.
func (h *Heap) NewHeapNumber(f float64) uint64 {
	n := h.Tag(h.Alloc(16))
	h.SetWord(n, 0, h.heapNumberMap)
	h.SetWord(n, 8, math.Float64bits(f))
	return n
}

func (h *Heap) stringMap(t int64) uint64 {
	if m, ok := h.stringMaps[t]; ok {
		return m
	}
	m := h.NewMap(t, 0, 0)
	h.stringMaps[t] = m
	return m
}

func (h *Heap) newStringHeader(t int64, length int, size int) uint64 {
	s := h.Tag(h.Alloc(size))
	h.SetWord(s, 0, h.stringMap(t))
	h.SetU(s, 12, uint64(length), 4)
	return s
}

// NewString allocates a sequential one-byte string.
func (h *Heap) NewString(str string) uint64 {
	s := h.newStringHeader(TypeSeqOneByteString, len(str), 16+len(str))
	h.must(h.Mem.Write(Untag(s)+16, []byte(str)))
	return s
}

// NewTwoByteString allocates a sequential two-byte string.
func (h *Heap) NewTwoByteString(str string) uint64 {
	units := utf16.Encode([]rune(str))
	s := h.newStringHeader(TypeSeqTwoByteString, len(units), 16+2*len(units))
	buf := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2*i:], u)
	}
	h.must(h.Mem.Write(Untag(s)+16, buf))
	return s
}

// NewConsString joins first and second.
func (h *Heap) NewConsString(first, second uint64, length int) uint64 {
	s := h.newStringHeader(TypeConsOneByteString, length, 32)
	h.SetWord(s, 16, first)
	h.SetWord(s, 24, second)
	return s
}

// NewSlicedString views length characters of parent starting at offset.
func (h *Heap) NewSlicedString(parent uint64, offset, length int) uint64 {
	s := h.newStringHeader(TypeSlicedOneByte, length, 32)
	h.SetWord(s, 16, parent)
	h.SetWord(s, 24, Smi(int64(offset)))
	return s
}

// NewThinString forwards to actual.
func (h *Heap) NewThinString(actual uint64, length int) uint64 {
	s := h.newStringHeader(TypeThinOneByte, length, 24)
	h.SetWord(s, 16, actual)
	return s
}

// NewExternalString allocates an external one-byte string header.
func (h *Heap) NewExternalString(length int) uint64 {
	return h.newStringHeader(TypeExternalOneByte, length, 32)
}

// NewScript allocates a Script with a name and source.
func (h *Heap) NewScript(name, source string, lineOffset int64) uint64 {
	s := h.Tag(h.Alloc(40))
	h.SetWord(s, 0, h.scriptMap)
	h.SetWord(s, 8, h.NewString(source))
	h.SetWord(s, 16, h.NewString(name))
	h.SetWord(s, 24, Smi(lineOffset))
	h.SetWord(s, 32, h.Undefined)
	return s
}

// NewSharedInfo allocates a SharedFunctionInfo named name.
func (h *Heap) NewSharedInfo(name string, script uint64, startPos int) uint64 {
	sfi := h.Tag(h.Alloc(40))
	h.SetWord(sfi, 0, h.sfiMap)
	h.SetWord(sfi, 8, h.NewString(name))
	if script == 0 {
		script = h.Undefined
	}
	h.SetWord(sfi, 16, script)
	h.SetU(sfi, 24, uint64(startPos)<<2, 4)
	h.SetU(sfi, 28, uint64(startPos+10), 4)
	h.SetU(sfi, 32, 0, 4)
	return sfi
}

// NewFunction allocates a JSFunction named name.
func (h *Heap) NewFunction(name string) uint64 {
	return h.NewFunctionWith(h.NewSharedInfo(name, 0, 0))
}

// NewFunctionWith allocates a JSFunction around an existing SharedFunctionInfo.
func (h *Heap) NewFunctionWith(sfi uint64) uint64 {
	f := h.Tag(h.Alloc(40))
	h.SetWord(f, 0, h.functionMap)
	h.SetWord(f, 8, h.Empty)
	h.SetWord(f, 16, h.Empty)
	h.SetWord(f, 24, sfi)
	h.SetWord(f, 32, h.Undefined)
	return f
}

// NewScopedFunction allocates a JSFunction whose SharedFunctionInfo
// carries a ScopeInfo naming locals as context-allocated variables. The
// function name follows the local names, as in the variable part layout.
func (h *Heap) NewScopedFunction(name string, locals ...string) uint64 {
	vals := []uint64{Smi(0), Smi(0), Smi(0), Smi(int64(len(locals)))}
	for _, l := range locals {
		vals = append(vals, h.NewString(l))
	}
	vals = append(vals, h.NewString(name))
	sfi := h.NewSharedInfo(name, 0, 0)
	h.SetWord(sfi, 8, h.NewFixedArray(vals...))
	return h.NewFunctionWith(sfi)
}

// NewContext allocates a function context for closure with the given
// variable slot values. prev may be 0 for no enclosing context.
func (h *Heap) NewContext(closure, prev uint64, locals ...uint64) uint64 {
	if prev == 0 {
		prev = h.Undefined
	}
	vals := append([]uint64{closure, prev, h.Undefined, h.Undefined}, locals...)
	return h.NewFixedArray(vals...)
}

// SetContext stores ctx in a function's context slot.
func (h *Heap) SetContext(fn, ctx uint64) { h.SetWord(fn, 32, ctx) }

// NewClass creates a constructor function and an object map whose
// descriptors name props as in-object data fields, in order.
func (h *Heap) NewClass(name string, props ...string) uint64 {
	m := h.NewMap(TypeJSObject, 3+len(props), 3)
	h.SetConstructor(m, h.NewFunction(name))
	if len(props) > 0 {
		ds := make([]Descriptor, len(props))
		for i, p := range props {
			ds[i] = Descriptor{Key: h.NewString(p), Details: FieldDetails(i, false)}
		}
		h.SetDescriptors(m, h.NewDescriptorArray(ds...), len(props))
	}
	return m
}

func (h *Heap) initObject(o, m uint64, inobject []uint64) {
	h.SetWord(o, 0, m)
	h.SetWord(o, 8, h.Empty)
	h.SetWord(o, 16, h.Empty)
	for i, v := range inobject {
		h.SetWord(o, 24+8*int64(i), v)
	}
}

// NewObject allocates an object with map m and the given in-object slot values.
// The allocation is sized from the map's instance size.
func (h *Heap) NewObject(m uint64, inobject ...uint64) uint64 {
	words := int(h.Word(m, 8) & 0xff)
	if words < 3+len(inobject) {
		words = 3 + len(inobject)
	}
	o := h.Tag(h.Alloc(8 * words))
	h.initObject(o, m, inobject)
	return o
}

// NewObjectAt places an object at a fixed address.
func (h *Heap) NewObjectAt(addr, m uint64, inobject ...uint64) uint64 {
	o := h.Place(addr, 24+8*len(inobject))
	h.initObject(o, m, inobject)
	return o
}

// SetProperties replaces an object's out-of-line properties backing store.
func (h *Heap) SetProperties(o, props uint64) { h.SetWord(o, 8, props) }

// SetElements replaces an object's elements backing store.
func (h *Heap) SetElements(o, elems uint64) { h.SetWord(o, 16, elems) }

// NewArray allocates a JSArray with the given elements.
func (h *Heap) NewArray(elems ...uint64) uint64 {
	a := h.Tag(h.Alloc(32))
	h.SetWord(a, 0, h.arrayMap)
	h.SetWord(a, 8, h.Empty)
	h.SetWord(a, 16, h.NewFixedArray(elems...))
	h.SetWord(a, 24, Smi(int64(len(elems))))
	return a
}

// ArrayMap returns the shared JSArray map.
func (h *Heap) ArrayMap() uint64 { return h.arrayMap }

// NewArrayBuffer allocates a JSArrayBuffer.
func (h *Heap) NewArrayBuffer(backing uint64, length int64) uint64 {
	b := h.Tag(h.Alloc(48))
	h.SetWord(b, 0, h.bufferMap)
	h.SetWord(b, 8, h.Empty)
	h.SetWord(b, 16, h.Empty)
	h.SetWord(b, 24, Smi(length))
	h.SetWord(b, 32, backing)
	h.SetU(b, 44, 0, 4)
	return b
}

// SetNeutered sets the was-neutered bit of an array buffer.
func (h *Heap) SetNeutered(b uint64) { h.SetU(b, 44, 1<<3, 4) }

// NewTypedArray allocates a JSTypedArray view of buffer.
func (h *Heap) NewTypedArray(buffer uint64, offset, length int64, base, external uint64) uint64 {
	t := h.Tag(h.Alloc(72))
	h.SetWord(t, 0, h.typedMap)
	h.SetWord(t, 8, h.Empty)
	h.SetWord(t, 16, h.Empty)
	h.SetWord(t, 24, buffer)
	h.SetWord(t, 32, Smi(offset))
	h.SetWord(t, 40, Smi(length))
	h.SetWord(t, 48, Smi(length))
	h.SetWord(t, 56, external)
	h.SetWord(t, 64, base)
	return t
}

// TypedArrayMap returns the shared JSTypedArray map.
func (h *Heap) TypedArrayMap() uint64 { return h.typedMap }

// NewCode allocates a Code object whose instructions follow the header.
func (h *Heap) NewCode(instr []byte) uint64 {
	m := h.NewMap(TypeCode, 0, 0)
	c := h.Tag(h.Alloc(32 + len(instr)))
	h.SetWord(c, 0, m)
	h.SetU(c, 8, uint64(len(instr)), 4)
	h.must(h.Mem.Write(Untag(c)+32, instr))
	return c
}
