package constants

import (
	"fmt"
	"sync"

	"v8heap/internal/diag"
	"v8heap/internal/target"
)

type lazy[T any] struct {
	once sync.Once
	v    T
}

func (z *lazy[T]) get(load func(*T)) *T {
	z.once.Do(func() { load(&z.v) })
	return &z.v
}

// Schema groups the constants needed to decode each V8 object kind. Every
// group is resolved on first use and memoized for the life of the Schema.
type Schema struct {
	l *Loader

	common      lazy[Common]
	smi         lazy[Smi]
	heapObject  lazy[HeapObject]
	hmap        lazy[Map]
	jsObject    lazy[JSObject]
	heapNumber  lazy[HeapNumber]
	jsArray     lazy[JSArray]
	jsFunction  lazy[JSFunction]
	jsRegExp    lazy[JSRegExp]
	jsDate      lazy[JSDate]
	sharedInfo  lazy[SharedInfo]
	code        lazy[Code]
	scopeInfo   lazy[ScopeInfo]
	context     lazy[Context]
	script      lazy[Script]
	str         lazy[String]
	fixedArray  lazy[FixedArray]
	typedBase   lazy[FixedTypedArrayBase]
	oddball     lazy[Oddball]
	arrayBuffer lazy[JSArrayBuffer]
	bufferView  lazy[JSArrayBufferView]
	typedArray  lazy[JSTypedArray]
	descriptors lazy[DescriptorArray]
	dictionary  lazy[NameDictionary]
	frame       lazy[Frame]
	types       lazy[Types]
}

// New returns a Schema reading from t. Diagnostics for absent constants go to d (may be nil).
func New(t target.Target, d *diag.Diags) *Schema {
	return &Schema{l: NewLoader(t, d)}
}

// Loader exposes the underlying loader.
func (s *Schema) Loader() *Loader { return s.l }

// Load resolves the groups whose choices are fixed for the whole session,
// including the descriptor layout.
func (s *Schema) Load() {
	s.Common()
	s.Smi()
	s.HeapObject()
	s.Map()
	s.Types()
	s.DescriptorArray()
}

// LoadAll resolves every group.
func (s *Schema) LoadAll() {
	s.Load()
	s.JSObject()
	s.HeapNumber()
	s.JSArray()
	s.JSFunction()
	s.JSRegExp()
	s.JSDate()
	s.SharedInfo()
	s.Code()
	s.ScopeInfo()
	s.Context()
	s.Script()
	s.Strings()
	s.FixedArray()
	s.FixedTypedArrayBase()
	s.Oddball()
	s.JSArrayBuffer()
	s.JSArrayBufferView()
	s.JSTypedArray()
	s.NameDictionary()
	s.Frame()
}

func (s *Schema) c(primary string, fallbacks ...string) Constant {
	return s.l.Resolve(primary, fallbacks, -1)
}

func (s *Schema) cd(def int64, primary string, fallbacks ...string) Constant {
	return s.l.Resolve(primary, fallbacks, def)
}

// Common holds process-wide constants.
type Common struct {
	PointerSizeLog2 Constant
	PointerSize     int64
	Major           Constant
	Minor           Constant
	Patch           Constant
}

// Version returns "major.minor.patch" or "unknown".
func (c *Common) Version() string {
	if !c.Major.Ok() {
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d", c.Major.Value, c.Minor.Value, c.Patch.Value)
}

// AtLeast reports whether the target's V8 version is known and >= major.minor.patch.
func (c *Common) AtLeast(major, minor, patch int64) bool {
	if !c.Major.Ok() || !c.Minor.Ok() || !c.Patch.Ok() {
		return false
	}
	if c.Major.Value != major {
		return c.Major.Value > major
	}
	if c.Minor.Value != minor {
		return c.Minor.Value > minor
	}
	return c.Patch.Value >= patch
}

func (s *Schema) Common() *Common {
	return s.common.get(func(c *Common) {
		c.PointerSizeLog2 = s.c("PointerSizeLog2")
		if c.PointerSizeLog2.Ok() {
			c.PointerSize = 1 << c.PointerSizeLog2.Value
		} else {
			c.PointerSize = int64(s.l.Target().PointerSize())
		}
		c.Major = s.l.Raw("v8::internal::Version::major_", -1)
		c.Minor = s.l.Raw("v8::internal::Version::minor_", -1)
		c.Patch = s.l.Raw("v8::internal::Version::patch_", -1)
	})
}

// Smi holds small-integer tagging constants.
type Smi struct {
	Tag, TagMask, ShiftSize Constant
}

func (s *Schema) Smi() *Smi {
	return s.smi.get(func(c *Smi) {
		c.Tag = s.c("SmiTag")
		c.TagMask = s.c("SmiTagMask")
		c.ShiftSize = s.c("SmiShiftSize")
	})
}

// HeapObject holds heap-reference tagging constants.
type HeapObject struct {
	Tag, TagMask, MapOffset Constant
}

func (s *Schema) HeapObject() *HeapObject {
	return s.heapObject.get(func(c *HeapObject) {
		c.Tag = s.c("HeapObjectTag")
		c.TagMask = s.c("HeapObjectTagMask")
		c.MapOffset = s.c("class_HeapObject__map__Map")
	})
}

// Map holds hidden-class layout constants.
type Map struct {
	// InstanceType is read at TypeOffset and masked with TypeMask.
	TypeOffset Constant
	TypeMask   int64

	MaybeConstructor        Constant
	InstanceDescriptors     Constant
	BitField3               Constant
	InObjectProperties      Constant
	InObjectPropertiesStart Constant
	InstanceSize            Constant
	DictionaryMapShift      Constant
	OwnDescriptorsShift     Constant
	OwnDescriptorsMask      Constant
}

// BitField3IsSmi reports whether bit_field3 is stored as a tagged small integer.
func (m *Map) BitField3IsSmi() bool { return m.BitField3.Is("class_Map__bit_field3__SMI") }

func (s *Schema) Map() *Map {
	return s.hmap.get(func(c *Map) {
		c.TypeOffset = s.l.Resolve("class_Map__instance_attributes__int", nil, -1)
		c.TypeMask = 0xff
		if !c.TypeOffset.Ok() {
			c.TypeOffset = s.c("class_Map__instance_type__uint16_t")
			c.TypeMask = 0xffff
		}
		c.MaybeConstructor = s.c("class_Map__constructor_or_backpointer__Object", "class_Map__constructor__Object")
		c.InstanceDescriptors = s.c("class_Map__instance_descriptors__DescriptorArray")
		c.BitField3 = s.c("class_Map__bit_field3__int", "class_Map__bit_field3__SMI")
		c.InObjectProperties = s.c("class_Map__inobject_properties_or_constructor_function_index__int",
			"class_Map__inobject_properties__int")
		if !c.InObjectProperties.Ok() {
			c.InObjectPropertiesStart = s.c("class_Map__inobject_properties_start_or_constructor_function_index__char")
		}
		c.InstanceSize = s.c("class_Map__instance_size__int", "class_Map__instance_size_in_words__char")
		c.DictionaryMapShift = s.c("bit_field3_dictionary_map_shift", "bit_field3_is_dictionary_map_shift")
		c.OwnDescriptorsShift = s.c("bit_field3_number_of_own_descriptors_shift")
		c.OwnDescriptorsMask = s.c("bit_field3_number_of_own_descriptors_mask")
		if !c.OwnDescriptorsShift.Ok() && c.DictionaryMapShift.Ok() {
			const descriptorIndexBits = 10
			shift := c.DictionaryMapShift.Value - descriptorIndexBits
			c.OwnDescriptorsShift = Derived("bit_field3_dictionary_map_shift-10", shift)
			c.OwnDescriptorsMask = Derived("bit_field3_own_descriptors_mask(derived)", ((1<<descriptorIndexBits)-1)<<shift)
		}
	})
}

// JSObject holds ordinary object layout constants.
type JSObject struct {
	Properties, Elements, InternalFields Constant
}

func (s *Schema) JSObject() *JSObject {
	return s.jsObject.get(func(c *JSObject) {
		c.Properties = s.c("class_JSReceiver__raw_properties_or_hash__Object", "class_JSReceiver__properties__FixedArray")
		if !c.Properties.Ok() {
			c.Properties = s.c("class_JSObject__properties__FixedArray")
		}
		c.Elements = s.c("class_JSObject__elements__Object")
		c.InternalFields = s.c("class_JSObject__internal_fields__uintptr_t")
		if !c.InternalFields.Ok() && c.Elements.Ok() {
			c.InternalFields = Derived("elements+pointer", c.Elements.Value+s.Common().PointerSize)
		}
	})
}

// HeapNumber holds boxed double layout.
type HeapNumber struct{ Value Constant }

func (s *Schema) HeapNumber() *HeapNumber {
	return s.heapNumber.get(func(c *HeapNumber) {
		c.Value = s.c("class_HeapNumber__value__double")
	})
}

// JSArray holds array layout.
type JSArray struct{ Length Constant }

func (s *Schema) JSArray() *JSArray {
	return s.jsArray.get(func(c *JSArray) {
		c.Length = s.c("class_JSArray__length__Object")
	})
}

// JSFunction holds closure layout.
type JSFunction struct{ Shared, Context Constant }

func (s *Schema) JSFunction() *JSFunction {
	return s.jsFunction.get(func(c *JSFunction) {
		c.Shared = s.c("class_JSFunction__shared__SharedFunctionInfo")
		c.Context = s.c("class_JSFunction__context__Context")
		if !c.Context.Ok() && c.Shared.Ok() {
			c.Context = Derived("shared+pointer", c.Shared.Value+s.Common().PointerSize)
		}
	})
}

// JSRegExp holds regexp layout.
type JSRegExp struct{ Source Constant }

func (s *Schema) JSRegExp() *JSRegExp {
	return s.jsRegExp.get(func(c *JSRegExp) {
		c.Source = s.c("class_JSRegExp__source__Object")
	})
}

// JSDate holds date layout.
type JSDate struct{ Value Constant }

func (s *Schema) JSDate() *JSDate {
	return s.jsDate.get(func(c *JSDate) {
		c.Value = s.c("class_JSDate__value__Object")
	})
}

// SharedInfo holds SharedFunctionInfo layout.
type SharedInfo struct {
	NameOrScopeInfo    Constant
	Name               Constant
	InferredName       Constant
	Script             Constant
	StartPosition      Constant
	EndPosition        Constant
	ParameterCount     Constant
	ScopeInfo          Constant
	StartPositionMask  Constant
	StartPositionShift Constant
	EndPositionShift   int64
}

func (s *Schema) SharedInfo() *SharedInfo {
	return s.sharedInfo.get(func(c *SharedInfo) {
		c.NameOrScopeInfo = s.c("class_SharedFunctionInfo__name_or_scope_info__Object")
		c.Name = s.c("class_SharedFunctionInfo__raw_name__Object", "class_SharedFunctionInfo__name__Object")
		c.InferredName = s.c("class_SharedFunctionInfo__inferred_name__String",
			"class_SharedFunctionInfo__function_identifier__Object")
		c.Script = s.c("class_SharedFunctionInfo__script__Object", "class_SharedFunctionInfo__script_or_debug_info__Object")
		c.StartPosition = s.c("class_SharedFunctionInfo__start_position_and_type__int",
			"class_SharedFunctionInfo__start_position_and_type__SMI")
		c.EndPosition = s.c("class_SharedFunctionInfo__end_position__int", "class_SharedFunctionInfo__end_position__SMI")
		c.ParameterCount = s.c("class_SharedFunctionInfo__internal_formal_parameter_count__int",
			"class_SharedFunctionInfo__internal_formal_parameter_count__SMI",
			"class_SharedFunctionInfo__formal_parameter_count__SMI")
		c.ScopeInfo = s.c("class_SharedFunctionInfo__scope_info__ScopeInfo")
		c.StartPositionMask = s.c("sharedfunctioninfo_start_position_mask")
		c.StartPositionShift = s.c("sharedfunctioninfo_start_position_shift")
		if !c.StartPositionShift.Ok() {
			c.StartPositionShift = Derived("start_position_shift(default)", 2)
			c.StartPositionMask = Derived("start_position_mask(default)", ^int64((1<<2)-1))
		}
		if !s.c("class_SharedFunctionInfo__compiler_hints__int").Ok() && !c.NameOrScopeInfo.Ok() {
			c.EndPositionShift = 1
		}
	})
}

// Code holds code object layout.
type Code struct{ InstructionStart, InstructionSize Constant }

func (s *Schema) Code() *Code {
	return s.code.get(func(c *Code) {
		c.InstructionStart = s.c("class_Code__instruction_start__uintptr_t")
		c.InstructionSize = s.c("class_Code__instruction_size__int")
	})
}

// ScopeInfo holds scope info slot indices.
type ScopeInfo struct {
	ParameterCount, StackLocalCount, ContextLocalCount, VariablePartIndex Constant
}

func (s *Schema) ScopeInfo() *ScopeInfo {
	return s.scopeInfo.get(func(c *ScopeInfo) {
		c.ParameterCount = s.c("scopeinfo_idx_nparams")
		c.StackLocalCount = s.c("scopeinfo_idx_nstacklocals")
		c.ContextLocalCount = s.c("scopeinfo_idx_ncontextlocals")
		c.VariablePartIndex = s.c("scopeinfo_idx_first_vars")
	})
}

// Context holds context slot indices.
type Context struct {
	ClosureIndex, PreviousIndex, NativeIndex, EmbedderDataIndex, MinContextSlots Constant
}

func (s *Schema) Context() *Context {
	return s.context.get(func(c *Context) {
		c.ClosureIndex = s.c("class_Context__closure_index__int", "context_idx_closure")
		c.PreviousIndex = s.c("class_Context__previous_index__int", "context_idx_prev")
		c.NativeIndex = s.c("class_Context__native_index__int", "context_idx_native",
			"class_Context__native_context_index__int")
		c.EmbedderDataIndex = s.cd(5, "context_idx_embedder_data")
		c.MinContextSlots = s.c("class_Context__min_context_slots__int", "context_min_slots")
	})
}

// Script holds script layout.
type Script struct{ Name, LineOffset, Source, LineEnds Constant }

func (s *Schema) Script() *Script {
	return s.script.get(func(c *Script) {
		c.Name = s.c("class_Script__name__Object")
		c.LineOffset = s.c("class_Script__line_offset__SMI")
		c.Source = s.c("class_Script__source__Object")
		c.LineEnds = s.c("class_Script__line_ends__Object")
	})
}

// String holds string representation tags and string layouts.
type String struct {
	EncodingMask, RepresentationMask Constant
	OneByteTag, TwoByteTag           Constant
	SeqTag, ConsTag, SlicedTag       Constant
	ExternalTag, ThinTag             Constant
	Length                           Constant

	OneByteChars, TwoByteChars Constant
	ConsFirst, ConsSecond      Constant
	SlicedParent, SlicedOffset Constant
	ThinActual                 Constant
}

// LengthIsSmi reports whether String::length is a tagged small integer.
func (c *String) LengthIsSmi() bool { return c.Length.Is("class_String__length__SMI") }

func (s *Schema) Strings() *String {
	return s.str.get(func(c *String) {
		c.EncodingMask = s.c("StringEncodingMask")
		c.RepresentationMask = s.c("StringRepresentationMask")
		c.OneByteTag = s.c("OneByteStringTag", "AsciiStringTag")
		c.TwoByteTag = s.c("TwoByteStringTag")
		c.SeqTag = s.c("SeqStringTag")
		c.ConsTag = s.c("ConsStringTag")
		c.SlicedTag = s.c("SlicedStringTag")
		c.ExternalTag = s.c("ExternalStringTag")
		c.ThinTag = s.c("ThinStringTag")
		c.Length = s.c("class_String__length__SMI", "class_String__length__int32_t")

		c.OneByteChars = s.c("class_SeqOneByteString__chars__char", "class_SeqAsciiString__chars__char")
		c.TwoByteChars = s.c("class_SeqTwoByteString__chars__char", "class_SeqTwoByteString__chars__uc16")
		c.ConsFirst = s.c("class_ConsString__first__String")
		c.ConsSecond = s.c("class_ConsString__second__String")
		c.SlicedParent = s.c("class_SlicedString__parent__String")
		c.SlicedOffset = s.c("class_SlicedString__offset__SMI")
		c.ThinActual = s.c("class_ThinString__actual__String")
	})
}

// FixedArray holds FixedArrayBase and FixedArray layout.
type FixedArray struct{ Length, Data Constant }

func (s *Schema) FixedArray() *FixedArray {
	return s.fixedArray.get(func(c *FixedArray) {
		c.Length = s.c("class_FixedArrayBase__length__SMI")
		c.Data = s.c("class_FixedArray__data__uintptr_t")
	})
}

// FixedTypedArrayBase holds the legacy typed array elements layout.
type FixedTypedArrayBase struct{ BasePointer, ExternalPointer Constant }

func (s *Schema) FixedTypedArrayBase() *FixedTypedArrayBase {
	return s.typedBase.get(func(c *FixedTypedArrayBase) {
		c.BasePointer = s.c("class_FixedTypedArrayBase__base_pointer__Object")
		c.ExternalPointer = s.c("class_FixedTypedArrayBase__external_pointer__Object")
	})
}

// Oddball holds oddball layout and kind values.
type Oddball struct {
	Kind                              Constant
	Exception, False, True, Undefined Constant
	TheHole, Null, Uninitialized      Constant
}

func (s *Schema) Oddball() *Oddball {
	return s.oddball.get(func(c *Oddball) {
		c.Kind = s.c("class_Oddball__kind_offset__int")
		c.Exception = s.c("OddballException")
		c.False = s.c("OddballFalse")
		c.True = s.c("OddballTrue")
		c.Undefined = s.c("OddballUndefined")
		c.TheHole = s.c("OddballTheHole")
		c.Null = s.c("OddballNull")
		c.Uninitialized = s.c("OddballUninitialized")
	})
}

// JSArrayBuffer holds array buffer layout.
type JSArrayBuffer struct {
	BackingStore, ByteLength, BitField Constant
	WasNeuteredMask, WasNeuteredShift  Constant
}

// ByteLengthIsSmi reports whether byte_length is a tagged value rather than a raw size_t.
func (c *JSArrayBuffer) ByteLengthIsSmi() bool {
	return c.ByteLength.Is("class_JSArrayBuffer__byte_length__Object")
}

func (s *Schema) JSArrayBuffer() *JSArrayBuffer {
	return s.arrayBuffer.get(func(c *JSArrayBuffer) {
		ptr := s.Common().PointerSize
		c.BackingStore = s.c("class_JSArrayBuffer__backing_store__Object", "class_JSArrayBuffer__backing_store__uintptr_t")
		c.ByteLength = s.c("class_JSArrayBuffer__byte_length__Object", "class_JSArrayBuffer__byte_length__size_t")
		if !c.BackingStore.Ok() && c.ByteLength.Ok() {
			c.BackingStore = Derived("byte_length+pointer", c.ByteLength.Value+ptr)
		}
		if c.BackingStore.Ok() {
			off := c.BackingStore.Value + ptr
			if ptr == 8 {
				off += 4
			}
			c.BitField = Derived("backing_store+pointer", off)
		} else {
			c.BitField = Constant{Name: "bit_field", Value: -1, State: Absent}
		}
		c.WasNeuteredMask = s.c("jsarray_buffer_was_neutered_mask")
		c.WasNeuteredShift = s.c("jsarray_buffer_was_neutered_shift")
		if !c.WasNeuteredMask.Ok() {
			c.WasNeuteredMask = Derived("was_neutered_mask(default)", 1<<3)
			c.WasNeuteredShift = Derived("was_neutered_shift(default)", 3)
		}
	})
}

// JSArrayBufferView holds view layout.
type JSArrayBufferView struct{ Buffer, ByteOffset, ByteLength Constant }

// RawSizes reports whether offset and length are raw size_t fields.
func (c *JSArrayBufferView) RawSizes() bool {
	return c.ByteOffset.Is("class_JSArrayBufferView__byte_offset__size_t")
}

func (s *Schema) JSArrayBufferView() *JSArrayBufferView {
	return s.bufferView.get(func(c *JSArrayBufferView) {
		c.Buffer = s.c("class_JSArrayBufferView__buffer__Object")
		c.ByteOffset = s.c("class_JSArrayBufferView__raw_byte_offset__Object", "class_JSArrayBufferView__byte_offset__size_t")
		c.ByteLength = s.c("class_JSArrayBufferView__raw_byte_length__Object", "class_JSArrayBufferView__byte_length__size_t")
	})
}

// JSTypedArray holds the on-object base/external pointer pair used by newer layouts.
type JSTypedArray struct{ BasePointer, ExternalPointer Constant }

func (s *Schema) JSTypedArray() *JSTypedArray {
	return s.typedArray.get(func(c *JSTypedArray) {
		c.BasePointer = s.c("class_JSTypedArray__base_pointer__Object")
		c.ExternalPointer = s.c("class_JSTypedArray__external_pointer__uintptr_t")
	})
}

// Frame holds frame-pointer relative offsets and frame type markers.
type Frame struct {
	ContextOffset, FunctionOffset, ArgsOffset, MarkerOffset Constant

	AdaptorFrame, EntryFrame, EntryConstructFrame, ExitFrame Constant
	InternalFrame, ConstructFrame, JSFrame, OptimizedFrame   Constant
	StubFrame                                                Constant
}

func (s *Schema) Frame() *Frame {
	return s.frame.get(func(c *Frame) {
		c.ContextOffset = s.c("off_fp_context")
		c.FunctionOffset = s.c("off_fp_function")
		c.ArgsOffset = s.c("off_fp_args")
		c.MarkerOffset = s.c("off_fp_marker", "off_fp_context")

		c.AdaptorFrame = s.c("frametype_ArgumentsAdaptorFrame")
		c.EntryFrame = s.c("frametype_EntryFrame")
		c.EntryConstructFrame = s.c("frametype_ConstructEntryFrame", "frametype_EntryConstructFrame")
		c.ExitFrame = s.c("frametype_ExitFrame")
		c.InternalFrame = s.c("frametype_InternalFrame")
		c.ConstructFrame = s.c("frametype_ConstructFrame")
		c.JSFrame = s.c("frametype_JavaScriptFrame")
		c.OptimizedFrame = s.c("frametype_OptimizedFrame")
		c.StubFrame = s.c("frametype_StubFrame")
	})
}

// Types holds instance type ids.
type Types struct {
	FirstNonstring     Constant
	FirstJSObject      Constant
	HeapNumber         Constant
	Map                Constant
	GlobalObject       Constant
	GlobalProxy        Constant
	Oddball            Constant
	JSObject           Constant
	JSAPIObject        Constant
	JSSpecialAPIObject Constant
	JSArray            Constant
	Code               Constant
	JSFunction         Constant
	FixedArray         Constant
	JSArrayBuffer      Constant
	JSTypedArray       Constant
	JSRegExp           Constant
	JSDate             Constant
	SharedFunctionInfo Constant
	Script             Constant
}

func (s *Schema) Types() *Types {
	return s.types.get(func(c *Types) {
		c.FirstNonstring = s.c("FirstNonstringType")
		c.FirstJSObject = s.c("type_JSGlobalObject__JS_GLOBAL_OBJECT_TYPE")
		c.HeapNumber = s.c("type_HeapNumber__HEAP_NUMBER_TYPE")
		c.Map = s.c("type_Map__MAP_TYPE")
		c.GlobalObject = s.c("type_JSGlobalObject__JS_GLOBAL_OBJECT_TYPE")
		c.GlobalProxy = s.c("type_JSGlobalProxy__JS_GLOBAL_PROXY_TYPE")
		c.Oddball = s.c("type_Oddball__ODDBALL_TYPE")
		c.JSObject = s.c("type_JSObject__JS_OBJECT_TYPE")
		c.JSAPIObject = s.c("APIObjectType")
		c.JSSpecialAPIObject = s.c("SpecialAPIObjectType", "APISpecialObjectType")
		c.JSArray = s.c("type_JSArray__JS_ARRAY_TYPE")
		c.Code = s.c("type_Code__CODE_TYPE")
		c.JSFunction = s.c("type_JSFunction__JS_FUNCTION_TYPE")
		c.FixedArray = s.c("type_FixedArray__FIXED_ARRAY_TYPE")
		c.JSArrayBuffer = s.c("type_JSArrayBuffer__JS_ARRAY_BUFFER_TYPE")
		c.JSTypedArray = s.c("type_JSTypedArray__JS_TYPED_ARRAY_TYPE")
		c.JSRegExp = s.c("type_JSRegExp__JS_REGEXP_TYPE")
		c.JSDate = s.c("type_JSDate__JS_DATE_TYPE")
		c.SharedFunctionInfo = s.c("type_SharedFunctionInfo__SHARED_FUNCTION_INFO_TYPE")
		c.Script = s.c("type_Script__SCRIPT_TYPE")

		if !c.JSAPIObject.Ok() && c.JSObject.Ok() && s.Common().AtLeast(5, 2, 12) {
			c.JSAPIObject = Derived("JS_OBJECT_TYPE-1", c.JSObject.Value-1)
		}
	})
}

// IsObjectType reports whether t is an ordinary JS object type, including API objects.
func (c *Types) IsObjectType(t int64) bool {
	return (c.JSObject.Ok() && t == c.JSObject.Value) ||
		(c.JSAPIObject.Ok() && t == c.JSAPIObject.Value) ||
		(c.JSSpecialAPIObject.Ok() && t == c.JSSpecialAPIObject.Value)
}
