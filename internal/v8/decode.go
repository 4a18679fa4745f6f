package v8

import (
	"fmt"

	"v8heap/internal/constants"
)

// Object is a decoded heap object. The concrete type depends on the
// instance type read from the object's map.
type Object interface {
	Base() HeapObject
}

// Base returns the underlying reference.
func (o HeapObject) Base() HeapObject { return o }

// Other is a heap object of a type without a dedicated decoder.
type Other struct {
	HeapObject
	InstanceType int64
}

func is(c constants.Constant, t int64) bool { return c.Ok() && c.Value == t }

// Decode classifies raw and decodes it by instance type. The object's map
// must be a real map.
func (h *Heap) Decode(raw uint64) (Object, error) {
	o, ok := h.Object(raw).Get()
	if !ok {
		return nil, ErrInvalid
	}
	return o.Decode()
}

// Decode decodes o by its instance type.
func (o HeapObject) Decode() (Object, error) {
	t, ok := o.CheckedType().Get()
	if !ok {
		return nil, ErrInvalid
	}
	types := o.h.c.Types()
	switch {
	case o.h.IsStringType(t):
		return String{HeapObject: o, typ: t}, nil
	case is(types.Map, t):
		return Map{o}, nil
	case is(types.HeapNumber, t):
		return HeapNumber{o}, nil
	case is(types.Oddball, t):
		return Oddball{o}, nil
	case is(types.JSFunction, t):
		return JSFunction{JSObject{o}}, nil
	case is(types.JSArray, t):
		return JSArray{JSObject{o}}, nil
	case is(types.JSArrayBuffer, t):
		return JSArrayBuffer{JSObject{o}}, nil
	case is(types.JSTypedArray, t):
		return JSTypedArray{JSObject{o}}, nil
	case is(types.JSRegExp, t):
		return JSRegExp{JSObject{o}}, nil
	case is(types.JSDate, t):
		return JSDate{JSObject{o}}, nil
	case is(types.FixedArray, t):
		return FixedArray{o}, nil
	case is(types.Code, t):
		return Code{o}, nil
	case is(types.SharedFunctionInfo, t):
		return SharedFunctionInfo{o}, nil
	case is(types.Script, t):
		return Script{o}, nil
	case types.IsObjectType(t), is(types.GlobalObject, t), is(types.GlobalProxy, t):
		return JSObject{o}, nil
	}
	return Other{HeapObject: o, InstanceType: t}, nil
}

// TypeName names an object for histograms and listings. Ordinary objects
// are named after their constructor; everything else gets a parenthesized
// category such as "(Array)" or "(String)".
func (o HeapObject) TypeName() (string, error) {
	m, ok := o.Map().Get()
	if !ok {
		return "", ErrInvalid
	}
	t, ok := m.InstanceType().Get()
	if !ok {
		return "", ErrInvalid
	}
	return m.TypeName(t)
}

// TypeName names instances of m, whose instance type is t.
func (m Map) TypeName(t int64) (string, error) {
	types := m.h.c.Types()
	switch {
	case is(types.GlobalObject, t):
		return "(Global)", nil
	case is(types.GlobalProxy, t):
		return "(Global proxy)", nil
	case is(types.Code, t):
		return "(Code)", nil
	case is(types.Map, t):
		return "(Map)", nil
	case types.IsObjectType(t):
		return m.constructorName(), nil
	case is(types.HeapNumber, t):
		return "(HeapNumber)", nil
	case is(types.JSArray, t):
		return "(Array)", nil
	case is(types.Oddball, t):
		return "(Oddball)", nil
	case is(types.JSFunction, t):
		return "(Function)", nil
	case is(types.JSRegExp, t):
		return "(RegExp)", nil
	case m.h.IsStringType(t):
		return "(String)", nil
	case is(types.FixedArray, t):
		return "(FixedArray)", nil
	case is(types.JSArrayBuffer, t):
		return "(ArrayBuffer)", nil
	case is(types.JSTypedArray, t):
		return "(ArrayBufferView)", nil
	case is(types.JSDate, t):
		return "(Date)", nil
	}
	return fmt.Sprintf("unknown: %d", t), nil
}

func (m Map) constructorName() string {
	ctor, ok := m.Constructor().Get()
	if !ok {
		return "(Object)"
	}
	ft := m.h.c.Types().JSFunction
	if t, ok := ctor.Type().Get(); !ok || !is(ft, t) {
		return "(Object)"
	}
	name, err := (JSFunction{JSObject{ctor}}).Name()
	if err != nil || name == "" {
		return "(Object)"
	}
	return name
}
