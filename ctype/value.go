package ctype

import (
	"fmt"
	"strconv"
	"unsafe"
)

// Value is a runtime value in the subset language. Values are tagged
// with their resolved Type; implicit conversions happen at operator
// and call boundaries, not inside the value itself.
type Value interface {
	Type() *Type
	String() string // terse textual form, no type annotation
	Truthy() bool
	Equal(other Value) bool
}

// VoidValue is the absence of a value (void function return, bare
// declaration). It formats as the empty string.
type VoidValue struct{}

func (VoidValue) Type() *Type        { return Void }
func (VoidValue) String() string     { return "" }
func (VoidValue) Truthy() bool       { return false }
func (VoidValue) Equal(o Value) bool { _, ok := o.(VoidValue); return ok }

// IntValue carries the integer family: int and long.
type IntValue struct {
	Val int64
	T   *Type
}

func (v IntValue) Type() *Type {
	if v.T != nil {
		return v.T
	}
	return Int
}

func (v IntValue) String() string { return strconv.FormatInt(v.Val, 10) }
func (v IntValue) Truthy() bool   { return v.Val != 0 }

func (v IntValue) Equal(o Value) bool {
	if i, ok := AsInt(o); ok {
		return v.Val == i
	}
	return false
}

// NewInt creates an int value.
func NewInt(val int64) IntValue { return IntValue{Val: val, T: Int} }

// NewLong creates a long value.
func NewLong(val int64) IntValue { return IntValue{Val: val, T: Long} }

// FloatValue carries float and double.
type FloatValue struct {
	Val float64
	T   *Type
}

func (v FloatValue) Type() *Type {
	if v.T != nil {
		return v.T
	}
	return Double
}

// String formats with 6 significant digits and trailing zeros removed,
// matching C's default %g: "46", "3.5", and "5.29" for the product
// 2.3*2.3 that binary floats cannot represent exactly.
func (v FloatValue) String() string { return strconv.FormatFloat(v.Val, 'g', 6, 64) }
func (v FloatValue) Truthy() bool   { return v.Val != 0 }

func (v FloatValue) Equal(o Value) bool {
	if f, ok := AsFloat(o); ok {
		return v.Val == f
	}
	return false
}

// NewDouble creates a double value.
func NewDouble(val float64) FloatValue { return FloatValue{Val: val, T: Double} }

// NewFloat creates a float value.
func NewFloat(val float64) FloatValue { return FloatValue{Val: val, T: Float} }

// BoolValue is a bool.
type BoolValue struct {
	Val bool
}

func (v BoolValue) Type() *Type { return Bool }

func (v BoolValue) String() string {
	if v.Val {
		return "true"
	}
	return "false"
}

func (v BoolValue) Truthy() bool { return v.Val }

func (v BoolValue) Equal(o Value) bool {
	if i, ok := AsInt(o); ok {
		want := int64(0)
		if v.Val {
			want = 1
		}
		return want == i
	}
	return false
}

// NewBool creates a bool value.
func NewBool(val bool) BoolValue { return BoolValue{Val: val} }

// CharValue is a char, kept separate from IntValue so display and
// conversions can honor character semantics.
type CharValue struct {
	Val byte
}

func (v CharValue) Type() *Type    { return Char }
func (v CharValue) String() string { return string(rune(v.Val)) }
func (v CharValue) Truthy() bool   { return v.Val != 0 }

func (v CharValue) Equal(o Value) bool {
	if i, ok := AsInt(o); ok {
		return int64(v.Val) == i
	}
	return false
}

// NewChar creates a char value.
func NewChar(val byte) CharValue { return CharValue{Val: val} }

// StrValue is a value string with char* semantics. Scripted string
// data lives in Go memory; crossing the native ABI copies it to C
// storage at the call boundary.
type StrValue struct {
	Val string
}

func (v StrValue) Type() *Type    { return CharPtr }
func (v StrValue) String() string { return v.Val }
func (v StrValue) Truthy() bool   { return len(v.Val) > 0 }

func (v StrValue) Equal(o Value) bool {
	s, ok := o.(StrValue)
	return ok && v.Val == s.Val
}

// NewStr creates a string value.
func NewStr(val string) StrValue { return StrValue{Val: val} }

// PtrValue is a raw native pointer: the result of taking the address
// of a host-aliased variable, or a pointer returned by native code.
// The engine never owns or validates the memory behind it.
type PtrValue struct {
	Addr unsafe.Pointer
	T    *Type // pointer type, e.g. double*
}

func (v PtrValue) Type() *Type {
	if v.T != nil {
		return v.T
	}
	return PointerTo(Void)
}

func (v PtrValue) String() string { return fmt.Sprintf("0x%x", uintptr(v.Addr)) }
func (v PtrValue) Truthy() bool   { return v.Addr != nil }

func (v PtrValue) Equal(o Value) bool {
	p, ok := o.(PtrValue)
	return ok && v.Addr == p.Addr
}

// Object is a class instance. Go-heap allocated; reference semantics
// inside the VM, which matches how the engine passes `this`.
type Object struct {
	Class  *Class
	Fields []Value
}

// ObjectValue wraps an Object as a Value.
type ObjectValue struct {
	Obj *Object
}

func (v ObjectValue) Type() *Type { return v.Obj.Class.TypeOf() }

func (v ObjectValue) String() string {
	return fmt.Sprintf("{%s}", v.Obj.Class.Name)
}

func (v ObjectValue) Truthy() bool { return v.Obj != nil }

func (v ObjectValue) Equal(o Value) bool {
	w, ok := o.(ObjectValue)
	return ok && v.Obj == w.Obj
}

// AsInt extracts an integer from any integral value.
func AsInt(v Value) (int64, bool) {
	switch x := v.(type) {
	case IntValue:
		return x.Val, true
	case CharValue:
		return int64(x.Val), true
	case BoolValue:
		if x.Val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// AsFloat extracts a float64 from any numeric value.
func AsFloat(v Value) (float64, bool) {
	if f, ok := v.(FloatValue); ok {
		return f.Val, true
	}
	if i, ok := AsInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Zero returns the zero value of a type: 0, 0.0, false, '\0', "" or a
// nil pointer. Class types get a fresh instance with zeroed fields
// (the constructor, if any, is the compiler's concern).
func Zero(t *Type) Value {
	switch t.Kind {
	case KindVoid:
		return VoidValue{}
	case KindBool:
		return BoolValue{}
	case KindChar:
		return CharValue{}
	case KindInt, KindLong:
		return IntValue{T: t}
	case KindFloat, KindDouble:
		return FloatValue{T: t}
	case KindPtr:
		if t.IsString() {
			return StrValue{}
		}
		return PtrValue{T: t}
	case KindClass:
		obj := &Object{Class: t.Class, Fields: make([]Value, len(t.Class.Fields))}
		for i, f := range t.Class.Fields {
			obj.Fields[i] = Zero(f.Type)
		}
		return ObjectValue{Obj: obj}
	default:
		return VoidValue{}
	}
}

// Verbose formats a value the interactive way: "(type) value".
// Void values format as the empty string in both modes.
func Verbose(v Value) string {
	if _, ok := v.(VoidValue); ok {
		return ""
	}
	return fmt.Sprintf("(%s) %s", v.Type(), v.String())
}

// Convert coerces v to type t following the subset language's implicit
// conversion rules. Returns false when no conversion exists.
func Convert(v Value, t *Type) (Value, bool) {
	if v.Type().Same(t) {
		return retag(v, t), true
	}
	switch t.Kind {
	case KindBool:
		if _, ok := AsFloat(v); ok || v.Type().Kind == KindPtr {
			return NewBool(v.Truthy()), true
		}
	case KindChar:
		if i, ok := AsInt(v); ok {
			return NewChar(byte(i)), true
		}
	case KindInt, KindLong:
		if i, ok := AsInt(v); ok {
			return IntValue{Val: i, T: t}, true
		}
		if f, ok := AsFloat(v); ok {
			return IntValue{Val: int64(f), T: t}, true
		}
	case KindFloat, KindDouble:
		if f, ok := AsFloat(v); ok {
			return FloatValue{Val: f, T: t}, true
		}
	case KindPtr:
		if t.IsString() {
			if s, ok := v.(StrValue); ok {
				return s, true
			}
		}
		if p, ok := v.(PtrValue); ok {
			return PtrValue{Addr: p.Addr, T: t}, true
		}
		if s, ok := v.(StrValue); ok && t.IsString() {
			return s, true
		}
	case KindClass:
		if o, ok := v.(ObjectValue); ok && o.Obj.Class == t.Class {
			return o, true
		}
	}
	return nil, false
}

// retag rewrites the type tag on a value whose representation already
// matches (int -> long, double -> float and the like).
func retag(v Value, t *Type) Value {
	switch x := v.(type) {
	case IntValue:
		if t.Kind == KindInt || t.Kind == KindLong {
			return IntValue{Val: x.Val, T: t}
		}
	case FloatValue:
		if t.Kind == KindFloat || t.Kind == KindDouble {
			return FloatValue{Val: x.Val, T: t}
		}
	case PtrValue:
		if t.Kind == KindPtr {
			return PtrValue{Addr: x.Addr, T: t}
		}
	}
	return v
}
