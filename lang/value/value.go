// Package value defines the tagged value representation manipulated by the
// compiler and the virtual machine, and the heap objects those values may
// reference.
package value

import "fmt"

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is a tagged union holding one of Nil, Bool, Number or Obj, matching
// clox's NAN-boxed-or-tagged-union Value exactly in semantics (though not in
// memory layout: Go gives us a plain tagged struct instead of a packed
// union).
type Value struct {
	kind Kind
	b    bool
	n    float64
	obj  Obj
}

// Nil is the singular nil value.
var Nil = Value{kind: KindNil}

// Bool returns a Value wrapping a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a Value wrapping an IEEE-754 double.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// FromObj returns a Value wrapping a reference to a heap object.
func FromObj(o Obj) Value { return Value{kind: KindObj, obj: o} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsNumber() bool { return v.kind == KindNumber }
func (v Value) IsObj() bool    { return v.kind == KindObj }

// AsBool returns the boolean payload; the caller must have checked IsBool.
func (v Value) AsBool() bool { return v.b }

// AsNumber returns the number payload; the caller must have checked IsNumber.
func (v Value) AsNumber() float64 { return v.n }

// AsObj returns the object reference payload; the caller must have checked
// IsObj.
func (v Value) AsObj() Obj { return v.obj }

// IsString reports whether v holds a String object.
func (v Value) IsString() bool { return v.kind == KindObj && v.obj.Kind() == ObjKindString }

// AsString returns the string payload; the caller must have checked
// IsString.
func (v Value) AsString() *ObjString { return v.obj.(*ObjString) }

// IsFalsey implements Lox truthiness: nil and false are falsey, everything
// else (including 0 and the empty string) is truthy.
func (v Value) IsFalsey() bool {
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return !v.b
	default:
		return false
	}
}

// Equal implements Lox's `==` semantics: nil equals nil, bools and numbers
// compare by value, objects compare by reference identity -- which for
// strings is equivalent to value equality because strings are interned.
// Mixed-type operands are never equal.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// String returns the printed form of v, as specified for Lox's `print`
// statement: numbers print as their shortest decimal, bools as true/false,
// nil as "nil", strings as their bytes, and callables by their own String
// method.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindObj:
		return v.obj.String()
	default:
		return fmt.Sprintf("<invalid value kind %d>", v.kind)
	}
}

// TypeName returns a short string describing v's runtime type, used in
// runtime error messages.
func (v Value) TypeName() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		return v.obj.TypeName()
	default:
		return "invalid"
	}
}

// ObjEqual reports whether a and b are both Obj-kind values referencing the
// identical heap object.
func ObjEqual(a, b Value) bool {
	return a.kind == KindObj && b.kind == KindObj && a.obj == b.obj
}
