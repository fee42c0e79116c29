package vm

import (
	"fmt"
	"strconv"
)

// Kind identifies the variant stored in a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindNumber
	KindString
	KindUserData
	KindTable // placeholder, never constructed by the loader or interpreter
	KindClosure
	KindNativeClosure
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindUserData:
		return "userdata"
	case KindTable:
		return "table"
	case KindClosure:
		return "closure"
	case KindNativeClosure:
		return "native closure"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is the tagged union manipulated by the interpreter. The zero Value
// is Nil. Values are cheap to duplicate: String, UserData, and Closure
// content is shared by reference, never deep-copied.
type Value struct {
	kind   Kind
	num    float64
	str    string // String payload, or NativeClosure name
	data   *UserData
	fn     *Closure
}

// Nil is the nil value.
var Nil = Value{}

// UserData wraps a host-opaque payload. Two UserData values compare equal
// only by never: all UserData pairings are unequal.
type UserData struct {
	Payload interface{}
}

// Closure binds a function prototype to the upvalues captured at
// CLOSURE-execution time. Upvalues are captured by value, not by reference
// to the enclosing frame.
type Closure struct {
	Proto    *FuncProto
	Upvalues []Value
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromNumber creates a Number value.
func FromNumber(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// FromInt creates a Number value from an integer.
func FromInt(n int) Value {
	return Value{kind: KindNumber, num: float64(n)}
}

// FromBool creates a Number value: 1 for true, 0 for false. The scripts
// this engine runs predate booleans; everything is a number or a string.
func FromBool(b bool) Value {
	if b {
		return Value{kind: KindNumber, num: 1}
	}
	return Value{kind: KindNumber, num: 0}
}

// FromString creates a String value.
func FromString(s string) Value {
	return Value{kind: KindString, str: s}
}

// FromUserData creates a UserData value wrapping a host payload.
func FromUserData(payload interface{}) Value {
	return Value{kind: KindUserData, data: &UserData{Payload: payload}}
}

// FromClosure creates a Closure value.
func FromClosure(c *Closure) Value {
	return Value{kind: KindClosure, fn: c}
}

// FromNativeClosure creates a value that resolves to a host-implemented
// function by name when called.
func FromNativeClosure(name string) Value {
	return Value{kind: KindNativeClosure, str: name}
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// Closure returns the closure payload, or nil if v is not a Closure.
func (v Value) Closure() *Closure {
	if v.kind != KindClosure {
		return nil
	}
	return v.fn
}

// NativeName returns the native-function name and true if v is a
// NativeClosure.
func (v Value) NativeName() (string, bool) {
	if v.kind != KindNativeClosure {
		return "", false
	}
	return v.str, true
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// AsNumber converts to float64. Numbers convert directly; Strings are
// parsed as floats. Every other variant fails.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// AsInt converts to int via AsNumber, truncating toward zero.
func (v Value) AsInt() (int, bool) {
	f, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	return int(f), true
}

// AsInt32 converts to int32 via AsNumber, truncating toward zero.
func (v Value) AsInt32() (int32, bool) {
	f, ok := v.AsNumber()
	if !ok {
		return 0, false
	}
	return int32(f), true
}

// AsString converts to a Go string. Strings convert directly; Numbers are
// formatted. Every other variant fails.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64), true
	}
	return "", false
}

// AsUserData returns the host payload stored in a UserData value.
func (v Value) AsUserData() (interface{}, bool) {
	if v.kind != KindUserData {
		return nil, false
	}
	return v.data.Payload, true
}

// UserDataAs recovers the payload of a UserData value by requested type.
// It fails if v is not UserData or the stored payload's type does not
// match.
func UserDataAs[T any](v Value) (T, bool) {
	var zero T
	payload, ok := v.AsUserData()
	if !ok {
		return zero, false
	}
	t, ok := payload.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// ---------------------------------------------------------------------------
// Equality and ordering
// ---------------------------------------------------------------------------

// Equal reports value equality. It is defined only between two Numbers or
// two Strings with matching content; every other pairing (including two
// UserData or two Closures) is unequal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	}
	return false
}

// lessThan reports v < o. Ordering is defined only between two Numbers or
// two Strings; defined is false for every other pairing.
func (v Value) lessThan(o Value) (result, defined bool) {
	if v.kind != o.kind {
		return false, false
	}
	switch v.kind {
	case KindNumber:
		return v.num < o.num, true
	case KindString:
		return v.str < o.str, true
	}
	return false, false
}

// lessEqual reports v <= o under the same definedness rules as lessThan.
func (v Value) lessEqual(o Value) (result, defined bool) {
	if v.kind != o.kind {
		return false, false
	}
	switch v.kind {
	case KindNumber:
		return v.num <= o.num, true
	case KindString:
		return v.str <= o.str, true
	}
	return false, false
}

// String implements fmt.Stringer for debugging and disassembly output.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.str)
	case KindUserData:
		return fmt.Sprintf("userdata(%T)", v.data.Payload)
	case KindTable:
		return "table"
	case KindClosure:
		if v.fn != nil && v.fn.Proto != nil {
			return fmt.Sprintf("closure(%s:%d)", v.fn.Proto.Source, v.fn.Proto.Line)
		}
		return "closure"
	case KindNativeClosure:
		return fmt.Sprintf("native(%s)", v.str)
	}
	return "invalid"
}
