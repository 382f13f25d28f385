package core

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind is the type tag of a Value.
//
// KindAny never appears on a Value; it is only meaningful in schemas
// (ParamSpec, SlotSpec) where it means "accept any kind".
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
)

var kindNames = [...]string{
	KindAny:    "any",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindList:   "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindAny, Errorf(ErrInvalidParameterType, "unknown kind %q", s)
}

// Accepts reports whether a value of kind got satisfies a schema kind k.
func (k Kind) Accepts(got Kind) bool {
	return k == KindAny || k == got
}

// Value is an immutable parameter or output value.
//
// The zero Value is invalid. Lists hold primitives only.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a float Value. f should be finite: ValueOf, List and
// Definition.CheckOutputs reject NaN and Inf.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list Value. Elements must be valid primitives.
func List(elems ...Value) (Value, error) {
	out := make([]Value, len(elems))
	for i, e := range elems {
		if !e.IsValid() {
			return Value{}, Errorf(ErrInvalidParameterType, "list element %d is invalid", i)
		}
		if e.kind == KindList {
			return Value{}, Errorf(ErrInvalidParameterType, "list element %d: nested lists are not supported", i)
		}
		if !e.finite() {
			return Value{}, Errorf(ErrInvalidParameterType, "list element %d: non-finite float %v", i, e.f)
		}
		out[i] = e
	}
	return Value{kind: KindList, list: out}, nil
}

// MustList is like List but panics on error. Intended for literals.
func MustList(elems ...Value) Value {
	v, err := List(elems...)
	if err != nil {
		panic(err)
	}
	return v
}

// ValueOf converts a Go value into a Value.
//
// Accepted: strings, bools, integers (unsigned values must fit int64),
// finite floats, and slices/arrays of those. Named types with such
// underlying kinds are accepted too. Anything else fails with
// ErrInvalidParameterType.
func ValueOf(v any) (Value, error) {
	return valueOf(v, true)
}

func valueOf(v any, allowList bool) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, Errorf(ErrInvalidParameterType, "nil value")
	case Value:
		if !x.IsValid() {
			return Value{}, Errorf(ErrInvalidParameterType, "invalid value")
		}
		if x.kind == KindList && !allowList {
			return Value{}, Errorf(ErrInvalidParameterType, "nested lists are not supported")
		}
		if !x.finite() {
			return Value{}, Errorf(ErrInvalidParameterType, "non-finite float in %s value", x.kind)
		}
		return x, nil
	case []byte:
		return Value{}, Errorf(ErrInvalidParameterType, "[]byte is ambiguous; use a string")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, Errorf(ErrInvalidParameterType, "unsigned value %d overflows int64", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, Errorf(ErrInvalidParameterType, "non-finite float %v", f)
		}
		return Float(f), nil
	case reflect.Slice, reflect.Array:
		if !allowList {
			return Value{}, Errorf(ErrInvalidParameterType, "nested lists are not supported")
		}
		elems := make([]Value, rv.Len())
		for i := range elems {
			e, err := valueOf(rv.Index(i).Interface(), false)
			if err != nil {
				return Value{}, fmt.Errorf("list element %d: %w", i, err)
			}
			elems[i] = e
		}
		return Value{kind: KindList, list: elems}, nil
	}
	return Value{}, Errorf(ErrInvalidParameterType, "unsupported type %T", v)
}

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was built by a constructor.
func (v Value) IsValid() bool { return v.kind != KindAny }

// finite reports whether v holds no NaN or Inf, including in list elements.
func (v Value) finite() bool {
	switch v.kind {
	case KindFloat:
		return !math.IsNaN(v.f) && !math.IsInf(v.f, 0)
	case KindList:
		for _, e := range v.list {
			if !e.finite() {
				return false
			}
		}
	}
	return true
}

func (v Value) Str() (string, bool)    { return v.s, v.kind == KindString }
func (v Value) Int() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Bool() (bool, bool)     { return v.b, v.kind == KindBool }

// List returns a copy of the list elements.
func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	out := make([]Value, len(v.list))
	copy(out, v.list)
	return out, true
}

// Interface converts v back to a plain Go value (string, int64, float64,
// bool or []any).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	}
	return nil
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v.Canonical() == o.Canonical()
}

// Canonical returns the type-tagged encoding used for identities:
//
//	s"text"  i42  f1.5  btrue  l[i1,s"x"]
//
// Strings are Go-quoted so separators inside them cannot be confused with
// structure. Floats use the shortest representation that round-trips.
func (v Value) Canonical() string {
	switch v.kind {
	case KindString:
		return "s" + strconv.Quote(v.s)
	case KindInt:
		return "i" + strconv.FormatInt(v.i, 10)
	case KindFloat:
		return "f" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return "b" + strconv.FormatBool(v.b)
	case KindList:
		var sb strings.Builder
		sb.WriteString("l[")
		for i, e := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(e.Canonical())
		}
		sb.WriteByte(']')
		return sb.String()
	}
	return ""
}

// String renders v for humans. Use Canonical for anything that is compared.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case KindAny:
		return "<invalid>"
	}
	return fmt.Sprint(v.Interface())
}

type valueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes v together with its kind so that decoding is lossless.
func (v Value) MarshalJSON() ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch v.kind {
	case KindString:
		raw, err = json.Marshal(v.s)
	case KindInt:
		raw, err = json.Marshal(v.i)
	case KindFloat:
		raw, err = json.Marshal(v.f)
	case KindBool:
		raw, err = json.Marshal(v.b)
	case KindList:
		raw, err = json.Marshal(v.list)
	default:
		return nil, Errorf(ErrInvalidParameterType, "cannot marshal invalid value")
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(valueJSON{Kind: v.kind.String(), Value: raw})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var enc valueJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return err
	}
	kind, err := ParseKind(enc.Kind)
	if err != nil {
		return err
	}
	var out Value
	switch kind {
	case KindString:
		var s string
		err = json.Unmarshal(enc.Value, &s)
		out = String(s)
	case KindInt:
		var i int64
		err = json.Unmarshal(enc.Value, &i)
		out = Int(i)
	case KindFloat:
		var f float64
		err = json.Unmarshal(enc.Value, &f)
		out = Float(f)
	case KindBool:
		var b bool
		err = json.Unmarshal(enc.Value, &b)
		out = Bool(b)
	case KindList:
		var elems []Value
		if err = json.Unmarshal(enc.Value, &elems); err == nil {
			out, err = List(elems...)
		}
	default:
		return Errorf(ErrInvalidParameterType, "cannot unmarshal kind %q", enc.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s value: %w", kind, err)
	}
	*v = out
	return nil
}
