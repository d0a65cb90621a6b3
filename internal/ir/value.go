package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is the content of a tag: a boolean for BOOL tags, a number for
// INT, REAL and TIME tags.
//
// Booleans are stored as 1/0 so that numeric reads of a BOOL tag behave
// the way the editor expects (true reads as 1).
type Value struct {
	num    float64
	isBool bool
}

// Bool creates a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{num: 1, isBool: true}
	}
	return Value{num: 0, isBool: true}
}

// Num creates a numeric value.
func Num(f float64) Value {
	return Value{num: f}
}

// IsBool reports whether v holds a boolean.
func (v Value) IsBool() bool { return v.isBool }

// Truthy returns the boolean reading of v. Numbers are true when non-zero.
func (v Value) Truthy() bool { return v.num != 0 }

// Float returns the numeric reading of v. Booleans read as 1 or 0.
func (v Value) Float() float64 { return v.num }

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	return v.isBool == o.isBool && v.num == o.num
}

// As converts v to the representation used by tags of type t.
// BOOL tags hold booleans; every other type holds numbers.
func (v Value) As(t DataType) Value {
	if t == DataTypeBool {
		return Bool(v.Truthy())
	}
	return Num(v.num)
}

// Zero returns the reset value for a tag of type t.
func Zero(t DataType) Value {
	if t == DataTypeBool {
		return Bool(false)
	}
	return Num(0)
}

// String renders v the way it appears in project files.
func (v Value) String() string {
	if v.isBool {
		return strconv.FormatBool(v.Truthy())
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// MarshalJSON encodes booleans as JSON booleans and numbers as JSON numbers.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.isBool && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return nil, fmt.Errorf("value %v is not representable in JSON", v.num)
	}
	return []byte(v.String()), nil
}

// UnmarshalJSON accepts a JSON boolean, number, numeric string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON/YAML scalar into a Value.
// nil becomes numeric zero; strings must parse as numbers or booleans.
func ValueOf(x any) (Value, error) {
	switch val := x.(type) {
	case nil:
		return Num(0), nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case float64:
		return Num(val), nil
	case float32:
		return Num(float64(val)), nil
	case int:
		return Num(float64(val)), nil
	case int64:
		return Num(float64(val)), nil
	case uint64:
		return Num(float64(val)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Num(f), nil
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return Bool(b), nil
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid tag value %q", val)
		}
		return Num(f), nil
	default:
		return Value{}, fmt.Errorf("unsupported tag value type %T", x)
	}
}

// MustValueOf is like ValueOf but panics on error.
// Use only in tests or with literal inputs.
func MustValueOf(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Round rounds f to the given number of decimal places, half away from zero.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
