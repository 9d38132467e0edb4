package graph

import (
	"fmt"
	"sort"
	"strconv"
)

// ParamKind enumerates the value types a parameter can hold.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamBool
	ParamString
)

func (k ParamKind) String() string {
	switch k {
	case ParamInt:
		return "int"
	case ParamFloat:
		return "float"
	case ParamBool:
		return "bool"
	case ParamString:
		return "string"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// ParamValue is a tagged parameter value. Only the field selected by Kind
// is meaningful.
type ParamValue struct {
	Kind  ParamKind
	Int   int
	Float float32
	Bool  bool
	Str   string
}

// Int returns an integer parameter value.
func Int(v int) ParamValue { return ParamValue{Kind: ParamInt, Int: v} }

// Float returns a float parameter value.
func Float(v float32) ParamValue { return ParamValue{Kind: ParamFloat, Float: v} }

// Bool returns a boolean parameter value.
func Bool(v bool) ParamValue { return ParamValue{Kind: ParamBool, Bool: v} }

// String returns a string parameter value.
func String(v string) ParamValue { return ParamValue{Kind: ParamString, Str: v} }

// Format renders the value for messages.
func (v ParamValue) Format() string {
	switch v.Kind {
	case ParamInt:
		return strconv.Itoa(v.Int)
	case ParamFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case ParamBool:
		return strconv.FormatBool(v.Bool)
	default:
		return strconv.Quote(v.Str)
	}
}

// asFloat converts numeric kinds. ok is false for strings.
func (v ParamValue) asFloat() (float64, bool) {
	switch v.Kind {
	case ParamInt:
		return float64(v.Int), true
	case ParamFloat:
		return float64(v.Float), true
	case ParamBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Params maps parameter names to values. Getters fall back to a default
// when a name is missing or holds an incompatible kind; numeric kinds
// convert between each other.
type Params map[string]ParamValue

// GetInt returns the named parameter as an int.
func (p Params) GetInt(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	if v.Kind == ParamInt {
		return v.Int
	}
	if f, ok := v.asFloat(); ok {
		return int(f)
	}
	return def
}

// GetFloat returns the named parameter as a float32.
func (p Params) GetFloat(name string, def float32) float32 {
	v, ok := p[name]
	if !ok {
		return def
	}
	if f, ok := v.asFloat(); ok {
		return float32(f)
	}
	return def
}

// GetBool returns the named parameter as a bool. Numbers are true when
// non-zero.
func (p Params) GetBool(name string, def bool) bool {
	v, ok := p[name]
	if !ok {
		return def
	}
	if v.Kind == ParamBool {
		return v.Bool
	}
	if f, ok := v.asFloat(); ok {
		return f != 0
	}
	return def
}

// GetString returns the named parameter as a string.
func (p Params) GetString(name string, def string) string {
	v, ok := p[name]
	if !ok || v.Kind != ParamString {
		return def
	}
	return v.Str
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
