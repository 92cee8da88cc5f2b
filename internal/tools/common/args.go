package common

import (
	"fmt"
	"math"
)

// OptionalString returns a pointer to the string argument key, or nil
// when the argument is absent.
func OptionalString(args map[string]any, key string) (*string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%s must be a string", key)
	}
	return &s, nil
}

// OptionalInt returns a pointer to the integer argument key, or nil when
// the argument is absent. JSON numbers arrive as float64 and must not
// have a fractional part.
func OptionalInt(args map[string]any, key string) (*int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}

	var n int
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		n = int(x)
	case int:
		n = x
	case int64:
		n = int(x)
	default:
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &n, nil
}
