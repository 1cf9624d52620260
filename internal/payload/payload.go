// Package payload provides safe accessors over generic JSON trees.
//
// Webhook bodies arrive as map[string]any with no schema guarantees. These
// helpers walk a dotted path through nested maps and report absence through
// a boolean instead of panicking or propagating nils.
package payload

import (
	"math"
	"strconv"
	"strings"
)

// Get traverses nested maps along path and returns the value found.
// Any missing key or non-map intermediate yields (nil, false).
func Get(root map[string]any, path ...string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Map returns the map at path, or (nil, false) if absent or not a map.
func Map(root map[string]any, path ...string) (map[string]any, bool) {
	v, ok := Get(root, path...)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Slice returns the slice at path, or (nil, false) if absent or not a slice.
func Slice(root map[string]any, path ...string) ([]any, bool) {
	v, ok := Get(root, path...)
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// Text returns the scalar at path rendered as a trimmed string. JSON numbers
// are formatted without a fractional part when integral, so an id sent as
// 42 or "42" reads the same. Empty strings count as absent.
func Text(root map[string]any, path ...string) (string, bool) {
	v, ok := Get(root, path...)
	if !ok {
		return "", false
	}
	s := Stringify(v)
	if s == "" {
		return "", false
	}
	return s, true
}

// Bool returns the boolean at path, or (false, false) if absent or not a bool.
func Bool(root map[string]any, path ...string) (bool, bool) {
	v, ok := Get(root, path...)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Int returns the integer at path. JSON numbers decode as float64; values
// with a fractional part are rejected.
func Int(root map[string]any, path ...string) (int, bool) {
	v, ok := Get(root, path...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Stringify renders a scalar value as a trimmed string. Non-scalar values
// and nil render as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
