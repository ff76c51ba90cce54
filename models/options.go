package models

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Options maps recognized option names to validated values. Raw options arrive
// as decoded JSON, so numbers are float64 until a handler normalizes them.
type Options map[string]any

// Clone returns a shallow copy; option values are scalars.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Has reports whether key was supplied.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Float reads key as a number, accepting JSON numbers and numeric strings.
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("option %q: %q is not a number", key, n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("option %q: unexpected type %T", key, v)
}

// Int reads key as a whole number.
func (o Options) Int(key string, def int) (int, error) {
	f, err := o.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("option %q: %v is not a whole number", key, f)
	}
	return int(f), nil
}

// String reads key as a string.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: expected string, got %T", key, v)
	}
	return strings.TrimSpace(s), nil
}

// Bool reads key as a boolean, accepting "true"/"false" strings.
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("option %q: %q is not a boolean", key, b)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("option %q: expected boolean, got %T", key, v)
}

// Unknown returns the keys of o that are not in allowed.
func (o Options) Unknown(allowed ...string) []string {
	var unknown []string
	for k := range o {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// ExtensionOf returns the lower-case extension of name without the dot.
func ExtensionOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}
