// Package props holds the property maps that travel with view edits and the
// statically built setter tables that apply them.
package props

import (
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/iancoleman/strcase"
)

// Map is a set of changed properties. A nil value means the property was reset.
type Map map[string]any

// Normalize returns a copy of m with keys converted to lowerCamel form, so
// "background_color" and "background-color" both become "backgroundColor".
func Normalize(m map[string]any) Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		if strings.ContainsAny(k, "_- ") {
			k = strcase.ToLowerCamel(k)
		}
		out[k] = v
	}
	return out
}

// Has reports whether key is present, even with a nil value.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// IsNull reports whether key is absent or explicitly nil.
func (m Map) IsNull(key string) bool {
	return m[key] == nil
}

// Keys returns the property names in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Clone returns a shallow copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Merge copies every entry of other into m, deleting keys reset to nil.
func (m Map) Merge(other Map) {
	for k, v := range other {
		if v == nil {
			delete(m, k)
			continue
		}
		m[k] = v
	}
}

// Bool returns the boolean value for key, or def.
func (m Map) Bool(key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

// Float returns the numeric value for key, or def.
func (m Map) Float(key string, def float64) float64 {
	if f, ok := ToFloat(m[key]); ok {
		return f
	}
	return def
}

// Int returns the numeric value for key truncated to an int, or def.
func (m Map) Int(key string, def int) int {
	if f, ok := ToFloat(m[key]); ok {
		return int(f)
	}
	return def
}

// String returns the string value for key, or def.
func (m Map) String(key string, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

// ToFloat converts the numeric types produced by YAML and JSON decoders.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return math.NaN(), false
}
