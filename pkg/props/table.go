package props

import (
	"errors"
	"fmt"
	"math"
)

// Setter applies one property value to a target. value is nil when the
// property was reset.
type Setter[T any] func(target T, value any) error

// Table maps property names to typed setters for one target type.
// Tables are built once per type and shared by every instance.
type Table[T any] struct {
	setters map[string]Setter[T]
}

// NewTable returns a table holding entries.
func NewTable[T any](entries map[string]Setter[T]) *Table[T] {
	t := &Table[T]{setters: make(map[string]Setter[T], len(entries))}
	for k, v := range entries {
		t.setters[k] = v
	}
	return t
}

// Extend returns a new table with the entries of t overlaid by entries.
func (t *Table[T]) Extend(entries map[string]Setter[T]) *Table[T] {
	out := &Table[T]{setters: make(map[string]Setter[T], len(t.setters)+len(entries))}
	for k, v := range t.setters {
		out.setters[k] = v
	}
	for k, v := range entries {
		out.setters[k] = v
	}
	return out
}

// Has reports whether the table has a setter for key.
func (t *Table[T]) Has(key string) bool {
	_, ok := t.setters[key]
	return ok
}

// Apply runs the setter of every known key of m in sorted key order.
// Unknown keys are ignored. Setter failures do not stop the remaining
// keys; they are joined into the returned error.
func (t *Table[T]) Apply(target T, m Map) error {
	var errs []error
	for _, key := range m.Keys() {
		set, ok := t.setters[key]
		if !ok {
			continue
		}
		if err := set(target, m[key]); err != nil {
			errs = append(errs, fmt.Errorf("prop %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Float builds a setter for a numeric property. A reset passes NaN.
func Float[T any](fn func(T, float64)) Setter[T] {
	return func(target T, value any) error {
		if value == nil {
			fn(target, math.NaN())
			return nil
		}
		f, ok := ToFloat(value)
		if !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
		fn(target, f)
		return nil
	}
}

// FloatDefault builds a numeric setter that passes def on reset.
func FloatDefault[T any](def float64, fn func(T, float64)) Setter[T] {
	return func(target T, value any) error {
		if value == nil {
			fn(target, def)
			return nil
		}
		f, ok := ToFloat(value)
		if !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
		fn(target, f)
		return nil
	}
}

// Bool builds a setter for a boolean property with a reset value.
func Bool[T any](def bool, fn func(T, bool)) Setter[T] {
	return func(target T, value any) error {
		if value == nil {
			fn(target, def)
			return nil
		}
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		fn(target, b)
		return nil
	}
}

// String builds a setter for a string property with a reset value.
func String[T any](def string, fn func(T, string)) Setter[T] {
	return func(target T, value any) error {
		if value == nil {
			fn(target, def)
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		fn(target, s)
		return nil
	}
}

// ColorValue builds a setter for a color property. A reset passes Transparent.
func ColorValue[T any](fn func(T, Color)) Setter[T] {
	return func(target T, value any) error {
		if value == nil {
			fn(target, Transparent)
			return nil
		}
		c, err := ParseColor(value)
		if err != nil {
			return err
		}
		fn(target, c)
		return nil
	}
}

// Present builds a setter that only records whether the property is set.
func Present[T any](fn func(T, bool)) Setter[T] {
	return func(target T, value any) error {
		fn(target, value != nil)
		return nil
	}
}
