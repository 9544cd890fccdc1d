package vdom

import (
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/copystructure"
)

// RemovedProp marks a property that exists in the old node but not in the new one.
type RemovedProp struct{}

// Removed is the value UPDATE patches carry for deleted props.
var Removed = RemovedProp{}

// String implements fmt.Stringer.
func (RemovedProp) String() string { return "<removed>" }

// MarshalJSON encodes the marker as {"$removed":true} so it cannot be confused with null.
func (RemovedProp) MarshalJSON() ([]byte, error) {
	return []byte(`{"$removed":true}`), nil
}

// IsRemoved reports whether v is the removal marker.
func IsRemoved(v any) bool {
	_, ok := v.(RemovedProp)
	return ok
}

// propFilter decides which props take part in diffing.
type propFilter struct {
	ignore     map[string]struct{}
	skipEvents bool
}

func newPropFilter(opts *Options) propFilter {
	f := propFilter{skipEvents: opts.SkipEventHandlers}
	if len(opts.IgnoreProps) > 0 {
		f.ignore = make(map[string]struct{}, len(opts.IgnoreProps))
		for _, name := range opts.IgnoreProps {
			f.ignore[name] = struct{}{}
		}
	}
	return f
}

func (f propFilter) skip(name string) bool {
	if f.skipEvents && isEventHandler(name) {
		return true
	}
	_, ok := f.ignore[name]
	return ok
}

// diffProps returns the props whose values differ between prev and next.
// Added and changed props map to a copy of their new value, deleted props to
// Removed. A nil result means nothing changed.
func diffProps(prev, next Props, f propFilter) (Props, error) {
	var changed Props
	set := func(key string, v any) {
		if changed == nil {
			changed = make(Props)
		}
		changed[key] = v
	}

	// Check for removed/changed props
	for key, prevVal := range prev {
		if f.skip(key) {
			continue
		}
		nextVal, exists := next[key]
		if !exists {
			set(key, Removed)
			continue
		}
		if propsEqual(prevVal, nextVal) {
			continue
		}
		v, err := copyValue(nextVal)
		if err != nil {
			return nil, fmt.Errorf("vdom: copy prop %q: %w", key, err)
		}
		set(key, v)
	}

	// Check for added props
	for key, nextVal := range next {
		if f.skip(key) {
			continue
		}
		if _, exists := prev[key]; exists {
			continue
		}
		v, err := copyValue(nextVal)
		if err != nil {
			return nil, fmt.Errorf("vdom: copy prop %q: %w", key, err)
		}
		set(key, v)
	}

	return changed, nil
}

// propsEqual compares two prop values for equality.
func propsEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && (av == bv || math.IsNaN(av) && math.IsNaN(bv))
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	// Fallback to reflect for complex types
	if reflect.DeepEqual(a, b) {
		return true
	}
	// DeepEqual never equates NaN with NaN or two non-nil funcs.
	return sameValue(reflect.ValueOf(a), reflect.ValueOf(b), 0)
}

// maxCompareDepth bounds sameValue on cyclic values.
const maxCompareDepth = 64

// sameValue is a deep equality where NaN equals NaN and funcs compare by
// code pointer, so a snapshot always reconciles against itself to nothing.
func sameValue(a, b reflect.Value, depth int) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() || depth > maxCompareDepth {
		return false
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		x, y := a.Float(), b.Float()
		return x == y || math.IsNaN(x) && math.IsNaN(y)
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.String:
		return a.String() == b.String()
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Interface, reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return sameValue(a.Elem(), b.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if a.Kind() == reflect.Slice && a.IsNil() != b.IsNil() {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !sameValue(a.Index(i), b.Index(i), depth+1) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !sameValue(iter.Value(), bv, depth+1) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !sameValue(a.Field(i), b.Field(i), depth+1) {
				return false
			}
		}
		return true
	}
	return false
}

// copyValue returns a deep copy of a prop value so patches never alias the
// input snapshots.
func copyValue(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64, RemovedProp:
		return v, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v, nil
	}
	return copystructure.Copy(v)
}

// copyProps deep-copies every prop of p.
func copyProps(p Props) (Props, error) {
	if len(p) == 0 {
		return nil, nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		c, err := copyValue(v)
		if err != nil {
			return nil, fmt.Errorf("vdom: copy prop %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}
