package hook

import (
	"reflect"
	"strconv"
)

// Aggregate collects the results of a broadcast. Mapping results (any map
// with string keys) are deep-merged into Fields; any other non-nil result
// is appended to Items.
type Aggregate struct {
	Fields map[string]any `json:"fields"`
	Items  []any          `json:"items"`
}

// NewAggregate creates an empty aggregate
func NewAggregate() *Aggregate {
	return &Aggregate{
		Fields: make(map[string]any),
		Items:  []any{},
	}
}

// Fold adds one handler result to the aggregate
func (a *Aggregate) Fold(result any) {
	switch r := result.(type) {
	case nil:
		return
	case map[string]any:
		a.Merge(r)
	case *Aggregate:
		a.Absorb(r)
	default:
		if m, ok := asMapping(result); ok {
			a.Merge(m)
			return
		}
		a.Append(result)
	}
}

// Merge deep-merges a mapping result into Fields
func (a *Aggregate) Merge(m map[string]any) {
	a.Fields = MergeDeep(a.Fields, m)
}

// Append adds a positional entry
func (a *Aggregate) Append(v any) {
	a.Items = append(a.Items, deepCopy(v))
}

// Absorb folds another aggregate in: its fields are merged and its
// positional entries appended after the existing ones
func (a *Aggregate) Absorb(other *Aggregate) {
	if other == nil {
		return
	}
	a.Merge(other.Fields)
	for _, item := range other.Items {
		a.Append(item)
	}
}

// Len returns the number of keyed plus positional entries
func (a *Aggregate) Len() int {
	return len(a.Fields) + len(a.Items)
}

// IsEmpty reports whether nothing was collected
func (a *Aggregate) IsEmpty() bool {
	return a.Len() == 0
}

// Map flattens the aggregate into one mapping. Positional entries are
// stored under the lowest unused decimal keys ("0", "1", ...).
func (a *Aggregate) Map() map[string]any {
	out := make(map[string]any, a.Len())
	for k, v := range a.Fields {
		out[k] = deepCopy(v)
	}

	next := 0
	for _, item := range a.Items {
		key := strconv.Itoa(next)
		for {
			if _, taken := out[key]; !taken {
				break
			}
			next++
			key = strconv.Itoa(next)
		}
		out[key] = deepCopy(item)
		next++
	}
	return out
}

// MergeDeep merges src into dst and returns dst (allocated when nil).
// For a key present on both sides: two mappings merge recursively, two
// sequences concatenate, anything else takes the src value. Typed maps
// with string keys count as mappings and typed slices or arrays as
// sequences; []byte stays a scalar. Generic mappings and sequences taken
// from src are deep-copied, so dst never aliases them.
func MergeDeep(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}

	for key, sv := range src {
		dv, exists := dst[key]
		if !exists {
			dst[key] = deepCopy(sv)
			continue
		}

		if s, ok := asMapping(sv); ok {
			if d, ok := asMapping(dv); ok {
				dst[key] = MergeDeep(d, s)
				continue
			}
		}
		if s, ok := asSequence(sv); ok {
			if d, ok := asSequence(dv); ok {
				merged := make([]any, 0, len(d)+len(s))
				merged = append(merged, d...)
				for _, item := range s {
					merged = append(merged, deepCopy(item))
				}
				dst[key] = merged
				continue
			}
		}

		dst[key] = deepCopy(sv)
	}

	return dst
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = deepCopy(inner)
		}
		return out
	}
	return v
}

// asMapping returns v as a map[string]any when it is any map keyed by
// strings. Typed maps are converted with their values deep-copied.
func asMapping(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = deepCopy(iter.Value().Interface())
	}
	return out, true
}

// asSequence returns v as a []any when it is a slice or array other than
// a byte slice.
func asSequence(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = deepCopy(rv.Index(i).Interface())
	}
	return out, true
}
