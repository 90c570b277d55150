package hook

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Definition is the static metadata of a handler: its id and the events it
// responds to, each with a raw priority value. Definitions are immutable
// once they enter a catalog.
type Definition struct {
	ID    string         `json:"id" yaml:"id"`
	Hooks map[string]any `json:"hooks" yaml:"hooks"`
}

// NewDefinition creates a definition owning a copy of hooks
func NewDefinition(id string, hooks map[string]any) Definition {
	return Definition{ID: id, Hooks: copyHooks(hooks)}
}

// Clone returns a copy that shares no state with d
func (d Definition) Clone() Definition {
	return NewDefinition(d.ID, d.Hooks)
}

// Implements reports whether the definition declares the canonical event
func (d Definition) Implements(canonical string) bool {
	_, ok := d.Hooks[canonical]
	return ok
}

// Priority returns the normalized priority declared for the canonical event
func (d Definition) Priority(canonical string) (int, bool) {
	raw, ok := d.Hooks[canonical]
	if !ok {
		return 0, false
	}
	return NormalizePriority(raw), true
}

// Events returns the declared canonical event names in lexical order
func (d Definition) Events() []string {
	events := make([]string, 0, len(d.Hooks))
	for name := range d.Hooks {
		events = append(events, name)
	}
	sort.Strings(events)
	return events
}

// Validate checks the id and every declared event name
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	}
	for name := range d.Hooks {
		if !IsCanonical(name) {
			return fmt.Errorf("%w: handler %s declares non-canonical event %q", ErrInvalidDefinition, d.ID, name)
		}
	}
	return nil
}

// Implementation is a handler resolved for one canonical event, carrying
// the normalized priority it was ordered by
type Implementation struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
}

var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// NormalizePriority converts a declared priority to an int.
// Numbers are truncated toward zero, numeric strings are parsed, and every
// other value (bool, nil, non-numeric text, collections) becomes 0.
func NormalizePriority(v any) int {
	switch p := v.(type) {
	case nil, bool:
		return 0
	case string:
		return parseNumeric(p)
	case []byte:
		return parseNumeric(string(p))
	case fmt.Stringer:
		if isNumberKind(reflect.TypeOf(v).Kind()) {
			return fromReflect(reflect.ValueOf(v))
		}
		return parseNumeric(p.String())
	case float32:
		return clampFloat(float64(p))
	case float64:
		return clampFloat(p)
	case uint, uint64, uintptr:
		return fromReflect(reflect.ValueOf(v))
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		n, err := cast.ToInt64E(p)
		if err != nil {
			return 0
		}
		return clampInt(n)
	}
	return fromReflect(reflect.ValueOf(v))
}

func parseNumeric(s string) int {
	s = strings.TrimSpace(s)
	if !numericPattern.MatchString(s) {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return clampInt(n)
	}
	// the pattern rules out syntax errors; out-of-range input yields ±Inf
	f, _ := strconv.ParseFloat(s, 64)
	return clampFloat(f)
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// fromReflect handles named numeric types such as `type Weight int`
func fromReflect(rv reflect.Value) int {
	if !rv.IsValid() {
		return 0
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return clampInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt
		}
		return clampInt(int64(u))
	case reflect.Float32, reflect.Float64:
		return clampFloat(rv.Float())
	}
	return 0
}

func clampInt(n int64) int {
	if n > math.MaxInt {
		return math.MaxInt
	}
	if n < math.MinInt {
		return math.MinInt
	}
	return int(n)
}

func clampFloat(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func copyHooks(hooks map[string]any) map[string]any {
	out := make(map[string]any, len(hooks))
	for k, v := range hooks {
		out[k] = v
	}
	return out
}
