package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the UTC timestamp layout sent to the backend.
const DateLayout = "2006-01-02T15:04:05.000Z"

var dateInputLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ArgReader decodes a loosely-typed argument bag. It records every key it is
// asked for and keeps the first decode failure; callers read all fields and
// check Err once.
type ArgReader struct {
	args map[string]any
	seen map[string]struct{}
	err  error
}

// NewArgReader wraps args. A nil map is treated as empty.
func NewArgReader(args map[string]any) *ArgReader {
	if args == nil {
		args = map[string]any{}
	}
	return &ArgReader{args: args, seen: map[string]struct{}{}}
}

// Err returns the first decode failure.
func (r *ArgReader) Err() error {
	return r.err
}

// Seen returns every key read so far in sorted order.
func (r *ArgReader) Seen() []string {
	keys := make([]string, 0, len(r.seen))
	for key := range r.seen {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func (r *ArgReader) fail(field, format string, args ...any) {
	if r.err == nil {
		r.err = invalidf(field, format, args...)
	}
}

// raw returns the value for key. JSON null counts as absent.
func (r *ArgReader) raw(key string) (any, bool) {
	r.seen[key] = struct{}{}
	value, ok := r.args[key]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// Has reports whether key is present and non-null.
func (r *ArgReader) Has(key string) bool {
	_, ok := r.raw(key)
	return ok
}

// String reads a string argument.
func (r *ArgReader) String(key string) *string {
	value, ok := r.raw(key)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case string:
		return &v
	case json.Number:
		s := v.String()
		return &s
	default:
		r.fail(key, "Invalid value for %s: expected a string", key)
		return nil
	}
}

// NonEmptyString reads a string argument and treats "" as absent.
func (r *ArgReader) NonEmptyString(key string) *string {
	value := r.String(key)
	if value == nil || *value == "" {
		return nil
	}
	return value
}

// Identifier reads a lookup key such as an id or slug. Surrounding
// whitespace is dropped and a blank value counts as absent.
func (r *ArgReader) Identifier(key string) *string {
	value := r.String(key)
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Int reads a whole-number argument from a JSON number or a numeric string.
func (r *ArgReader) Int(key string) *int {
	value, ok := r.raw(key)
	if !ok {
		return nil
	}
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			r.fail(key, "Invalid value for %s: expected a number", key)
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			r.fail(key, "Invalid value for %s: expected a number", key)
			return nil
		}
		f = parsed
	default:
		r.fail(key, "Invalid value for %s: expected a number", key)
		return nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		r.fail(key, "Invalid value for %s: expected a whole number", key)
		return nil
	}
	n := int(f)
	return &n
}

// Bool reads a boolean argument; "true" and "false" strings are accepted.
func (r *ArgReader) Bool(key string) *bool {
	value, ok := r.raw(key)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case bool:
		return &v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			r.fail(key, "Invalid value for %s: expected a boolean", key)
			return nil
		}
		return &parsed
	default:
		r.fail(key, "Invalid value for %s: expected a boolean", key)
		return nil
	}
}

// List reads an array argument. A scalar is wrapped into a one-element list.
func (r *ArgReader) List(key string) *[]any {
	value, ok := r.raw(key)
	if !ok {
		return nil
	}
	out := ensureArray(value)
	return &out
}

func ensureArray(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	default:
		return []any{v}
	}
}

// Object reads an object argument.
func (r *ArgReader) Object(key string) map[string]any {
	value, ok := r.raw(key)
	if !ok {
		return nil
	}
	obj, isObj := value.(map[string]any)
	if !isObj {
		r.fail(key, "Invalid value for %s: expected an object", key)
		return nil
	}
	return obj
}

// Date reads a timestamp and re-emits it as a UTC DateLayout string.
func (r *ArgReader) Date(key string) *string {
	value := r.NonEmptyString(key)
	if value == nil {
		return nil
	}
	parsed, err := parseDate(*value)
	if err != nil {
		r.fail(key, "Invalid date format: %s", *value)
		return nil
	}
	out := parsed.UTC().Format(DateLayout)
	return &out
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateInputLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// CSV reads a comma list given either as a string or as an array of strings.
func (r *ArgReader) CSV(key string) string {
	value, ok := r.raw(key)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		parts := make([]string, 0)
		for _, item := range ensureArray(v) {
			s, isStr := item.(string)
			if !isStr {
				r.fail(key, "Invalid value for %s: expected a string or list of strings", key)
				return ""
			}
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
}

// Filter reads a backend filter expression, trimmed with whitespace runs
// collapsed to single spaces.
func (r *ArgReader) Filter(key string) *string {
	value := r.String(key)
	if value == nil {
		return nil
	}
	sanitized := sanitizeFilter(*value)
	return &sanitized
}

func sanitizeFilter(filter string) string {
	return strings.Join(strings.Fields(filter), " ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
