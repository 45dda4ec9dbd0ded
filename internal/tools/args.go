package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Args are decoded function-call arguments.
type Args map[string]any

// normalizeArgs round-trips args through JSON so validation and accessors
// only ever see float64, string, bool, []any and map[string]any.
func normalizeArgs(raw map[string]any) (Args, error) {
	if raw == nil {
		return Args{}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	var out Args
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}

// String returns the trimmed string at key, formatting scalars.
func (a Args) String(key string) string {
	return strings.TrimSpace(a.Raw(key))
}

// Raw returns the string at key without trimming.
func (a Args) Raw(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}

// StringOr returns String(key) or def when it is empty.
func (a Args) StringOr(key, def string) string {
	if s := a.String(key); s != "" {
		return s
	}
	return def
}

// Int returns the number at key, or def when absent or not numeric.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	}
	return def
}

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a Args) Bool(key string) bool {
	switch v := a[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// Strings returns the array at key with every element formatted as a string.
func (a Args) Strings(key string) []string {
	items, _ := a[key].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, Args{"v": item}.Raw("v"))
	}
	return out
}

// Objects returns the array at key, keeping only object elements.
func (a Args) Objects(key string) []Args {
	items, _ := a[key].([]any)
	out := make([]Args, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Args(m))
		}
	}
	return out
}

// Map returns the object at key, or nil.
func (a Args) Map(key string) map[string]any {
	m, _ := a[key].(map[string]any)
	return m
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
