// Package transform evaluates the declarative transform expressions a
// manifest may attach to an endpoint. Expressions are restricted to a small
// selector language plus pre-registered named functions; manifests cannot
// inject executable code.
//
// Built-in expressions:
//
//	field:a.b.c   select a nested field by dotted path (maps and arrays)
//	first         first element of an array
//	count         length of an array or map
//	keys          sorted keys of a map
package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Func is a pure transform over a decoded response value.
type Func func(any) (any, error)

// Registry holds named transform functions.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates a registry seeded with the built-in transforms.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.Register("first", first)
	r.Register("count", count)
	r.Register("keys", keys)
	return r
}

// Register adds or replaces a named transform.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Apply evaluates expression against data. The caller treats a returned
// error as non-fatal: the untransformed data is kept and the failure is
// logged, never surfaced as a call failure.
func (r *Registry) Apply(expression string, data any) (any, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return data, nil
	}

	if path, ok := strings.CutPrefix(expression, "field:"); ok {
		return selectPath(data, path)
	}

	r.mu.RLock()
	fn, ok := r.funcs[expression]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transform: unknown expression %q", expression)
	}
	return fn(data)
}

// selectPath walks a dotted path through maps and arrays. Numeric segments
// index arrays.
func selectPath(data any, path string) (any, error) {
	current := data
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, fmt.Errorf("transform: empty path segment in %q", path)
		}
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("transform: field %q not found", seg)
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, fmt.Errorf("transform: array requires numeric index, got %q", seg)
			}
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("transform: index %d out of range (len %d)", idx, len(v))
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("transform: cannot descend into %T at %q", current, seg)
		}
	}
	return current, nil
}

func first(data any) (any, error) {
	arr, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("transform: first expects an array, got %T", data)
	}
	if len(arr) == 0 {
		return nil, fmt.Errorf("transform: first of empty array")
	}
	return arr[0], nil
}

func count(data any) (any, error) {
	switch v := data.(type) {
	case []any:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	case string:
		return len(v), nil
	default:
		return nil, fmt.Errorf("transform: count expects an array, map, or string, got %T", data)
	}
}

func keys(data any) (any, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("transform: keys expects a map, got %T", data)
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
