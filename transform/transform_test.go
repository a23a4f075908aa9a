package transform

import (
	"reflect"
	"testing"
)

func TestApply_FieldSelector(t *testing.T) {
	data := map[string]any{
		"system": map[string]any{
			"version": "5.4.6",
			"disks":   []any{map[string]any{"free": 120}, map[string]any{"free": 3}},
		},
	}

	r := NewRegistry()

	tests := []struct {
		expr string
		want any
	}{
		{"field:system.version", "5.4.6"},
		{"field:system.disks.0.free", 120},
		{"field:system.disks.1", map[string]any{"free": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := r.Apply(tt.expr, data)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_Builtins(t *testing.T) {
	r := NewRegistry()

	got, err := r.Apply("first", []any{"a", "b"})
	if err != nil || got != "a" {
		t.Errorf("first = %v, %v", got, err)
	}

	got, err = r.Apply("count", []any{1, 2, 3})
	if err != nil || got != 3 {
		t.Errorf("count = %v, %v", got, err)
	}

	got, err = r.Apply("keys", map[string]any{"b": 1, "a": 2})
	if err != nil || !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("keys = %v, %v", got, err)
	}
}

func TestApply_Failures(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		expr string
		data any
	}{
		{"unknown expression", "javascript:alert(1)", nil},
		{"missing field", "field:nope", map[string]any{"a": 1}},
		{"index out of range", "field:2", []any{"a"}},
		{"descend into scalar", "field:a.b", map[string]any{"a": 1}},
		{"first of empty", "first", []any{}},
		{"first of non-array", "first", "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Apply(tt.expr, tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestApply_EmptyExpressionIsIdentity(t *testing.T) {
	r := NewRegistry()
	got, err := r.Apply("", "unchanged")
	if err != nil || got != "unchanged" {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestRegister_CustomTransform(t *testing.T) {
	r := NewRegistry()
	r.Register("upper_version", func(data any) (any, error) {
		m := data.(map[string]any)
		return m["version"], nil
	})

	got, err := r.Apply("upper_version", map[string]any{"version": "1.0"})
	if err != nil || got != "1.0" {
		t.Errorf("got %v, %v", got, err)
	}
}
