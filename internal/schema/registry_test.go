package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/halvard/munin/internal/apperr"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return r
}

func TestRegisterBuiltins(t *testing.T) {
	r := testRegistry(t)
	types := r.ListTypes()
	want := []string{TypeDoc, TypeKnowledge, TypeLog, TypeProject, TypeTask}
	if len(types) != len(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
	for i, typ := range want {
		if types[i] != typ {
			t.Errorf("types[%d] = %q, want %q", i, types[i], typ)
		}
	}
}

func TestValidate_UnregisteredType(t *testing.T) {
	r := testRegistry(t)
	err := r.Validate("widget", map[string]any{})
	if err == nil {
		t.Fatal("expected error for unregistered type")
	}
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if verr.Fields[0].Path != "type" {
		t.Errorf("error path = %q, want %q", verr.Fields[0].Path, "type")
	}
}

func TestValidate_TaskRequiresTitleAndStatus(t *testing.T) {
	r := testRegistry(t)

	err := r.Validate(TypeTask, map[string]any{"title": "Write report"})
	if err == nil {
		t.Fatal("expected error for task without status")
	}
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, f := range verr.Fields {
		if strings.Contains(f.Path, "status") || strings.Contains(f.Message, "status") {
			found = true
		}
	}
	if !found {
		t.Errorf("no field error mentions status: %+v", verr.Fields)
	}

	err = r.Validate(TypeTask, map[string]any{"title": "Write report", "status": "todo"})
	if err != nil {
		t.Fatalf("valid task metadata rejected: %v", err)
	}
}

func TestValidate_StatusEnum(t *testing.T) {
	r := testRegistry(t)
	err := r.Validate(TypeTask, map[string]any{"title": "x", "status": "paused"})
	if err == nil {
		t.Fatal("expected error for status outside enum")
	}
}

func TestValidate_NilMetadata(t *testing.T) {
	r := testRegistry(t)

	// knowledge has no required properties; nil metadata passes.
	if err := r.Validate(TypeKnowledge, nil); err != nil {
		t.Fatalf("nil metadata for knowledge rejected: %v", err)
	}
	// task requires title and status; nil metadata fails.
	if err := r.Validate(TypeTask, nil); err == nil {
		t.Fatal("expected error for task with nil metadata")
	}
}

func TestValidate_AdditionalPropertiesAllowed(t *testing.T) {
	r := testRegistry(t)
	err := r.Validate(TypeProject, map[string]any{"name": "munin", "anything": 42})
	if err != nil {
		t.Fatalf("extra metadata keys should be allowed: %v", err)
	}
}

func TestRegister_CustomType(t *testing.T) {
	r := testRegistry(t)
	shape := map[string]any{
		"type":     "object",
		"required": []any{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
	}
	if err := r.Register("bookmark", shape); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Validate("bookmark", map[string]any{"url": "https://example.com"}); err != nil {
		t.Fatalf("valid bookmark rejected: %v", err)
	}
	if err := r.Validate("bookmark", map[string]any{}); err == nil {
		t.Fatal("expected error for bookmark without url")
	}
}
