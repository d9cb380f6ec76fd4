package recordstore

import (
	"context"
	"errors"
	"testing"

	"github.com/halvard/munin/internal/apperr"
)

func TestRegisterSchema_SelfDescribing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	shape := map[string]any{"type": "object"}
	if err := s.RegisterSchema(ctx, "task", 1, shape); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}

	rec, err := s.GetSchema(ctx, "task", 1)
	if err != nil {
		t.Fatalf("GetSchema: %v", err)
	}
	if rec.Shape["x_node_type"] != "task" {
		t.Errorf("x_node_type = %v", rec.Shape["x_node_type"])
	}
	// JSON numbers decode as float64.
	if rec.Shape["x_schema_version"] != float64(1) {
		t.Errorf("x_schema_version = %v", rec.Shape["x_schema_version"])
	}
}

func TestGetLatestSchema(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.RegisterSchema(ctx, "task", 1, map[string]any{"v": "one"})
	_ = s.RegisterSchema(ctx, "task", 3, map[string]any{"v": "three"})
	_ = s.RegisterSchema(ctx, "task", 2, map[string]any{"v": "two"})

	rec, err := s.GetLatestSchema(ctx, "task")
	if err != nil {
		t.Fatalf("GetLatestSchema: %v", err)
	}
	if rec.SchemaVersion != 3 {
		t.Errorf("latest version = %d, want 3", rec.SchemaVersion)
	}

	v, err := s.LatestSchemaVersion(ctx, "task")
	if err != nil {
		t.Fatalf("LatestSchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("LatestSchemaVersion = %d, want 3", v)
	}
}

func TestGetSchema_NotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetSchema(ctx, "nope", 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetSchema err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetLatestSchema(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetLatestSchema err = %v, want ErrNotFound", err)
	}
}

func TestRegisterSchema_UpsertSameVersion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.RegisterSchema(ctx, "doc", 1, map[string]any{"v": "old"})
	if err := s.RegisterSchema(ctx, "doc", 1, map[string]any{"v": "new"}); err != nil {
		t.Fatalf("re-register same version: %v", err)
	}
	rec, _ := s.GetSchema(ctx, "doc", 1)
	if rec.Shape["v"] != "new" {
		t.Errorf("shape not replaced: %v", rec.Shape)
	}
}

func TestListSchemas(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.RegisterSchema(ctx, "task", 1, map[string]any{})
	_ = s.RegisterSchema(ctx, "task", 2, map[string]any{})
	_ = s.RegisterSchema(ctx, "doc", 1, map[string]any{})

	listings, err := s.ListSchemas(ctx)
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}
}
