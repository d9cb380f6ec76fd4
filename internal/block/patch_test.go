package block

import (
	"reflect"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestPatch_IsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Error("empty patch should be zero")
	}
	if (Patch{Text: strPtr("x")}).IsZero() {
		t.Error("patch with text should not be zero")
	}
}

func TestPatch_ApplyReplacesWholesale(t *testing.T) {
	b := New("k1", "knowledge", "original")
	b.Tags = []string{"a", "b"}
	b.Metadata = map[string]any{"title": "old", "extra": true}

	tags := []string{"c"}
	meta := map[string]any{"title": "new"}
	p := Patch{
		Text:     strPtr("updated"),
		Tags:     &tags,
		Metadata: &meta,
	}

	out := p.Apply(b)

	if b.Text != "original" {
		t.Error("Apply mutated the source block")
	}
	if out.Text != "updated" {
		t.Errorf("text = %q, want %q", out.Text, "updated")
	}
	if !reflect.DeepEqual(out.Tags, []string{"c"}) {
		t.Errorf("tags = %v, want [c]", out.Tags)
	}
	// Replace semantics: untouched metadata keys do not survive.
	if _, ok := out.Metadata["extra"]; ok {
		t.Error("metadata merge should replace, not deep-merge")
	}
	if out.UpdatedAt.Before(b.UpdatedAt) {
		t.Error("Apply should refresh UpdatedAt")
	}
}

func TestPatch_ApplyUnsetFieldsUntouched(t *testing.T) {
	b := New("k1", "knowledge", "body")
	b.Tags = []string{"keep"}
	b.CreatedBy = "alice"

	out := Patch{Text: strPtr("new body")}.Apply(b)

	if !reflect.DeepEqual(out.Tags, []string{"keep"}) {
		t.Errorf("tags changed: %v", out.Tags)
	}
	if out.CreatedBy != "alice" {
		t.Errorf("created_by changed: %q", out.CreatedBy)
	}
}

func TestDiff_ReportsChangedFieldsOnly(t *testing.T) {
	old := New("k1", "knowledge", "Mars is a planet.")
	old.Tags = []string{"space"}

	upd := old.Clone()
	upd.Text = "Mars is the fourth planet."
	upd.Tags = []string{"space", "astronomy"}
	upd.UpdatedAt = upd.UpdatedAt.Add(time.Minute)

	d := Diff(old, upd)
	fields := ChangedFields(d)
	want := []string{"tags", "text"}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("changed fields = %v, want %v", fields, want)
	}
	if d["text"].Old != "Mars is a planet." || d["text"].New != "Mars is the fourth planet." {
		t.Errorf("text change = %+v", d["text"])
	}
}

func TestDiff_IgnoresUpdatedAt(t *testing.T) {
	old := New("k1", "knowledge", "body")
	upd := old.Clone()
	upd.UpdatedAt = upd.UpdatedAt.Add(time.Hour)

	if d := Diff(old, upd); len(d) != 0 {
		t.Errorf("expected empty diff, got %v", ChangedFields(d))
	}
}

func TestDiff_NilAndEmptyCollectionsEqual(t *testing.T) {
	old := New("k1", "knowledge", "body")
	old.Tags = nil
	old.Metadata = nil

	upd := old.Clone()
	upd.Tags = []string{}
	upd.Metadata = map[string]any{}

	if d := Diff(old, upd); len(d) != 0 {
		t.Errorf("nil and empty collections should not diff: %v", ChangedFields(d))
	}
}
