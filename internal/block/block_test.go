package block

import (
	"testing"
	"time"
)

func TestValidate_RequiredFields(t *testing.T) {
	b := &Block{}
	if err := b.Validate(); err == nil {
		t.Fatal("expected validation error for empty block")
	}

	b = New("k1", "knowledge", "Mars is a planet.")
	if err := b.Validate(); err != nil {
		t.Fatalf("valid block rejected: %v", err)
	}
}

func TestValidate_BadRelation(t *testing.T) {
	b := New("k1", "knowledge", "body")
	b.Links = []Link{{ToID: "k2", Relation: "follows"}}
	if err := b.Validate(); err == nil {
		t.Fatal("expected error for unknown relation")
	}
	b.Links = []Link{{ToID: "k2", Relation: RelatedTo}}
	if err := b.Validate(); err != nil {
		t.Fatalf("valid relation rejected: %v", err)
	}
}

func TestValidate_ConfidenceRange(t *testing.T) {
	bad := 1.5
	b := New("k1", "knowledge", "body")
	b.Confidence = &Confidence{Human: &bad}
	if err := b.Validate(); err == nil {
		t.Fatal("expected error for confidence > 1")
	}
	ok := 0.8
	b.Confidence = &Confidence{Human: &ok}
	if err := b.Validate(); err != nil {
		t.Fatalf("valid confidence rejected: %v", err)
	}
}

func TestValidate_TimestampOrdering(t *testing.T) {
	b := New("k1", "knowledge", "body")
	b.UpdatedAt = b.CreatedAt.Add(-time.Hour)
	if err := b.Validate(); err == nil {
		t.Fatal("expected error when updated_at precedes created_at")
	}
}

func TestLinksByRelation(t *testing.T) {
	b := New("t1", "task", "body")
	b.Links = []Link{
		{ToID: "p1", Relation: SubtaskOf},
		{ToID: "t2", Relation: DependsOn},
		{ToID: "t3", Relation: DependsOn},
	}

	all := b.LinksByRelation("")
	if len(all) != 3 {
		t.Fatalf("expected 3 links, got %d", len(all))
	}
	deps := b.LinksByRelation(DependsOn)
	if len(deps) != 2 {
		t.Fatalf("expected 2 depends_on links, got %d", len(deps))
	}
	if deps[0].ToID != "t2" || deps[1].ToID != "t3" {
		t.Errorf("unexpected link targets: %+v", deps)
	}
}

func TestClone_DeepCopy(t *testing.T) {
	v := 2
	h := 0.9
	b := New("k1", "knowledge", "body")
	b.SchemaVersion = &v
	b.Tags = []string{"a"}
	b.Metadata = map[string]any{"title": "x"}
	b.Confidence = &Confidence{Human: &h}

	c := b.Clone()
	c.Tags[0] = "changed"
	c.Metadata["title"] = "y"
	*c.SchemaVersion = 9
	*c.Confidence.Human = 0.1

	if b.Tags[0] != "a" {
		t.Error("tags not deep-copied")
	}
	if b.Metadata["title"] != "x" {
		t.Error("metadata not deep-copied")
	}
	if *b.SchemaVersion != 2 {
		t.Error("schema_version not deep-copied")
	}
	if *b.Confidence.Human != 0.9 {
		t.Error("confidence not deep-copied")
	}
}
