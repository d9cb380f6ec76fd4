// Package block defines the domain types for Munin: memory blocks,
// typed links between them, and the patch/diff helpers used on update.
package block

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Relation is the kind of a directed link between two blocks.
type Relation string

// Link relations. A link is owned by its source block; the target does not
// have to exist when the link is written.
const (
	RelatedTo Relation = "related_to"
	SubtaskOf Relation = "subtask_of"
	DependsOn Relation = "depends_on"
	ChildOf   Relation = "child_of"
	Mentions  Relation = "mentions"
)

// Relations lists every valid relation kind.
func Relations() []Relation {
	return []Relation{RelatedTo, SubtaskOf, DependsOn, ChildOf, Mentions}
}

// Valid reports whether r is a known relation kind.
func (r Relation) Valid() bool {
	switch r {
	case RelatedTo, SubtaskOf, DependsOn, ChildOf, Mentions:
		return true
	}
	return false
}

// Link is a directed, typed edge from the owning block to another block.
type Link struct {
	ToID     string   `json:"to_id"`
	Relation Relation `json:"relation"`
}

// Validate checks a single link.
func (l Link) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.ToID, validation.Required),
		validation.Field(&l.Relation, validation.Required, validation.By(func(v any) error {
			if rel, _ := v.(Relation); !rel.Valid() {
				return fmt.Errorf("unknown relation %q", rel)
			}
			return nil
		})),
	)
}

// Confidence carries independent human and AI confidence scores in [0,1].
type Confidence struct {
	Human *float64 `json:"human,omitempty"`
	AI    *float64 `json:"ai,omitempty"`
}

// Validate checks both scores when present.
func (c Confidence) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Human, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.AI, validation.Min(0.0), validation.Max(1.0)),
	)
}

// Block is the unit of memory the bank manages. The record store is
// authoritative for its contents; the secondary index is derived from it.
type Block struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	SchemaVersion *int           `json:"schema_version,omitempty"`
	Text          string         `json:"text"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Links         []Link         `json:"links,omitempty"`
	SourceFile    string         `json:"source_file,omitempty"`
	SourceURI     string         `json:"source_uri,omitempty"`
	CreatedBy     string         `json:"created_by,omitempty"`
	Confidence    *Confidence    `json:"confidence,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Embedding     []float32      `json:"embedding,omitempty"`
}

// New returns a block with id, type and text set and both timestamps at now.
func New(id, typ, text string) *Block {
	now := time.Now().UTC()
	return &Block{
		ID:        id,
		Type:      typ,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch refreshes UpdatedAt, keeping the updated_at >= created_at invariant.
func (b *Block) Touch() {
	b.UpdatedAt = time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = b.UpdatedAt
	}
}

// Validate checks the structural shape of the block: identity, type, text,
// link targets and relations, confidence ranges, timestamp ordering.
// Metadata shape validation against the registered type schema is a separate
// concern handled by the schema registry.
func (b *Block) Validate() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.ID, validation.Required),
		validation.Field(&b.Type, validation.Required),
		validation.Field(&b.Text, validation.Required),
		validation.Field(&b.Links),
		validation.Field(&b.Confidence),
		validation.Field(&b.UpdatedAt, validation.By(func(any) error {
			if !b.CreatedAt.IsZero() && b.UpdatedAt.Before(b.CreatedAt) {
				return fmt.Errorf("updated_at precedes created_at")
			}
			return nil
		})),
	)
}

// LinksByRelation returns the block's outgoing links, optionally filtered by
// relation kind (empty relation means all).
func (b *Block) LinksByRelation(rel Relation) []Link {
	if rel == "" {
		return b.Links
	}
	var out []Link
	for _, l := range b.Links {
		if l.Relation == rel {
			out = append(out, l)
		}
	}
	return out
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	cp := *b
	cp.Tags = append([]string(nil), b.Tags...)
	cp.Links = append([]Link(nil), b.Links...)
	cp.Embedding = append([]float32(nil), b.Embedding...)
	if b.Metadata != nil {
		cp.Metadata = make(map[string]any, len(b.Metadata))
		for k, v := range b.Metadata {
			cp.Metadata[k] = v
		}
	}
	if b.Confidence != nil {
		c := *b.Confidence
		cp.Confidence = &c
	}
	if b.SchemaVersion != nil {
		v := *b.SchemaVersion
		cp.SchemaVersion = &v
	}
	return &cp
}
