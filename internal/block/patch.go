package block

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Patch carries the fields an update may replace. Nil pointer means "leave
// unchanged"; a set pointer fully replaces that field on the target block
// (replace semantics, not deep merge).
type Patch struct {
	Type          *string         `json:"type,omitempty"`
	SchemaVersion *int            `json:"schema_version,omitempty"`
	Text          *string         `json:"text,omitempty"`
	Tags          *[]string       `json:"tags,omitempty"`
	Metadata      *map[string]any `json:"metadata,omitempty"`
	Links         *[]Link         `json:"links,omitempty"`
	SourceFile    *string         `json:"source_file,omitempty"`
	SourceURI     *string         `json:"source_uri,omitempty"`
	CreatedBy     *string         `json:"created_by,omitempty"`
	Confidence    *Confidence     `json:"confidence,omitempty"`
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p == Patch{}
}

// Apply merges the patch over a copy of b and refreshes UpdatedAt.
// The original block is not modified.
func (p Patch) Apply(b *Block) *Block {
	out := b.Clone()
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.SchemaVersion != nil {
		v := *p.SchemaVersion
		out.SchemaVersion = &v
	}
	if p.Text != nil {
		out.Text = *p.Text
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Metadata != nil {
		out.Metadata = make(map[string]any, len(*p.Metadata))
		for k, v := range *p.Metadata {
			out.Metadata[k] = v
		}
	}
	if p.Links != nil {
		out.Links = append([]Link(nil), (*p.Links)...)
	}
	if p.SourceFile != nil {
		out.SourceFile = *p.SourceFile
	}
	if p.SourceURI != nil {
		out.SourceURI = *p.SourceURI
	}
	if p.CreatedBy != nil {
		out.CreatedBy = *p.CreatedBy
	}
	if p.Confidence != nil {
		c := *p.Confidence
		out.Confidence = &c
	}
	out.Touch()
	return out
}

// FieldChange records the before and after value of one changed field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff compares two blocks field by field and returns the changed fields
// keyed by their JSON names. UpdatedAt is deliberately excluded: it changes
// on every write and would make every diff noisy. Embedding is excluded for
// the same reason (populated by the index, not the caller).
func Diff(old, new *Block) map[string]FieldChange {
	out := make(map[string]FieldChange)
	cmp := func(name string, a, b any) {
		if !jsonEqual(a, b) {
			out[name] = FieldChange{Old: a, New: b}
		}
	}
	cmp("type", old.Type, new.Type)
	cmp("schema_version", old.SchemaVersion, new.SchemaVersion)
	cmp("text", old.Text, new.Text)
	cmp("tags", old.Tags, new.Tags)
	cmp("metadata", old.Metadata, new.Metadata)
	cmp("links", old.Links, new.Links)
	cmp("source_file", old.SourceFile, new.SourceFile)
	cmp("source_uri", old.SourceURI, new.SourceURI)
	cmp("created_by", old.CreatedBy, new.CreatedBy)
	cmp("confidence", old.Confidence, new.Confidence)
	cmp("created_at", old.CreatedAt, new.CreatedAt)
	return out
}

// ChangedFields returns the keys of a diff in sorted order.
func ChangedFields(d map[string]FieldChange) []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// jsonEqual compares two values through their JSON encoding so that nil and
// empty slices/maps compare equal, matching the storage representation.
func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return normalizeJSON(ja) == normalizeJSON(jb)
}

// normalizeJSON folds the empty encodings together so a nil slice/map and an
// empty one compare equal.
func normalizeJSON(raw []byte) string {
	switch s := string(raw); s {
	case "null", "[]", "{}":
		return ""
	default:
		return s
	}
}
