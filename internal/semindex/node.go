package semindex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/halvard/munin/internal/block"
)

// Node is a block prepared for indexing: the enriched text fed to the
// vector store plus a flat attribute bag for filtering.
type Node struct {
	ID         string
	Text       string
	Attributes map[string]string
	Edges      []Edge
}

// Edge is one typed graph relationship derived from a block link.
type Edge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Category string `json:"category"`
}

// Graph edge categories. The relation-to-category mapping is fixed so
// traversal queries stay predictable.
const (
	CategoryChild   = "child"   // source is a subtask (child) of target
	CategoryParent  = "parent"  // source is the parent of target
	CategoryDepends = "depends" // source depends on target
	CategoryNext    = "next"    // loose association (related_to, mentions)
)

// categoryFor maps the five link relations onto edge categories:
//
//	subtask_of -> child    child_of  -> parent
//	depends_on -> depends  related_to, mentions -> next
func categoryFor(rel block.Relation) string {
	switch rel {
	case block.SubtaskOf:
		return CategoryChild
	case block.ChildOf:
		return CategoryParent
	case block.DependsOn:
		return CategoryDepends
	default:
		return CategoryNext
	}
}

// BuildNode converts a block into its indexed form. The vector text is a
// short enriched header (metadata title when present, type, joined tags)
// followed by the raw block text. Scalar metadata values land in the
// attribute bag directly; nested values are JSON-encoded under a single key
// so they remain filterable as a unit.
func BuildNode(b *block.Block) Node {
	var header []string
	if title, ok := b.Metadata["title"].(string); ok && title != "" {
		header = append(header, title)
	}
	header = append(header, b.Type)
	if len(b.Tags) > 0 {
		header = append(header, strings.Join(b.Tags, " "))
	}

	attrs := map[string]string{
		"type": b.Type,
	}
	if len(b.Tags) > 0 {
		attrs["tags"] = strings.Join(b.Tags, ",")
	}
	if b.CreatedBy != "" {
		attrs["created_by"] = b.CreatedBy
	}
	var nested map[string]any
	for k, v := range b.Metadata {
		switch val := v.(type) {
		case string:
			attrs["meta_"+k] = val
		case bool:
			attrs["meta_"+k] = strconv.FormatBool(val)
		case float64:
			attrs["meta_"+k] = strconv.FormatFloat(val, 'g', -1, 64)
		case int:
			attrs["meta_"+k] = strconv.Itoa(val)
		case nil:
			// skip
		default:
			if nested == nil {
				nested = make(map[string]any)
			}
			nested[k] = v
		}
	}
	if nested != nil {
		if raw, err := json.Marshal(nested); err == nil {
			attrs["meta_nested"] = string(raw)
		}
	}

	edges := make([]Edge, 0, len(b.Links))
	for _, l := range b.Links {
		edges = append(edges, Edge{
			SourceID: b.ID,
			TargetID: l.ToID,
			Category: categoryFor(l.Relation),
		})
	}

	return Node{
		ID:         b.ID,
		Text:       fmt.Sprintf("%s\n%s", strings.Join(header, " | "), b.Text),
		Attributes: attrs,
		Edges:      edges,
	}
}
