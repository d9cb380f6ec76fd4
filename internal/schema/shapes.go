package schema

// Builtin block types.
const (
	TypeKnowledge = "knowledge"
	TypeTask      = "task"
	TypeProject   = "project"
	TypeDoc       = "doc"
	TypeLog       = "log"
)

// BuiltinVersion is the schema version of the shapes below.
const BuiltinVersion = 1

// BuiltinShapes returns the metadata shape documents for the builtin block
// types, keyed by type name. Each document is a JSON Schema; the schema
// store bridge adds x_node_type/x_schema_version when persisting them.
func BuiltinShapes() map[string]map[string]any {
	return map[string]map[string]any{
		TypeKnowledge: {
			"type": "object",
			"properties": map[string]any{
				"title":    map[string]any{"type": "string"},
				"subject":  map[string]any{"type": "string"},
				"keywords": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"validity": map[string]any{"type": "string", "enum": []any{"current", "outdated", "disputed"}},
			},
			"additionalProperties": true,
		},
		TypeTask: {
			"type":     "object",
			"required": []any{"title", "status"},
			"properties": map[string]any{
				"title":       map[string]any{"type": "string"},
				"status":      map[string]any{"type": "string", "enum": []any{"todo", "in_progress", "blocked", "done"}},
				"assignee":    map[string]any{"type": "string"},
				"priority":    map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
				"due_date":    map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			},
			"additionalProperties": true,
		},
		TypeProject: {
			"type":     "object",
			"required": []any{"name"},
			"properties": map[string]any{
				"name":        map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"status":      map[string]any{"type": "string", "enum": []any{"planned", "active", "paused", "archived"}},
				"owner":       map[string]any{"type": "string"},
			},
			"additionalProperties": true,
		},
		TypeDoc: {
			"type":     "object",
			"required": []any{"title"},
			"properties": map[string]any{
				"title":    map[string]any{"type": "string"},
				"audience": map[string]any{"type": "string"},
				"format":   map[string]any{"type": "string"},
				"section":  map[string]any{"type": "string"},
			},
			"additionalProperties": true,
		},
		TypeLog: {
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string"},
				"actor":       map[string]any{"type": "string"},
				"input":       map[string]any{"type": "string"},
				"output":      map[string]any{"type": "string"},
				"success":     map[string]any{"type": "boolean"},
				"duration_ms": map[string]any{"type": "number", "minimum": 0},
			},
			"additionalProperties": true,
		},
	}
}

// RegisterBuiltins registers every builtin shape on r. Call once at startup.
func RegisterBuiltins(r *Registry) error {
	for typ, doc := range BuiltinShapes() {
		if err := r.Register(typ, doc); err != nil {
			return err
		}
	}
	return nil
}
