// Package schema maintains the registry of per-type metadata shapes and
// validates block metadata against them.
//
// Shapes are JSON Schema documents. The registry is process-wide state:
// RegisterBuiltins is called once at startup and the registry is read-only
// during normal operation, so concurrent reads need no coordination beyond
// the internal lock used for registration.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/halvard/munin/internal/apperr"
)

// Registry maps block-type names to compiled metadata shapes.
type Registry struct {
	mu     sync.RWMutex
	shapes map[string]*entry
}

type entry struct {
	doc      map[string]any
	compiled *jsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{shapes: make(map[string]*entry)}
}

// Register compiles doc and stores it under typ. Registration is idempotent:
// the last registration for a type wins.
func (r *Registry) Register(typ string, doc map[string]any) error {
	if typ == "" {
		return fmt.Errorf("schema: empty type")
	}
	compiled, err := compile(typ, doc)
	if err != nil {
		return fmt.Errorf("schema: compile shape for %q: %w", typ, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shapes[typ] = &entry{doc: doc, compiled: compiled}
	return nil
}

// Get returns the registered shape document for typ.
func (r *Registry) Get(typ string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.shapes[typ]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// ListTypes returns the registered type names in sorted order.
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.shapes))
	for t := range r.shapes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Validate checks metadata against the shape registered for typ. An
// unregistered type and a shape mismatch both return *apperr.ValidationError
// with field-level detail; nil metadata validates as an empty object.
func (r *Registry) Validate(typ string, metadata map[string]any) error {
	r.mu.RLock()
	e, ok := r.shapes[typ]
	r.mu.RUnlock()
	if !ok {
		return apperr.NewValidationError(apperr.FieldError{
			Path:    "type",
			Message: fmt.Sprintf("unregistered block type %q", typ),
		})
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	// Round-trip so numeric types match what a JSON decoder would produce.
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("schema: marshal metadata: %w", err)
	}
	var inst any
	if err := json.Unmarshal(raw, &inst); err != nil {
		return fmt.Errorf("schema: decode metadata: %w", err)
	}

	if err := e.compiled.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return toValidationError(ve)
		}
		return fmt.Errorf("schema: validate metadata: %w", err)
	}
	return nil
}

func compile(typ string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "munin:///shapes/" + typ + ".json"
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// toValidationError flattens the compiler's error tree into field errors.
func toValidationError(ve *jsonschema.ValidationError) *apperr.ValidationError {
	out := &apperr.ValidationError{}
	for _, basic := range ve.BasicOutput().Errors {
		if basic.Error == "" || strings.HasPrefix(basic.Error, "doesn't validate with") {
			continue
		}
		path := basic.InstanceLocation
		if path == "" {
			path = "metadata"
		} else {
			path = "metadata" + strings.ReplaceAll(path, "/", ".")
		}
		out.Fields = append(out.Fields, apperr.FieldError{Path: path, Message: basic.Error})
	}
	if len(out.Fields) == 0 {
		out.Fields = append(out.Fields, apperr.FieldError{Path: "metadata", Message: ve.Message})
	}
	return out
}
