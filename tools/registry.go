package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/tailored-agentic-units/terminus/core/protocol"
)

type entry struct {
	spec     Spec
	resolved *jsonschema.Resolved
	tool     protocol.Tool
}

// Registry maps tool names to specs. Registration happens at startup; Seal
// freezes the registry so the catalog the model sees never changes during a
// session. Thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	sealed  bool
}

// NewRegistry creates an empty, unsealed Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool. Returns ErrAlreadyExists for a duplicate name and
// ErrSealed after Seal. The schema is resolved here so that a malformed
// schema fails at startup rather than on first use.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return ErrEmptyName
	}
	if spec.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, spec.Name)
	}
	if spec.Schema == nil {
		spec.Schema = NewSchema().Build()
	}

	resolved, err := spec.Schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchema, spec.Name, err)
	}
	params, err := schemaMap(spec.Schema)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchema, spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrSealed, spec.Name)
	}
	if _, exists := r.entries[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, spec.Name)
	}

	r.entries[spec.Name] = &entry{
		spec:     spec,
		resolved: resolved,
		tool: protocol.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  params,
		},
	}
	r.order = append(r.order, spec.Name)
	return nil
}

// Seal freezes the registry. Later Register calls fail with ErrSealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the spec registered under name, or ErrNotFound.
func (r *Registry) Lookup(name string) (Spec, error) {
	e, err := r.get(name)
	if err != nil {
		return Spec{}, err
	}
	return e.spec, nil
}

// Catalog returns the tool definitions in registration order.
func (r *Registry) Catalog() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Validate decodes raw JSON arguments for the named tool, coerces loosely
// typed values, applies defaults, and validates the result against the
// tool's schema. Failures wrap ErrNotFound or ErrInvalidArguments.
func (r *Registry) Validate(name, raw string) (map[string]any, error) {
	e, err := r.get(name)
	if err != nil {
		return nil, err
	}
	return validate(e, raw)
}

func (r *Registry) get(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

func schemaMap(s *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
