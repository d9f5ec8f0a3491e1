package registry

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolDefinition describes a single tool exposed through the execution
// contract. Definitions are immutable after registration.
type ToolDefinition struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	InputSchema  *jsonschema.Schema `json:"input_schema"`
	OutputSchema *jsonschema.Schema `json:"output_schema"`
}

// Registry maps tool names to their definitions while preserving
// registration order for deterministic discovery output.
type Registry struct {
	defs  map[string]ToolDefinition
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		defs: make(map[string]ToolDefinition),
	}
}

// Register adds a tool definition. It fails on duplicate names and on
// schemas that do not resolve, so malformed definitions surface at startup
// rather than at invocation time.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	if def.InputSchema == nil {
		return fmt.Errorf("tool %q has no input schema", def.Name)
	}
	if _, err := def.InputSchema.Resolve(nil); err != nil {
		return fmt.Errorf("tool %q has an invalid input schema: %w", def.Name, err)
	}
	if def.OutputSchema != nil {
		if _, err := def.OutputSchema.Resolve(nil); err != nil {
			return fmt.Errorf("tool %q has an invalid output schema: %w", def.Name, err)
		}
	}

	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns the definition for the given name. The second return value
// reports whether the tool is registered; an unknown name is not an error
// at this layer.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// List returns all registered tools in registration order.
func (r *Registry) List() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}
