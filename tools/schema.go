package tools

import (
	"encoding/json"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaBuilder provides a fluent interface for building tool input schemas.
// Properties render in the order they are added.
type SchemaBuilder struct {
	schema *jsonschema.Schema
}

// NewSchema creates a builder for an object schema with no properties.
func NewSchema() *SchemaBuilder {
	return &SchemaBuilder{
		schema: &jsonschema.Schema{
			Type:       "object",
			Properties: make(map[string]*jsonschema.Schema),
		},
	}
}

// Param adds a parameter of the given JSON type.
func (b *SchemaBuilder) Param(name, paramType, description string, required bool) *SchemaBuilder {
	return b.add(name, &jsonschema.Schema{Type: paramType, Description: description}, required)
}

// String adds a string parameter.
func (b *SchemaBuilder) String(name, description string, required bool) *SchemaBuilder {
	return b.Param(name, "string", description, required)
}

// Integer adds an integer parameter.
func (b *SchemaBuilder) Integer(name, description string, required bool) *SchemaBuilder {
	return b.Param(name, "integer", description, required)
}

// Boolean adds a boolean parameter.
func (b *SchemaBuilder) Boolean(name, description string, required bool) *SchemaBuilder {
	return b.Param(name, "boolean", description, required)
}

// StringArray adds an array-of-strings parameter.
func (b *SchemaBuilder) StringArray(name, description string, required bool) *SchemaBuilder {
	return b.add(name, &jsonschema.Schema{
		Type:        "array",
		Description: description,
		Items:       &jsonschema.Schema{Type: "string"},
	}, required)
}

// Enum adds a string parameter restricted to values.
func (b *SchemaBuilder) Enum(name, description string, values []string, required bool) *SchemaBuilder {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return b.add(name, &jsonschema.Schema{Type: "string", Description: description, Enum: enum}, required)
}

// Default sets the default value of an optional parameter added earlier.
// Defaults are applied before validation.
func (b *SchemaBuilder) Default(name string, value any) *SchemaBuilder {
	prop, ok := b.schema.Properties[name]
	if !ok {
		return b
	}
	if raw, err := json.Marshal(value); err == nil {
		prop.Default = raw
	}
	return b
}

// Build returns the constructed schema.
func (b *SchemaBuilder) Build() *jsonschema.Schema {
	return b.schema
}

func (b *SchemaBuilder) add(name string, prop *jsonschema.Schema, required bool) *SchemaBuilder {
	if _, exists := b.schema.Properties[name]; !exists {
		b.schema.PropertyOrder = append(b.schema.PropertyOrder, name)
	}
	b.schema.Properties[name] = prop
	if required && !slices.Contains(b.schema.Required, name) {
		b.schema.Required = append(b.schema.Required, name)
	}
	return b
}
