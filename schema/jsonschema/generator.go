// Package jsonschema renders field descriptors as a JSON Schema document,
// for editor completion of settings files and for config validation
// services that already speak JSON Schema.
package jsonschema

import (
	"strings"

	settings "github.com/goliatone/go-settings"
)

type generator struct {
	title string
}

// GeneratorOption configures the generator.
type GeneratorOption func(*generator)

// WithTitle sets the document title.
func WithTitle(title string) GeneratorOption {
	return func(g *generator) {
		g.title = title
	}
}

// NewGenerator constructs a JSON Schema draft 2020-12 generator.
func NewGenerator(opts ...GeneratorOption) settings.SchemaGenerator {
	g := generator{}
	for _, opt := range opts {
		if opt != nil {
			opt(&g)
		}
	}
	return g
}

// Option wires the JSON Schema generator into a Settings facade.
func Option(opts ...GeneratorOption) settings.Option {
	return settings.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(fields []settings.FieldDescriptor) (settings.SchemaDocument, error) {
	properties := map[string]any{}
	root := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": properties,
	}
	if g.title != "" {
		root["title"] = g.title
	}

	for _, field := range fields {
		insertField(properties, field)
	}

	return settings.SchemaDocument{
		Format:   settings.SchemaFormatJSONSchema,
		Document: root,
	}, nil
}

// insertField places a leaf schema under nested object schemas mirroring
// the key path's groups.
func insertField(properties map[string]any, field settings.FieldDescriptor) {
	segments := strings.Split(field.Path, settings.Separator)
	cur := properties
	for _, seg := range segments[:len(segments)-1] {
		node, ok := cur[seg].(map[string]any)
		if !ok {
			node = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
			cur[seg] = node
		}
		nested, ok := node["properties"].(map[string]any)
		if !ok {
			nested = map[string]any{}
			node["properties"] = nested
		}
		cur = nested
	}
	cur[segments[len(segments)-1]] = leafSchema(field)
}

func leafSchema(field settings.FieldDescriptor) map[string]any {
	schema := map[string]any{}
	switch field.Kind {
	case settings.KindBool:
		schema["type"] = "boolean"
	case settings.KindInt:
		schema["type"] = "integer"
	case settings.KindFloat:
		schema["type"] = "number"
	case settings.KindString:
		schema["type"] = "string"
	case settings.KindList:
		schema["type"] = "array"
	case settings.KindMap:
		schema["type"] = "object"
		schema["additionalProperties"] = true
	}
	if field.Description != "" {
		schema["description"] = field.Description
	}
	if field.Default != nil {
		schema["default"] = field.Default
	}
	return schema
}
