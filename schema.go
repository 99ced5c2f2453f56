package settings

import "sort"

// SchemaFormat tags which representation a schema document carries.
type SchemaFormat string

const (
	// SchemaFormatDescriptors is the flattened field descriptor list.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatJSONSchema is a JSON Schema draft 2020-12 document.
	SchemaFormatJSONSchema SchemaFormat = "jsonschema"
)

// SchemaDocument encapsulates a generated schema output alongside its
// format identifier. Implementations must ensure Document is
// JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// FieldDescriptor describes one leaf the tree knows about, whether stored,
// declared, or both.
type FieldDescriptor struct {
	Path        string `json:"path"`
	Kind        Kind   `json:"kind"`
	Declared    bool   `json:"declared"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	DefaultRule string `json:"default_rule,omitempty"`
	CheckRule   string `json:"check_rule,omitempty"`
}

// SchemaGenerator transforms field descriptors into a schema document.
// Implementations must be safe for concurrent use and handle empty inputs
// by returning an empty schema document.
type SchemaGenerator interface {
	Generate(fields []FieldDescriptor) (SchemaDocument, error)
}

// DefaultSchemaGenerator returns the generator used when none is configured.
// It passes the descriptor list through unchanged.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(fields []FieldDescriptor) (SchemaDocument, error) {
	if fields == nil {
		fields = []FieldDescriptor{}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: fields,
	}, nil
}

// FieldDescriptors flattens the merged view into one descriptor per leaf:
// stored keys first, then declared paths that have no stored value yet.
// Declaration metadata is attached wherever a declaration exists.
func (s *Settings) FieldDescriptors() []FieldDescriptor {
	var fields []FieldDescriptor
	seen := map[string]struct{}{}

	describe := func(joined string, kind Kind) FieldDescriptor {
		field := FieldDescriptor{Path: joined, Kind: kind}
		if decl, ok := s.defaults.Lookup(joined); ok {
			field.Declared = true
			field.Description = decl.Description()
			field.DefaultRule = decl.DefaultRule()
			field.CheckRule = decl.CheckRule()
			if fallback, has := decl.Default(); has {
				field.Default = fallback.Native()
			}
		}
		return field
	}

	s.store.Walk(func(path Path, v Value) {
		joined := path.String()
		seen[joined] = struct{}{}
		fields = append(fields, describe(joined, v.Kind()))
	})
	for _, overlay := range s.overlays {
		overlay.store.Walk(func(path Path, v Value) {
			joined := path.String()
			if _, ok := seen[joined]; ok {
				return
			}
			seen[joined] = struct{}{}
			fields = append(fields, describe(joined, v.Kind()))
		})
	}
	for _, declPath := range s.defaults.Paths() {
		if _, ok := seen[declPath]; ok {
			continue
		}
		decl, ok := s.defaults.Lookup(declPath)
		if !ok {
			continue
		}
		fields = append(fields, describe(declPath, decl.Kind()))
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Path < fields[j].Path })
	return fields
}

// Schema runs the configured generator over the current field descriptors.
func (s *Settings) Schema() (SchemaDocument, error) {
	return s.schemaGen.Generate(s.FieldDescriptors())
}
