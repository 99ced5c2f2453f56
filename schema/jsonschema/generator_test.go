package jsonschema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	settings "github.com/goliatone/go-settings"
)

func TestWithTitleOption(t *testing.T) {
	custom := NewGenerator(WithTitle("Workbench Settings"))

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}
	if internal.title != "Workbench Settings" {
		t.Fatalf("expected title Workbench Settings, got %q", internal.title)
	}
}

func TestGenerateFromFixtures(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"document_minimal.json", "document_nested.json"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := readDocumentFixture(t, name)
			var opts []GeneratorOption
			if fx.Title != "" {
				opts = append(opts, WithTitle(fx.Title))
			}

			doc, err := NewGenerator(opts...).Generate(fx.Fields)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if doc.Format != settings.SchemaFormatJSONSchema {
				t.Fatalf("expected format %q, got %q", settings.SchemaFormatJSONSchema, doc.Format)
			}
			if got, want := canonicalJSON(t, doc.Document), canonicalJSON(t, fx.Expect.Document); got != want {
				t.Fatalf("schema mismatch\nwant: %s\ngot:  %s", want, got)
			}
		})
	}
}

func TestGenerateEmptyFieldSet(t *testing.T) {
	t.Parallel()

	doc, err := NewGenerator().Generate(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc.Format != settings.SchemaFormatJSONSchema {
		t.Fatalf("expected format %q, got %q", settings.SchemaFormatJSONSchema, doc.Format)
	}
	schema, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if properties, ok := schema["properties"].(map[string]any); !ok || len(properties) != 0 {
		t.Fatalf("expected an empty properties map, got %#v", schema["properties"])
	}
	if _, exists := schema["title"]; exists {
		t.Fatal("expected no title without WithTitle")
	}
}

func TestGenerateIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(WithTitle("Concurrent"))
	fields := []settings.FieldDescriptor{
		{Path: "editor/theme", Kind: settings.KindString, Declared: true},
		{Path: "editor/tab_width", Kind: settings.KindInt, Default: int64(4)},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := gen.Generate(fields)
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected a document payload")
			}
		}()
	}
	wg.Wait()
}

func TestOptionWiresFacade(t *testing.T) {
	defaults := settings.NewDefaults()
	if err := defaults.Declare("editor/theme", settings.KindString,
		settings.WithDefault("dark"),
		settings.WithDescription("color theme"),
	); err != nil {
		t.Fatalf("declare: %v", err)
	}

	s, err := settings.New(
		Option(WithTitle("Host Settings")),
		settings.WithDefaults(defaults),
	)
	if err != nil {
		t.Fatalf("building settings: %v", err)
	}
	defer s.Close()

	if err := s.Set("editor/tab_width", 4); err != nil {
		t.Fatalf("set: %v", err)
	}

	doc, err := s.Schema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if doc.Format != settings.SchemaFormatJSONSchema {
		t.Fatalf("expected format %q, got %q", settings.SchemaFormatJSONSchema, doc.Format)
	}
	got, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if got["title"] != "Host Settings" {
		t.Fatalf("expected title Host Settings, got %v", got["title"])
	}

	theme := property(t, got, "editor", "theme")
	if theme["type"] != "string" {
		t.Fatalf("expected string schema for theme, got %v", theme["type"])
	}
	if theme["default"] != "dark" {
		t.Fatalf("expected declared default dark, got %v", theme["default"])
	}
	if theme["description"] != "color theme" {
		t.Fatalf("expected declared description, got %v", theme["description"])
	}
	width := property(t, got, "editor", "tab_width")
	if width["type"] != "integer" {
		t.Fatalf("expected integer schema for tab_width, got %v", width["type"])
	}
}

// property walks nested object schemas down to the leaf named by segments.
func property(t *testing.T, schema map[string]any, segments ...string) map[string]any {
	t.Helper()

	cur := schema
	for _, seg := range segments {
		props, ok := cur["properties"].(map[string]any)
		if !ok {
			t.Fatalf("expected properties map on the way to %v, got %T", segments, cur["properties"])
		}
		next, ok := props[seg].(map[string]any)
		if !ok {
			t.Fatalf("missing property %q", seg)
		}
		cur = next
	}
	return cur
}

type schemaFixture struct {
	Title  string                     `json:"title"`
	Fields []settings.FieldDescriptor `json:"fields"`
	Expect struct {
		Document map[string]any `json:"document"`
	} `json:"expect"`
}

func readDocumentFixture(t *testing.T, name string) schemaFixture {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %q: %v", name, err)
	}
	var fx schemaFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("unmarshal fixture %q: %v", name, err)
	}
	return fx
}

// canonicalJSON reduces a document to its serialized form so fixtures
// and generated maps compare without caring about Go-side types.
func canonicalJSON(t *testing.T, value any) string {
	t.Helper()

	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return string(raw)
}
