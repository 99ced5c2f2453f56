package settings

import (
	"errors"
	"testing"
)

type fixtureDeclaration struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Default     any    `json:"default"`
	Rule        string `json:"rule"`
	Check       string `json:"check"`
	Description string `json:"description"`
}

func declarationTable(t *testing.T, decls []fixtureDeclaration) *Defaults {
	t.Helper()
	defaults := NewDefaults()
	for _, decl := range decls {
		kind, err := ParseKind(decl.Kind)
		if err != nil {
			t.Fatalf("fixture declaration %q has invalid kind: %v", decl.Path, err)
		}
		opts := []DeclareOption{}
		if decl.Default != nil {
			opts = append(opts, WithDefault(decl.Default))
		}
		if decl.Rule != "" {
			opts = append(opts, WithDefaultRule(decl.Rule))
		}
		if decl.Check != "" {
			opts = append(opts, WithCheck(decl.Check))
		}
		if decl.Description != "" {
			opts = append(opts, WithDescription(decl.Description))
		}
		if err := defaults.Declare(decl.Path, kind, opts...); err != nil {
			t.Fatalf("declare %q: %v", decl.Path, err)
		}
	}
	return defaults
}

func TestDeclaredDefaultsFixture(t *testing.T) {
	type readCase struct {
		Name string `json:"name"`
		Path string `json:"path"`
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	type writeCase struct {
		Name     string `json:"name"`
		Path     string `json:"path"`
		Value    any    `json:"value"`
		Admitted bool   `json:"admitted"`
	}
	type fixture struct {
		Description  string               `json:"description"`
		Declarations []fixtureDeclaration `json:"declarations"`
		Reads        []readCase           `json:"reads"`
		Writes       []writeCase          `json:"writes"`
	}

	fx := loadFixture[fixture](t, "declared_defaults.json")

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			if factory.name == "js" && !jsEvaluatorAvailable() {
				t.Skip("requires the js_eval build tag")
			}
			t.Run("reads", func(t *testing.T) {
				s := newMemorySettings(t,
					WithDefaults(declarationTable(t, fx.Declarations)),
					WithEvaluator(factory.new(nil, nil)),
				)
				for _, tc := range fx.Reads {
					t.Run(tc.Name, func(t *testing.T) {
						want, err := ParseKind(tc.Kind)
						if err != nil {
							t.Fatalf("fixture kind: %v", err)
						}
						value, err := s.Get(tc.Path)
						if err != nil {
							t.Fatalf("unexpected error reading %q: %v", tc.Path, err)
						}
						if value.Kind() != want {
							t.Fatalf("expected kind %v, got %v", want, value.Kind())
						}
						if got := encodeText(value); got != tc.Text {
							t.Fatalf("expected %q, got %q", tc.Text, got)
						}
					})
				}
			})

			t.Run("writes", func(t *testing.T) {
				for _, tc := range fx.Writes {
					t.Run(tc.Name, func(t *testing.T) {
						s := newMemorySettings(t,
							WithDefaults(declarationTable(t, fx.Declarations)),
							WithEvaluator(factory.new(nil, nil)),
						)
						candidate, ok := tc.Value.(float64)
						if !ok {
							t.Fatalf("fixture value must be numeric, got %T", tc.Value)
						}
						err := s.Set(tc.Path, candidate)
						if tc.Admitted {
							if err != nil {
								t.Fatalf("expected write to pass, got %v", err)
							}
							got, err := s.Float(tc.Path)
							if err != nil {
								t.Fatalf("unexpected error reading back: %v", err)
							}
							if got != candidate {
								t.Fatalf("expected %v, got %v", candidate, got)
							}
							return
						}
						if !errors.Is(err, ErrCheckFailed) {
							t.Fatalf("expected ErrCheckFailed, got %v", err)
						}
						if s.Dirty() {
							t.Fatalf("rejected write must leave the tree untouched")
						}
					})
				}
			})
		})
	}
}

func TestDynamicPathsFixture(t *testing.T) {
	type readCase struct {
		Name   string `json:"name"`
		Path   string `json:"path"`
		Expect bool   `json:"expect"`
	}
	type writeCase struct {
		Name   string `json:"name"`
		Path   string `json:"path"`
		Value  bool   `json:"value"`
		Expect bool   `json:"expect"`
	}
	type fixture struct {
		Description string         `json:"description"`
		Tree        map[string]any `json:"tree"`
		Reads       []readCase     `json:"reads"`
		Writes      []writeCase    `json:"writes"`
	}

	fx := loadFixture[fixture](t, "dynamic_paths.json")

	s := newMemorySettings(t)
	seedTree(t, s, fx.Tree)

	for _, tc := range fx.Reads {
		t.Run(tc.Name, func(t *testing.T) {
			got, err := s.Bool(tc.Path)
			if err != nil {
				t.Fatalf("unexpected error reading %q: %v", tc.Path, err)
			}
			if got != tc.Expect {
				t.Fatalf("expected %v, got %v", tc.Expect, got)
			}
		})
	}

	for _, tc := range fx.Writes {
		t.Run(tc.Name, func(t *testing.T) {
			if err := s.Set(tc.Path, tc.Value); err != nil {
				t.Fatalf("unexpected error writing %q: %v", tc.Path, err)
			}
			got, err := s.Bool(tc.Path)
			if err != nil {
				t.Fatalf("unexpected error reading back %q: %v", tc.Path, err)
			}
			if got != tc.Expect {
				t.Fatalf("expected %v, got %v", tc.Expect, got)
			}
		})
	}
}
