package settings

import (
	"errors"
	"fmt"
	"strings"
)

// RuleError carries the engine, expression, and settings path a failed rule
// ran under. Wrapping code fills only the fields still blank, so the wrap
// closest to the failure wins.
type RuleError struct {
	Engine string
	Expr   string
	Path   string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	path := e.Path
	if path == "" {
		path = "unknown"
	}
	return fmt.Sprintf("settings: %s rule %q at %s: %v", e.Engine, e.Expr, path, e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// fill completes blank metadata without overwriting what an inner wrap set.
func (e *RuleError) fill(engine, expr, path string) {
	if e.Engine == "" {
		e.Engine = engine
	}
	if e.Expr == "" {
		e.Expr = expr
	}
	if e.Path == "" {
		e.Path = path
	}
}

// wrapRuleError attaches rule metadata to err. An error that already is a
// RuleError is completed in place rather than wrapped a second time.
func wrapRuleError(engine, expr, path string, err error) error {
	if err == nil {
		return nil
	}
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		ruleErr.fill(engine, expr, path)
		return ruleErr
	}
	return &RuleError{Engine: engine, Expr: expr, Path: path, Err: err}
}

// wrapRuleEngineError prefixes engine failures that carry no expression
// context yet. Errors already tagged with settings context pass through.
func wrapRuleEngineError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s rule engine: %w", engine, err)
}
