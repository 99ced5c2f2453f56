package settings

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("settings: rule evaluator not configured")

// ProgramCache stores compiled rule programs keyed by expression text.
// Entries are type-asserted on the way out, so an entry written by a
// different engine reads as a miss rather than a wrong program.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a compiled program cache on the facade. The
// default engine picks it up; explicitly constructed engines receive theirs
// through the engine options.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// Evaluate executes expr against the current settings tree using the
// configured rule engine. Hosts can probe rule expressions with it outside
// any declaration.
func (s *Settings) Evaluate(expr string) (any, error) {
	return s.evaluateRule(RuleContext{}, expr)
}

// EvaluateWith executes expr using ctx, falling back to the current tree
// when ctx.Snapshot is nil.
func (s *Settings) EvaluateWith(ctx RuleContext, expr string) (any, error) {
	return s.evaluateRule(ctx, expr)
}

// evaluateRule runs one rule with timing and logging applied. Declaration
// resolution and check enforcement both funnel through here.
func (s *Settings) evaluateRule(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = s.store.Native()
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	engine := ruleEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapRuleError(engine, expr, ctx.pathLabel(), evalErr)
	s.ruleLogger.LogRule(RuleLogEvent{
		Engine:   engine,
		Expr:     expr,
		Path:     ctx.pathLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func (s *Settings) resolveEvaluator() (Evaluator, error) {
	if s.evaluator == nil {
		s.evaluator = s.defaultRuleEngine()
	}
	if s.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return s.evaluator, nil
}

// defaultRuleEngine builds the expr fallback engine, carrying over whatever
// program cache and function registry the facade was configured with. Both
// engine options tolerate nil, so no conditional wiring is needed.
func (s *Settings) defaultRuleEngine() Evaluator {
	return NewExprEvaluator(
		ExprWithProgramCache(s.programCache),
		ExprWithFunctionRegistry(s.ruleFuncs),
	)
}

// engineNamer lets engines self-report for rule logging. A type switch
// cannot serve here: the goja engine type only exists under its build tag.
type engineNamer interface {
	engineName() string
}

func ruleEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(engineNamer); ok {
		return named.engineName()
	}
	return "custom"
}
