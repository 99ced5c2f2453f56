package settings

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator is the default rule engine. Programs compile against an
// untyped environment with undefined variables allowed, so one compiled
// program serves every snapshot shape.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. The
// facade falls back to this engine when no evaluator is configured.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	engine := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// ExprEvaluatorOption configures the expr engine at construction time.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache reuses compiled expr programs across evaluations.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(engine *exprEvaluator) {
		engine.cache = cache
	}
}

// ExprWithFunctionRegistry makes registry functions callable from expr rules,
// both as call("name", ...) and as bare top level functions. The registry is
// cloned at wiring time, so later Register calls on the original do not reach
// the engine.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(engine *exprEvaluator) {
		if registry != nil {
			engine.registry = registry.Clone()
		}
	}
}

func (e *exprEvaluator) engineName() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapRuleEngineError("expr", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	if e.cache == nil {
		result, err := exprlang.Eval(expression, e.bindings(ctx))
		if err != nil {
			return nil, wrapRuleError("expr", expression, ctx.pathLabel(), err)
		}
		return result, nil
	}
	program, err := e.programFor(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, program)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapRuleEngineError("expr", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.programFor(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledRule{engine: e, program: program, expression: expression}, nil
}

// programFor consults the cache before compiling. Registry functions are
// declared at compile time so call sites resolve even though the environment
// itself stays untyped.
func (e *exprEvaluator) programFor(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if entry, ok := e.cache.Get(expression); ok {
			if program, ok := entry.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	program, err := exprlang.Compile(expression, e.compileOptions()...)
	if err != nil {
		return nil, wrapRuleError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *exprEvaluator) compileOptions() []exprlang.Option {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if e.registry == nil {
		return options
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, func(args ...any) (any, error) {
			return e.registry.Call(name, args...)
		}))
	}
	return options
}

func (e *exprEvaluator) run(ctx RuleContext, expression string, program *exprvm.Program) (any, error) {
	result, err := exprlang.Run(program, e.bindings(ctx))
	if err != nil {
		return nil, wrapRuleError("expr", expression, ctx.pathLabel(), err)
	}
	return result, nil
}

// bindings spreads the snapshot first and pins the reserved names after, so
// no settings key can shadow the candidate value a check rule inspects.
func (e *exprEvaluator) bindings(ctx RuleContext) map[string]any {
	tree := treeView(ctx.Snapshot)
	env := make(map[string]any, len(tree)+7)
	for key, value := range tree {
		env[key] = value
	}
	env["settings"] = tree
	env["path"] = ctx.Path
	env["value"] = ctx.Value
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	if e.registry == nil {
		return env
	}
	env["call"] = func(name string, args ...any) (any, error) {
		return e.registry.Call(name, args...)
	}
	for _, name := range e.registry.Names() {
		env[name] = func(args ...any) (any, error) {
			return e.registry.Call(name, args...)
		}
	}
	return env
}

type exprCompiledRule struct {
	engine     *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.engine == nil {
		return nil, wrapRuleEngineError("expr", fmt.Errorf("compiled rule missing engine"))
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	if r.program == nil {
		return r.engine.Evaluate(ctx, r.expression)
	}
	return r.engine.run(ctx, r.expression, r.program)
}
