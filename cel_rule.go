package settings

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celEvaluator runs rule expressions through cel-go. CEL checks expressions
// against declared identifiers, so the environment is rebuilt from the top
// level keys of the snapshot a rule evaluates against.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator returns an Evaluator that runs rules as CEL
// expressions via cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	engine := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// CELEvaluatorOption configures the CEL engine at construction time.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache reuses checked CEL programs across evaluations.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(engine *celEvaluator) {
		engine.cache = cache
	}
}

// CELWithFunctionRegistry makes registry functions callable from CEL rules
// through call("name", ...). The registry is cloned at wiring time, so later
// Register calls on the original do not reach the engine.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(engine *celEvaluator) {
		if registry != nil {
			engine.registry = registry.Clone()
		}
	}
}

func (e *celEvaluator) engineName() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapRuleEngineError("cel", fmt.Errorf("expression must not be empty"))
	}
	return e.eval(ctx.withDefaultNow().withDefaultMaps(), expression)
}

func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapRuleEngineError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledRule{engine: e, expression: expression}, nil
}

func (e *celEvaluator) eval(ctx RuleContext, expression string) (any, error) {
	tree := treeView(ctx.Snapshot)
	program, err := e.programFor(expression, tree)
	if err != nil {
		return nil, wrapRuleError("cel", expression, ctx.pathLabel(), err)
	}
	out, _, err := program.Eval(e.bindings(ctx, tree))
	if err != nil {
		return nil, wrapRuleError("cel", expression, ctx.pathLabel(), err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) programFor(expression string, tree map[string]any) (celgo.Program, error) {
	if e.cache != nil {
		if entry, ok := e.cache.Get(expression); ok {
			if program, ok := entry.(celgo.Program); ok {
				return program, nil
			}
		}
	}
	env, err := e.declare(tree)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

// declare builds an environment with the reserved rule names plus one dyn
// declaration per top level snapshot key.
func (e *celEvaluator) declare(tree map[string]any) (*celgo.Env, error) {
	decls := []celgo.EnvOption{
		celgo.Variable("settings", celgo.DynType),
		celgo.Variable("path", celgo.StringType),
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("metadata", celgo.DynType),
	}
	if e.registry != nil {
		decls = append(decls, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType},
			celgo.DynType,
			celgo.FunctionBinding(e.registryOverload()),
		)))
	}
	for key := range tree {
		if reservedRuleName(key) {
			continue
		}
		decls = append(decls, celgo.Variable(key, celgo.DynType))
	}
	return celgo.NewEnv(decls...)
}

// bindings spreads the snapshot first and pins the reserved names after, so
// no settings key can shadow the candidate value a check rule inspects.
func (e *celEvaluator) bindings(ctx RuleContext, tree map[string]any) map[string]any {
	vars := make(map[string]any, len(tree)+7)
	for key, value := range tree {
		vars[key] = value
	}
	vars["settings"] = tree
	vars["path"] = ctx.Path
	vars["value"] = ctx.Value
	vars["now"] = ctx.timestamp()
	vars["args"] = ctx.Args
	vars["metadata"] = ctx.Metadata
	if e.registry != nil {
		vars["call"] = func(name string, args ...any) (any, error) {
			return e.registry.Call(name, args...)
		}
	}
	return vars
}

// registryOverload adapts FunctionRegistry.Call to the ref.Val calling
// convention cel-go hands var-arg overloads. It is only installed when a
// registry is wired, so the registry pointer is always usable here.
func (e *celEvaluator) registryOverload() functions.FunctionOp {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("settings: call requires a function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("settings: call name must be a string")
		}
		args := make([]any, 0, len(values)-1)
		for _, value := range values[1:] {
			args = append(args, value.Value())
		}
		out, err := e.registry.Call(name, args...)
		switch {
		case err != nil:
			return types.NewErr(err.Error())
		case out == nil:
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(out)
	}
}

// celCompiledRule defers to the engine per evaluation. The checked program
// depends on the snapshot's key set, so nothing snapshot-independent can be
// pinned at compile time beyond the expression itself.
type celCompiledRule struct {
	engine     *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.engine == nil {
		return nil, wrapRuleEngineError("cel", fmt.Errorf("compiled rule missing engine"))
	}
	return r.engine.eval(ctx.withDefaultNow().withDefaultMaps(), r.expression)
}

// treeView coerces a rule context snapshot into the nested map form every
// engine consumes. Anything else evaluates against an empty tree.
func treeView(snapshot any) map[string]any {
	if tree, ok := snapshot.(map[string]any); ok && tree != nil {
		return tree
	}
	return map[string]any{}
}

// reservedRuleName reports whether the engines inject key themselves. Tree
// keys that collide stay reachable through the settings alias.
func reservedRuleName(key string) bool {
	switch key {
	case "settings", "path", "value", "now", "args", "metadata", "call":
		return true
	}
	return false
}
