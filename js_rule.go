//go:build js_eval

package settings

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs rule expressions on a fresh goja runtime per evaluation.
// A runtime is cheap to seed and not safe to share across goroutines, so
// only compiled programs are reused.
type jsEvaluator struct {
	programs ProgramCache
	funcs    *FunctionRegistry
}

// NewJSEvaluator returns an Evaluator that runs rules as JavaScript
// via goja.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	seed := newJSRuntimeSeed(opts)
	return &jsEvaluator{programs: seed.cache, funcs: seed.registry}
}

func (e *jsEvaluator) engineName() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapRuleEngineError("js", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaultNow().withDefaultMaps()
	program, err := e.scriptFor(expression)
	if err != nil {
		return nil, wrapRuleError("js", expression, ctx.pathLabel(), err)
	}
	return e.execute(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapRuleEngineError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.scriptFor(expression)
	if err != nil {
		return nil, wrapRuleError("js", expression, "", err)
	}
	return &jsCompiledRule{engine: e, source: expression, compiled: program}, nil
}

// scriptFor compiles the expression wrapped in an immediately invoked
// function, so the script's completion value is the expression's value.
// Compiled programs go through the cache when one is configured.
func (e *jsEvaluator) scriptFor(expression string) (*goja.Program, error) {
	if e.programs != nil {
		if entry, ok := e.programs.Get(expression); ok {
			if program, ok := entry.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	if e.programs != nil {
		e.programs.Set(expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) execute(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	e.seedRuntime(vm, ctx)
	result, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapRuleError("js", expression, ctx.pathLabel(), err)
	}
	return result.Export(), nil
}

// seedRuntime spreads the snapshot first and pins the reserved names after,
// matching the shadowing rule of the other engines.
func (e *jsEvaluator) seedRuntime(vm *goja.Runtime, ctx RuleContext) {
	tree := treeView(ctx.Snapshot)
	for key, value := range tree {
		vm.Set(key, value)
	}
	for name, value := range map[string]any{
		"settings": tree,
		"path":     ctx.Path,
		"value":    ctx.Value,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	} {
		vm.Set(name, value)
	}
	if e.funcs == nil {
		return
	}
	vm.Set("call", func(name string, args ...any) (any, error) {
		return e.funcs.Call(name, args...)
	})
	for _, name := range e.funcs.Names() {
		vm.Set(name, func(args ...any) (any, error) {
			return e.funcs.Call(name, args...)
		})
	}
}

type jsCompiledRule struct {
	engine   *jsEvaluator
	source   string
	compiled *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	if r.engine == nil {
		return nil, wrapRuleEngineError("js", fmt.Errorf("compiled rule missing engine"))
	}
	return r.engine.execute(ctx.withDefaultNow().withDefaultMaps(), r.source, r.compiled)
}

func jsEvaluatorAvailable() bool {
	return true
}
