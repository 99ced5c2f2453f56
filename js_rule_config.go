package settings

// jsRuntimeSeed collects JS engine wiring before any runtime exists. It
// lives outside the js_eval build tag so option values can be constructed
// and passed whether or not the engine is compiled in.
type jsRuntimeSeed struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

func newJSRuntimeSeed(opts []JSEvaluatorOption) jsRuntimeSeed {
	var seed jsRuntimeSeed
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&seed)
	}
	return seed
}

// JSEvaluatorOption configures the JS engine at construction time.
type JSEvaluatorOption func(*jsRuntimeSeed)

// JSWithProgramCache reuses compiled goja programs across evaluations.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(seed *jsRuntimeSeed) {
		seed.cache = cache
	}
}

// JSWithFunctionRegistry makes registry functions callable from JS rules,
// both as call("name", ...) and as bare top level functions. The registry is
// cloned at wiring time, so later Register calls on the original do not
// reach the engine.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(seed *jsRuntimeSeed) {
		if registry != nil {
			seed.registry = registry.Clone()
		}
	}
}
