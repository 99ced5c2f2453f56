//go:build !js_eval

package settings

// NewJSEvaluator returns nil unless the binary is built with the js_eval
// tag. Options are still consumed so call sites compile either way.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = newJSRuntimeSeed(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
