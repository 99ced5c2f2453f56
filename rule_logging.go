package settings

import "time"

// RuleLogEvent is the per-evaluation record handed to a RuleLogger. Err is
// nil when the rule evaluated cleanly.
type RuleLogEvent struct {
	Engine   string
	Expr     string
	Path     string
	Duration time.Duration
	Err      error
}

// RuleLogger observes every rule evaluation the facade performs.
type RuleLogger interface {
	LogRule(RuleLogEvent)
}

// RuleLoggerFunc adapts a plain function to RuleLogger. The nil func logs
// nothing, which doubles as the no-op logger.
type RuleLoggerFunc func(RuleLogEvent)

func (f RuleLoggerFunc) LogRule(event RuleLogEvent) {
	if f != nil {
		f(event)
	}
}

// WithRuleLogger attaches a rule evaluation logger to the facade.
func WithRuleLogger(logger RuleLogger) Option {
	return func(cfg *config) {
		cfg.ruleLogger = logger
	}
}
