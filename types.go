package settings

import (
	"context"
	"log/slog"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Record is one persisted leaf: the joined key path, the kind tag, and the
// value's encoded text. Group structure is implicit in shared path prefixes.
type Record struct {
	Path string `json:"path" yaml:"path" cbor:"path"`
	Kind Kind   `json:"kind" yaml:"kind" cbor:"kind"`
	Text string `json:"value" yaml:"value" cbor:"value"`
}

// NewRecord encodes a value into its persisted record form.
func NewRecord(path Path, v Value) Record {
	return Record{Path: path.String(), Kind: v.Kind(), Text: encodeText(v)}
}

// Value decodes the record's text back into a tagged value.
func (r Record) Value() (Value, error) {
	return decodeText(r.Kind, r.Text)
}

// Snapshot is the complete serialized state of a settings tree at a point in
// time. Records are sorted by path. The ID identifies one written generation
// and lets a file watcher tell its own writes apart from external ones.
type Snapshot struct {
	ID      string   `json:"id,omitempty" yaml:"id,omitempty" cbor:"id,omitempty"`
	Records []Record `json:"records" yaml:"records" cbor:"records"`
}

// Clone returns a snapshot detached from the original record slice.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{ID: s.ID}
	if s.Records != nil {
		out.Records = make([]Record, len(s.Records))
		copy(out.Records, s.Records)
	}
	return out
}

// Len returns the number of records.
func (s Snapshot) Len() int {
	return len(s.Records)
}

// Backend persists snapshots. Load of an absent store yields an empty
// Snapshot and no error; unparsable content fails with ErrCorruptStore and
// write failures leave the previously persisted snapshot intact.
type Backend interface {
	Load(ctx context.Context) (Snapshot, error)
	Write(ctx context.Context, snap Snapshot) error
}

// SnapshotCodec translates snapshots to and from a byte layout. File
// backends delegate the byte layout here so formats can be substituted.
type SnapshotCodec interface {
	Encode(snap Snapshot) ([]byte, error)
	Decode(data []byte) (Snapshot, error)
}

// RuleContext carries the inputs available to a rule expression.
type RuleContext struct {
	// Snapshot is the nested native view of the current settings tree.
	Snapshot any
	// Path names the setting the rule runs for.
	Path string
	// Value carries the candidate value when a check rule runs on a write.
	Value any
	Now   *time.Time
	Args  map[string]any
	// Metadata carries host-supplied context shared by every rule.
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) pathLabel() string {
	if ctx.Path != "" {
		return ctx.Path
	}
	return "unknown"
}

// Evaluator executes rule expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule is an expression prepared once and evaluated many times.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption adjusts how an engine prepares a CompiledRule.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Option configures a Settings facade.
type Option func(*config)

type config struct {
	backend        Backend
	defaults       *Defaults
	evaluator      Evaluator
	programCache   ProgramCache
	ruleFuncs      *FunctionRegistry
	ruleLogger     RuleLogger
	schemaGen      SchemaGenerator
	logger         *slog.Logger
	hooks          activity.Hooks
	emitterCfg     activity.Config
	fallbacks      []fallbackSource
	watchDebounce  time.Duration
	flushOnClose   bool
	resetOnCorrupt bool
	bindingSync    bool
	err            error
}

func applyOptions(opts []Option) config {
	cfg := config{
		bindingSync:   true,
		watchDebounce: defaultWatchDebounce,
		emitterCfg:    activity.Config{Enabled: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// fail records the first configuration error; New surfaces it.
func (cfg *config) fail(err error) {
	if cfg.err == nil {
		cfg.err = err
	}
}

// WithBackend selects the persistence adapter. The default is an in-memory
// backend, so disk access is always an explicit choice.
func WithBackend(backend Backend) Option {
	return func(cfg *config) {
		cfg.backend = backend
	}
}

// WithDefaults registers the declaration table consulted on missing keys.
func WithDefaults(defaults *Defaults) Option {
	return func(cfg *config) {
		cfg.defaults = defaults
	}
}

// WithEvaluator configures the rule evaluator. Without one, declarations
// with rules fall back to the expr engine.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = evaluator
	}
}

// WithSchemaGenerator swaps the generator behind Schema. The default emits
// the flattened descriptor list.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *config) {
		cfg.schemaGen = generator
	}
}

// WithLogger sets the logger used for watcher diagnostics and best-effort
// hook failures.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithFlushOnClose makes Close perform a final flush, the scoped-acquisition
// lifecycle for hosts that pair New with a deferred Close.
func WithFlushOnClose(enabled bool) Option {
	return func(cfg *config) {
		cfg.flushOnClose = enabled
	}
}

// WithResetOnCorrupt opts into starting from an empty tree when the backend
// holds unparsable data. Without it ErrCorruptStore is surfaced.
func WithResetOnCorrupt(enabled bool) Option {
	return func(cfg *config) {
		cfg.resetOnCorrupt = enabled
	}
}

// WithBindingSync controls whether Flush pulls declared getters and loads
// push declared setters automatically. Enabled by default.
func WithBindingSync(enabled bool) Option {
	return func(cfg *config) {
		cfg.bindingSync = enabled
	}
}

// WithWatchDebounce adjusts how long the watcher coalesces change bursts
// before signalling.
func WithWatchDebounce(interval time.Duration) Option {
	return func(cfg *config) {
		if interval > 0 {
			cfg.watchDebounce = interval
		}
	}
}

func (cfg *config) activeLogger() *slog.Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return slog.Default()
}

func (cfg *config) ruleLoggerOrNoop() RuleLogger {
	if cfg.ruleLogger != nil {
		return cfg.ruleLogger
	}
	return RuleLoggerFunc(nil)
}

func (cfg *config) schemaGenerator() SchemaGenerator {
	if cfg.schemaGen != nil {
		return cfg.schemaGen
	}
	return DefaultSchemaGenerator()
}
