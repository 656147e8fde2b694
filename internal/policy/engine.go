package policy

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/resolver"
	"github.com/gzhole/toolgate/internal/textnorm"
)

// Engine classifies invocations, resolves indirect execution and runs the
// registry. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	registry  *Registry
	catalogue invocation.Catalogue
	resolver  *resolver.Resolver
	mode      Mode
	logger    *zap.Logger
	protected *PathSet
}

// Options configures NewEngine. Zero values select defaults.
type Options struct {
	Mode           Mode
	Catalogue      invocation.Catalogue
	Resolver       *resolver.Resolver
	ProtectedPaths []string
	HomeDir        string
	Logger         *zap.Logger

	// Registry replaces the built-in detectors.
	Registry *Registry
}

func NewEngine(opts Options) (*Engine, error) {
	e := &Engine{
		registry:  opts.Registry,
		catalogue: opts.Catalogue,
		resolver:  opts.Resolver,
		mode:      opts.Mode,
		logger:    opts.Logger,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.mode == "" {
		e.mode = ModeEnforce
	}
	if e.mode != ModeEnforce && e.mode != ModeMonitor {
		return nil, fmt.Errorf("unknown mode %q", e.mode)
	}
	if e.catalogue == nil {
		e.catalogue = invocation.DefaultCatalogue()
	}
	if e.resolver == nil {
		e.resolver = resolver.New(resolver.WithLogger(e.logger))
	}

	homeDir := opts.HomeDir
	if homeDir == "" {
		homeDir, _ = os.UserHomeDir()
	}
	protected, err := NewPathSet(opts.ProtectedPaths, homeDir)
	if err != nil {
		return nil, err
	}
	e.protected = protected

	if e.registry == nil {
		e.registry = NewRegistry(protected)
	}
	return e, nil
}

// Mode returns whether blocks are enforced or only reported.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Registry returns the detectors the engine runs.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate decides one invocation. Any internal fault yields Allow with Err
// set; Evaluate never panics.
func (e *Engine) Evaluate(inv invocation.Invocation) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation failed, allowing",
				zap.String("tool", inv.ToolName),
				zap.Any("panic", r))
			result = Result{
				Decision: DecisionAllow,
				Tool:     inv.ToolName,
				Err:      fmt.Errorf("evaluation panic: %v", r),
			}
		}
	}()

	input := invocation.Classify(inv, e.catalogue)
	view := input.View()

	var res resolver.Resolution
	if view.Kind == invocation.KindBash && view.Command != "" {
		if raw, ok := inv.Input["command"].(string); ok {
			if findings := textnorm.Inspect(raw); len(findings) > 0 {
				e.logger.Debug("command contained obfuscating characters",
					zap.Int("count", len(findings)),
					zap.String("first", findings[0].Kind))
			}
		}
		res = e.resolver.Resolve(view.Command, inv.Cwd)
	}

	subject := NewSubject(view, res)
	d, ok := e.registry.Match(subject)
	if !ok {
		return Result{Decision: DecisionAllow, Tool: inv.ToolName}
	}

	e.logger.Debug("invocation blocked",
		zap.String("tool", inv.ToolName),
		zap.String("category", string(d.Category)),
		zap.String("detector", d.ID))

	return Result{
		Decision:   DecisionBlock,
		Category:   d.Category,
		Message:    d.Category.Message(),
		DetectorID: d.ID,
		Tool:       inv.ToolName,
	}
}

// EvaluateJSON parses a raw hook envelope and evaluates it. Malformed input
// is allowed, with the parse error in Result.Err.
func (e *Engine) EvaluateJSON(data []byte) (inv invocation.Invocation, result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Decision: DecisionAllow, Err: fmt.Errorf("evaluation panic: %v", r)}
		}
	}()

	inv, err := invocation.ParseEnvelope(data)
	if err != nil {
		e.logger.Debug("malformed envelope, allowing", zap.Error(err))
		return inv, Result{Decision: DecisionAllow, Err: err}
	}
	return inv, e.Evaluate(inv)
}
