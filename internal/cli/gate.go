package cli

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gzhole/toolgate/internal/audit"
	"github.com/gzhole/toolgate/internal/config"
	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/policy"
	"github.com/gzhole/toolgate/internal/resolver"
)

// gate bundles everything a command needs to evaluate and record invocations.
type gate struct {
	cfg      *config.Config
	engine   *policy.Engine
	recorder *audit.Recorder
	logger   *zap.Logger
}

// buildLogger creates the diagnostics logger. It always writes to stderr so
// that hook output on stdout stays clean.
func buildLogger(level string, json bool) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.WarnLevel
	}

	encoding := "console"
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	if json {
		encoding = "json"
		encoderCfg = zap.NewProductionEncoderConfig()
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

// newEngine builds a policy engine from cfg.
func newEngine(cfg *config.Config, logger *zap.Logger) (*policy.Engine, error) {
	catalogue, err := invocation.DefaultCatalogue().With(cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	res := resolver.New(
		resolver.WithMaxScriptBytes(cfg.MaxScriptBytes),
		resolver.WithLogger(logger),
	)
	return policy.NewEngine(policy.Options{
		Mode:           policy.Mode(cfg.Mode),
		Catalogue:      catalogue,
		Resolver:       res,
		ProtectedPaths: cfg.ProtectedPaths,
		Logger:         logger,
	})
}

// newRecorder opens every configured audit sink. A sink that cannot be
// opened is logged and left out; auditing never stops evaluation.
func newRecorder(ctx context.Context, cfg *config.Config, logger *zap.Logger) *audit.Recorder {
	var sinks audit.Multi

	if cfg.Audit.Files {
		if fs, err := audit.NewFileSink(cfg.LogDir); err != nil {
			logger.Warn("file audit disabled", zap.String("dir", cfg.LogDir), zap.Error(err))
		} else {
			sinks = append(sinks, fs)
		}
	}
	if cfg.Audit.ClickHouseDSN != "" {
		if ch, err := audit.NewClickHouseSink(ctx, cfg.Audit.ClickHouseDSN, logger); err != nil {
			logger.Warn("clickhouse audit disabled", zap.Error(err))
		} else {
			sinks = append(sinks, ch)
		}
	}
	if cfg.Audit.PostgresDSN != "" {
		if pg, err := audit.NewPostgresSink(ctx, cfg.Audit.PostgresDSN); err != nil {
			logger.Warn("postgres audit disabled", zap.Error(err))
		} else {
			sinks = append(sinks, pg)
		}
	}

	if len(sinks) == 0 {
		return audit.NewRecorder(nil, policy.Mode(cfg.Mode), logger)
	}
	return audit.NewRecorder(sinks, policy.Mode(cfg.Mode), logger)
}

// newGate wires cfg into an engine and, when withAudit is set, a recorder.
func newGate(ctx context.Context, cfg *config.Config, logger *zap.Logger, withAudit bool) (*gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	g := &gate{cfg: cfg, engine: engine, logger: logger}
	if withAudit {
		g.recorder = newRecorder(ctx, cfg, logger)
	}
	return g, nil
}

// openGate loads configuration and builds a gate for a CLI command.
func openGate(ctx context.Context, withAudit bool) (*gate, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := buildLogger(cfg.LogLevel, false)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return newGate(ctx, cfg, logger, withAudit)
}

func (g *gate) Close() {
	if err := g.recorder.Close(); err != nil {
		g.logger.Warn("closing audit sinks", zap.Error(err))
	}
	_ = g.logger.Sync()
}

// warnf prints a one-line operator warning on stderr.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[toolgate] warning: "+format+"\n", args...)
}
