package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/config"
)

var (
	configPath string
	logDir     string
	mode       string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "toolgate - pre-execution security gate for AI agent tool calls",
	Long: `toolgate inspects every tool invocation an AI coding agent is about to
make (shell commands, file reads and edits, searches, sub-agent tasks) and
blocks the ones that could destroy data, leak credentials, reach the network
or take over the machine. It runs as a PreToolUse hook or as an HTTP service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.toolgate/config.yaml or config.toml)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for allowed.json and blocked.json (default: ~/.toolgate/logs)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "Enforcement mode: enforce or monitor")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostics level: debug, info, warn or error")
}

// exitError carries a non-zero exit code without an error message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

// loadConfig loads the configuration and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{Path: configPath})
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if logDir != "" {
		cfg.LogDir = logDir
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}
