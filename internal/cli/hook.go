package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/gzhole/toolgate/internal/policy"
)

// BypassEnv disables evaluation when set to "1".
const BypassEnv = "TOOLGATE_BYPASS"

const (
	exitAllow = 0
	exitBlock = 2
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "PreToolUse hook handler: evaluate one tool call read from stdin",
	Long: `Reads a hook envelope {"tool_name": ..., "tool_input": {...}, "cwd": ...}
from stdin and evaluates it.

Exit status 0 allows the call. Exit status 2 blocks it; the reason is written
to stderr so the agent can see why. Input that cannot be parsed is allowed.

Set TOOLGATE_BYPASS=1 to disable evaluation temporarily.

Setup:
  toolgate setup claude-code`,
	RunE: hookCommand,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func hookCommand(cmd *cobra.Command, args []string) error {
	if os.Getenv(BypassEnv) == "1" {
		_, _ = io.Copy(io.Discard, os.Stdin)
		return nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		warnf("hook expects a JSON envelope on stdin; nothing was piped, allowing")
		return nil
	}

	g, err := openGate(cmd.Context(), true)
	if err != nil {
		_, _ = io.Copy(io.Discard, os.Stdin)
		warnf("%v; allowing", err)
		return nil
	}
	defer g.Close()

	if code := runHook(cmd.Context(), g, os.Stdin, os.Stderr); code != exitAllow {
		return &exitError{code: code}
	}
	return nil
}

// runHook evaluates one envelope and returns the process exit code. It never
// fails closed: read errors, parse errors and internal faults all allow.
func runHook(ctx context.Context, g *gate, stdin io.Reader, stderr io.Writer) int {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "[toolgate] warning: could not read hook input: %v\n", err)
		return exitAllow
	}

	inv, res := g.engine.EvaluateJSON(data)
	if res.Err != nil {
		fmt.Fprintf(stderr, "[toolgate] warning: %v; allowing\n", res.Err)
		if inv.ToolName == "" {
			return exitAllow
		}
	}

	g.recorder.Record(ctx, inv, res)

	if !res.Blocked() {
		return exitAllow
	}

	if g.engine.Mode() == policy.ModeMonitor {
		g.logger.Warn("would block (monitor mode)",
			zap.String("tool", res.Tool),
			zap.String("category", string(res.Category)),
			zap.String("detector", res.DetectorID))
		fmt.Fprintf(stderr, "[toolgate] monitor: would block %s call (%s)\n", res.Tool, res.Category)
		return exitAllow
	}

	fmt.Fprintln(stderr, res.Message)
	return exitBlock
}
