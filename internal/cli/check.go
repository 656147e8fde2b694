package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/policy"
)

type checkOptions struct {
	tool        string
	command     string
	filePath    string
	pattern     string
	path        string
	glob        string
	prompt      string
	description string
	cwd         string
	rawJSON     string
}

var checkOpts checkOptions

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a single tool call without running it",
	Long: `Evaluate one tool invocation and print the decision. Nothing is executed
and nothing is written to the audit logs.

Examples:
  toolgate check --command 'rm -rf /'
  toolgate check --tool Read --file-path ~/.ssh/id_rsa
  toolgate check --tool Grep --pattern password --path /etc
  toolgate check --json '{"tool_name":"Bash","tool_input":{"command":"ls"}}'

Exit status is 2 when the call would be blocked, as for the hook.`,
	RunE: checkCommand,
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkOpts.tool, "tool", "Bash", "Tool name")
	f.StringVar(&checkOpts.command, "command", "", "Bash command")
	f.StringVar(&checkOpts.filePath, "file-path", "", "file_path for Read, Write, Edit and similar tools")
	f.StringVar(&checkOpts.pattern, "pattern", "", "pattern for Glob and Grep")
	f.StringVar(&checkOpts.path, "path", "", "path for Grep and LS")
	f.StringVar(&checkOpts.glob, "glob", "", "glob filter for Grep")
	f.StringVar(&checkOpts.prompt, "prompt", "", "prompt for Task")
	f.StringVar(&checkOpts.description, "description", "", "description for Task")
	f.StringVar(&checkOpts.cwd, "cwd", "", "Working directory used to resolve scripts")
	f.StringVar(&checkOpts.rawJSON, "json", "", "Full hook envelope; overrides the other flags")
	rootCmd.AddCommand(checkCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	envelope, err := checkOpts.envelope()
	if err != nil {
		return err
	}

	g, err := openGate(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer g.Close()

	inv, res := g.engine.EvaluateJSON(envelope)
	if res.Err != nil && inv.ToolName == "" {
		return fmt.Errorf("invalid envelope: %w", res.Err)
	}
	printResult(cmd.OutOrStdout(), res, g.engine.Mode())

	if res.Blocked() && g.engine.Mode() == policy.ModeEnforce {
		return &exitError{code: exitBlock}
	}
	return nil
}

// envelope builds the hook JSON for the flags that were set.
func (o checkOptions) envelope() ([]byte, error) {
	if o.rawJSON != "" {
		return []byte(o.rawJSON), nil
	}
	if o.tool == "" {
		return nil, errors.New("--tool must not be empty")
	}

	input := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			input[key] = value
		}
	}
	set("command", o.command)
	set("file_path", o.filePath)
	set("pattern", o.pattern)
	set("path", o.path)
	set("glob", o.glob)
	set("prompt", o.prompt)
	set("description", o.description)
	if len(input) == 0 {
		return nil, errors.New("nothing to check: pass --command, --file-path, --pattern, --path, --prompt or --json")
	}

	env := invocation.Invocation{ToolName: o.tool, Input: input, Cwd: o.cwd}
	return json.Marshal(env)
}

func printResult(w io.Writer, res policy.Result, mode policy.Mode) {
	fmt.Fprintln(w, decisionLabel(res.Blocked(), mode == policy.ModeEnforce))
	if !res.Blocked() {
		if res.Err != nil {
			fmt.Fprintln(w, mutedStyle.Render("  note: "+res.Err.Error()))
		}
		return
	}
	fmt.Fprintf(w, "  category: %s\n", res.Category)
	fmt.Fprintf(w, "  detector: %s\n", res.DetectorID)
	fmt.Fprintf(w, "  %s\n", res.Message)
}
