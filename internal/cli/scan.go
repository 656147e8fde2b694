package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"

	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/policy"
)

var scanCmd = &cobra.Command{
	Use:   "scan FILE|-",
	Short: "Evaluate every statement of a shell script",
	Long: `Parse a shell script and evaluate each top-level statement as if an agent
had asked to run it through the Bash tool. Nothing is executed.

  toolgate scan ./deploy.sh
  cat setup.sh | toolgate scan -

Scripts that do not parse are checked line by line. Exit status is 2 when any
statement would be blocked.`,
	Args: cobra.ExactArgs(1),
	RunE: scanCommand,
}

var scanJSON bool

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print findings as a JSON array")
	rootCmd.AddCommand(scanCmd)
}

// statement is one command extracted from a script.
type statement struct {
	Line int
	Text string
}

type scanFinding struct {
	statement
	Result policy.Result
}

func scanCommand(cmd *cobra.Command, args []string) error {
	name := args[0]
	var (
		data []byte
		err  error
		cwd  string
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		cwd, _ = os.Getwd()
	} else {
		data, err = os.ReadFile(name)
		if abs, absErr := filepath.Abs(name); absErr == nil {
			cwd = filepath.Dir(abs)
		}
	}
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	g, err := openGate(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer g.Close()

	findings := scanScript(g.engine, data, name, cwd)
	blocked := 0
	if scanJSON {
		for _, f := range findings {
			if f.Result.Blocked() {
				blocked++
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(findings); err != nil {
			return err
		}
	} else {
		blocked = printScan(cmd.OutOrStdout(), findings, g.engine.Mode())
	}

	if blocked > 0 && g.engine.Mode() == policy.ModeEnforce {
		return &exitError{code: exitBlock}
	}
	return nil
}

// splitStatements returns the top-level statements of script. When the
// script does not parse, every non-blank, non-comment line is a statement.
func splitStatements(script []byte, name string) ([]statement, bool) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(bytes.NewReader(script), name)
	if err != nil {
		return splitLines(script), false
	}

	printer := syntax.NewPrinter()
	stmts := make([]statement, 0, len(file.Stmts))
	for _, st := range file.Stmts {
		var sb strings.Builder
		if err := printer.Print(&sb, st); err != nil {
			continue
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		stmts = append(stmts, statement{Line: int(st.Pos().Line()), Text: text})
	}
	return stmts, true
}

func splitLines(script []byte) []statement {
	var stmts []statement
	sc := bufio.NewScanner(bytes.NewReader(script))
	sc.Buffer(make([]byte, 0, 64*1024), len(script)+1)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stmts = append(stmts, statement{Line: n, Text: line})
	}
	return stmts
}

func scanScript(engine *policy.Engine, script []byte, name, cwd string) []scanFinding {
	stmts, _ := splitStatements(script, name)
	findings := make([]scanFinding, 0, len(stmts))
	for _, st := range stmts {
		inv := invocation.Invocation{
			ToolName: "Bash",
			Input:    map[string]any{"command": st.Text},
			Cwd:      cwd,
		}
		findings = append(findings, scanFinding{statement: st, Result: engine.Evaluate(inv)})
	}
	return findings
}

// printScan writes one line per statement and returns the number blocked.
func printScan(w io.Writer, findings []scanFinding, mode policy.Mode) int {
	blocked := 0
	for _, f := range findings {
		text := f.Text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i] + " ..."
		}
		label := decisionLabel(f.Result.Blocked(), mode == policy.ModeEnforce)
		if f.Result.Blocked() {
			blocked++
			fmt.Fprintf(w, "%4d  %s  %s  %s\n", f.Line, label, text, mutedStyle.Render("["+string(f.Result.Category)+"]"))
			continue
		}
		fmt.Fprintf(w, "%4d  %s  %s\n", f.Line, label, text)
	}
	fmt.Fprintf(w, "\n%d statements, %d blocked\n", len(findings), blocked)
	return blocked
}

// MarshalJSON flattens a finding for --json output.
func (f scanFinding) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Line     int             `json:"line"`
		Command  string          `json:"command"`
		Decision policy.Decision `json:"decision"`
		Category policy.Category `json:"category,omitempty"`
		Detector string          `json:"detector,omitempty"`
	}{f.Line, f.Text, f.Result.Decision, f.Result.Category, f.Result.DetectorID})
}
