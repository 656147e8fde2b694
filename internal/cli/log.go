package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/audit"
)

type logFilter struct {
	blocked  bool
	allowed  bool
	category string
	last     int
	summary  bool
}

var logOpts logFilter

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit logs",
	Long: `View the allowed.json and blocked.json audit logs, newest last.

Examples:
  toolgate log                          # Show all entries
  toolgate log --last 20                # Show last 20 entries
  toolgate log --blocked                # Show only blocked calls
  toolgate log --category rm_command    # Show one category
  toolgate log --summary                # Show counts per decision and category`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().BoolVar(&logOpts.blocked, "blocked", false, "Show only blocked entries")
	logCmd.Flags().BoolVar(&logOpts.allowed, "allowed", false, "Show only allowed entries")
	logCmd.Flags().StringVar(&logOpts.category, "category", "", "Show only entries of this category")
	logCmd.Flags().IntVar(&logOpts.last, "last", 0, "Show last N entries")
	logCmd.Flags().BoolVar(&logOpts.summary, "summary", false, "Show summary statistics")
	logCmd.MarkFlagsMutuallyExclusive("blocked", "allowed")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	records, err := readAuditLogs(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No audit log entries found in %s.\n", cfg.LogDir)
		return nil
	}

	filtered := logOpts.apply(records)
	if logOpts.summary {
		printSummary(out, records, filtered)
		return nil
	}
	printRecords(out, filtered)
	return nil
}

// readAuditLogs merges both logs in timestamp order.
func readAuditLogs(dir string) ([]audit.Record, error) {
	allowed, errA := audit.ReadFile(filepath.Join(dir, audit.AllowedFile))
	blocked, errB := audit.ReadFile(filepath.Join(dir, audit.BlockedFile))
	if err := errors.Join(errA, errB); err != nil {
		return nil, err
	}
	records := append(allowed, blocked...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (f logFilter) apply(records []audit.Record) []audit.Record {
	var filtered []audit.Record
	for _, r := range records {
		if f.blocked && !r.Blocked() {
			continue
		}
		if f.allowed && r.Blocked() {
			continue
		}
		if f.category != "" && !strings.EqualFold(r.Category, f.category) {
			continue
		}
		filtered = append(filtered, r)
	}
	if f.last > 0 && f.last < len(filtered) {
		filtered = filtered[len(filtered)-f.last:]
	}
	return filtered
}

func printRecords(w io.Writer, records []audit.Record) {
	for _, r := range records {
		ts := r.Timestamp.Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(w, "%s %s %s %s\n", decisionLabel(r.Blocked(), r.Mode != "monitor"), mutedStyle.Render(ts), r.Tool, summarizeInput(r.Input))
		if r.Blocked() {
			fmt.Fprintf(w, "     Category: %s (%s)\n", r.Category, r.Detector)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "     Error: %s\n", r.Error)
		}
		if r.Cwd != "" {
			fmt.Fprintf(w, "     Cwd: %s\n", r.Cwd)
		}
	}
}

// summarizeInput picks the field that best identifies the call.
func summarizeInput(in map[string]any) string {
	for _, key := range []string{"command", "file_path", "pattern", "path", "description"} {
		if v, ok := in[key].(string); ok && v != "" {
			if len(v) > 120 {
				v = v[:117] + "..."
			}
			return v
		}
	}
	return ""
}

func printSummary(w io.Writer, all, filtered []audit.Record) {
	blocked := 0
	errCount := 0
	byCategory := map[string]int{}
	for _, r := range all {
		if r.Blocked() {
			blocked++
			byCategory[r.Category]++
		}
		if r.Error != "" {
			errCount++
		}
	}

	fmt.Fprintln(w, headerStyle.Render("toolgate audit summary"))
	fmt.Fprintf(w, "  Total entries:   %d\n", len(all))
	fmt.Fprintf(w, "  ALLOW:           %d\n", len(all)-blocked)
	fmt.Fprintf(w, "  BLOCK:           %d\n", blocked)
	fmt.Fprintf(w, "  Errors:          %d\n", errCount)
	if len(filtered) != len(all) {
		fmt.Fprintf(w, "  Matching filter: %d\n", len(filtered))
	}
	fmt.Fprintf(w, "  First entry:     %s\n", all[0].Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Last entry:      %s\n", all[len(all)-1].Timestamp.Local().Format("2006-01-02 15:04:05"))

	if len(byCategory) == 0 {
		return
	}
	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if byCategory[cats[i]] != byCategory[cats[j]] {
			return byCategory[cats[i]] > byCategory[cats[j]]
		}
		return cats[i] < cats[j]
	})
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Blocked by category:")
	for _, c := range cats {
		fmt.Fprintf(w, "    %-24s %d\n", c, byCategory[c])
	}
}
