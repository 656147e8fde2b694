package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/audit"
	"github.com/gzhole/toolgate/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show toolgate status: config, packs, hook and audit logs",
	Long: `Check whether toolgate is active: which config file and packs are in
effect, whether the Claude Code hook is installed and how large the audit logs
are.

  toolgate status`,
	RunE: statusCommand,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	home, _ := os.UserHomeDir()
	printStatus(cmd.OutOrStdout(), cfg, filepath.Join(home, ".claude", "settings.json"))
	return nil
}

func printStatus(out io.Writer, cfg *config.Config, claudeSettings string) {
	fmt.Fprintln(out, headerStyle.Render("toolgate status"))

	binPath, err := os.Executable()
	if err != nil {
		binPath = "unknown"
	}
	fmt.Fprintf(out, "  Binary:  %s (%s)\n", binPath, Version)

	cfgFile := cfg.Path
	if cfgFile == "" {
		cfgFile = "(defaults, no config file)"
	}
	fmt.Fprintf(out, "  Config:  %s\n", cfgFile)
	fmt.Fprintf(out, "  Mode:    %s\n", cfg.Mode)
	if os.Getenv(BypassEnv) == "1" {
		fmt.Fprintf(out, "  %s %s=1 is set: evaluation is bypassed\n", warnStyle.Render(iconWarn), BypassEnv)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Policy:")
	fmt.Fprintf(out, "    Protected paths: %d\n", len(cfg.ProtectedPaths))
	fmt.Fprintf(out, "    Extra tools:     %d\n", len(cfg.Tools))
	enabled := 0
	for _, p := range cfg.Packs {
		if p.Enabled {
			enabled++
		}
	}
	fmt.Fprintf(out, "    Packs:           %d installed, %d enabled\n", len(cfg.Packs), enabled)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Hooks:")
	settings, err := readClaudeSettings(claudeSettings)
	installed := false
	if err == nil {
		if hooks, ok := settings["hooks"].(map[string]any); ok {
			entries, _ := hooks["PreToolUse"].([]any)
			for _, e := range entries {
				if isToolgateHookEntry(e) {
					installed = true
				}
			}
		}
	}
	if installed {
		fmt.Fprintf(out, "    %s Claude Code PreToolUse hook installed\n", allowStyle.Render(iconAllow))
	} else {
		fmt.Fprintf(out, "    %s Claude Code hook not installed (toolgate setup claude-code)\n", mutedStyle.Render(iconWarn))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "  Audit:")
	if !cfg.Audit.Files {
		fmt.Fprintln(out, "    File logs disabled")
	} else {
		for _, name := range []string{audit.AllowedFile, audit.BlockedFile} {
			path := filepath.Join(cfg.LogDir, name)
			records, err := audit.ReadFile(path)
			switch {
			case err != nil:
				fmt.Fprintf(out, "    %s %s unreadable: %v\n", warnStyle.Render(iconWarn), path, err)
			default:
				fmt.Fprintf(out, "    %s: %d entries\n", path, len(records))
			}
		}
	}
	if cfg.Audit.ClickHouseDSN != "" {
		fmt.Fprintln(out, "    ClickHouse sink configured")
	}
	if cfg.Audit.PostgresDSN != "" {
		fmt.Fprintln(out, "    Postgres sink configured")
	}
}
