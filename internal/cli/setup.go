package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/config"
)

// hookCommandLine is what Claude Code runs for every tool call.
const hookCommandLine = "toolgate hook"

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Set up toolgate for your environment",
	Long: `Create the toolgate config directory and install agent integrations.

  toolgate setup --install              # create ~/.toolgate with a sample config
  toolgate setup claude-code            # install Claude Code PreToolUse hook
  toolgate setup claude-code --disable  # remove Claude Code hook
  toolgate setup                        # show integration instructions`,
	RunE: setupCommand,
}

var setupClaudeCodeCmd = &cobra.Command{
	Use:   "claude-code",
	Short: "Set up toolgate for Claude Code (PreToolUse hook)",
	Long: `Install or remove the PreToolUse hook so every tool call Claude Code
makes is evaluated by toolgate before execution.

  toolgate setup claude-code             # enable hook
  toolgate setup claude-code --disable   # disable hook`,
	RunE: setupClaudeCodeCommand,
}

var (
	installFlag bool
	disableFlag bool
)

func init() {
	setupCmd.Flags().BoolVar(&installFlag, "install", false, "Create the config directory, packs directory and a sample config")
	setupClaudeCodeCmd.Flags().BoolVar(&disableFlag, "disable", false, "Remove the toolgate hook")
	setupCmd.AddCommand(setupClaudeCodeCmd)
	rootCmd.AddCommand(setupCmd)
}

// toolgateHookEntry is the hook object inserted into Claude Code settings.
func toolgateHookEntry() map[string]any {
	return map[string]any{
		"matcher": "*",
		"hooks": []any{
			map[string]any{
				"type":    "command",
				"command": hookCommandLine,
			},
		},
	}
}

const sampleConfig = `# toolgate configuration
# mode: enforce blocks dangerous calls; monitor only reports them.
mode: enforce
log_level: warn

# Extra paths treated like credential files. Globs use / as separator and
# ** for any depth; ~ expands to the home directory.
protected_paths: []

# Map additional tool names onto a known input shape:
# bash, file, glob, grep, ls or task.
tools: {}

audit:
  files: true
  clickhouse_dsn: ""
  postgres_dsn: ""

serve:
  addr: "127.0.0.1:8787"
  api_key_hash: ""
`

func setupCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if installFlag {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		return runSetupInstall(out, filepath.Join(home, config.DefaultConfigDir))
	}
	printSetupInstructions(out)
	return nil
}

func runSetupInstall(out io.Writer, configDir string) error {
	for _, dir := range []string{configDir, filepath.Join(configDir, config.DefaultPacksDir), filepath.Join(configDir, config.DefaultLogDir)} {
		if err := config.EnsureDir(dir); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	cfgPath := filepath.Join(configDir, config.DefaultYAMLFile)
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintf(out, "%s Config already present: %s\n", iconAllow, cfgPath)
		return nil
	}
	if _, err := os.Stat(filepath.Join(configDir, config.DefaultTOMLFile)); err == nil {
		fmt.Fprintf(out, "%s TOML config already present in %s\n", iconAllow, configDir)
		return nil
	}
	if err := os.WriteFile(cfgPath, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", cfgPath, err)
	}
	fmt.Fprintf(out, "%s Sample config written: %s\n", iconAllow, cfgPath)
	return nil
}

func setupClaudeCodeCommand(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	settingsPath := filepath.Join(home, ".claude", "settings.json")
	out := cmd.OutOrStdout()

	if disableFlag {
		return disableClaudeCodeHook(out, settingsPath)
	}

	if binPath, err := exec.LookPath("toolgate"); err != nil {
		fmt.Fprintf(out, "%s toolgate not found in PATH; the hook will fail until it is installed.\n", iconWarn)
	} else {
		fmt.Fprintf(out, "%s toolgate found: %s\n", iconAllow, binPath)
	}
	return enableClaudeCodeHook(out, settingsPath)
}

func enableClaudeCodeHook(out io.Writer, settingsPath string) error {
	settings, err := readClaudeSettings(settingsPath)
	if err != nil {
		return err
	}

	hooks := getOrCreateMap(settings, "hooks")
	preToolUse, _ := hooks["PreToolUse"].([]any)

	for _, entry := range preToolUse {
		if isToolgateHookEntry(entry) {
			fmt.Fprintf(out, "%s Claude Code hook already configured: %s\n", iconAllow, settingsPath)
			return nil
		}
	}

	hooks["PreToolUse"] = append(preToolUse, toolgateHookEntry())
	if err := writeClaudeSettings(settingsPath, settings); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s PreToolUse hook installed: %s\n", iconAllow, settingsPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Every tool call now runs `toolgate hook` first; exit status 2 blocks it.")
	fmt.Fprintln(out, "To disable: toolgate setup claude-code --disable")
	return nil
}

func disableClaudeCodeHook(out io.Writer, settingsPath string) error {
	if _, err := os.Stat(settingsPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No settings.json found for Claude Code; nothing to disable.")
		return nil
	}

	settings, err := readClaudeSettings(settingsPath)
	if err != nil {
		return err
	}

	hooks, ok := settings["hooks"].(map[string]any)
	if !ok {
		fmt.Fprintln(out, "Claude Code settings.json has no hooks; nothing to disable.")
		return nil
	}

	preToolUse, _ := hooks["PreToolUse"].([]any)
	filtered := make([]any, 0, len(preToolUse))
	removed := false
	for _, entry := range preToolUse {
		if isToolgateHookEntry(entry) {
			removed = true
			continue
		}
		filtered = append(filtered, entry)
	}

	if !removed {
		fmt.Fprintln(out, "toolgate hook not found in Claude Code settings; nothing to disable.")
		return nil
	}

	if len(filtered) == 0 {
		delete(hooks, "PreToolUse")
	} else {
		hooks["PreToolUse"] = filtered
	}
	if len(hooks) == 0 {
		delete(settings, "hooks")
	}

	if err := writeClaudeSettings(settingsPath, settings); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s toolgate hook disabled for Claude Code\n", iconAllow)
	fmt.Fprintf(out, "   Settings: %s\n", settingsPath)
	fmt.Fprintln(out, "Re-enable anytime with: toolgate setup claude-code")
	return nil
}

// isToolgateHookEntry reports whether a PreToolUse entry runs our hook.
func isToolgateHookEntry(entry any) bool {
	m, ok := entry.(map[string]any)
	if !ok {
		return false
	}
	subHooks, _ := m["hooks"].([]any)
	for _, h := range subHooks {
		if hm, ok := h.(map[string]any); ok && hm["command"] == hookCommandLine {
			return true
		}
	}
	return false
}

func readClaudeSettings(path string) (map[string]any, error) {
	settings := make(map[string]any)
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return settings, nil
}

func writeClaudeSettings(path string, settings map[string]any) error {
	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func getOrCreateMap(parent map[string]any, key string) map[string]any {
	if v, ok := parent[key].(map[string]any); ok {
		return v
	}
	m := make(map[string]any)
	parent[key] = m
	return m
}

func printSetupInstructions(out io.Writer) {
	fmt.Fprintln(out, headerStyle.Render("toolgate setup"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Claude Code (PreToolUse hook):")
	fmt.Fprintln(out, "    toolgate setup claude-code")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Any other agent runtime:")
	fmt.Fprintln(out, "    pipe the tool call envelope to `toolgate hook` and treat exit 2 as deny,")
	fmt.Fprintln(out, "    or run `toolgate serve` and POST the envelope to /v1/evaluate.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Try it:")
	fmt.Fprintln(out, "    toolgate check --command 'rm -rf /'")
	fmt.Fprintln(out, "    toolgate scan ./script.sh")
	fmt.Fprintln(out, "    toolgate log --summary")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Quick bypass for the current shell:")
	fmt.Fprintf(out, "    export %s=1\n", BypassEnv)
}
