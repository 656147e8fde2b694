package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/config"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage config packs",
	Long: `Manage toolgate config packs.

Packs are YAML overlays in ~/.toolgate/packs/ that add protected paths and
tool mappings on top of the main config. A pack whose file name starts with
an underscore is disabled.

Examples:
  toolgate pack list              # List installed packs
  toolgate pack enable infra      # Enable a pack
  toolgate pack disable infra     # Disable a pack
  toolgate pack show infra        # Show pack contents`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Show the contents of a pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd)
	packCmd.AddCommand(packEnableCmd)
	packCmd.AddCommand(packDisableCmd)
	packCmd.AddCommand(packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}
	dir := filepath.Join(cfg.ConfigDir, config.DefaultPacksDir)
	if err := config.EnsureDir(dir); err != nil {
		return "", nil, err
	}
	return dir, cfg, nil
}

func packList(cmd *cobra.Command, args []string) error {
	dir, cfg, err := packsDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(cfg.Packs) == 0 {
		fmt.Fprintln(out, "No packs installed.")
		fmt.Fprintf(out, "\nTo add one, write a YAML file to: %s\n", dir)
		return nil
	}

	fmt.Fprintln(out, "Installed packs:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, info := range cfg.Packs {
		status := allowStyle.Render(iconAllow)
		if !info.Enabled {
			status = mutedStyle.Render(iconBlock)
		}
		fmt.Fprintf(out, "  %s  %-25s %s\n", status, info.Name, info.Description)
		if info.Err != nil {
			fmt.Fprintf(out, "       %s\n", warnStyle.Render("invalid: "+info.Err.Error()))
			continue
		}
		fmt.Fprintf(out, "       %d protected paths, %d tools", info.PathCount, info.ToolCount)
		if info.Version != "" {
			fmt.Fprintf(out, "  v%s", info.Version)
		}
		if info.Author != "" {
			fmt.Fprintf(out, " by %s", info.Author)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "\nPacks directory: %s\n", dir)
	return nil
}

func packEnable(cmd *cobra.Command, args []string) error {
	dir, _, err := packsDir()
	if err != nil {
		return err
	}
	return renamePack(cmd, dir, args[0], true)
}

func packDisable(cmd *cobra.Command, args []string) error {
	dir, _, err := packsDir()
	if err != nil {
		return err
	}
	return renamePack(cmd, dir, args[0], false)
}

// renamePack toggles the underscore prefix of a pack file.
func renamePack(cmd *cobra.Command, dir, name string, enable bool) error {
	out := cmd.OutOrStdout()
	enabledPath, disabledPath := findPackFile(dir, name, false), findPackFile(dir, name, true)

	from, to, verb := disabledPath, enabledPath, "enabled"
	if !enable {
		from, to, verb = enabledPath, disabledPath, "disabled"
	}

	if _, err := os.Stat(from); err == nil {
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("pack %q: %w", name, err)
		}
		fmt.Fprintf(out, "Pack '%s' %s.\n", name, verb)
		return nil
	}
	if _, err := os.Stat(to); err == nil {
		fmt.Fprintf(out, "Pack '%s' is already %s.\n", name, verb)
		return nil
	}
	return fmt.Errorf("pack '%s' not found in %s", name, dir)
}

// findPackFile returns the existing .yaml or .yml path for a pack, or the
// .yaml path when neither exists.
func findPackFile(dir, name string, disabled bool) string {
	base := name
	if disabled {
		base = "_" + name
	}
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(dir, base+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, base+".yaml")
}

func packShow(cmd *cobra.Command, args []string) error {
	dir, _, err := packsDir()
	if err != nil {
		return err
	}
	name := args[0]

	path := findPackFile(dir, name, false)
	if _, err := os.Stat(path); err != nil {
		path = findPackFile(dir, name, true)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("pack '%s' not found in %s", name, dir)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
