package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gzhole/toolgate/internal/policy"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionJSON bool

type versionInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Built      string `json:"built"`
	Go         string `json:"go"`
	Categories int    `json:"categories"`
	Detectors  int    `json:"detectors"`
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:    Version,
		Commit:     GitCommit,
		Built:      BuildDate,
		Go:         runtime.Version(),
		Categories: len(policy.Categories()),
		Detectors:  len(policy.DefaultRegistry().Detectors()),
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print toolgate version and detector catalogue size",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), currentVersion(), versionJSON)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(versionCmd)
}

func printVersion(w io.Writer, v versionInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Fprintln(w, headerStyle.Render("toolgate "+v.Version))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("commit:"), v.Commit)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("built: "), v.Built)
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("go:    "), v.Go)
	fmt.Fprintf(w, "  %s %d categories, %d detectors\n", mutedStyle.Render("policy:"), v.Categories, v.Detectors)
	return nil
}
