package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Actual version can be specified in build command.
var version = "unknown"

type buildInfo struct {
	App      string `json:"app"`
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
	Go       string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("output-json")
		return printVersion(cmd.OutOrStdout(), currentBuild(), asJSON)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().Bool("output-json", false, "print build information as json")
}

// currentBuild falls back to the module version and vcs revision embedded by
// the go toolchain when no version was set at link time.
func currentBuild() buildInfo {
	info := buildInfo{App: app, Version: version, Go: runtime.Version()}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "unknown" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			info.Revision = s.Value
		}
	}
	return info
}

func printVersion(w io.Writer, info buildInfo, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(info)
	}

	line := fmt.Sprintf("%s version: %s (%s)", info.App, info.Version, info.Go)
	if info.Revision != "" {
		line += " revision " + info.Revision
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
