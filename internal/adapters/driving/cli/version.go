package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long: `Print the vetrina version, plus the Go toolchain, platform and VCS
revision it was built from. Use --short for the bare version string.`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if short, _ := cmd.Flags().GetBool("short"); short {
		cmd.Println(version)
		return nil
	}
	cmd.Printf("vetrina version %s\n", version)
	cmd.Printf("  go:       %s\n", runtime.Version())
	cmd.Printf("  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if rev := vcsRevision(); rev != "" {
		cmd.Printf("  revision: %s\n", rev)
	}
	return nil
}

// vcsRevision returns the short commit hash stamped by the Go toolchain,
// with a "+dirty" suffix for modified trees.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}
