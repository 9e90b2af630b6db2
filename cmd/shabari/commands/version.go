package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shabari/shabari/internal/engine"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "shabari %s (commit: %s)\n", Version, Commit)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", engine.VersionString())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
