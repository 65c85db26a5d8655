// Package cli wires the build tool's cobra commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/dauglyon/kbase-ui/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "kbase-ui-build",
	Short: "Assemble a deployable kbase-ui client from source, plugins, and config",
	Long: `kbase-ui-build runs the build pipeline: it reorganizes the source tree,
installs plugins from their internal, directory, or github origins, vendors
third-party script dependencies into a flat module layout, merges layered
configuration, stamps the build with git provenance, and optionally produces
a minified distribution tree with a single in-memory module table.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel, nil)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
