// Package cli provides the tabletalk command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tabletalk-cli/internal/logger"
)

var (
	verbose   bool
	configDir string
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "tabletalk",
	Short: "Ask questions about tabular datasets",
	Long: `tabletalk ingests tabular data files and answers natural-language
questions about them. Answers are grounded in the ingested data and
numeric claims are validated against statistics computed from it.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline progress to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.tabletalk)")
}

// Execute runs the root command.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
