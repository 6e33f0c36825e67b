package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qbank",
	Short: "Merge and maintain bilingual question databases",
	Long: `qbank maintains the EN/LT assertion-reason question database stored as
JSON. It merges addendum collections into a base collection with canonical
sequential ids, migrates referenced images into the canonical image
directory, and reports on collection health.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: table, json, yaml, tsv (overrides QBANK_OUTPUT)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides QBANK_LOG_LEVEL)")
}
