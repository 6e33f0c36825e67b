package cli

import (
	"fmt"

	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/merge"
	"github.com/lherron/qbank/internal/migrate"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Displays version, commit, and build date information.`,
	Args:  cobra.NoArgs,
	RunE:  appctx.WithApp(runVersion),
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(app *appctx.App, cmd *cobra.Command, args []string) error {
	r := app.Renderer(cmd.OutOrStdout())
	if r.Structured() {
		output := map[string]interface{}{
			"version":                 Version,
			"commit":                  GitCommit,
			"build_date":              BuildDate,
			"default_merge_version":   merge.DefaultVersion,
			"default_migrate_version": migrate.DefaultVersion,
			"supported_commands": []string{
				"merge", "migrate", "stats", "verify", "diff", "export",
				"version", "completion",
			},
			"supported_formats": []string{
				"table", "json", "yaml", "tsv",
			},
		}
		return r.Render(output, nil, nil)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "qbank version %s\n", Version)
	fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", GitCommit)
	fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", BuildDate)

	return nil
}
