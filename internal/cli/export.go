package cli

import (
	"fmt"

	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/collection"
	"github.com/lherron/qbank/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <collection>",
	Short: "Export a collection to a SQLite database",
	Long: `Export a collection into a SQLite database with one row per question and
per-language columns, plus disease and metadata tables. An existing database
at the target path is replaced once the export has completed.

Examples:
  qbank export questions_migrated.json --sqlite questions.db
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(runExport),
}

var exportSQLite string

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportSQLite, "sqlite", "", "SQLite database path to write (required)")
	_ = exportCmd.MarkFlagRequired("sqlite")
}

func runExport(app *appctx.App, cmd *cobra.Command, args []string) error {
	f, err := collection.Load(args[0])
	if err != nil {
		return err
	}
	if collection.SamePath(args[0], exportSQLite) {
		return fmt.Errorf("export path %s would overwrite the collection", exportSQLite)
	}

	res, err := export.ToSQLite(f.Collection, exportSQLite, app.Logger)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r := app.Renderer(cmd.OutOrStdout())
	if r.Structured() {
		return r.Render(res, nil, nil)
	}
	return r.Render(res, []string{"TABLE", "ROWS"}, [][]string{
		{"questions", itoa(res.Questions)},
		{"diseases", itoa(res.Diseases)},
		{"collection_metadata", itoa(res.Metadata)},
		{"schema_migrations", itoa(len(res.Migrations))},
	})
}
