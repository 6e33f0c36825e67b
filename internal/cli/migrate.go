package cli

import (
	"fmt"

	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/migrate"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <collection>",
	Short: "Copy question images into the canonical image directory",
	Long: `Copy every referenced question image into the canonical image directory
as question_<id><ext> and rewrite the record's image reference.

Relative references resolve against the source root; absolute references are
used as-is. A missing source image is skipped and a failed copy is reported as
an error; in both cases the record is left unchanged. Source images are never
deleted.

When at least one image is migrated the updated collection is written to a new
file. Otherwise nothing is written.

Examples:
  qbank migrate questions_enhanced.json
  qbank migrate questions.json --source-root Textbook_LT --image-dir question_images
  qbank migrate questions.json --dry-run --records
`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(runMigrate),
}

var (
	migrateSourceRoot string
	migrateImageDir   string
	migrateOut        string
	migrateDryRun     bool
	migrateVersionTag string
	migrateTimestamp  string
	migrateRecords    bool
)

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateSourceRoot, "source-root", "", "Directory relative image references resolve against (overrides QBANK_SOURCE_ROOT)")
	migrateCmd.Flags().StringVar(&migrateImageDir, "image-dir", "", "Canonical image directory (overrides QBANK_IMAGE_DIR)")
	migrateCmd.Flags().StringVar(&migrateOut, "out", "", "Output path (default: <collection>_migrated.json)")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "Resolve images without copying or writing")
	migrateCmd.Flags().StringVar(&migrateVersionTag, "version-tag", "", "Version written to metadata (overrides QBANK_MIGRATE_VERSION)")
	migrateCmd.Flags().StringVar(&migrateTimestamp, "timestamp", "", "Pin the migration timestamp to this RFC3339 time")
	migrateCmd.Flags().BoolVar(&migrateRecords, "records", false, "List the outcome of every record with an image")
}

func runMigrate(app *appctx.App, cmd *cobra.Command, args []string) error {
	now, err := fixedClock(migrateTimestamp)
	if err != nil {
		return err
	}

	opts := migrate.RunOptions{
		InputPath:  args[0],
		OutputPath: migrateOut,
		Version:    app.Config.MigrateVersion,
		Now:        now,
		Options: migrate.Options{
			SourceRoot: app.Config.SourceRoot,
			ImageDir:   app.Config.ImageDir,
			DryRun:     migrateDryRun,
			Logger:     app.Logger,
		},
	}
	if migrateSourceRoot != "" {
		opts.SourceRoot = migrateSourceRoot
	}
	if migrateImageDir != "" {
		opts.ImageDir = migrateImageDir
	}
	if migrateVersionTag != "" {
		opts.Version = migrateVersionTag
	}

	res, err := migrate.Run(opts)
	if err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}

	return renderMigrate(app, cmd, res)
}

func renderMigrate(app *appctx.App, cmd *cobra.Command, res *migrate.RunResult) error {
	out := cmd.OutOrStdout()
	r := app.Renderer(out)
	if r.Structured() {
		if !migrateRecords {
			trimmed := *res
			result := *res.Result
			result.Records = nil
			trimmed.Result = &result
			return r.Render(trimmed, nil, nil)
		}
		return r.Render(res, nil, nil)
	}

	if migrateRecords {
		var rows [][]string
		for _, rec := range res.Result.Records {
			if rec.Outcome == migrate.OutcomeNoImage {
				continue
			}
			detail := rec.NewRef
			if rec.Error != "" {
				detail = rec.Error
			}
			rows = append(rows, []string{itoa(rec.ID), string(rec.Outcome), rec.OldRef, detail})
		}
		if err := r.Render(res, []string{"ID", "OUTCOME", "IMAGE", "DETAIL"}, rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			fmt.Fprintln(out)
		}
	}

	tally := [][]string{
		{"migrated", itoa(res.Result.Migrated)},
		{"skipped", itoa(res.Result.Skipped)},
		{"errors", itoa(res.Result.Errors)},
	}
	if err := r.Render(res, []string{"OUTCOME", "COUNT"}, tally); err != nil {
		return err
	}
	fmt.Fprintln(out)

	switch {
	case res.Written:
		fmt.Fprintf(out, "Wrote %s (%s)\n", res.OutputPath, res.OutputRev)
	case res.Result.Migrated == 0:
		fmt.Fprintln(out, "No images migrated; nothing written")
	case res.DryRun:
		fmt.Fprintf(out, "Dry run: would write %s\n", res.OutputPath)
	}
	return nil
}
