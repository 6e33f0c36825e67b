package cli

import (
	"fmt"

	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/merge"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <base> [addendum...]",
	Short: "Merge addendum collections into a base collection",
	Long: `Merge one or more addendum collections into a base collection.

Base records keep their ids. Addendum records are appended in the order given
and renumbered to continue after the highest base id. Every input is validated
first; a malformed or invalid collection aborts the merge before anything is
written.

A backup of the base file is written next to it, then the merged collection.
Input files are never modified.

Examples:
  qbank merge questions.json new_questions.json
  qbank merge questions.json a.json b.json --label "Slide batch A" --label "Slide batch B"
  qbank merge questions.json extra.json --out merged.json --timestamp 2024-11-05T10:30:00Z
`,
	Args: cobra.MinimumNArgs(1),
	RunE: appctx.WithApp(runMerge),
}

var (
	mergeLabels     []string
	mergeBaseLabel  string
	mergeOut        string
	mergeBackup     string
	mergeDryRun     bool
	mergeVersionTag string
	mergeTimestamp  string
)

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringArrayVar(&mergeLabels, "label", nil, "Provenance label for each addendum, in order (repeatable)")
	mergeCmd.Flags().StringVar(&mergeBaseLabel, "base-label", "", "Provenance label for the base collection")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "Merged output path (default: <base>_enhanced.json)")
	mergeCmd.Flags().StringVar(&mergeBackup, "backup", "", "Backup path for the base file (default: <base>_backup.json)")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Merge and report without writing")
	mergeCmd.Flags().StringVar(&mergeVersionTag, "version-tag", "", "Version written to metadata (overrides QBANK_MERGE_VERSION)")
	mergeCmd.Flags().StringVar(&mergeTimestamp, "timestamp", "", "Pin metadata.updated to this RFC3339 time")
}

func runMerge(app *appctx.App, cmd *cobra.Command, args []string) error {
	addenda := args[1:]
	if len(mergeLabels) > len(addenda) {
		return fmt.Errorf("%d labels given for %d addenda", len(mergeLabels), len(addenda))
	}

	now, err := fixedClock(mergeTimestamp)
	if err != nil {
		return err
	}

	version := app.Config.MergeVersion
	if mergeVersionTag != "" {
		version = mergeVersionTag
	}

	res, err := merge.Run(merge.RunOptions{
		BasePath:       args[0],
		BaseLabel:      mergeBaseLabel,
		AddendumPaths:  addenda,
		AddendumLabels: mergeLabels,
		OutputPath:     mergeOut,
		BackupPath:     mergeBackup,
		DryRun:         mergeDryRun,
		Options: merge.Options{
			Version: version,
			Now:     now,
			Logger:  app.Logger,
		},
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	return renderMerge(app, cmd, res)
}

func renderMerge(app *appctx.App, cmd *cobra.Command, res *merge.RunResult) error {
	out := cmd.OutOrStdout()
	r := app.Renderer(out)
	if r.Structured() {
		return r.Render(res, nil, nil)
	}

	rows := make([][]string, 0, len(res.Result.Sources))
	for _, src := range res.Result.Sources {
		ids := "-"
		if src.Count > 0 {
			ids = fmt.Sprintf("%d-%d", src.FirstID, src.LastID)
		}
		rows = append(rows, []string{src.Name, src.Provenance, itoa(src.Count), ids})
	}
	if err := r.Render(res, []string{"SOURCE", "PROVENANCE", "QUESTIONS", "IDS"}, rows); err != nil {
		return err
	}
	fmt.Fprintln(out)

	if err := renderStats(r, res.Result.Stats, nil); err != nil {
		return err
	}
	fmt.Fprintln(out)

	if res.DryRun {
		fmt.Fprintf(out, "Dry run: would write %s (backup %s)\n", res.OutputPath, res.BackupPath)
		return nil
	}
	fmt.Fprintf(out, "Wrote %s (%s)\n", res.OutputPath, res.OutputRev)
	fmt.Fprintf(out, "Backup %s\n", res.BackupPath)
	return nil
}
