package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lherron/qbank/internal/assets"
	"github.com/lherron/qbank/internal/cli/appctx"
	"github.com/lherron/qbank/internal/collection"
	"github.com/lherron/qbank/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <collection>",
	Short: "Check a collection's integrity",
	Long: `Performs integrity checks on a collection: JSON shape, record schema, id
uniqueness, metadata totals, and image references. Migrated references must
point at an existing question_<id><ext> file for their own record.

Exits with status 1 when any check reports an error.`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(runVerify),
}

var (
	verifyVerbose    bool
	verifySourceRoot string
	verifyImageDir   string
)

// maxDetails caps the details listed per check.
const maxDetails = 20

type checkResult struct {
	Name    string   `json:"name" yaml:"name"`
	Status  string   `json:"status" yaml:"status"` // "ok", "warning", "error"
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Details []string `json:"details,omitempty" yaml:"details,omitempty"`
}

type verifyReport struct {
	Path          string        `json:"path" yaml:"path"`
	ImageDir      string        `json:"image_dir" yaml:"image_dir"`
	SourceRoot    string        `json:"source_root" yaml:"source_root"`
	Checks        []checkResult `json:"checks" yaml:"checks"`
	Warnings      int           `json:"warnings" yaml:"warnings"`
	Errors        int           `json:"errors" yaml:"errors"`
	OverallStatus string        `json:"overall_status" yaml:"overall_status"`
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVar(&verifyVerbose, "verbose", false, "List details for each check")
	verifyCmd.Flags().StringVar(&verifySourceRoot, "source-root", "", "Directory unmigrated references resolve against (overrides QBANK_SOURCE_ROOT)")
	verifyCmd.Flags().StringVar(&verifyImageDir, "image-dir", "", "Canonical image directory (overrides QBANK_IMAGE_DIR)")
}

func runVerify(app *appctx.App, cmd *cobra.Command, args []string) error {
	sourceRoot := app.Config.SourceRoot
	if verifySourceRoot != "" {
		sourceRoot = verifySourceRoot
	}
	imageDir := app.Config.ImageDir
	if verifyImageDir != "" {
		imageDir = verifyImageDir
	}

	report := buildVerifyReport(args[0], sourceRoot, imageDir)
	app.Logger.Info("verify complete",
		zap.String("path", args[0]),
		zap.Int("errors", report.Errors),
		zap.Int("warnings", report.Warnings))

	r := app.Renderer(cmd.OutOrStdout())
	if r.Structured() {
		if err := r.Render(report, nil, nil); err != nil {
			return err
		}
	} else {
		printVerifyReport(cmd, report)
	}

	if report.Errors > 0 {
		return fmt.Errorf("verify found %d error(s) in %s", report.Errors, args[0])
	}
	return nil
}

func buildVerifyReport(path, sourceRoot, imageDir string) *verifyReport {
	report := &verifyReport{
		Path:          path,
		ImageDir:      imageDir,
		SourceRoot:    sourceRoot,
		Checks:        []checkResult{},
		OverallStatus: "ok",
	}

	c, decodeCheck := checkDecode(path)
	report.Checks = append(report.Checks, decodeCheck)
	if c != nil {
		report.Checks = append(report.Checks, checkSchema(filepath.Base(path), c)...)
		report.Checks = append(report.Checks, checkMetadataTotals(c)...)
		report.Checks = append(report.Checks, checkImages(c, sourceRoot, imageDir)...)
	}

	for _, check := range report.Checks {
		if check.Status == "warning" {
			report.Warnings++
		} else if check.Status == "error" {
			report.Errors++
			report.OverallStatus = "error"
		}
	}
	if report.Warnings > 0 && report.OverallStatus == "ok" {
		report.OverallStatus = "warning"
	}

	return report
}

func checkDecode(path string) (*collection.Collection, checkResult) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, checkResult{
			Name:    "collection_read",
			Status:  "error",
			Message: fmt.Sprintf("Cannot read collection: %v", err),
		}
	}

	c, err := collection.Decode(path, data)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, checkResult{
				Name:    "collection_decode",
				Status:  "error",
				Message: "Collection has a wrongly typed field",
				Details: []string{verr.Error()},
			}
		}
		return nil, checkResult{
			Name:    "collection_decode",
			Status:  "error",
			Message: fmt.Sprintf("Collection is not valid: %v", err),
		}
	}

	return c, checkResult{
		Name:    "collection_decode",
		Status:  "ok",
		Message: fmt.Sprintf("Collection decoded (%d questions)", len(c.Questions)),
	}
}

func checkSchema(source string, c *collection.Collection) []checkResult {
	var results []checkResult

	var invalid []string
	for i := range c.Questions {
		if err := domain.ValidateRecord(&c.Questions[i]); err != nil {
			invalid = append(invalid, domain.NewValidationError(source, i, err).Error())
		}
	}
	if len(invalid) == 0 {
		results = append(results, checkResult{
			Name:    "record_schema",
			Status:  "ok",
			Message: "All records have the required fields",
		})
	} else {
		results = append(results, checkResult{
			Name:    "record_schema",
			Status:  "error",
			Message: fmt.Sprintf("%d invalid record(s)", len(invalid)),
			Details: capDetails(invalid),
		})
	}

	first := make(map[int]int, len(c.Questions))
	var dups []string
	for i := range c.Questions {
		id := c.Questions[i].ID
		if prev, ok := first[id]; ok {
			dups = append(dups, fmt.Sprintf("id %d at question[%d] and question[%d]", id, prev, i))
			continue
		}
		first[id] = i
	}
	if len(dups) == 0 {
		results = append(results, checkResult{
			Name:    "unique_ids",
			Status:  "ok",
			Message: "All ids are unique",
		})
	} else {
		results = append(results, checkResult{
			Name:    "unique_ids",
			Status:  "error",
			Message: fmt.Sprintf("%d duplicate id(s)", len(dups)),
			Details: capDetails(dups),
		})
	}

	return results
}

func checkMetadataTotals(c *collection.Collection) []checkResult {
	raw, ok := c.Metadata["total_questions"]
	if !ok {
		return nil
	}
	var total int
	if err := json.Unmarshal(raw, &total); err != nil {
		return []checkResult{{
			Name:    "metadata_totals",
			Status:  "warning",
			Message: "metadata.total_questions is not an integer",
		}}
	}
	if total != len(c.Questions) {
		return []checkResult{{
			Name:    "metadata_totals",
			Status:  "warning",
			Message: fmt.Sprintf("metadata.total_questions is %d but the collection has %d questions", total, len(c.Questions)),
			Details: []string{"Re-run merge to refresh the statistics block"},
		}}
	}
	return []checkResult{{
		Name:    "metadata_totals",
		Status:  "ok",
		Message: fmt.Sprintf("metadata.total_questions matches (%d)", total),
	}}
}

// checkImages resolves every image reference. References under the image
// directory name are canonical and resolve next to the image directory; any
// other reference is unmigrated and resolves against the source root.
func checkImages(c *collection.Collection, sourceRoot, imageDir string) []checkResult {
	var results []checkResult

	imageDir = filepath.Clean(imageDir)
	prefix := filepath.Base(imageDir) + "/"

	if info, err := os.Stat(imageDir); err != nil || !info.IsDir() {
		results = append(results, checkResult{
			Name:    "image_dir_exists",
			Status:  "warning",
			Message: fmt.Sprintf("Image directory not found: %s", imageDir),
		})
	} else {
		results = append(results, checkResult{
			Name:    "image_dir_exists",
			Status:  "ok",
			Message: fmt.Sprintf("Image directory: %s", imageDir),
		})
	}

	var (
		withImage, canonical int
		missing, misnamed    []string
		unmigrated           []string
	)
	for i := range c.Questions {
		q := &c.Questions[i]
		if !q.HasImage() {
			continue
		}
		withImage++
		ref := *q.Image

		var file string
		if strings.HasPrefix(ref, prefix) {
			canonical++
			file = filepath.Join(filepath.Dir(imageDir), filepath.FromSlash(ref))
			if id, ok := assets.ParseCanonicalName(ref); !ok || id != q.ID {
				misnamed = append(misnamed, fmt.Sprintf("question %d: %s", q.ID, ref))
			}
		} else {
			unmigrated = append(unmigrated, fmt.Sprintf("question %d: %s", q.ID, ref))
			file = assets.Resolve(sourceRoot, ref)
		}

		if info, err := os.Stat(file); err != nil || !info.Mode().IsRegular() {
			missing = append(missing, fmt.Sprintf("question %d: %s", q.ID, file))
		}
	}

	if len(missing) == 0 {
		results = append(results, checkResult{
			Name:    "image_refs",
			Status:  "ok",
			Message: fmt.Sprintf("All %d image references resolve", withImage),
		})
	} else {
		results = append(results, checkResult{
			Name:    "image_refs",
			Status:  "error",
			Message: fmt.Sprintf("%d of %d image references do not resolve", len(missing), withImage),
			Details: capDetails(missing),
		})
	}

	if len(misnamed) == 0 {
		results = append(results, checkResult{
			Name:    "canonical_names",
			Status:  "ok",
			Message: fmt.Sprintf("%d migrated references are canonically named", canonical),
		})
	} else {
		results = append(results, checkResult{
			Name:    "canonical_names",
			Status:  "error",
			Message: fmt.Sprintf("%d migrated references do not match their question id", len(misnamed)),
			Details: capDetails(misnamed),
		})
	}

	if len(unmigrated) > 0 {
		results = append(results, checkResult{
			Name:    "unmigrated_refs",
			Status:  "warning",
			Message: fmt.Sprintf("%d image references are not in %s", len(unmigrated), prefix),
			Details: append(capDetails(unmigrated), "Run 'qbank migrate' to copy them"),
		})
	}

	return results
}

func capDetails(details []string) []string {
	if len(details) <= maxDetails {
		return details
	}
	out := append([]string(nil), details[:maxDetails]...)
	return append(out, fmt.Sprintf("... and %d more", len(details)-maxDetails))
}

func printVerifyReport(cmd *cobra.Command, report *verifyReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "qbank verify %s\n\n", report.Path)

	categories := map[string][]checkResult{}
	for _, check := range report.Checks {
		var category string
		switch check.Name {
		case "collection_read", "collection_decode":
			category = "Collection"
		case "record_schema", "unique_ids", "metadata_totals":
			category = "Records"
		default:
			category = "Images"
		}
		categories[category] = append(categories[category], check)
	}

	for _, category := range []string{"Collection", "Records", "Images"} {
		checks := categories[category]
		if len(checks) == 0 {
			continue
		}

		fmt.Fprintf(out, "%s\n", category)
		for _, check := range checks {
			icon := "✓"
			if check.Status == "warning" {
				icon = "⚠"
			} else if check.Status == "error" {
				icon = "✗"
			}

			fmt.Fprintf(out, "  %s %s\n", icon, check.Message)

			if verifyVerbose && len(check.Details) > 0 {
				for _, detail := range check.Details {
					fmt.Fprintf(out, "      %s\n", detail)
				}
			}
		}
		fmt.Fprintln(out)
	}

	if report.Errors > 0 {
		fmt.Fprintf(out, "Summary: %d error(s), %d warning(s)\n", report.Errors, report.Warnings)
	} else if report.Warnings > 0 {
		fmt.Fprintf(out, "Summary: %d warning(s)\n", report.Warnings)
	} else {
		fmt.Fprintf(out, "Summary: All checks passed ✓\n")
	}

	if !verifyVerbose && (report.Warnings > 0 || report.Errors > 0) {
		fmt.Fprintf(out, "\nRun with --verbose for detailed information\n")
	}
}
