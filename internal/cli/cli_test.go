package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/qbank/internal/domain"
	"github.com/lherron/qbank/internal/testutil"
)

const pinned = "2024-11-05T10:30:00Z"

// setupTestEnv isolates the command from user config and returns a temp
// working directory.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	for _, key := range []string{"QBANK_IMAGE_DIR", "QBANK_SOURCE_ROOT", "QBANK_OUTPUT", "QBANK_MERGE_VERSION", "QBANK_MIGRATE_VERSION"} {
		t.Setenv(key, "")
	}
	t.Setenv("QBANK_LOG_LEVEL", "error")

	oldCwd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(oldCwd) })
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change to temp directory: %v", err)
	}
	return tmpDir
}

// execute runs the root command with fresh flag values and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestMergeCommand(t *testing.T) {
	dir := setupTestEnv(t)
	base := testutil.WriteCollection(t, dir, "questions.json",
		map[string]interface{}{"title": "Nephropathology", "created": "2024-01-01"},
		testutil.Questions(1, 68, "MCD"))
	addendum := testutil.WriteCollection(t, dir, "new_questions.json",
		map[string]interface{}{"source": "Slide batch 7"},
		testutil.Questions(1, 52, "MGN"))

	out, err := execute(t, "merge", base, addendum, "--timestamp", pinned)
	require.NoError(t, err, out)

	merged := filepath.Join(dir, "questions_enhanced.json")
	questions := testutil.ReadQuestions(t, merged)
	require.Len(t, questions, 120)
	assert.EqualValues(t, 69, questions[68]["id"])
	assert.EqualValues(t, 120, questions[119]["id"])

	meta := testutil.ReadMetadata(t, merged)
	assert.Equal(t, "2024-11-05T10:30:00Z", meta["updated"])
	assert.Equal(t, "2024-01-01", meta["created"])
	assert.Equal(t, []interface{}{
		"Nephropathology (68 questions)",
		"Slide batch 7 (52 questions)",
	}, meta["generation_methods"])

	assert.Equal(t, testutil.ReadFile(t, base), testutil.ReadFile(t, filepath.Join(dir, "questions_backup.json")))
	assert.Contains(t, out, "69-120")
	assert.Contains(t, out, "Wrote "+merged)
}

func TestMergeCommandJSONOutput(t *testing.T) {
	dir := setupTestEnv(t)
	base := testutil.WriteCollection(t, dir, "base.json", nil, testutil.Questions(1, 3, "IgAN"))
	add := testutil.WriteCollection(t, dir, "add.json", nil, testutil.Questions(10, 2, "IgAN"))

	out, err := execute(t, "merge", base, add, "--dry-run", "--label", "Batch A", "-o", "json")
	require.NoError(t, err, out)

	var res struct {
		Result struct {
			Stats struct {
				Total int `json:"total_questions"`
			} `json:"stats"`
			Sources []struct {
				Provenance string `json:"provenance"`
			} `json:"sources"`
		} `json:"result"`
		DryRun bool `json:"dry_run"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 5, res.Result.Stats.Total)
	assert.True(t, res.DryRun)
	require.Len(t, res.Result.Sources, 2)
	assert.Equal(t, "Batch A (2 questions)", res.Result.Sources[1].Provenance)

	testutil.AssertNoFile(t, filepath.Join(dir, "base_enhanced.json"))
	testutil.AssertNoFile(t, filepath.Join(dir, "base_backup.json"))
}

func TestMergeCommandValidationError(t *testing.T) {
	dir := setupTestEnv(t)
	base := testutil.WriteCollection(t, dir, "base.json", nil, testutil.Questions(1, 3, "IgAN"))
	bad := testutil.Questions(1, 3, "IgAN")
	delete(bad[1], "disease_id")
	add := testutil.WriteCollection(t, dir, "add.json", nil, bad)

	_, err := execute(t, "merge", base, add)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
	assert.Equal(t, "add.json", verr.Source)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, "disease_id", verr.Field)

	testutil.AssertNoFile(t, filepath.Join(dir, "base_enhanced.json"))
	testutil.AssertNoFile(t, filepath.Join(dir, "base_backup.json"))
}

func TestMergeCommandTooManyLabels(t *testing.T) {
	dir := setupTestEnv(t)
	base := testutil.WriteCollection(t, dir, "base.json", nil, testutil.Questions(1, 1, "IgAN"))

	_, err := execute(t, "merge", base, "--label", "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 labels given for 0 addenda")
}

func TestMigrateCommand(t *testing.T) {
	dir := setupTestEnv(t)
	sourceRoot := filepath.Join(dir, "Textbook_LT")
	imageDir := filepath.Join(dir, "question_images")
	testutil.WriteFile(t, sourceRoot, "slides/MCD_1.JPG", "jpeg-bytes")

	input := testutil.WriteCollection(t, dir, "questions.json", nil, []map[string]interface{}{
		testutil.Question(1, "MCD", "easy", "slides/MCD_1.JPG"),
		testutil.Question(2, "MCD", "hard", ""),
		testutil.Question(3, "MCD", "", "slides/gone.png"),
	})

	out, err := execute(t, "migrate", input,
		"--source-root", sourceRoot,
		"--image-dir", imageDir,
		"--timestamp", pinned,
		"--records")
	require.NoError(t, err, out)

	assert.Contains(t, out, "migrated  1")
	assert.Contains(t, out, "skipped   1")
	assert.Contains(t, out, "errors    0")

	output := filepath.Join(dir, "questions_migrated.json")
	questions := testutil.ReadQuestions(t, output)
	assert.Equal(t, "question_images/question_1.JPG", questions[0]["image"])
	assert.NotContains(t, questions[1], "image")
	assert.Equal(t, "slides/gone.png", questions[2]["image"])
	assert.Equal(t, "4.2-migrated", testutil.ReadMetadata(t, output)["version"])

	assert.Equal(t, "jpeg-bytes", testutil.ReadFile(t, filepath.Join(imageDir, "question_1.JPG")))
	assert.Equal(t, "jpeg-bytes", testutil.ReadFile(t, filepath.Join(sourceRoot, "slides/MCD_1.JPG")))
}

func TestMigrateCommandNoOp(t *testing.T) {
	dir := setupTestEnv(t)
	input := testutil.WriteCollection(t, dir, "questions.json", nil, testutil.Questions(1, 4, "IgAN"))

	out, err := execute(t, "migrate", input, "--image-dir", filepath.Join(dir, "question_images"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "No images migrated; nothing written")
	testutil.AssertNoFile(t, filepath.Join(dir, "questions_migrated.json"))
}

func TestMigrateCommandYAMLTally(t *testing.T) {
	dir := setupTestEnv(t)
	input := testutil.WriteCollection(t, dir, "questions.json", nil, []map[string]interface{}{
		testutil.Question(1, "IgAN", "", "missing.png"),
	})

	out, err := execute(t, "migrate", input, "--image-dir", filepath.Join(dir, "img"), "-o", "yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "skipped: 1")
	assert.NotContains(t, out, "records:")
}

func TestStatsCommand(t *testing.T) {
	dir := setupTestEnv(t)
	path := testutil.WriteFile(t, dir, "questions.json", `{
  "metadata": {},
  "disease_translations": {"MCD": {"en": "Minimal change disease", "lt": "Minimalių pokyčių liga"}},
  "questions": [
    {"id": 1, "disease_id": "MCD", "difficulty": "easy", "en": {}, "lt": {}, "image": "a.png"},
    {"id": 2, "disease_id": "MCD", "en": {}, "lt": {}}
  ]
}`)

	out, err := execute(t, "stats", path, "--lang", "lt")
	require.NoError(t, err, out)
	assert.Contains(t, out, "total questions  2")
	assert.Contains(t, out, "with images      1")
	assert.Contains(t, out, "easy             1 (50%)")
	assert.Contains(t, out, "medium           1 (50%)")
	assert.Contains(t, out, "MCD      Minimalių pokyčių liga  2")
}

func TestVerifyCommand(t *testing.T) {
	dir := setupTestEnv(t)
	imageDir := filepath.Join(dir, "question_images")
	testutil.WriteFile(t, imageDir, "question_1.png", "png")

	healthy := testutil.WriteCollection(t, dir, "ok.json", nil, []map[string]interface{}{
		testutil.Question(1, "IgAN", "easy", "question_images/question_1.png"),
		testutil.Question(2, "IgAN", "easy", ""),
	})
	out, err := execute(t, "verify", healthy, "--image-dir", imageDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "All checks passed")

	broken := testutil.WriteCollection(t, dir, "broken.json", nil, []map[string]interface{}{
		testutil.Question(1, "IgAN", "easy", "question_images/question_1.png"),
		testutil.Question(2, "IgAN", "easy", "question_images/question_1.png"),
		testutil.Question(3, "IgAN", "easy", "question_images/question_3.png"),
	})
	out, err = execute(t, "verify", broken, "--image-dir", imageDir, "--verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify found 2 error(s)")
	assert.Contains(t, out, "1 of 3 image references do not resolve")
	assert.Contains(t, out, "1 migrated references do not match their question id")
	assert.Contains(t, out, "question 2: question_images/question_1.png")
}

func TestBuildVerifyReport(t *testing.T) {
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "question_images")
	sourceRoot := filepath.Join(dir, "Textbook_LT")
	testutil.WriteFile(t, sourceRoot, "slide.png", "png")

	tests := []struct {
		name       string
		content    string
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "malformed json",
			content:    `{"questions": [`,
			wantStatus: "error",
			wantChecks: map[string]string{"collection_decode": "error"},
		},
		{
			name:       "duplicate ids and missing field",
			content:    `{"questions": [{"id": 1, "disease_id": "a", "en": {}, "lt": {}}, {"id": 1, "disease_id": "a", "en": {}}]}`,
			wantStatus: "error",
			wantChecks: map[string]string{"record_schema": "error", "unique_ids": "error"},
		},
		{
			name:       "stale totals and unmigrated image",
			content:    `{"metadata": {"total_questions": 5}, "questions": [{"id": 1, "disease_id": "a", "en": {}, "lt": {}, "image": "slide.png"}]}`,
			wantStatus: "warning",
			wantChecks: map[string]string{
				"metadata_totals":  "warning",
				"image_refs":       "ok",
				"unmigrated_refs":  "warning",
				"image_dir_exists": "warning",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".json", tt.content)
			report := buildVerifyReport(path, sourceRoot, imageDir)

			assert.Equal(t, tt.wantStatus, report.OverallStatus)
			got := map[string]string{}
			for _, c := range report.Checks {
				got[c.Name] = c.Status
			}
			for name, status := range tt.wantChecks {
				assert.Equal(t, status, got[name], "check %s", name)
			}
		})
	}
}

func TestDiffCommand(t *testing.T) {
	dir := setupTestEnv(t)
	a := testutil.WriteCollection(t, dir, "a.json", nil, testutil.Questions(1, 4, "IgAN"))
	changed := testutil.Questions(1, 6, "IgAN")[1:]
	changed[0]["topic"] = "revised"
	b := testutil.WriteCollection(t, dir, "b.json", map[string]interface{}{"version": "2"}, changed)

	out, err := execute(t, "diff", a, b)
	require.NoError(t, err, out)
	assert.Contains(t, out, "added:    2 (5-6)")
	assert.Contains(t, out, "removed:  1 (1)")
	assert.Contains(t, out, "changed:  1 (2)")
	assert.Contains(t, out, "metadata: changed")
	assert.Contains(t, out, "--- "+a)
	assert.Contains(t, out, "+++ "+b)
	assert.Contains(t, out, `+      "topic": "revised",`)

	out, err = execute(t, "diff", a, a)
	require.NoError(t, err)
	assert.Contains(t, out, "No differences")
}

func TestFormatIDs(t *testing.T) {
	tests := []struct {
		ids  []int
		want string
	}{
		{nil, "none"},
		{[]int{4}, "1 (4)"},
		{[]int{1, 2, 3, 7, 9, 10}, "6 (1-3, 7, 9-10)"},
	}
	for _, tt := range tests {
		if got := formatIDs(tt.ids); got != tt.want {
			t.Errorf("formatIDs(%v) = %q, want %q", tt.ids, got, tt.want)
		}
	}
}

func TestExportCommand(t *testing.T) {
	dir := setupTestEnv(t)
	input := testutil.WriteCollection(t, dir, "questions.json", nil, testutil.Questions(1, 3, "IgAN"))
	dbPath := filepath.Join(dir, "questions.db")

	out, err := execute(t, "export", input, "--sqlite", dbPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "questions            3")
	assert.Contains(t, out, "schema_migrations    1")
	assert.FileExists(t, dbPath)

	_, err = execute(t, "export", input)
	require.Error(t, err, "--sqlite is required")
}

func TestVersionCommand(t *testing.T) {
	setupTestEnv(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "qbank version dev")

	out, err = execute(t, "version", "-o", "json")
	require.NoError(t, err)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "4.0-enhanced-with-images", v["default_merge_version"])
	assert.Equal(t, "4.2-migrated", v["default_migrate_version"])
}

func TestFixedClock(t *testing.T) {
	now, err := fixedClock(pinned)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 5, 10, 30, 0, 0, time.UTC), now().UTC())

	_, err = fixedClock("yesterday")
	assert.Error(t, err)

	now, err = fixedClock("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now(), time.Minute)
}
