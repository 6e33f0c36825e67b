package migrate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/qbank/internal/collection"
	"github.com/lherron/qbank/internal/testutil"
)

var fixedNow = func() time.Time { return time.Date(2024, 11, 6, 8, 0, 0, 0, time.UTC) }

// workspace lays out <dir>/Textbook_LT/extracted_images and returns the
// source root and canonical image dir.
func workspace(t *testing.T) (dir, sourceRoot, imageDir string) {
	t.Helper()
	dir = t.TempDir()
	sourceRoot = filepath.Join(dir, "Textbook_LT")
	imageDir = filepath.Join(dir, "question_images")
	return dir, sourceRoot, imageDir
}

func writeImage(t *testing.T, sourceRoot, ref, content string) {
	t.Helper()
	testutil.WriteFile(t, sourceRoot, filepath.FromSlash(ref), content)
}

func TestRunMissingAsset(t *testing.T) {
	dir, sourceRoot, imageDir := workspace(t)
	writeImage(t, sourceRoot, "extracted_images/MCD/MCD_slide13_img1.jpg", "jpeg-1")

	input := testutil.WriteCollection(t, dir, "enhanced.json", nil, []map[string]interface{}{
		testutil.Question(1, "MCD", "easy", "extracted_images/MCD/MCD_slide13_img1.jpg"),
		testutil.Question(2, "MGN", "medium", ""),
		testutil.Question(3, "IgAN", "hard", "extracted_images/IgAN/gone.png"),
	})
	inputBefore := testutil.ReadFile(t, input)

	res, err := Run(RunOptions{
		InputPath: input,
		Now:       fixedNow,
		Options:   Options{SourceRoot: sourceRoot, ImageDir: imageDir},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Result.Migrated)
	assert.Equal(t, 1, res.Result.Skipped)
	assert.Equal(t, 0, res.Result.Errors)
	assert.True(t, res.Written)
	assert.Equal(t, filepath.Join(dir, "enhanced_migrated.json"), res.OutputPath)

	questions := testutil.ReadQuestions(t, res.OutputPath)
	require.Len(t, questions, 3)
	assert.Equal(t, "question_images/question_1.jpg", questions[0]["image"])
	_, hasImage := questions[1]["image"]
	assert.False(t, hasImage, "record without image gained one")
	assert.Equal(t, "extracted_images/IgAN/gone.png", questions[2]["image"])

	copied := testutil.ReadFile(t, filepath.Join(imageDir, "question_1.jpg"))
	assert.Equal(t, "jpeg-1", copied)

	// Source asset and input collection are untouched.
	assert.FileExists(t, filepath.Join(sourceRoot, "extracted_images", "MCD", "MCD_slide13_img1.jpg"))
	assert.Equal(t, inputBefore, testutil.ReadFile(t, input))

	meta := testutil.ReadMetadata(t, res.OutputPath)
	assert.Equal(t, map[string]interface{}{
		"migrated":     float64(1),
		"skipped":      float64(1),
		"errors":       float64(0),
		"new_location": "question_images/",
		"timestamp":    "2024-11-06T08:00:00Z",
	}, meta["image_migration"])
	_, hasVersion := meta["version"]
	assert.False(t, hasVersion)
}

func TestRunIsIdempotent(t *testing.T) {
	dir, sourceRoot, imageDir := workspace(t)
	writeImage(t, sourceRoot, "extracted_images/MCD/a.jpg", "a")
	writeImage(t, sourceRoot, "extracted_images/MGN/b.PNG", "b")

	input := testutil.WriteCollection(t, dir, "db.json", nil, []map[string]interface{}{
		testutil.Question(4, "MCD", "easy", "extracted_images/MCD/a.jpg"),
		testutil.Question(9, "MGN", "hard", "extracted_images/MGN/b.PNG"),
		testutil.Question(10, "MGN", "hard", ""),
	})

	run := func(out string) string {
		res, err := Run(RunOptions{
			InputPath:  input,
			OutputPath: out,
			Now:        fixedNow,
			Version:    "4.2-migrated",
			Options:    Options{SourceRoot: sourceRoot, ImageDir: imageDir},
		})
		require.NoError(t, err)
		require.Equal(t, 2, res.Result.Migrated)
		return testutil.ReadFile(t, out)
	}

	first := run(filepath.Join(dir, "first.json"))
	second := run(filepath.Join(dir, "second.json"))
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(imageDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"question_4.jpg", "question_9.PNG"}, names)
}

func TestReconcileIsolatesFailures(t *testing.T) {
	const n = 6
	const k = 3

	_, sourceRoot, imageDir := workspace(t)
	var records []map[string]interface{}
	for i := 1; i <= n; i++ {
		ref := filepath.ToSlash(filepath.Join("extracted_images", "X", "img"+string(rune('0'+i))+".jpg"))
		writeImage(t, sourceRoot, ref, ref)
		records = append(records, testutil.Question(i, "X", "medium", ref))
	}
	require.NoError(t, os.Remove(filepath.Join(sourceRoot, "extracted_images", "X", "img3.jpg")))

	c := decode(t, records)
	out, result := Reconcile(c, Options{SourceRoot: sourceRoot, ImageDir: imageDir})

	assert.Equal(t, n-1, result.Migrated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, "extracted_images/X/img3.jpg", *out.Questions[k-1].Image)
	assert.Equal(t, OutcomeSkipped, result.Records[k-1].Outcome)

	// Input collection unchanged.
	assert.Equal(t, "extracted_images/X/img1.jpg", *c.Questions[0].Image)
	assert.Equal(t, "question_images/question_1.jpg", *out.Questions[0].Image)
}

func TestReconcileCopyFailureLeavesRecordUnchanged(t *testing.T) {
	_, sourceRoot, imageDir := workspace(t)
	writeImage(t, sourceRoot, "a.jpg", "a")
	writeImage(t, sourceRoot, "b.jpg", "b")

	c := decode(t, []map[string]interface{}{
		testutil.Question(1, "MCD", "easy", "a.jpg"),
		testutil.Question(2, "MCD", "easy", "b.jpg"),
	})

	copier := CopyFunc(func(src, dst string) (int64, string, error) {
		if filepath.Base(src) == "a.jpg" {
			return 0, "", errors.New("disk full")
		}
		return 1, "sum", nil
	})

	out, result := Reconcile(c, Options{SourceRoot: sourceRoot, ImageDir: imageDir, Copier: copier})

	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, "a.jpg", *out.Questions[0].Image)
	assert.Equal(t, "question_images/question_2.jpg", *out.Questions[1].Image)
	assert.Equal(t, OutcomeError, result.Records[0].Outcome)
	assert.Equal(t, "disk full", result.Records[0].Error)
	assert.Empty(t, result.Records[0].NewRef)
}

func TestRunNoOpWritesNothing(t *testing.T) {
	dir, sourceRoot, imageDir := workspace(t)
	input := testutil.WriteCollection(t, dir, "db.json", nil, []map[string]interface{}{
		testutil.Question(1, "MCD", "easy", "missing.jpg"),
		testutil.Question(2, "MCD", "easy", ""),
	})

	res, err := Run(RunOptions{
		InputPath: input,
		Options:   Options{SourceRoot: sourceRoot, ImageDir: imageDir},
	})
	require.NoError(t, err)

	assert.False(t, res.Written)
	assert.Equal(t, 0, res.Result.Migrated)
	assert.Equal(t, 1, res.Result.Skipped)
	testutil.AssertNoFile(t, res.OutputPath)
}

func TestRunUnreadableInput(t *testing.T) {
	dir, sourceRoot, imageDir := workspace(t)
	input := testutil.WriteFile(t, dir, "db.json", `{"questions": [`)

	_, err := Run(RunOptions{
		InputPath: input,
		Options:   Options{SourceRoot: sourceRoot, ImageDir: imageDir},
	})
	var de *collection.DecodeError
	require.True(t, errors.As(err, &de), "got %v", err)
	testutil.AssertNoFile(t, DefaultOutputPath(input))
}

func TestRunDryRun(t *testing.T) {
	dir, sourceRoot, imageDir := workspace(t)
	writeImage(t, sourceRoot, "a.jpg", "a")
	input := testutil.WriteCollection(t, dir, "db.json", nil, []map[string]interface{}{
		testutil.Question(1, "MCD", "easy", "a.jpg"),
	})

	res, err := Run(RunOptions{
		InputPath: input,
		Options:   Options{SourceRoot: sourceRoot, ImageDir: imageDir, DryRun: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Result.Migrated)
	assert.False(t, res.Written)
	testutil.AssertNoFile(t, res.OutputPath)
	testutil.AssertNoFile(t, imageDir)
}

func TestReconcileSourceAlreadyInPlace(t *testing.T) {
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "question_images")
	testutil.WriteFile(t, imageDir, "question_5.jpg", "same")

	c := decode(t, []map[string]interface{}{
		testutil.Question(5, "MCD", "easy", "question_images/question_5.jpg"),
	})

	copier := CopyFunc(func(src, dst string) (int64, string, error) {
		t.Fatalf("copier called for a file already in place: %s", src)
		return 0, "", nil
	})
	out, result := Reconcile(c, Options{SourceRoot: dir, ImageDir: imageDir, Copier: copier})

	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, "question_images/question_5.jpg", *out.Questions[0].Image)
	assert.Equal(t, "same", testutil.ReadFile(t, filepath.Join(imageDir, "question_5.jpg")))
}

func TestReconcileEmptyImageIsNoImage(t *testing.T) {
	_, sourceRoot, imageDir := workspace(t)
	q := testutil.Question(1, "MCD", "easy", "")
	q["image"] = ""
	c := decode(t, []map[string]interface{}{q})

	out, result := Reconcile(c, Options{SourceRoot: sourceRoot, ImageDir: imageDir})

	assert.Equal(t, 0, result.Migrated+result.Skipped+result.Errors)
	assert.Equal(t, OutcomeNoImage, result.Records[0].Outcome)
	require.NotNil(t, out.Questions[0].Image)
	assert.Equal(t, "", *out.Questions[0].Image)
}

func decode(t *testing.T, records []map[string]interface{}) *collection.Collection {
	t.Helper()
	path := testutil.WriteCollection(t, t.TempDir(), "c.json", nil, records)
	f, err := collection.Load(path)
	require.NoError(t, err)
	return f.Collection
}
