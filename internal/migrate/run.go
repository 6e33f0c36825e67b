package migrate

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/qbank/internal/canon"
	"github.com/lherron/qbank/internal/collection"
)

// RunOptions configures a file-level migration.
type RunOptions struct {
	// InputPath is the collection to migrate
	InputPath string
	// OutputPath receives the migrated collection (default: <input>_migrated.json)
	OutputPath string
	// Version is written to metadata.version when non-empty
	Version string
	// Now supplies the migration timestamp (default: time.Now)
	Now func() time.Time

	Options
}

// RunResult is the outcome of a file-level migration.
type RunResult struct {
	Result     *Result `json:"result" yaml:"result"`
	InputPath  string  `json:"input" yaml:"input"`
	OutputPath string  `json:"output" yaml:"output"`
	Written    bool    `json:"written" yaml:"written"`
	OutputRev  string  `json:"output_rev,omitempty" yaml:"output_rev,omitempty"`
	DryRun     bool    `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// DefaultOutputPath returns <dir>/<stem>_migrated<ext> for an input file.
func DefaultOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + "_migrated" + ext
}

// Run loads a collection, reconciles its image references and, if at least
// one image was migrated, writes the updated collection to a new file. A run
// that migrates nothing writes nothing and is not an error.
func Run(opts RunOptions) (*RunResult, error) {
	opts.Options = opts.Options.withDefaults()
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutputPath(opts.InputPath)
	}
	if opts.ImageDir == "" {
		return nil, fmt.Errorf("image directory is required")
	}
	if collection.SamePath(opts.InputPath, opts.OutputPath) {
		return nil, fmt.Errorf("output path %s would overwrite input", opts.OutputPath)
	}
	log := opts.Logger

	f, err := collection.Load(opts.InputPath)
	if err != nil {
		return nil, err
	}
	log.Info("loaded collection",
		zap.String("path", opts.InputPath),
		zap.Int("questions", len(f.Collection.Questions)))

	out, result := Reconcile(f.Collection, opts.Options)

	run := &RunResult{
		Result:     result,
		InputPath:  opts.InputPath,
		OutputPath: opts.OutputPath,
		DryRun:     opts.DryRun,
	}

	log.Info("migration complete",
		zap.Int("migrated", result.Migrated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors))

	if result.Migrated == 0 {
		log.Warn("no images were migrated, nothing written")
		return run, nil
	}
	if opts.DryRun {
		return run, nil
	}

	if err := Annotate(out, result, opts.Now(), opts.Version); err != nil {
		return nil, err
	}
	data, err := collection.Encode(out)
	if err != nil {
		return nil, err
	}
	if err := collection.WriteAtomic(opts.OutputPath, data); err != nil {
		return nil, fmt.Errorf("failed to write migrated collection: %w", err)
	}

	run.Written = true
	run.OutputRev = canon.Rev(data)
	log.Info("wrote migrated collection",
		zap.String("path", opts.OutputPath),
		zap.String("rev", run.OutputRev))

	return run, nil
}
