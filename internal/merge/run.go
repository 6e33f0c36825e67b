package merge

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/lherron/qbank/internal/canon"
	"github.com/lherron/qbank/internal/collection"
)

// RunOptions configures a file-level merge.
type RunOptions struct {
	// BasePath is the base collection file
	BasePath string
	// BaseLabel overrides the base provenance label
	BaseLabel string
	// AddendumPaths are appended in order
	AddendumPaths []string
	// AddendumLabels override provenance labels, by position
	AddendumLabels []string
	// OutputPath is the merged collection (default: <base>_enhanced.json)
	OutputPath string
	// BackupPath receives a copy of the base file (default: <base>_backup.json)
	BackupPath string
	// DryRun merges and reports without writing anything
	DryRun bool

	Options
}

// RunResult is the outcome of a file-level merge.
type RunResult struct {
	Result     *Result `json:"result" yaml:"result"`
	OutputPath string  `json:"output" yaml:"output"`
	BackupPath string  `json:"backup" yaml:"backup"`
	OutputRev  string  `json:"output_rev,omitempty" yaml:"output_rev,omitempty"`
	DryRun     bool    `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
}

// DefaultOutputPath returns <dir>/<stem>_enhanced<ext> for a base file.
func DefaultOutputPath(basePath string) string {
	return siblingPath(basePath, "_enhanced")
}

// DefaultBackupPath returns <dir>/<stem>_backup<ext> for a base file.
func DefaultBackupPath(basePath string) string {
	return siblingPath(basePath, "_backup")
}

func siblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// Run loads the base and addendum files, merges them, writes a backup of the
// base file's original bytes and then the merged output. Any load, decode or
// validation failure aborts before either file is written. Inputs are never
// modified.
func Run(opts RunOptions) (*RunResult, error) {
	opts.Options = opts.Options.withDefaults()
	log := opts.Logger

	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutputPath(opts.BasePath)
	}
	if opts.BackupPath == "" {
		opts.BackupPath = DefaultBackupPath(opts.BasePath)
	}
	if err := checkPaths(opts); err != nil {
		return nil, err
	}

	baseFile, err := collection.Load(opts.BasePath)
	if err != nil {
		return nil, err
	}
	log.Info("loaded base collection",
		zap.String("path", opts.BasePath),
		zap.Int("questions", len(baseFile.Collection.Questions)))

	addenda := make([]Source, 0, len(opts.AddendumPaths))
	for i, path := range opts.AddendumPaths {
		f, err := collection.Load(path)
		if err != nil {
			return nil, err
		}
		log.Info("loaded addendum collection",
			zap.String("path", path),
			zap.Int("questions", len(f.Collection.Questions)))

		src := Source{Name: f.Name(), Collection: f.Collection}
		if i < len(opts.AddendumLabels) {
			src.Label = opts.AddendumLabels[i]
		}
		addenda = append(addenda, src)
	}

	base := Source{Name: baseFile.Name(), Label: opts.BaseLabel, Collection: baseFile.Collection}
	result, err := Merge(base, addenda, opts.Options)
	if err != nil {
		return nil, err
	}

	run := &RunResult{
		Result:     result,
		OutputPath: opts.OutputPath,
		BackupPath: opts.BackupPath,
		DryRun:     opts.DryRun,
	}

	data, err := collection.Encode(result.Collection)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		log.Info("dry run, nothing written", zap.Int("total", result.Stats.Total))
		return run, nil
	}

	if err := collection.WriteAtomic(opts.BackupPath, baseFile.Raw); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	log.Info("wrote backup", zap.String("path", opts.BackupPath))

	if err := collection.WriteAtomic(opts.OutputPath, data); err != nil {
		return nil, fmt.Errorf("failed to write merged collection: %w", err)
	}
	run.OutputRev = canon.Rev(data)
	log.Info("wrote merged collection",
		zap.String("path", opts.OutputPath),
		zap.Int("total", result.Stats.Total),
		zap.String("rev", run.OutputRev))

	return run, nil
}

// checkPaths rejects output or backup paths that would overwrite an input or
// each other.
func checkPaths(opts RunOptions) error {
	if opts.BasePath == "" {
		return fmt.Errorf("base collection path is required")
	}
	inputs := append([]string{opts.BasePath}, opts.AddendumPaths...)
	for _, in := range inputs {
		if collection.SamePath(in, opts.OutputPath) {
			return fmt.Errorf("output path %s would overwrite input %s", opts.OutputPath, in)
		}
		if collection.SamePath(in, opts.BackupPath) {
			return fmt.Errorf("backup path %s would overwrite input %s", opts.BackupPath, in)
		}
	}
	if collection.SamePath(opts.OutputPath, opts.BackupPath) {
		return fmt.Errorf("output and backup paths must differ")
	}
	return nil
}
