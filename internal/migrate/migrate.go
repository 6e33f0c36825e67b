// Package migrate relocates question images into the canonical image
// directory and rewrites each record's image reference.
//
// Every record is handled independently:
//
//	no image            -> unchanged
//	image, source gone  -> skipped, unchanged
//	image, copy fails   -> error, unchanged
//	image, copy ok      -> image rewritten to <image-dir>/question_<id><ext>
//
// Source files are copied, never moved or deleted.
package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/qbank/internal/assets"
	"github.com/lherron/qbank/internal/collection"
)

// DefaultVersion is the version tag the CLI writes to migrated metadata.
const DefaultVersion = "4.2-migrated"

// Outcome is the terminal state of one record.
type Outcome string

const (
	OutcomeNoImage  Outcome = "no_image"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeMigrated Outcome = "migrated"
	OutcomeError    Outcome = "error"
)

// RecordResult describes what happened to one record.
type RecordResult struct {
	Index    int     `json:"index" yaml:"index"`
	ID       int     `json:"id" yaml:"id"`
	Outcome  Outcome `json:"outcome" yaml:"outcome"`
	OldRef   string  `json:"old_ref,omitempty" yaml:"old_ref,omitempty"`
	NewRef   string  `json:"new_ref,omitempty" yaml:"new_ref,omitempty"`
	Source   string  `json:"source,omitempty" yaml:"source,omitempty"`
	Size     int64   `json:"size,omitempty" yaml:"size,omitempty"`
	Checksum string  `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Error    string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the tally of a reconcile pass.
type Result struct {
	Migrated    int            `json:"migrated" yaml:"migrated"`
	Skipped     int            `json:"skipped" yaml:"skipped"`
	Errors      int            `json:"errors" yaml:"errors"`
	NewLocation string         `json:"new_location" yaml:"new_location"`
	Records     []RecordResult `json:"records,omitempty" yaml:"records,omitempty"`
}

// Copier copies one file, returning the size and sha256 of the copied data.
type Copier interface {
	Copy(src, dst string) (int64, string, error)
}

// CopyFunc adapts a function to the Copier interface.
type CopyFunc func(src, dst string) (int64, string, error)

func (f CopyFunc) Copy(src, dst string) (int64, string, error) {
	return f(src, dst)
}

// Options configures a reconcile pass.
type Options struct {
	// SourceRoot is the directory relative image references resolve against
	SourceRoot string
	// ImageDir is the canonical image directory
	ImageDir string
	// Copier performs the file copies (default: assets.CopyFile)
	Copier Copier
	// DryRun resolves sources without copying; found sources count as migrated
	DryRun bool
	// Logger receives per-record logs (default: no-op)
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Copier == nil {
		o.Copier = CopyFunc(assets.CopyFile)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// NewLocation returns the new_location string recorded in metadata.
func NewLocation(imageDir string) string {
	return filepath.Base(filepath.Clean(imageDir)) + "/"
}

// plan is the phase-one outcome for one record: the reference to commit, if
// the copy was confirmed.
type plan struct {
	result RecordResult
	commit bool
}

// Reconcile copies every referenced image into the canonical directory and
// returns a new collection with rewritten references. The input collection is
// not modified. A record's reference is only rewritten after its copy has
// completed.
func Reconcile(c *collection.Collection, opts Options) (*collection.Collection, *Result) {
	opts = opts.withDefaults()

	// Phase one: resolve and copy.
	plans := make([]plan, len(c.Questions))
	for i := range c.Questions {
		plans[i] = copyRecord(i, c, opts)
	}

	// Phase two: commit confirmed references.
	out := c.Clone()
	result := &Result{
		NewLocation: NewLocation(opts.ImageDir),
		Records:     make([]RecordResult, 0, len(plans)),
	}
	for i, p := range plans {
		switch p.result.Outcome {
		case OutcomeMigrated:
			result.Migrated++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeError:
			result.Errors++
		}
		if p.commit && !opts.DryRun {
			out.Questions[i] = out.Questions[i].WithImage(p.result.NewRef)
		}
		result.Records = append(result.Records, p.result)
	}

	return out, result
}

func copyRecord(index int, c *collection.Collection, opts Options) plan {
	q := &c.Questions[index]
	rr := RecordResult{Index: index, ID: q.ID, Outcome: OutcomeNoImage}
	if !q.HasImage() {
		return plan{result: rr}
	}

	log := opts.Logger.With(zap.Int("question", q.ID))
	rr.OldRef = *q.Image
	rr.Source = assets.Resolve(opts.SourceRoot, rr.OldRef)
	rr.NewRef = assets.CanonicalRef(opts.ImageDir, q.ID, rr.OldRef)
	dst := filepath.Join(opts.ImageDir, assets.CanonicalName(q.ID, rr.OldRef))

	info, err := os.Stat(rr.Source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("image not found, skipping", zap.String("image", rr.OldRef))
			rr.Outcome = OutcomeSkipped
			rr.NewRef = ""
			return plan{result: rr}
		}
		return failed(log, rr, fmt.Errorf("failed to stat source: %w", err))
	}
	if !info.Mode().IsRegular() {
		return failed(log, rr, fmt.Errorf("source %s is not a regular file", rr.Source))
	}

	if opts.DryRun {
		rr.Outcome = OutcomeMigrated
		rr.Size = info.Size()
		return plan{result: rr, commit: true}
	}

	if collection.SamePath(rr.Source, dst) {
		sum, err := assets.Checksum(dst)
		if err != nil {
			return failed(log, rr, err)
		}
		rr.Outcome = OutcomeMigrated
		rr.Size = info.Size()
		rr.Checksum = sum
		log.Info("image already in place", zap.String("path", dst))
		return plan{result: rr, commit: true}
	}

	size, sum, err := opts.Copier.Copy(rr.Source, dst)
	if err != nil {
		return failed(log, rr, err)
	}

	rr.Outcome = OutcomeMigrated
	rr.Size = size
	rr.Checksum = sum
	log.Info("migrated image",
		zap.String("from", filepath.Base(rr.Source)),
		zap.String("to", rr.NewRef))
	return plan{result: rr, commit: true}
}

func failed(log *zap.Logger, rr RecordResult, err error) plan {
	log.Error("image migration failed", zap.String("image", rr.OldRef), zap.Error(err))
	rr.Outcome = OutcomeError
	rr.NewRef = ""
	rr.Error = err.Error()
	return plan{result: rr}
}

// Annotate records the migration summary in the collection's metadata.
func Annotate(c *collection.Collection, result *Result, now time.Time, version string) error {
	stamp := now.UTC().Format(time.RFC3339)
	summary := map[string]interface{}{
		"migrated":     result.Migrated,
		"skipped":      result.Skipped,
		"errors":       result.Errors,
		"new_location": result.NewLocation,
		"timestamp":    stamp,
	}
	if err := c.Metadata.Set("image_migration", summary); err != nil {
		return err
	}
	if err := c.Metadata.Set("updated", stamp); err != nil {
		return err
	}
	if version != "" {
		if err := c.Metadata.Set("version", version); err != nil {
			return err
		}
	}
	return nil
}
