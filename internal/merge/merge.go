// Package merge combines question collections into one canonical database.
//
// The base collection keeps its records and ids. Records of every addendum
// collection are appended in the order the addenda are supplied, and receive
// fresh ids continuing after the base maximum. Nothing is deduplicated or
// reordered.
package merge

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lherron/qbank/internal/collection"
	"github.com/lherron/qbank/internal/domain"
	"github.com/lherron/qbank/internal/stats"
)

// DefaultVersion is the version tag written to merged metadata.
const DefaultVersion = "4.0-enhanced-with-images"

// Source is one input collection of a merge.
type Source struct {
	// Name identifies the source in errors, usually its file name.
	Name string
	// Label overrides the provenance label derived from metadata.
	Label      string
	Collection *collection.Collection
}

// Options configures a merge.
type Options struct {
	// Version is written to metadata.version (default: DefaultVersion)
	Version string
	// Now supplies the metadata.updated timestamp (default: time.Now)
	Now func() time.Time
	// Logger receives progress logs (default: no-op)
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Version == "" {
		o.Version = DefaultVersion
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// SourceSummary describes what one source contributed.
type SourceSummary struct {
	Name       string `json:"name" yaml:"name"`
	Provenance string `json:"provenance" yaml:"provenance"`
	Count      int    `json:"count" yaml:"count"`
	FirstID    int    `json:"first_id,omitempty" yaml:"first_id,omitempty"`
	LastID     int    `json:"last_id,omitempty" yaml:"last_id,omitempty"`
}

// Result is the outcome of a merge.
type Result struct {
	Collection *collection.Collection `json:"-" yaml:"-"`
	Stats      stats.Stats            `json:"stats" yaml:"stats"`
	Sources    []SourceSummary        `json:"sources" yaml:"sources"`
	BaseMaxID  int                    `json:"base_max_id" yaml:"base_max_id"`
}

// Merge validates every source and returns the combined collection. Sources
// are never modified. The first invalid record aborts the merge with a
// *domain.ValidationError.
func Merge(base Source, addenda []Source, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	all := append([]Source{base}, addenda...)
	for _, src := range all {
		if src.Collection == nil {
			return nil, &domain.ValidationError{Source: src.Name, Index: -1, Reason: "collection is empty"}
		}
		if err := domain.ValidateRecords(src.Name, src.Collection.Questions); err != nil {
			return nil, err
		}
	}

	total := 0
	for _, src := range all {
		total += len(src.Collection.Questions)
	}

	out := &collection.Collection{
		Metadata:  base.Collection.Metadata.Clone(),
		Questions: make([]domain.QuestionRecord, 0, total),
	}
	if base.Collection.Extra != nil {
		out.Extra = base.Collection.Clone().Extra
	}

	result := &Result{
		Collection: out,
		BaseMaxID:  domain.MaxID(base.Collection.Questions),
	}

	for _, q := range base.Collection.Questions {
		out.Questions = append(out.Questions, q.Clone())
	}
	result.Sources = append(result.Sources, summarize(base, base.Collection.Questions))

	nextID := result.BaseMaxID + 1
	for _, src := range addenda {
		start := len(out.Questions)
		for _, q := range src.Collection.Questions {
			out.Questions = append(out.Questions, q.WithID(nextID))
			nextID++
		}
		result.Sources = append(result.Sources, summarize(src, out.Questions[start:]))

		opts.Logger.Debug("appended source",
			zap.String("source", src.Name),
			zap.Int("count", len(src.Collection.Questions)),
			zap.Int("next_id", nextID))
	}

	result.Stats = stats.Compute(out.Questions)

	if err := annotate(out.Metadata, result, opts); err != nil {
		return nil, err
	}

	return result, nil
}

func summarize(src Source, records []domain.QuestionRecord) SourceSummary {
	s := SourceSummary{
		Name:       src.Name,
		Provenance: fmt.Sprintf("%s (%d questions)", provenanceLabel(src), len(records)),
		Count:      len(records),
	}
	if len(records) > 0 {
		s.FirstID = records[0].ID
		s.LastID = records[len(records)-1].ID
	}
	return s
}

func provenanceLabel(src Source) string {
	if src.Label != "" {
		return src.Label
	}
	if src.Collection != nil {
		if v := src.Collection.Metadata.String("source"); v != "" {
			return v
		}
		if v := src.Collection.Metadata.String("title"); v != "" {
			return v
		}
	}
	return src.Name
}

// annotate writes the merge statistics and provenance into metadata.
func annotate(meta collection.Metadata, result *Result, opts Options) error {
	methods := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		methods = append(methods, s.Provenance)
	}

	fields := []struct {
		key   string
		value interface{}
	}{
		{"total_questions", result.Stats.Total},
		{"questions_by_disease", result.Stats.ByDisease},
		{"difficulty_distribution", result.Stats.ByDifficulty},
		{"questions_with_images", result.Stats.WithImages},
		{"version", opts.Version},
		{"updated", opts.Now().UTC().Format(time.RFC3339)},
		{"generation_methods", methods},
	}
	for _, f := range fields {
		if err := meta.Set(f.key, f.value); err != nil {
			return err
		}
	}
	return nil
}
