// Package stats computes aggregate statistics over question records.
package stats

import (
	"math"

	"github.com/lherron/qbank/internal/canon"
	"github.com/lherron/qbank/internal/domain"
)

// DifficultyCount is the count and whole-number percentage of one tier.
type DifficultyCount struct {
	Count   int `json:"count" yaml:"count"`
	Percent int `json:"percent" yaml:"percent"`
}

// Stats is the statistics block attached to merged collections.
type Stats struct {
	Total        int                                   `json:"total_questions" yaml:"total_questions"`
	ByDisease    map[string]int                        `json:"questions_by_disease" yaml:"questions_by_disease"`
	ByDifficulty map[domain.Difficulty]DifficultyCount `json:"difficulty_distribution" yaml:"difficulty_distribution"`
	WithImages   int                                   `json:"questions_with_images" yaml:"questions_with_images"`
}

// Compute counts records per disease and per difficulty, and records that
// carry an image key. A record with no difficulty counts as medium.
func Compute(records []domain.QuestionRecord) Stats {
	s := Stats{
		Total:        len(records),
		ByDisease:    make(map[string]int),
		ByDifficulty: make(map[domain.Difficulty]DifficultyCount, len(domain.Difficulties)),
	}

	counts := make(map[domain.Difficulty]int)
	for i := range records {
		q := &records[i]
		s.ByDisease[q.DiseaseID]++
		counts[q.DifficultyOrDefault()]++
		if q.HasImageKey() {
			s.WithImages++
		}
	}

	for _, d := range domain.Difficulties {
		s.ByDifficulty[d] = DifficultyCount{
			Count:   counts[d],
			Percent: Percent(counts[d], s.Total),
		}
	}

	return s
}

// Percent returns part/total as a whole percentage, rounding halves to even.
func Percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(part) * 100 / float64(total)))
}

// Diseases returns the disease ids in lexicographic order.
func (s Stats) Diseases() []string {
	return canon.SortedKeys(s.ByDisease)
}
