package domain

import (
	"errors"
	"fmt"
)

// FieldError describes a problem with a single field of a question record.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Reason)
}

// ValidationError reports a malformed record inside a named collection.
// Index is the record's position in the collection's questions array, or -1
// when the problem concerns the collection as a whole.
type ValidationError struct {
	Source string
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("collection %s: %s", e.Source, e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("collection %s: question[%d]: %s", e.Source, e.Index, e.Reason)
	}
	return fmt.Sprintf("collection %s: question[%d]: field %q %s", e.Source, e.Index, e.Field, e.Reason)
}

// NewValidationError wraps err as a ValidationError for the record at index.
func NewValidationError(source string, index int, err error) *ValidationError {
	var fe *FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Source: source, Index: index, Field: fe.Field, Reason: fe.Reason}
	}
	return &ValidationError{Source: source, Index: index, Reason: err.Error()}
}

// ValidateDifficulty validates a difficulty tier
func ValidateDifficulty(d Difficulty) error {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return nil
	default:
		return fmt.Errorf("invalid difficulty %q: must be one of: easy, medium, hard", d)
	}
}

// ValidateRecord checks the required fields of a question record.
// Returns a *FieldError naming the first offending field.
func ValidateRecord(q *QuestionRecord) error {
	if q.ID == 0 && !q.hasID {
		return &FieldError{Field: "id", Reason: "is required"}
	}
	if q.ID <= 0 {
		return &FieldError{Field: "id", Reason: "must be a positive integer"}
	}
	if q.DiseaseID == "" {
		return &FieldError{Field: "disease_id", Reason: "is required"}
	}
	if q.EN == nil {
		return &FieldError{Field: "en", Reason: "is required"}
	}
	if q.LT == nil {
		return &FieldError{Field: "lt", Reason: "is required"}
	}
	if q.Difficulty != nil {
		if err := ValidateDifficulty(*q.Difficulty); err != nil {
			return &FieldError{Field: "difficulty", Reason: fmt.Sprintf("must be one of: easy, medium, hard (got %q)", *q.Difficulty)}
		}
	}
	return nil
}

// ValidateRecords validates every record of a collection and checks that ids
// are unique within it.
func ValidateRecords(source string, records []QuestionRecord) error {
	seen := make(map[int]int, len(records))
	for i := range records {
		if err := ValidateRecord(&records[i]); err != nil {
			return NewValidationError(source, i, err)
		}
		if prev, dup := seen[records[i].ID]; dup {
			return &ValidationError{
				Source: source,
				Index:  i,
				Field:  "id",
				Reason: fmt.Sprintf("duplicates id %d of question[%d]", records[i].ID, prev),
			}
		}
		seen[records[i].ID] = i
	}
	return nil
}

// MaxID returns the largest id among records, or 0 for an empty slice.
func MaxID(records []QuestionRecord) int {
	max := 0
	for i := range records {
		if records[i].ID > max {
			max = records[i].ID
		}
	}
	return max
}
