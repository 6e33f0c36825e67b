package domain

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/qbank/internal/canon"
)

// Difficulty represents the difficulty tier of a question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the difficulty tiers in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Content holds one language's rendition of an assertion-reason question.
//
// Empty strings are written back as empty strings. A known key that was
// absent on decode stays absent while its value is empty. Unknown keys are
// kept in Extra.
type Content struct {
	Assertion   string
	Reason      string
	Answer      string
	Explanation string
	Extra       map[string]json.RawMessage

	absent map[string]bool
}

// contentKeys are the content keys decoded into typed fields, in output order.
var contentKeys = []string{"assertion", "reason", "answer", "explanation"}

func (c *Content) field(key string) *string {
	switch key {
	case "assertion":
		return &c.Assertion
	case "reason":
		return &c.Reason
	case "answer":
		return &c.Answer
	case "explanation":
		return &c.Explanation
	}
	return nil
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	out := c
	out.Extra = cloneRaw(c.Extra)
	if c.absent != nil {
		out.absent = make(map[string]bool, len(c.absent))
		for k, v := range c.absent {
			out.absent[k] = v
		}
	}
	return out
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("content must be a JSON object")
	}

	*c = Content{}
	for _, key := range contentKeys {
		v, ok := raw[key]
		if !ok {
			if c.absent == nil {
				c.absent = make(map[string]bool)
			}
			c.absent[key] = true
			continue
		}
		if err := json.Unmarshal(v, c.field(key)); err != nil {
			return fmt.Errorf("%s must be a string", key)
		}
		delete(raw, key)
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	obj := make(canon.Object, 0, len(contentKeys)+len(c.Extra))
	for _, key := range contentKeys {
		v := *c.field(key)
		if v == "" && c.absent[key] {
			continue
		}
		obj.Add(key, v)
	}
	obj.AddRaw(c.Extra)
	return obj.MarshalJSON()
}

// QuestionRecord is one bilingual quiz item.
//
// Optional fields are pointers so that an absent key stays absent when the
// record is written back. Keys the record type does not know about are kept in
// Extra and written back after the known keys.
type QuestionRecord struct {
	ID          int
	DiseaseID   string
	Topic       *string
	Difficulty  *Difficulty
	SourceSlide *int
	EN          *Content
	LT          *Content
	Image       *string
	Extra       map[string]json.RawMessage

	hasID     bool
	nullImage bool
}

// knownKeys are the record keys decoded into typed fields, in output order.
var knownKeys = []string{"id", "disease_id", "topic", "difficulty", "source_slide", "en", "lt", "image"}

// HasImageKey reports whether the record carries an image key at all,
// including an explicit null.
func (q *QuestionRecord) HasImageKey() bool {
	return q.Image != nil || q.nullImage
}

// HasImage reports whether the record carries a non-empty image reference.
func (q *QuestionRecord) HasImage() bool {
	return q.Image != nil && *q.Image != ""
}

// DifficultyOrDefault returns the record's difficulty, or medium when absent.
func (q *QuestionRecord) DifficultyOrDefault() Difficulty {
	if q.Difficulty == nil {
		return DifficultyMedium
	}
	return *q.Difficulty
}

// Clone returns a deep copy of the record.
func (q QuestionRecord) Clone() QuestionRecord {
	out := q
	out.Topic = clonePtr(q.Topic)
	out.Difficulty = clonePtr(q.Difficulty)
	out.SourceSlide = clonePtr(q.SourceSlide)
	out.EN = cloneContent(q.EN)
	out.LT = cloneContent(q.LT)
	out.Image = clonePtr(q.Image)
	out.Extra = cloneRaw(q.Extra)
	return out
}

// WithID returns a copy of the record carrying a new id.
func (q QuestionRecord) WithID(id int) QuestionRecord {
	out := q.Clone()
	out.ID = id
	out.hasID = true
	return out
}

// WithImage returns a copy of the record referencing a new image path.
func (q QuestionRecord) WithImage(ref string) QuestionRecord {
	out := q.Clone()
	out.Image = &ref
	out.nullImage = false
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneContent(c *Content) *Content {
	if c == nil {
		return nil
	}
	v := c.Clone()
	return &v
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func (q *QuestionRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("question must be a JSON object")
	}

	*q = QuestionRecord{}

	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &q.ID); err != nil {
			return &FieldError{Field: "id", Reason: "must be an integer"}
		}
		q.hasID = true
	}
	if v, ok := raw["disease_id"]; ok {
		if err := json.Unmarshal(v, &q.DiseaseID); err != nil {
			return &FieldError{Field: "disease_id", Reason: "must be a string"}
		}
	}
	if v, ok := raw["topic"]; ok {
		if err := json.Unmarshal(v, &q.Topic); err != nil {
			return &FieldError{Field: "topic", Reason: "must be a string"}
		}
	}
	if v, ok := raw["difficulty"]; ok {
		if err := json.Unmarshal(v, &q.Difficulty); err != nil {
			return &FieldError{Field: "difficulty", Reason: "must be a string"}
		}
	}
	if v, ok := raw["source_slide"]; ok {
		if err := json.Unmarshal(v, &q.SourceSlide); err != nil {
			return &FieldError{Field: "source_slide", Reason: "must be an integer"}
		}
	}
	if v, ok := raw["en"]; ok {
		if err := json.Unmarshal(v, &q.EN); err != nil {
			return &FieldError{Field: "en", Reason: "must be an object of strings"}
		}
	}
	if v, ok := raw["lt"]; ok {
		if err := json.Unmarshal(v, &q.LT); err != nil {
			return &FieldError{Field: "lt", Reason: "must be an object of strings"}
		}
	}
	if v, ok := raw["image"]; ok {
		if err := json.Unmarshal(v, &q.Image); err != nil {
			return &FieldError{Field: "image", Reason: "must be a string"}
		}
		q.nullImage = q.Image == nil
	}

	for _, key := range knownKeys {
		delete(raw, key)
	}
	if len(raw) > 0 {
		q.Extra = raw
	}

	return nil
}

func (q QuestionRecord) MarshalJSON() ([]byte, error) {
	obj := make(canon.Object, 0, len(knownKeys)+len(q.Extra))

	obj.Add("id", q.ID)
	obj.Add("disease_id", q.DiseaseID)
	if q.Topic != nil {
		obj.Add("topic", *q.Topic)
	}
	if q.Difficulty != nil {
		obj.Add("difficulty", *q.Difficulty)
	}
	if q.SourceSlide != nil {
		obj.Add("source_slide", *q.SourceSlide)
	}
	if q.EN != nil {
		obj.Add("en", q.EN)
	}
	if q.LT != nil {
		obj.Add("lt", q.LT)
	}
	if q.Image != nil {
		obj.Add("image", *q.Image)
	} else if q.nullImage {
		obj.Add("image", nil)
	}
	obj.AddRaw(q.Extra)

	return obj.MarshalJSON()
}
