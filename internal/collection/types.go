// Package collection reads and writes question collections.
//
// A collection file has the shape {"metadata": {...}, "questions": [...]}
// plus any number of other top-level keys (translation tables and the like),
// which are carried through untouched. Encoding is deterministic: the same
// collection always encodes to the same bytes.
package collection

import (
	"encoding/json"
	"fmt"

	"github.com/lherron/qbank/internal/canon"
	"github.com/lherron/qbank/internal/domain"
)

// Collection is the top-level persisted container of metadata and questions.
type Collection struct {
	Metadata  Metadata
	Questions []domain.QuestionRecord
	Extra     map[string]json.RawMessage
}

// Metadata is the free-form metadata object of a collection.
// Values are kept as raw JSON so unknown keys survive a rewrite.
type Metadata map[string]json.RawMessage

// Set stores v under key.
func (m Metadata) Set(key string, v interface{}) error {
	data, err := canon.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode metadata %q: %w", key, err)
	}
	m[key] = data
	return nil
}

// String returns the string stored under key, or "" if absent or not a string.
func (m Metadata) String(key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Clone returns a copy of the metadata map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	out := &Collection{
		Metadata:  c.Metadata.Clone(),
		Questions: make([]domain.QuestionRecord, len(c.Questions)),
	}
	for i := range c.Questions {
		out.Questions[i] = c.Questions[i].Clone()
	}
	if c.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// DiseaseLabel resolves a disease id to its label in lang using the
// collection's disease_translations table. Falls back to the id itself.
func (c *Collection) DiseaseLabel(diseaseID, lang string) string {
	raw, ok := c.Extra["disease_translations"]
	if !ok {
		return diseaseID
	}
	var table map[string]map[string]string
	if err := json.Unmarshal(raw, &table); err != nil {
		return diseaseID
	}
	if label := table[diseaseID][lang]; label != "" {
		return label
	}
	return diseaseID
}

func (c Collection) MarshalJSON() ([]byte, error) {
	obj := make(canon.Object, 0, len(c.Extra)+2)

	metadata := c.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	obj.Add("metadata", map[string]json.RawMessage(metadata))
	obj.AddRaw(c.Extra)

	questions := c.Questions
	if questions == nil {
		questions = []domain.QuestionRecord{}
	}
	obj.Add("questions", questions)

	return obj.MarshalJSON()
}
