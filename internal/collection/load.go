package collection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lherron/qbank/internal/domain"
)

// DecodeError reports a collection file that is not valid JSON or does not
// have the collection shape.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// File is a collection together with the bytes it was loaded from.
type File struct {
	Path       string
	Raw        []byte
	Collection *Collection
}

// Name returns the file's base name, used to label the collection in errors
// and provenance.
func (f *File) Name() string {
	return filepath.Base(f.Path)
}

// Load reads, decodes and validates a collection file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}

	c, err := Decode(path, data)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateRecords(filepath.Base(path), c.Questions); err != nil {
		return nil, err
	}

	return &File{Path: path, Raw: data, Collection: c}, nil
}

// Decode parses collection bytes. Malformed JSON yields a *DecodeError; a
// record with a wrongly typed field yields a *domain.ValidationError naming
// the record's index. Decode does not check required fields.
func Decode(path string, data []byte) (*Collection, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if raw == nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("top level must be a JSON object")}
	}

	c := &Collection{Metadata: Metadata{}}

	if v, ok := raw["metadata"]; ok {
		var meta map[string]json.RawMessage
		if err := json.Unmarshal(v, &meta); err != nil {
			return nil, &DecodeError{Path: path, Err: fmt.Errorf("metadata must be an object: %w", err)}
		}
		if meta != nil {
			c.Metadata = meta
		}
		delete(raw, "metadata")
	}

	v, ok := raw["questions"]
	if !ok {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("missing questions array")}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("questions must be an array: %w", err)}
	}
	delete(raw, "questions")

	name := filepath.Base(path)
	c.Questions = make([]domain.QuestionRecord, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &c.Questions[i]); err != nil {
			return nil, domain.NewValidationError(name, i, err)
		}
	}

	if len(raw) > 0 {
		c.Extra = raw
	}

	return c, nil
}
