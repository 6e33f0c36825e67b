package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/qbank/internal/canon"
)

// Question builds a valid question record as a JSON object.
// Empty difficulty or image leaves that key out.
func Question(id int, diseaseID, difficulty string, image string) map[string]interface{} {
	q := map[string]interface{}{
		"id":         id,
		"disease_id": diseaseID,
		"topic":      fmt.Sprintf("%s_slide%d", diseaseID, id),
		"en": map[string]string{
			"assertion":   fmt.Sprintf("Assertion %d", id),
			"reason":      fmt.Sprintf("Reason %d", id),
			"answer":      "A",
			"explanation": fmt.Sprintf("Explanation %d", id),
		},
		"lt": map[string]string{
			"assertion":   fmt.Sprintf("Teiginys %d", id),
			"reason":      fmt.Sprintf("Priežastis %d", id),
			"answer":      "A",
			"explanation": fmt.Sprintf("Paaiškinimas %d", id),
		},
	}
	if difficulty != "" {
		q["difficulty"] = difficulty
	}
	if image != "" {
		q["image"] = image
	}
	return q
}

// Questions builds count records with ids first..first+count-1.
func Questions(first, count int, diseaseID string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		diff := []string{"easy", "medium", "hard"}[i%3]
		out = append(out, Question(first+i, diseaseID, diff, ""))
	}
	return out
}

// WriteCollection writes a collection file with the given metadata and
// questions into dir and returns its path.
func WriteCollection(t *testing.T, dir, filename string, metadata map[string]interface{}, questions []map[string]interface{}) string {
	t.Helper()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if questions == nil {
		questions = []map[string]interface{}{}
	}
	data, err := canon.Indent(map[string]interface{}{
		"metadata":  metadata,
		"questions": questions,
	})
	if err != nil {
		t.Fatalf("Failed to encode collection %s: %v", filename, err)
	}
	return WriteFile(t, dir, filename, string(data))
}

// WriteFile writes content to a file in a temporary directory
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// ReadFile reads content from a file
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(data)
}

// ReadQuestions decodes the questions array of a collection file into
// generic maps, so tests can assert on the exact keys that were written.
func ReadQuestions(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	var doc struct {
		Questions []map[string]interface{} `json:"questions"`
	}
	if err := json.Unmarshal([]byte(ReadFile(t, path)), &doc); err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	return doc.Questions
}

// ReadMetadata decodes the metadata object of a collection file.
func ReadMetadata(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	var doc struct {
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(ReadFile(t, path)), &doc); err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	return doc.Metadata
}

// AssertNoFile asserts that nothing exists at path
func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Expected no file at %s, stat error: %v", path, err)
	}
}
