// Package canon provides deterministic JSON encoding for question collections.
//
// Objects are written with an explicit key order, HTML characters are left
// unescaped and output is indented with two spaces, so that encoding the same
// value twice always yields the same bytes.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Object is a slice of key-value pairs that marshals as a JSON object
// with keys in the order they appear in the slice.
type Object []Field

// Field is a single key-value pair of an Object.
type Field struct {
	Key   string
	Value interface{}
}

// Add appends a key-value pair.
func (o *Object) Add(key string, value interface{}) {
	*o = append(*o, Field{Key: key, Value: value})
}

// AddRaw appends every entry of raw sorted by key.
func (o *Object) AddRaw(raw map[string]json.RawMessage) {
	for _, key := range SortedKeys(raw) {
		o.Add(key, raw[key])
	}
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyJSON, err := Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		valJSON, err := Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(valJSON)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal encodes v compactly without escaping HTML characters.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Indent encodes v with two-space indentation and a trailing newline.
func Indent(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Rev computes the sha256 hash of encoded bytes.
// Returns "sha256:<hex>" format.
func Rev(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
