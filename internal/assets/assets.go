// Package assets handles image file I/O and path resolution.
// Migrated images live under <image_dir>/question_<id><ext>
package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// NamePrefix starts every canonical image file name.
const NamePrefix = "question_"

// compoundExts are multi-part extensions kept whole, matched case-insensitively.
var compoundExts = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst", ".nii.gz"}

// Ext returns the extension of a file name verbatim: the last suffix, or a
// known compound suffix such as ".tar.gz". Leading dots do not start an
// extension: "slide.JPG" -> ".JPG", "fig.2.jpg" -> ".jpg", ".hidden" -> "".
func Ext(name string) string {
	base := filepath.Base(name)
	trimmed := strings.TrimLeft(base, ".")
	lower := strings.ToLower(trimmed)
	for _, ext := range compoundExts {
		if len(lower) > len(ext) && strings.HasSuffix(lower, ext) {
			return trimmed[len(trimmed)-len(ext):]
		}
	}
	idx := strings.LastIndexByte(trimmed, '.')
	if idx < 0 {
		return ""
	}
	return trimmed[idx:]
}

// CanonicalName returns the deterministic file name for a question's image.
func CanonicalName(questionID int, source string) string {
	return NamePrefix + strconv.Itoa(questionID) + Ext(source)
}

// CanonicalRef returns the reference stored in a record's image field:
// <image-dir-name>/question_<id><ext>, always with forward slashes.
func CanonicalRef(imageDir string, questionID int, source string) string {
	return path.Join(filepath.Base(filepath.Clean(imageDir)), CanonicalName(questionID, source))
}

// ParseCanonicalName extracts the question id from a canonical file name.
func ParseCanonicalName(name string) (int, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, NamePrefix) {
		return 0, false
	}
	rest := strings.TrimPrefix(base, NamePrefix)
	if ext := Ext(rest); ext != "" {
		rest = strings.TrimSuffix(rest, ext)
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Resolve returns the file path a reference points at. Relative references
// are resolved against root; absolute ones are returned unchanged.
func Resolve(root, ref string) string {
	local := filepath.FromSlash(ref)
	if filepath.IsAbs(local) {
		return local
	}
	return filepath.Join(root, local)
}

// CopyFile copies a file from src to dst, returning size and checksum.
// The data is written to a temporary file in dst's directory and renamed into
// place, so dst is never left half-written. The source modification time is
// carried over.
func CopyFile(src, dst string) (size int64, checksum string, err error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, "", fmt.Errorf("source %s is not a regular file", src)
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return 0, "", fmt.Errorf("failed to create destination: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	// Copy with checksum computation
	hasher := sha256.New()
	multiWriter := io.MultiWriter(tmp, hasher)

	size, err = io.Copy(multiWriter, srcFile)
	if err != nil {
		return 0, "", fmt.Errorf("failed to copy file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("failed to close destination: %w", err)
	}
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return 0, "", fmt.Errorf("failed to set destination permissions: %w", err)
	}
	if err = os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return 0, "", fmt.Errorf("failed to set destination times: %w", err)
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return 0, "", fmt.Errorf("failed to move destination into place: %w", err)
	}

	checksum = hex.EncodeToString(hasher.Sum(nil))
	return size, checksum, nil
}

// Checksum returns the sha256 of a file's contents.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// DetectMimeType attempts to detect MIME type from filename extension.
// Falls back to application/octet-stream if unknown.
func DetectMimeType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "application/octet-stream"
	}

	mimeType := mime.TypeByExtension(strings.ToLower(ext))
	if mimeType == "" {
		return "application/octet-stream"
	}

	// Strip parameters like charset
	if idx := strings.IndexByte(mimeType, ';'); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	return mimeType
}
