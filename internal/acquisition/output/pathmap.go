// Package output derives deterministic, collision-safe artifact paths that
// mirror the input directory structure.
package output

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corpusworks/harvester/internal/acquisition"
)

const (
	// maxFilenameLen caps the sanitized URL stem before the hash suffix.
	maxFilenameLen = 100
	// fallbackName is used when sanitization leaves nothing.
	fallbackName = "datasource"
	// hashLen is the length of the URL digest suffix that keeps truncated
	// names collision-safe.
	hashLen = 8
)

// Mapper maps (source file, URL) pairs under inputRoot to artifact paths
// under outputRoot. Map is a pure function of its inputs.
type Mapper struct {
	InputRoot  string
	OutputRoot string
}

// Map returns the artifact path for url captured as kind, discovered in
// sourceFile. The sourceFile's location relative to InputRoot becomes the
// artifact's parent directory, with the .json extension stripped.
func (m Mapper) Map(sourceFile, rawURL string, kind acquisition.ContentKind) (string, error) {
	rel, err := filepath.Rel(m.InputRoot, sourceFile)
	if err != nil {
		return "", fmt.Errorf("relativizing %s under %s: %w", sourceFile, m.InputRoot, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("source file %s lies outside input root %s", sourceFile, m.InputRoot)
	}

	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	name := SafeFilename(rawURL) + kind.Ext()

	return filepath.Join(m.OutputRoot, stem, name), nil
}

// Rel returns path relative to the output root, for metadata records.
func (m Mapper) Rel(path string) (string, error) {
	return filepath.Rel(m.OutputRoot, path)
}

// SafeFilename converts a URL into a filesystem-safe name: protocol stripped,
// the characters / ? & : = . replaced with underscores, truncated to 100
// characters, with a short digest of the full URL appended so two URLs that
// share a truncated prefix never collide.
func SafeFilename(rawURL string) string {
	name := strings.TrimPrefix(rawURL, "https://")
	name = strings.TrimPrefix(name, "http://")

	replacer := strings.NewReplacer(
		"/", "_",
		"?", "_",
		"&", "_",
		":", "_",
		"=", "_",
		".", "_",
	)
	name = replacer.Replace(name)

	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	if name == "" {
		name = fallbackName
	}

	return name + "-" + urlDigest(rawURL)
}

func urlDigest(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:hashLen]
}
