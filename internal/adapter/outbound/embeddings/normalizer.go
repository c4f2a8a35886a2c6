// Package embeddings implements the embedding provenance service: text
// normalization, content hashing, provider batching and provenance stamping.
package embeddings

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	excessNewlines       = regexp.MustCompile(`\n{3,}`)
	horizontalWhitespace = regexp.MustCompile(`[ \t\x{00a0}]+`)
)

// NormalizeText canonicalizes text before hashing and embedding. The steps
// are versioned by the preprocess version in the embedding configuration:
// changing anything here requires a version bump, which is what invalidates
// stale vectors without re-normalizing already-correct ones.
//
// Steps: Unicode NFKC normalization, CRLF to LF, collapse runs of three or
// more newlines to two, collapse runs of horizontal whitespace to a single
// space, trim each line and the whole string. Trimming whitespace-only lines
// can surface fresh newline runs, so the collapse runs once more at the end.
func NormalizeText(text string) string {
	normalized := norm.NFKC.String(text)
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = excessNewlines.ReplaceAllString(normalized, "\n\n")
	normalized = horizontalWhitespace.ReplaceAllString(normalized, " ")

	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	normalized = excessNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(normalized)
}

// HashText returns the hex-encoded SHA-256 digest of the normalized text.
// The digest is stable across platforms, so equal normalized texts always
// share a content hash regardless of raw byte-level whitespace differences.
func HashText(normalizedText string) string {
	sum := sha256.Sum256([]byte(normalizedText))
	return hex.EncodeToString(sum[:])
}
