// Package checksum computes content digests over normalized Markdown so that
// purely cosmetic edits do not register as changes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Normalize unifies line endings to LF, strips trailing whitespace from every
// line, and drops trailing blank lines. Two documents that differ only in
// these respects normalize identically.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Content returns the digest of the normalized form of markdown.
func Content(markdown string) string {
	return Sum([]byte(Normalize(markdown)))
}
