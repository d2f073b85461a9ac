package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var multiNewline = regexp.MustCompile(`\n{3,}`)
var lineSpace = regexp.MustCompile(`[ \t]+`)

// NormalizeText canonicalizes raw document text before chunking: CRLF to
// LF, runs of spaces and tabs collapsed, at most one blank line between
// paragraphs, surrounding whitespace trimmed. Chunk spans index into the
// normalized text.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = lineSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Fingerprint returns the deterministic content hash used as the embedding
// cache key and for exact-duplicate detection. All whitespace differences
// are ignored so the same passage fingerprints identically regardless of
// layout.
func Fingerprint(text string) string {
	canonical := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
