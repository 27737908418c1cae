// Package dedup implements the content hasher and duplicate detector that
// gate articles before they enter the record store.
package dedup

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"briefly/internal/model"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	// \p{L}\p{N} stands in for the original's [\w가-힣] character class.
	nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// normalizeStep is one stage of the content normalization pipeline.
type normalizeStep func(string) string

// ContentHasher computes a deterministic fingerprint of an article's
// normalized content (invariant I1).
type ContentHasher struct {
	strength model.HashStrength
	steps    []normalizeStep
}

// NewContentHasher builds a hasher at the given strength. Only the active
// strength is ever persisted per deployment.
func NewContentHasher(strength model.HashStrength) *ContentHasher {
	return &ContentHasher{
		strength: strength,
		steps: []normalizeStep{
			stripHTML,
			collapseWhitespace,
			stripSpecialCharacters,
			strings.ToLower,
			stripPunctuation,
		},
	}
}

// Normalize runs the full pipeline: strip HTML, collapse whitespace, strip
// punctuation, lowercase, then collapse whitespace once more so the gaps
// left by removed punctuation close up. Idempotent per P2.
func (h *ContentHasher) Normalize(text string) string {
	out := text
	for _, step := range h.steps {
		out = step(out)
	}
	return collapseWhitespace(out)
}

// Hash computes content_hash over normalize(title) ∥ normalize(body) ∥
// normalize(summary), per invariant I1.
func (h *ContentHasher) Hash(title, body, summary string) string {
	content := h.Normalize(fmt.Sprintf("%s %s %s", title, body, summary))
	return h.digest(content)
}

// HashText hashes a single normalized string, used for title hashing and
// chunk text hashes.
func (h *ContentHasher) HashText(text string) string {
	return h.digest(h.Normalize(text))
}

func (h *ContentHasher) digest(normalized string) string {
	b := []byte(normalized)
	switch h.strength {
	case model.Hash160:
		sum := sha1.Sum(b)
		return fmt.Sprintf("%x", sum)
	case model.Hash256:
		sum := sha256.Sum256(b)
		return fmt.Sprintf("%x", sum)
	default:
		sum := md5.Sum(b)
		return fmt.Sprintf("%x", sum)
	}
}

func stripHTML(text string) string {
	return htmlTagRe.ReplaceAllString(text, "")
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func stripSpecialCharacters(text string) string {
	return nonWordRe.ReplaceAllString(text, "")
}

func stripPunctuation(text string) string {
	return nonWordRe.ReplaceAllString(text, " ")
}
