package embedder

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Keep letters (covers CJK via \p{L}), digits, and whitespace.
	nonTextRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

const preprocessTruncateLen = 512

// Preprocess applies the embedder's text normalization pipeline: strip
// HTML, drop characters outside {letter, digit, CJK, whitespace}, collapse
// whitespace, then truncate to 512 runes.
func Preprocess(text string) string {
	out := htmlTagRe.ReplaceAllString(text, "")
	out = nonTextRe.ReplaceAllString(out, " ")
	out = strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
	runes := []rune(out)
	if len(runes) > preprocessTruncateLen {
		runes = runes[:preprocessTruncateLen]
	}
	return string(runes)
}

// PreprocessArticleText builds the text handed to Embed: the title
// repeated (weight factor 2) followed by the preprocessed indexing text.
func PreprocessArticleText(title, indexingText string) string {
	weighted := strings.Repeat(Preprocess(title)+" ", 2) + Preprocess(indexingText)
	return Preprocess(weighted)
}
