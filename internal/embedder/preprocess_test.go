package embedder

import (
	"strings"
	"testing"
)

func TestPreprocessStripsHTML(t *testing.T) {
	got := Preprocess("<p>Hello <b>World</b></p>")
	if strings.Contains(got, "<") {
		t.Errorf("expected HTML stripped, got %q", got)
	}
}

func TestPreprocessTruncates(t *testing.T) {
	long := strings.Repeat("a", 1000)
	got := Preprocess(long)
	if len([]rune(got)) > preprocessTruncateLen {
		t.Errorf("expected truncation to %d runes, got %d", preprocessTruncateLen, len([]rune(got)))
	}
}

func TestPreprocessCollapsesWhitespace(t *testing.T) {
	got := Preprocess("a    b\n\n  c")
	if strings.Contains(got, "  ") {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}
}

func TestPreprocessArticleTextWeightsTitle(t *testing.T) {
	got := PreprocessArticleText("Title", "body text")
	if strings.Count(got, "Title") < 2 {
		t.Errorf("expected title repeated twice, got %q", got)
	}
}
