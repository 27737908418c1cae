package dedup

import (
	"testing"

	"briefly/internal/model"
)

func TestContentHasherDeterministic(t *testing.T) {
	h := NewContentHasher(model.Hash128)
	h1 := h.Hash("제목", "본문 내용입니다.", "요약")
	h2 := h.Hash("제목", "본문 내용입니다.", "요약")
	if h1 != h2 {
		t.Errorf("Hash is not deterministic: %s != %s", h1, h2)
	}
	if len(h1) != 32 {
		t.Errorf("expected 32-char md5 hex digest, got %d chars", len(h1))
	}
}

func TestContentHasherStrengths(t *testing.T) {
	cases := []struct {
		strength model.HashStrength
		wantLen  int
	}{
		{model.Hash128, 32},
		{model.Hash160, 40},
		{model.Hash256, 64},
	}
	for _, tc := range cases {
		h := NewContentHasher(tc.strength)
		got := h.Hash("title", "body", "summary")
		if len(got) != tc.wantLen {
			t.Errorf("strength %d: got digest length %d, want %d", tc.strength, len(got), tc.wantLen)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	h := NewContentHasher(model.Hash128)
	input := "<b>Hello,   World!</b>  테스트."
	once := h.Normalize(input)
	twice := h.Normalize(once)
	if once != twice {
		t.Errorf("normalize is not idempotent: %q != %q", once, twice)
	}
}

func TestHashIgnoresHTMLAndCase(t *testing.T) {
	h := NewContentHasher(model.Hash128)
	a := h.Hash("Title", "<p>Body Text</p>", "")
	b := h.Hash("title", "body   text", "")
	if a != b {
		t.Errorf("expected HTML/case/whitespace-insensitive hash match, got %s != %s", a, b)
	}
}
