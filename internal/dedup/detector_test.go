package dedup

import (
	"testing"

	"briefly/internal/core"
	"briefly/internal/model"
)

type fakeLookup struct {
	byHash      map[string]*core.Article
	byTitleHash map[string]*core.Article
}

func (f *fakeLookup) FindByHash(hash string) (*core.Article, bool) {
	a, ok := f.byHash[hash]
	return a, ok
}

func (f *fakeLookup) FindByTitleHash(hash string) (*core.Article, bool) {
	a, ok := f.byTitleHash[hash]
	return a, ok
}

func TestDetectExactDuplicate(t *testing.T) {
	hasher := NewContentHasher(model.Hash128)
	detector := NewDuplicateDetector(hasher, 0.8)

	existing := core.Article{InternalID: "a-1", Title: "삼성전자 주가 급등", Body: "삼성전자 주가가 급등했다.", Summary: "요약"}
	existing.ContentHash = hasher.Hash(existing.Title, existing.Body, existing.Summary)

	candidate := core.Article{Title: existing.Title, Body: existing.Body, Summary: existing.Summary}
	candidate.ContentHash = hasher.Hash(candidate.Title, candidate.Body, candidate.Summary)

	lookup := &fakeLookup{
		byHash:      map[string]*core.Article{existing.ContentHash: &existing},
		byTitleHash: map[string]*core.Article{},
	}

	decision := detector.Detect(&candidate, lookup, []core.Article{existing})
	if decision.Verdict != model.ExactDuplicate {
		t.Fatalf("expected ExactDuplicate, got %v", decision.Verdict)
	}
	if decision.ExistingID != "a-1" {
		t.Errorf("expected match on a-1, got %s", decision.ExistingID)
	}
}

func TestDetectUnique(t *testing.T) {
	hasher := NewContentHasher(model.Hash128)
	detector := NewDuplicateDetector(hasher, 0.8)

	existing := core.Article{InternalID: "a-1", Title: "완전히 다른 기사", Body: "전혀 관련 없는 내용입니다.", Summary: ""}
	candidate := core.Article{Title: "삼성전자 주가 급등", Body: "삼성전자 주가가 급등했다.", Summary: ""}

	lookup := &fakeLookup{byHash: map[string]*core.Article{}, byTitleHash: map[string]*core.Article{}}
	decision := detector.Detect(&candidate, lookup, []core.Article{existing})
	if decision.Verdict != model.Unique {
		t.Fatalf("expected Unique, got %v", decision.Verdict)
	}
}

func TestDetectNearDuplicate(t *testing.T) {
	hasher := NewContentHasher(model.Hash128)
	detector := NewDuplicateDetector(hasher, 0.7)

	existing := core.Article{InternalID: "a-1", Title: "삼성전자 주가 급등세", Body: "삼성전자 주가가 급등했다 오늘", Summary: "요약본"}
	candidate := core.Article{Title: "삼성전자 주가 급등", Body: "삼성전자 주가가 급등했다", Summary: "요약본입니다"}

	lookup := &fakeLookup{byHash: map[string]*core.Article{}, byTitleHash: map[string]*core.Article{}}
	decision := detector.Detect(&candidate, lookup, []core.Article{existing})
	if decision.Verdict != model.NearDuplicate {
		t.Fatalf("expected NearDuplicate, got %v (score %f)", decision.Verdict, decision.Score)
	}
}

func TestLCSRatioIdentical(t *testing.T) {
	if got := lcsRatio("hello world", "hello world"); got != 1.0 {
		t.Errorf("identical strings should score 1.0, got %f", got)
	}
}

func TestLCSRatioDisjoint(t *testing.T) {
	if got := lcsRatio("abc", "xyz"); got != 0.0 {
		t.Errorf("disjoint strings should score 0.0, got %f", got)
	}
}

func TestLCSRatioEmpty(t *testing.T) {
	if got := lcsRatio("", ""); got != 1.0 {
		t.Errorf("two empty strings should score 1.0, got %f", got)
	}
	if got := lcsRatio("abc", ""); got != 0.0 {
		t.Errorf("one empty string should score 0.0, got %f", got)
	}
}
