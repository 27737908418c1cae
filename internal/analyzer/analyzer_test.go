package analyzer

import (
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
}

func TestAnalyzeNormalizesText(t *testing.T) {
	a := Analyze("What happened to Samsung's stock price today?!", fixedNow())
	if a.NormalizedText == "" {
		t.Fatal("expected non-empty normalized text")
	}
	for _, r := range a.NormalizedText {
		if r == '?' || r == '!' || r == '\'' {
			t.Errorf("normalized text retained punctuation: %q", a.NormalizedText)
		}
	}
}

func TestAnalyzeIntentPriority(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"What happened to the stock price?", IntentQuestion},
		{"search for samsung semiconductor news", IntentSearch},
		{"compare samsung versus sk hynix earnings", IntentComparison},
		{"analyze the impact of the rate hike", IntentAnalysis},
		{"samsung semiconductor", IntentGeneral},
	}
	for _, c := range cases {
		got := Analyze(c.query, fixedNow()).Intent
		if got != c.want {
			t.Errorf("Analyze(%q).Intent = %q, want %q", c.query, got, c.want)
		}
	}
}

func TestAnalyzeRelativeDateToday(t *testing.T) {
	a := Analyze("show me today's news", fixedNow())
	if a.Filters.DateRange == nil {
		t.Fatal("expected a date range for 'today'")
	}
	now := fixedNow()
	if a.Filters.DateRange.Start.Day() != now.Day() {
		t.Errorf("expected range to start today, got %v", a.Filters.DateRange.Start)
	}
}

func TestAnalyzeAbsoluteDateRange(t *testing.T) {
	a := Analyze("articles between 2024-01-01 and 2024-12-31", fixedNow())
	if a.Filters.DateRange == nil {
		t.Fatal("expected a parsed absolute date range")
	}
	if a.Filters.DateRange.Start.Year() != 2024 || a.Filters.DateRange.End.Year() != 2024 {
		t.Errorf("expected range within 2024, got %v - %v", a.Filters.DateRange.Start, a.Filters.DateRange.End)
	}
}

func TestAnalyzeKeywordsDropStopwordsAndShortTokens(t *testing.T) {
	a := Analyze("the a an of in on samsung semiconductor price", fixedNow())
	for _, kw := range a.Keywords {
		if stopwords[kw] {
			t.Errorf("keyword list retained stopword %q", kw)
		}
		if len([]rune(kw)) < 2 {
			t.Errorf("keyword list retained short token %q", kw)
		}
	}
}

func TestAnalyzeComplexityBounds(t *testing.T) {
	simple := Analyze("samsung", fixedNow())
	if simple.Complexity != ComplexitySimple {
		t.Errorf("expected simple complexity for a short single-token query, got %q", simple.Complexity)
	}

	long := Analyze("삼성전자와 SK하이닉스의 2024-01-01부터 2024-12-31까지 주가 변동과 반도체 수출 실적을 비교 분석해서 설명해줘 부탁해", fixedNow())
	if long.Complexity == ComplexitySimple {
		t.Errorf("expected non-simple complexity for a long multi-entity query, got %q", long.Complexity)
	}
}
