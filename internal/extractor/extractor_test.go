package extractor

import (
	"testing"

	"briefly/internal/core"
)

func TestClassifyArticleTypeFinancial(t *testing.T) {
	article := &core.Article{
		Title:      "삼성전자 주가 급등",
		Body:       "삼성전자 주가가 급등했다.",
		StockCodes: []string{"005930"},
	}
	meta := Extract(article)
	if meta.ArticleType != core.ArticleTypeFinancial {
		t.Errorf("ArticleType = %v, want financial", meta.ArticleType)
	}
	if meta.ImportanceScore <= 0 {
		t.Errorf("ImportanceScore = %f, want > 0", meta.ImportanceScore)
	}
}

func TestClassifyArticleTypeGeneral(t *testing.T) {
	article := &core.Article{Title: "오늘의 날씨", Body: "맑고 화창한 날씨입니다."}
	meta := Extract(article)
	if meta.ArticleType != core.ArticleTypeGeneral {
		t.Errorf("ArticleType = %v, want general", meta.ArticleType)
	}
}

func TestClassifyPriorityFinancialBeatsTechnology(t *testing.T) {
	article := &core.Article{Title: "반도체 기술과 주가", Body: "반도체 기술 발전과 주가 상승"}
	meta := Extract(article)
	if meta.ArticleType != core.ArticleTypeFinancial {
		t.Errorf("ArticleType = %v, want financial to win over technology", meta.ArticleType)
	}
}

func TestIndexingTextIncludesTitleTwice(t *testing.T) {
	article := &core.Article{Title: "제목", Summary: "요약"}
	meta := Extract(article)
	count := 0
	for i := 0; i+len("제목") <= len(meta.IndexingText); i++ {
		if meta.IndexingText[i:i+len("제목")] == "제목" {
			count++
		}
	}
	if count < 2 {
		t.Errorf("expected title to appear at least twice in indexing text, got %d times: %q", count, meta.IndexingText)
	}
}

func TestIndexingTextRespectsByteBudget(t *testing.T) {
	longTitle := make([]byte, 0, 5000)
	for i := 0; i < 2500; i++ {
		longTitle = append(longTitle, []byte("가")...)
	}
	article := &core.Article{Title: string(longTitle)}
	meta := Extract(article)
	if len(meta.IndexingText) > indexingTextByteBudget {
		t.Errorf("indexing text length %d exceeds budget %d", len(meta.IndexingText), indexingTextByteBudget)
	}
}

func TestMetadataHashDeterministic(t *testing.T) {
	article := &core.Article{
		ExternalID: "A-001",
		Title:      "제목",
		Categories: []core.Category{{LargeCodeNm: "증권"}},
		Keywords:   []core.Keyword{{Text: "주가", Type: core.KeywordGeneral}},
	}
	h1 := metadataHash(article)
	h2 := metadataHash(article)
	if h1 != h2 {
		t.Errorf("metadataHash not deterministic: %s != %s", h1, h2)
	}
}
