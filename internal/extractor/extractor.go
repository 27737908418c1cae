// Package extractor derives classification metadata (entities, article
// type, importance score, indexing text, metadata hash) from a parsed
// core.Article.
package extractor

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"time"

	"briefly/internal/core"
	"briefly/internal/entities"
)

// MetadataRecord is the derived metadata produced for one article.
type MetadataRecord struct {
	Entities        entities.Buckets
	ArticleType     core.ArticleType
	ImportanceScore float64
	IndexingText    string
	MetadataHash    string
}

const indexingTextByteBudget = 2048

// keywordCue is one (article type, trigger words) pair, checked in table
// order — first match wins (financial > mna > people > policy > technology).
var keywordCues = []struct {
	articleType core.ArticleType
	cues        []string
}{
	{core.ArticleTypeFinancial, []string{"주가", "증권", "금융", "주식", "환율", "금리", "투자"}},
	{core.ArticleTypeMNA, []string{"인수", "합병", "M&A", "지분"}},
	{core.ArticleTypePeople, []string{"대표", "회장", "사장", "임명", "선임"}},
	{core.ArticleTypePolicy, []string{"정부", "정책", "국회", "법안", "규제"}},
	{core.ArticleTypeTechnology, []string{"기술", "AI", "인공지능", "반도체", "소프트웨어"}},
}

// Extract derives the MetadataRecord for a parsed article.
func Extract(article *core.Article) MetadataRecord {
	text := article.Title + " " + article.Body
	buckets := entities.Extract(text)

	return MetadataRecord{
		Entities:        buckets,
		ArticleType:     classifyArticleType(text),
		ImportanceScore: importanceScore(article, buckets),
		IndexingText:    buildIndexingText(article, buckets),
		MetadataHash:    metadataHash(article),
	}
}

// classifyArticleType returns the first matching cue's article type, or
// general when nothing matches, per the fixed priority order.
func classifyArticleType(text string) core.ArticleType {
	for _, cue := range keywordCues {
		for _, kw := range cue.cues {
			if strings.Contains(text, kw) {
				return cue.articleType
			}
		}
	}
	return core.ArticleTypeGeneral
}

// importanceScore = 0.5*|keywords| + 2.0*[has stock codes] + 0.3*Σ|entities|
// + recency bonus (+1.0 within 7 days, +0.5 within 30 days) + length bonus
// (+0.3 when body exceeds 1,000 runes), truncated to two decimals.
func importanceScore(article *core.Article, buckets entities.Buckets) float64 {
	score := 0.5 * float64(len(article.Keywords))
	if len(article.StockCodes) > 0 {
		score += 2.0
	}
	score += 0.3 * float64(buckets.Count())

	if !article.PublishTime.IsZero() {
		age := time.Since(article.PublishTime)
		switch {
		case age <= 7*24*time.Hour:
			score += 1.0
		case age <= 30*24*time.Hour:
			score += 0.5
		}
	}
	if article.BodyLength() > 1000 {
		score += 0.3
	}

	return truncate2(score)
}

func truncate2(v float64) float64 {
	return float64(int(v*100)) / 100
}

// buildIndexingText is the deterministic concatenation fed to the embedder:
// title ×2, summary, categories, keywords, entities; capped by UTF-8 byte
// budget.
func buildIndexingText(article *core.Article, buckets entities.Buckets) string {
	var parts []string
	parts = append(parts, article.Title, article.Title, article.Summary)

	for _, c := range article.Categories {
		parts = append(parts, c.LargeCodeNm, c.MiddleCodeNm, c.SmallCodeNm)
	}
	for _, k := range article.Keywords {
		parts = append(parts, k.Text)
	}
	parts = append(parts, buckets.Persons...)
	parts = append(parts, buckets.Companies...)
	parts = append(parts, buckets.Locations...)
	parts = append(parts, buckets.Dates...)
	parts = append(parts, buckets.Numbers...)

	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	text := strings.Join(nonEmpty, " ")
	return capUTF8(text, indexingTextByteBudget)
}

// capUTF8 truncates text to at most maxBytes bytes without splitting a
// multi-byte rune.
func capUTF8(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	b := []byte(text)[:maxBytes]
	for len(b) > 0 && !isRuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return strings.TrimSpace(string(b))
}

func isRuneStart(c byte) bool {
	return c&0xC0 != 0x80
}

// metadataHash is a 128-bit fingerprint of (external_id, title,
// sorted(categories), sorted(keywords)).
func metadataHash(article *core.Article) string {
	categories := make([]string, 0, len(article.Categories))
	for _, c := range article.Categories {
		categories = append(categories, c.LargeCodeNm+"/"+c.MiddleCodeNm+"/"+c.SmallCodeNm)
	}
	sort.Strings(categories)

	keywords := make([]string, 0, len(article.Keywords))
	for _, k := range article.Keywords {
		keywords = append(keywords, string(k.Type)+":"+k.Text)
	}
	sort.Strings(keywords)

	fingerprint := fmt.Sprintf("%s|%s|%s|%s",
		article.ExternalID, article.Title, strings.Join(categories, ","), strings.Join(keywords, ","))
	sum := md5.Sum([]byte(fingerprint))
	return fmt.Sprintf("%x", sum)
}
