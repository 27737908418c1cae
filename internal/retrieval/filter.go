package retrieval

import (
	"strings"
	"time"

	"briefly/internal/core"
	"briefly/internal/indexer"
)

// MetadataFilter is the post-hoc constraint set applied to both the
// vector and keyword candidate streams, per spec.md §4.8 step 3.
type MetadataFilter struct {
	StartDate       time.Time
	EndDate         time.Time
	Categories      []string
	Writers         []string
	MinBodyLength   int
	RequiredKeyword string
	StockCode       string
}

// Matches reports whether article satisfies every constraint set on f. A
// zero-value field is treated as "unconstrained".
func (f MetadataFilter) Matches(article *core.Article) bool {
	if !f.StartDate.IsZero() && article.PublishTime.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && article.PublishTime.After(f.EndDate) {
		return false
	}
	if len(f.Categories) > 0 && !hasAnyCategory(article, f.Categories) {
		return false
	}
	if len(f.Writers) > 0 && !hasAnyWriter(article, f.Writers) {
		return false
	}
	if f.MinBodyLength > 0 && article.BodyLength() < f.MinBodyLength {
		return false
	}
	if f.RequiredKeyword != "" && !hasKeyword(article, f.RequiredKeyword) {
		return false
	}
	if f.StockCode != "" && !containsFold(article.StockCodes, f.StockCode) {
		return false
	}
	return true
}

func hasAnyCategory(article *core.Article, wanted []string) bool {
	for _, c := range article.Categories {
		for _, w := range wanted {
			if strings.EqualFold(c.LargeCodeNm, w) || strings.EqualFold(c.MiddleCodeNm, w) || strings.EqualFold(c.SmallCodeNm, w) {
				return true
			}
		}
	}
	return false
}

func hasAnyWriter(article *core.Article, wanted []string) bool {
	for _, w := range article.Writers {
		for _, want := range wanted {
			if strings.EqualFold(w, want) {
				return true
			}
		}
	}
	return false
}

func hasKeyword(article *core.Article, wanted string) bool {
	for _, k := range article.Keywords {
		if strings.EqualFold(k.Text, wanted) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// ToIndexFilter projects the subset of MetadataFilter the ANN provider can
// push down as a DNF filter at vector-search time (only the date range maps
// onto a real articles column). The rest is re-applied in full, post-hoc,
// by Matches — per P7, a narrower pre-filter is always a valid subset of
// the full post-hoc filter.
func (f MetadataFilter) ToIndexFilter() indexer.Filter {
	var clauses indexer.FilterGroup
	if !f.StartDate.IsZero() {
		clauses = append(clauses, indexer.FilterClause{Field: "publish_time", Op: indexer.OpGte, Value: f.StartDate})
	}
	if !f.EndDate.IsZero() {
		clauses = append(clauses, indexer.FilterClause{Field: "publish_time", Op: indexer.OpLte, Value: f.EndDate})
	}
	if len(clauses) == 0 {
		return nil
	}
	return indexer.Filter{clauses}
}
