package retrieval

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"

	"briefly/internal/core"
)

// keywordDoc is the flat shape bleve indexes one article as.
type keywordDoc struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Body     string `json:"body"`
	Keywords string `json:"keywords"`
}

// KeywordIndex is an in-process BM25 index over title/summary/body/
// keywords, kept in sync with the store at ingest time, backing the
// Hybrid Retrieval Engine's keyword search stream (spec.md §4.8 step 2).
type KeywordIndex struct {
	index bleve.Index
}

// NewKeywordIndex opens (or creates) a bleve index at path. An empty path
// builds an in-memory index, suited to tests and local-dev runs.
func NewKeywordIndex(path string) (*KeywordIndex, error) {
	mapping := bleve.NewIndexMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory keyword index: %w", err)
		}
		return &KeywordIndex{index: idx}, nil
	}
	idx, err := bleve.Open(path)
	if err == nil {
		return &KeywordIndex{index: idx}, nil
	}
	idx, err = bleve.New(path, mapping)
	if err != nil {
		return nil, fmt.Errorf("create keyword index at %s: %w", path, err)
	}
	return &KeywordIndex{index: idx}, nil
}

// IndexArticle upserts one article's searchable text into the index.
func (k *KeywordIndex) IndexArticle(article *core.Article) error {
	keywords := make([]string, 0, len(article.Keywords))
	for _, kw := range article.Keywords {
		keywords = append(keywords, kw.Text)
	}
	doc := keywordDoc{
		Title:    article.Title,
		Summary:  article.Summary,
		Body:     article.Body,
		Keywords: strings.Join(keywords, " "),
	}
	if err := k.index.Index(article.InternalID, doc); err != nil {
		return fmt.Errorf("index article %s: %w", article.InternalID, err)
	}
	return nil
}

// DeleteArticle tombstones an article out of the keyword index.
func (k *KeywordIndex) DeleteArticle(internalID string) error {
	return k.index.Delete(internalID)
}

// KeywordHit is one bleve match: an article id and bleve's own relevance
// score. The engine does not use BleveScore; it scores keyword matches by
// token overlap with the query.
type KeywordHit struct {
	ArticleID string
	BleveScore float64
}

// Search runs a disjunctive match query for normalizedText across
// title/summary/body/keywords and returns up to limit hits ordered by
// bleve's native score, descending.
func (k *KeywordIndex) Search(normalizedText string, limit int) ([]KeywordHit, error) {
	if strings.TrimSpace(normalizedText) == "" || limit <= 0 {
		return nil, nil
	}
	query := bleve.NewDisjunctionQuery(
		bleve.NewMatchQuery(normalizedText),
	)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	result, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]KeywordHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, KeywordHit{ArticleID: hit.ID, BleveScore: hit.Score})
	}
	return hits, nil
}
