// Package retrieval implements the Hybrid Retrieval Engine: concurrent
// vector and keyword search, metadata filtering, score fusion, reranking,
// and a byte-budgeted context builder, per spec.md §4.8.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"briefly/internal/analyzer"
	"briefly/internal/core"
	"briefly/internal/indexer"
	"briefly/internal/persistence"
)

// VectorEmbedder is the capability the engine needs from the embedder
// package: turn query text into a vector. A narrower interface than
// embedder.Embedder so tests can fake it without a real backend.
type VectorEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the capability the engine needs from the Vector Indexer.
type VectorIndex interface {
	Query(ctx context.Context, indexName string, vector []float32, topK int, filter indexer.Filter) ([]indexer.ScoredArticle, error)
}

// KeywordSearcher is the capability the engine needs from the keyword
// index.
type KeywordSearcher interface {
	Search(normalizedText string, limit int) ([]KeywordHit, error)
}

// Weights controls the fusion formula `final = w_v*v + w_k*k + w_r*rerank`.
// Defaults per spec.md §4.8: 0.6, 0.3, 0.1; must sum to <= 1.0.
type Weights struct {
	Vector  float64
	Keyword float64
	Rerank  float64
}

// DefaultWeights returns the spec's default fusion weights.
func DefaultWeights() Weights { return Weights{Vector: 0.6, Keyword: 0.3, Rerank: 0.1} }

// Request is one query-time call into the engine.
type Request struct {
	Query               string
	TopK                int
	SimilarityThreshold float64
	Filter              MetadataFilter
	Weights             Weights
	MaxContextBytes     int
}

// RetrievedDoc is one ranked result with its per-component scores.
type RetrievedDoc struct {
	ArticleID    string
	Title        string
	Summary      string
	PublishTime  time.Time
	SourceURL    string
	BodyLength   int
	VectorScore  float64
	KeywordScore float64
	RerankBonus  float64
	Final        float64
}

// Response is the engine's full query-time result.
type Response struct {
	RetrievedDocs    []RetrievedDoc
	ContextString    string
	ContextLength    int
	Degraded         bool
	ProcessingTimeMs int64
}

const defaultTopK = 10
const defaultMaxContextBytes = 4000
const recentWithinDays = 30
const staleWithinDays = 365
const summaryEllipsisLen = 500

// Engine ties the ANN index, the keyword index, and the record store
// together behind the fusion/rerank/context-builder pipeline.
type Engine struct {
	IndexName string
	Indexer   VectorIndex
	Embedder  VectorEmbedder
	Articles  persistence.ArticleRepository
	Keyword   KeywordSearcher
}

// New builds an Engine from its collaborators.
func New(indexName string, ix VectorIndex, emb VectorEmbedder, articles persistence.ArticleRepository, keyword KeywordSearcher) *Engine {
	return &Engine{IndexName: indexName, Indexer: ix, Embedder: emb, Articles: articles, Keyword: keyword}
}

// Query runs the full hybrid retrieval pipeline for one request.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	weights := req.Weights
	if weights.Vector == 0 && weights.Keyword == 0 && weights.Rerank == 0 {
		weights = DefaultWeights()
	}
	maxContextBytes := req.MaxContextBytes
	if maxContextBytes <= 0 {
		maxContextBytes = defaultMaxContextBytes
	}

	analyzed := analyzer.Analyze(req.Query, time.Now())

	var (
		wg                          sync.WaitGroup
		vectorHits                  []indexer.ScoredArticle
		vectorErr                   error
		keywordHits                 []KeywordHit
		keywordErr                  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = e.searchVector(ctx, analyzed, topK, req.Filter)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = e.Keyword.Search(analyzed.NormalizedText, topK*2)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return nil, &RetrievalError{Kind: KindCancelled, Err: ctx.Err()}
	}

	degraded := false
	if vectorErr != nil {
		degraded = true
		vectorHits = nil
	}
	if keywordErr != nil {
		degraded = true
		keywordHits = nil
	}
	if vectorErr != nil && keywordErr != nil {
		return nil, &RetrievalError{Kind: KindNoBackend, Err: fmt.Errorf("vector: %v, keyword: %v", vectorErr, keywordErr)}
	}
	if req.SimilarityThreshold > 0 {
		kept := vectorHits[:0]
		for _, h := range vectorHits {
			if h.Score >= req.SimilarityThreshold {
				kept = append(kept, h)
			}
		}
		vectorHits = kept
	}

	ids := collectIDs(vectorHits, keywordHits)
	articles, err := e.Articles.BulkLoad(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bulk load candidates: %w", err)
	}
	byID := make(map[string]*core.Article, len(articles))
	for i := range articles {
		byID[articles[i].InternalID] = &articles[i]
	}

	fused := fuse(vectorHits, keywordHits, byID, req.Filter, analyzed, weights)

	sort.Slice(fused, func(i, j int) bool {
		return lessFinal(fused[i], fused[j])
	})
	if len(fused) > topK {
		fused = fused[:topK]
	}

	contextString := buildContext(fused, byID, maxContextBytes)

	return &Response{
		RetrievedDocs:    fused,
		ContextString:    contextString,
		ContextLength:    len(contextString),
		Degraded:         degraded,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (e *Engine) searchVector(ctx context.Context, analyzed analyzer.Analyzed, topK int, filter MetadataFilter) ([]indexer.ScoredArticle, error) {
	text := analyzed.NormalizedText
	if text == "" {
		text = "general news query"
	}
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.Indexer.Query(ctx, e.IndexName, vec, topK*2, filter.ToIndexFilter())
}

func collectIDs(vectorHits []indexer.ScoredArticle, keywordHits []KeywordHit) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, h := range vectorHits {
		if !seen[h.ArticleID] {
			seen[h.ArticleID] = true
			ids = append(ids, h.ArticleID)
		}
	}
	for _, h := range keywordHits {
		if !seen[h.ArticleID] {
			seen[h.ArticleID] = true
			ids = append(ids, h.ArticleID)
		}
	}
	return ids
}

// fuse builds the article_id-keyed candidate map, rescoring keyword hits
// via the title/summary token-overlap formula, applying the post-hoc
// metadata filter, and computing the final fused score with rerank bonus.
func fuse(vectorHits []indexer.ScoredArticle, keywordHits []KeywordHit, byID map[string]*core.Article, filter MetadataFilter, analyzed analyzer.Analyzed, weights Weights) []RetrievedDoc {
	type accum struct {
		vScore float64
		kScore bool // whether a keyword score was computed
		kVal   float64
	}
	acc := make(map[string]*accum)

	for _, h := range vectorHits {
		a, ok := byID[h.ArticleID]
		if !ok || !filter.Matches(a) {
			continue
		}
		entry := acc[h.ArticleID]
		if entry == nil {
			entry = &accum{}
			acc[h.ArticleID] = entry
		}
		entry.vScore = h.Score
	}

	queryTokens := tokenSet(analyzed.NormalizedText)
	for _, h := range keywordHits {
		a, ok := byID[h.ArticleID]
		if !ok || !filter.Matches(a) {
			continue
		}
		entry := acc[h.ArticleID]
		if entry == nil {
			entry = &accum{}
			acc[h.ArticleID] = entry
		}
		entry.kScore = true
		entry.kVal = keywordOverlapScore(a, queryTokens)
	}

	docs := make([]RetrievedDoc, 0, len(acc))
	for id, entry := range acc {
		a := byID[id]
		rerank := rerankBonus(a, queryTokens)
		final := weights.Vector*entry.vScore + weights.Keyword*entry.kVal + weights.Rerank*rerank
		docs = append(docs, RetrievedDoc{
			ArticleID:    id,
			Title:        a.Title,
			Summary:      a.Summary,
			PublishTime:  a.PublishTime,
			SourceURL:    a.SourceURL,
			BodyLength:   a.BodyLength(),
			VectorScore:  entry.vScore,
			KeywordScore: entry.kVal,
			RerankBonus:  rerank,
			Final:        final,
		})
	}
	return docs
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(text) {
		set[t] = true
	}
	return set
}

// keywordOverlapScore is `0.7*title_overlap + 0.3*summary_overlap`, where
// overlap is `|query_tokens ∩ field_tokens| / |query_tokens|`.
func keywordOverlapScore(article *core.Article, queryTokens map[string]bool) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	titleOverlap := overlapRatio(queryTokens, tokenSet(strings.ToLower(article.Title)))
	summaryOverlap := overlapRatio(queryTokens, tokenSet(strings.ToLower(article.Summary)))
	return 0.7*titleOverlap + 0.3*summaryOverlap
}

func overlapRatio(queryTokens, fieldTokens map[string]bool) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	matched := 0
	for t := range queryTokens {
		if fieldTokens[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// rerankBonus is `0.1*recency + 0.05*multi_source + 0.1*title_contains_query_token`.
func rerankBonus(article *core.Article, queryTokens map[string]bool) float64 {
	var bonus float64
	if !article.PublishTime.IsZero() {
		age := time.Since(article.PublishTime)
		switch {
		case age <= recentWithinDays*24*time.Hour:
			bonus += 0.1 * 1.0
		case age <= staleWithinDays*24*time.Hour:
			bonus += 0.1 * 0.5
		}
	}
	if len(article.Writers) > 1 {
		bonus += 0.05
	}
	titleLower := strings.ToLower(article.Title)
	for t := range queryTokens {
		if t != "" && strings.Contains(titleLower, t) {
			bonus += 0.1
			break
		}
	}
	return bonus
}

// lessFinal orders two docs by final score descending, then the spec's
// tie-breakers: newer publish_time, then longer body_length, then
// article_id ascending.
func lessFinal(a, b RetrievedDoc) bool {
	if a.Final != b.Final {
		return a.Final > b.Final
	}
	if !a.PublishTime.Equal(b.PublishTime) {
		return a.PublishTime.After(b.PublishTime)
	}
	if a.BodyLength != b.BodyLength {
		return a.BodyLength > b.BodyLength
	}
	return a.ArticleID < b.ArticleID
}

// buildContext sequentially appends (title, summary, publish_time,
// source_url) snippets until maxBytes is reached, ellipsizing summaries
// over summaryEllipsisLen characters, never splitting a record mid-way.
func buildContext(docs []RetrievedDoc, byID map[string]*core.Article, maxBytes int) string {
	var b strings.Builder
	for _, d := range docs {
		article := byID[d.ArticleID]
		if article == nil {
			continue
		}
		summary := ellipsize(article.Summary, summaryEllipsisLen)
		snippet := fmt.Sprintf("Title: %s\nSummary: %s\nPublished: %s\nSource: %s\n\n",
			article.Title, summary, article.PublishTime.Format(time.RFC3339), article.SourceURL)
		if b.Len()+len(snippet) > maxBytes {
			break
		}
		b.WriteString(snippet)
	}
	return b.String()
}

func ellipsize(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
