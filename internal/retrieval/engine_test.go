package retrieval

import (
	"context"
	"strings"
	"testing"
	"time"

	"briefly/internal/core"
	"briefly/internal/indexer"
	"briefly/internal/persistence"
)

// fakeArticleRepo implements persistence.ArticleRepository, serving
// BulkLoad from an in-memory map; every other method is unused by the
// engine and panics if ever called.
type fakeArticleRepo struct {
	byID map[string]core.Article
}

func (f *fakeArticleRepo) BulkLoad(ctx context.Context, ids []string) ([]core.Article, error) {
	var out []core.Article
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArticleRepo) Create(ctx context.Context, article *core.Article) error { panic("unused") }
func (f *fakeArticleRepo) Get(ctx context.Context, id string) (*core.Article, error) {
	panic("unused")
}
func (f *fakeArticleRepo) GetByExternalID(ctx context.Context, id string) (*core.Article, error) {
	panic("unused")
}
func (f *fakeArticleRepo) GetByContentHash(ctx context.Context, hash string) (*core.Article, error) {
	panic("unused")
}
func (f *fakeArticleRepo) List(ctx context.Context, opts persistence.ListOptions) ([]core.Article, error) {
	panic("unused")
}
func (f *fakeArticleRepo) Update(ctx context.Context, article *core.Article) error { panic("unused") }
func (f *fakeArticleRepo) Delete(ctx context.Context, id string) error             { panic("unused") }
func (f *fakeArticleRepo) Unembedded(ctx context.Context, limit int) ([]core.Article, error) {
	panic("unused")
}
func (f *fakeArticleRepo) MarkEmbedded(ctx context.Context, id, modelID, vectorRef string, at time.Time) error {
	panic("unused")
}
func (f *fakeArticleRepo) MarkProcessingError(ctx context.Context, id, message string) error {
	panic("unused")
}
func (f *fakeArticleRepo) MarkNearDuplicate(ctx context.Context, id, similarTo string) error {
	panic("unused")
}
func (f *fakeArticleRepo) EmbeddedIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	panic("unused")
}
func (f *fakeArticleRepo) MaxWatermark(ctx context.Context) (time.Time, error) { panic("unused") }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeVectorIndex struct {
	hits []indexer.ScoredArticle
	err  error
}

func (f fakeVectorIndex) Query(ctx context.Context, indexName string, vector []float32, topK int, filter indexer.Filter) ([]indexer.ScoredArticle, error) {
	return f.hits, f.err
}

type fakeKeywordSearcher struct {
	hits []KeywordHit
	err  error
}

func (f fakeKeywordSearcher) Search(normalizedText string, limit int) ([]KeywordHit, error) {
	return f.hits, f.err
}

func daysAgo(d int) time.Time {
	return time.Now().Add(-time.Duration(d) * 24 * time.Hour)
}

// TestQueryOrderingAndTopK covers P6: results ordered by final descending
// and bounded by top_k.
func TestQueryOrderingAndTopK(t *testing.T) {
	repo := &fakeArticleRepo{byID: map[string]core.Article{
		"a": {InternalID: "a", Title: "Samsung stock surges today", PublishTime: daysAgo(1)},
		"b": {InternalID: "b", Title: "SK Hynix earnings report", PublishTime: daysAgo(5)},
		"c": {InternalID: "c", Title: "Unrelated weather update", PublishTime: daysAgo(400)},
	}}
	vectorIdx := fakeVectorIndex{hits: []indexer.ScoredArticle{
		{ArticleID: "b", Score: 0.9},
		{ArticleID: "a", Score: 0.5},
		{ArticleID: "c", Score: 0.1},
	}}
	keywordIdx := fakeKeywordSearcher{}

	engine := New("test-index", vectorIdx, fakeEmbedder{}, repo, keywordIdx)
	resp, err := engine.Query(context.Background(), Request{Query: "samsung stock", TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.RetrievedDocs) > 2 {
		t.Fatalf("expected at most 2 docs (top_k), got %d", len(resp.RetrievedDocs))
	}
	for i := 1; i < len(resp.RetrievedDocs); i++ {
		if resp.RetrievedDocs[i-1].Final < resp.RetrievedDocs[i].Final {
			t.Errorf("results not ordered by final descending at index %d", i)
		}
	}
}

// TestQueryDegradesOnVectorFailure covers scenario 6: vector backend down,
// keyword backend up, response.degraded = true, results from keyword only.
func TestQueryDegradesOnVectorFailure(t *testing.T) {
	repo := &fakeArticleRepo{byID: map[string]core.Article{
		"k1": {InternalID: "k1", Title: "Keyword only hit", PublishTime: daysAgo(2)},
	}}
	vectorIdx := fakeVectorIndex{err: &indexer.IndexError{Kind: indexer.KindProviderPermanent}}
	keywordIdx := fakeKeywordSearcher{hits: []KeywordHit{{ArticleID: "k1", BleveScore: 1.0}}}

	engine := New("test-index", vectorIdx, fakeEmbedder{}, repo, keywordIdx)
	resp, err := engine.Query(context.Background(), Request{Query: "keyword only hit", TopK: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Degraded {
		t.Error("expected degraded = true when the vector backend fails")
	}
	if len(resp.RetrievedDocs) != 1 || resp.RetrievedDocs[0].ArticleID != "k1" {
		t.Errorf("expected the single keyword hit to survive, got %+v", resp.RetrievedDocs)
	}
}

// TestQueryBothBackendsFailReturnsNoBackend covers the both-fail branch of
// the degraded-mode semantics.
func TestQueryBothBackendsFailReturnsNoBackend(t *testing.T) {
	repo := &fakeArticleRepo{byID: map[string]core.Article{}}
	vectorIdx := fakeVectorIndex{err: &indexer.IndexError{Kind: indexer.KindProviderPermanent}}
	keywordIdx := fakeKeywordSearcher{err: context.DeadlineExceeded}

	engine := New("test-index", vectorIdx, fakeEmbedder{}, repo, keywordIdx)
	_, err := engine.Query(context.Background(), Request{Query: "anything", TopK: 5})
	if err == nil {
		t.Fatal("expected a RetrievalError when both backends fail")
	}
	var retrErr *RetrievalError
	if re, ok := err.(*RetrievalError); !ok || re.Kind != KindNoBackend {
		t.Errorf("err = %v (%T), want RetrievalError{Kind: no_backend}", err, retrErr)
	}
}

// TestBuildContextRespectsByteBudget covers P8.
func TestBuildContextRespectsByteBudget(t *testing.T) {
	docs := []RetrievedDoc{
		{ArticleID: "a"}, {ArticleID: "b"}, {ArticleID: "c"},
	}
	byID := map[string]*core.Article{
		"a": {InternalID: "a", Title: "A", Summary: "short summary", SourceURL: "http://a"},
		"b": {InternalID: "b", Title: "B", Summary: "short summary", SourceURL: "http://b"},
		"c": {InternalID: "c", Title: "C", Summary: "short summary", SourceURL: "http://c"},
	}
	out := buildContext(docs, byID, 120)
	if len(out) > 120 {
		t.Errorf("context length %d exceeds budget 120", len(out))
	}
}

// TestBuildContextEllipsizesLongSummaries checks the 500-char ellipsis
// rule never breaks mid-record.
func TestBuildContextEllipsizesLongSummaries(t *testing.T) {
	longSummary := ""
	for i := 0; i < 600; i++ {
		longSummary += "x"
	}
	docs := []RetrievedDoc{{ArticleID: "a"}}
	byID := map[string]*core.Article{
		"a": {InternalID: "a", Title: "A", Summary: longSummary},
	}
	out := buildContext(docs, byID, 4000)
	if len(out) == 0 {
		t.Fatal("expected non-empty context")
	}
	if !strings.Contains(out, strings.Repeat("x", 500)+"...") || strings.Contains(out, strings.Repeat("x", 501)) {
		t.Errorf("expected summary ellipsized to 500 chars, got %q", out)
	}
}

func TestMetadataFilterDateRange(t *testing.T) {
	f := MetadataFilter{
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	inRange := &core.Article{PublishTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	outOfRange := &core.Article{PublishTime: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)}
	if !f.Matches(inRange) {
		t.Error("expected in-range article to match")
	}
	if f.Matches(outOfRange) {
		t.Error("expected out-of-range article to be filtered out")
	}
}
