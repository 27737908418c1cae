package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"briefly/internal/core"
)

type fakeStates struct {
	states map[string]*core.IndexState
}

func newFakeStates() *fakeStates { return &fakeStates{states: map[string]*core.IndexState{}} }

func (f *fakeStates) Get(ctx context.Context, name string) (*core.IndexState, error) {
	s, ok := f.states[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (f *fakeStates) Create(ctx context.Context, state *core.IndexState) error {
	f.states[state.Name] = state
	return nil
}

func (f *fakeStates) SetActive(ctx context.Context, name string) error {
	if s, ok := f.states[name]; ok {
		s.Active = true
	}
	return nil
}

func (f *fakeStates) UpdateDeployment(ctx context.Context, name, endpointID, deployedID string) error {
	s, ok := f.states[name]
	if !ok {
		return errors.New("not found")
	}
	s.EndpointID = endpointID
	s.DeployedID = deployedID
	return nil
}

func (f *fakeStates) UpdateStats(ctx context.Context, name string, totalVectors int64, lastUpdated time.Time) error {
	if s, ok := f.states[name]; ok {
		s.TotalVectors = totalVectors
		s.LastUpdated = lastUpdated
	}
	return nil
}

type fakeArticles struct {
	embedded map[string]bool
	errored  map[string]string
}

func newFakeArticles() *fakeArticles {
	return &fakeArticles{embedded: map[string]bool{}, errored: map[string]string{}}
}

func (f *fakeArticles) MarkEmbedded(ctx context.Context, articleID, modelID, vectorRef string, embeddedAt time.Time) error {
	f.embedded[articleID] = true
	return nil
}

func (f *fakeArticles) MarkProcessingError(ctx context.Context, articleID, message string) error {
	f.errored[articleID] = message
	return nil
}

func (f *fakeArticles) EmbeddedArticleIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	var ids []string
	for id := range f.embedded {
		ids = append(ids, id)
	}
	return ids, "", nil
}

type fakeProvider struct {
	failUpserts int
	upserted    []Vector
	present     map[string]bool
}

func (p *fakeProvider) Upsert(ctx context.Context, indexName string, batch []Vector) error {
	if p.failUpserts > 0 {
		p.failUpserts--
		return &IndexError{Kind: KindProviderTransient, Err: errors.New("transient")}
	}
	p.upserted = append(p.upserted, batch...)
	return nil
}

func (p *fakeProvider) Query(ctx context.Context, indexName string, vector []float32, topK int, filter Filter) ([]ScoredArticle, error) {
	return nil, nil
}

func (p *fakeProvider) Has(ctx context.Context, indexName, articleID string, chunkIndex int) (bool, error) {
	return p.present[articleID], nil
}

func (p *fakeProvider) Count(ctx context.Context, indexName string) (int64, error) {
	return int64(len(p.upserted)), nil
}

func TestEnsureIndexCreatesOnFirstCall(t *testing.T) {
	ix := New("t", &fakeProvider{}, newFakeStates(), newFakeArticles())
	state, err := ix.EnsureIndex(context.Background(), "news", 768, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Distance != "dot" {
		t.Errorf("expected default distance dot, got %s", state.Distance)
	}
}

func TestEnsureIndexRejectsDimensionConflict(t *testing.T) {
	ix := New("t", &fakeProvider{}, newFakeStates(), newFakeArticles())
	ctx := context.Background()
	if _, err := ix.EnsureIndex(ctx, "news", 768, "dot"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := ix.EnsureIndex(ctx, "news", 384, "dot")
	var idxErr *IndexError
	if !errors.As(err, &idxErr) || idxErr.Kind != KindDimensionConflict {
		t.Fatalf("expected dimension conflict, got %v", err)
	}
}

func TestUpsertRetriesTransientThenSucceeds(t *testing.T) {
	provider := &fakeProvider{failUpserts: 2}
	articles := newFakeArticles()
	ix := New("t", provider, newFakeStates(), articles)
	ix.states.Create(context.Background(), &core.IndexState{Name: "news", Dimensions: 4})

	err := ix.Upsert(context.Background(), "news", []Vector{{ArticleID: "a1", ChunkIndex: 0, Embedding: []float32{1, 0, 0, 0}}}, "m1")
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if !articles.embedded["a1"] {
		t.Error("expected article marked embedded")
	}
}

func TestUpsertMarksProcessingErrorOnExhaustedRetries(t *testing.T) {
	provider := &fakeProvider{failUpserts: 10}
	articles := newFakeArticles()
	ix := New("t", provider, newFakeStates(), articles)

	err := ix.Upsert(context.Background(), "news", []Vector{{ArticleID: "a2", ChunkIndex: 0, Embedding: []float32{1}}}, "m1")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if articles.embedded["a2"] {
		t.Error("article should not be marked embedded")
	}
	if _, ok := articles.errored["a2"]; !ok {
		t.Error("expected processing_error recorded")
	}
}

func TestReconcileRepairsMissingVectors(t *testing.T) {
	provider := &fakeProvider{present: map[string]bool{"a1": true}}
	articles := newFakeArticles()
	articles.embedded["a1"] = true
	articles.embedded["a2"] = true
	ix := New("t", provider, newFakeStates(), articles)

	refetch := func(ctx context.Context, articleID string) ([]Vector, error) {
		return []Vector{{ArticleID: articleID, ChunkIndex: 0, Embedding: []float32{1, 2}}}, nil
	}
	repaired, err := ix.Reconcile(context.Background(), "news", refetch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repaired != 1 {
		t.Errorf("expected 1 repaired article, got %d", repaired)
	}
}

func TestLocalProviderDotProductRanking(t *testing.T) {
	p, err := NewLocalProvider(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()
	ctx := context.Background()
	batch := []Vector{
		{ArticleID: "near", ChunkIndex: 0, Embedding: []float32{1, 0}},
		{ArticleID: "far", ChunkIndex: 0, Embedding: []float32{0, 1}},
	}
	if err := p.Upsert(ctx, "idx", batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	results, err := p.Query(ctx, "idx", []float32{1, 0}, 2, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0].ArticleID != "near" {
		t.Fatalf("expected near ranked first, got %+v", results)
	}
}
