package orchestrator

import (
	"context"
	"testing"
	"time"

	"briefly/internal/chunker"
	"briefly/internal/core"
	"briefly/internal/dedup"
	"briefly/internal/indexer"
	"briefly/internal/model"
	"briefly/internal/persistence"
	"briefly/internal/source"
)

func sampleXML(artID, title string, modTime time.Time) []byte {
	_ = modTime
	xml := `<article>
  <wms_article>
    <art_id>` + artID + `</art_id>
    <title>` + title + `</title>
    <service_daytime>2026-07-01 09:00:00</service_daytime>
    <writers>Kim Reporter</writers>
  </wms_article>
  <wms_article_body><body>Samsung Electronics announced new quarterly earnings today.</body></wms_article_body>
  <wms_article_summary><summary>Samsung posts strong earnings.</summary></wms_article_summary>
  <article_url>http://example.com/` + artID + `</article_url>
  <stock_codes>005930</stock_codes>
  <wms_article_keywords>semiconductor,earnings</wms_article_keywords>
</article>`
	return []byte(xml)
}

type fakeSource struct {
	inputs []source.RawInput
}

func (f fakeSource) Discover(ctx context.Context, watermark time.Time) ([]source.RawInput, error) {
	return f.inputs, nil
}

type fakeArticleStore struct {
	byInternalID map[string]*core.Article
	byHash       map[string]*core.Article
	created      []string
	unembedded   []core.Article
}

func newFakeArticleStore() *fakeArticleStore {
	return &fakeArticleStore{
		byInternalID: make(map[string]*core.Article),
		byHash:       make(map[string]*core.Article),
	}
}

func (s *fakeArticleStore) Create(ctx context.Context, article *core.Article) error {
	copied := *article
	s.byInternalID[article.InternalID] = &copied
	if article.ContentHash != "" {
		s.byHash[article.ContentHash] = &copied
	}
	s.created = append(s.created, article.InternalID)
	s.unembedded = append(s.unembedded, copied)
	return nil
}
func (s *fakeArticleStore) Get(ctx context.Context, id string) (*core.Article, error) {
	return s.byInternalID[id], nil
}
func (s *fakeArticleStore) GetByExternalID(ctx context.Context, id string) (*core.Article, error) {
	return nil, nil
}
func (s *fakeArticleStore) GetByContentHash(ctx context.Context, hash string) (*core.Article, error) {
	if a, ok := s.byHash[hash]; ok {
		return a, nil
	}
	return nil, nil
}
func (s *fakeArticleStore) List(ctx context.Context, opts persistence.ListOptions) ([]core.Article, error) {
	return nil, nil
}
func (s *fakeArticleStore) BulkLoad(ctx context.Context, ids []string) ([]core.Article, error) {
	return nil, nil
}
func (s *fakeArticleStore) Update(ctx context.Context, article *core.Article) error { return nil }
func (s *fakeArticleStore) Delete(ctx context.Context, id string) error             { return nil }
func (s *fakeArticleStore) Unembedded(ctx context.Context, limit int) ([]core.Article, error) {
	if limit > len(s.unembedded) {
		limit = len(s.unembedded)
	}
	out := s.unembedded[:limit]
	s.unembedded = s.unembedded[limit:]
	return out, nil
}
func (s *fakeArticleStore) MarkEmbedded(ctx context.Context, id, modelID, vectorRef string, at time.Time) error {
	return nil
}
func (s *fakeArticleStore) MarkProcessingError(ctx context.Context, id, message string) error {
	return nil
}
func (s *fakeArticleStore) MarkNearDuplicate(ctx context.Context, id, similarTo string) error {
	return nil
}
func (s *fakeArticleStore) EmbeddedIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	return nil, "", nil
}
func (s *fakeArticleStore) MaxWatermark(ctx context.Context) (time.Time, error) {
	return time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), nil
}
func (s *fakeArticleStore) EmbeddedArticleIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	return nil, "", nil
}

type fakeLog struct{ entries []*core.ProcessingLogEntry }

func (l *fakeLog) Append(ctx context.Context, entry *core.ProcessingLogEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}
func (l *fakeLog) ListByArticle(ctx context.Context, articleID string, limit int) ([]core.ProcessingLogEntry, error) {
	return nil, nil
}
func (l *fakeLog) ListByCorrelation(ctx context.Context, correlationID string) ([]core.ProcessingLogEntry, error) {
	return nil, nil
}

type fakeEmbedder struct{ dims int }

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (f fakeEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
func (f fakeEmbedder) Dimensions() int { return 3 }
func (f fakeEmbedder) ModelID() string { return "fake-embed" }
func (f fakeEmbedder) BatchCap() int   { return 10 }

type fakeANNProvider struct{ upserted []indexer.Vector }

func (p *fakeANNProvider) Upsert(ctx context.Context, indexName string, batch []indexer.Vector) error {
	p.upserted = append(p.upserted, batch...)
	return nil
}
func (p *fakeANNProvider) Query(ctx context.Context, indexName string, vector []float32, topK int, filter indexer.Filter) ([]indexer.ScoredArticle, error) {
	return nil, nil
}
func (p *fakeANNProvider) Has(ctx context.Context, indexName, articleID string, chunkIndex int) (bool, error) {
	return true, nil
}
func (p *fakeANNProvider) Count(ctx context.Context, indexName string) (int64, error) {
	return int64(len(p.upserted)), nil
}

type fakeStateStore struct{ states map[string]*core.IndexState }

func newFakeStateStore() *fakeStateStore { return &fakeStateStore{states: make(map[string]*core.IndexState)} }
func (s *fakeStateStore) Get(ctx context.Context, name string) (*core.IndexState, error) {
	return s.states[name], nil
}
func (s *fakeStateStore) Create(ctx context.Context, state *core.IndexState) error {
	s.states[state.Name] = state
	return nil
}
func (s *fakeStateStore) SetActive(ctx context.Context, name string) error {
	if st, ok := s.states[name]; ok {
		st.Active = true
	}
	return nil
}
func (s *fakeStateStore) UpdateDeployment(ctx context.Context, name, endpointID, deployedID string) error {
	return nil
}
func (s *fakeStateStore) UpdateStats(ctx context.Context, name string, totalVectors int64, lastUpdated time.Time) error {
	return nil
}

func buildOrchestrator(t *testing.T, inputs []source.RawInput) (*Orchestrator, *fakeArticleStore, *fakeANNProvider) {
	t.Helper()
	store := newFakeArticleStore()
	log := &fakeLog{}
	provider := &fakeANNProvider{}
	states := newFakeStateStore()
	ix := indexer.New("test", provider, states, store)

	detector := dedup.NewDuplicateDetector(dedup.NewContentHasher(model.Hash128), 0.8)
	hasher := dedup.NewContentHasher(model.Hash128)
	chunk := chunker.New(500, 50, chunker.StrategySentence)

	o := New(fakeSource{inputs: inputs}, detector, hasher, chunk, fakeEmbedder{}, ix, store, log, Options{
		MaxWorkers: 2, BatchSize: 10, MaxPerInvocation: 100, IndexName: "test", EmbeddingModel: "fake-embed",
	})
	return o, store, provider
}

func rawInput(id string, data []byte) source.RawInput {
	return source.RawInput{
		ID:      id,
		ModTime: time.Now(),
		Load:    func(ctx context.Context) ([]byte, error) { return data, nil },
	}
}

func TestRunIngestsAndEmbedsNewArticles(t *testing.T) {
	inputs := []source.RawInput{
		rawInput("a.xml", sampleXML("ART001", "Samsung posts record earnings", time.Now())),
		rawInput("b.xml", sampleXML("ART002", "SK Hynix expands chip production", time.Now())),
	}
	o, store, provider := buildOrchestrator(t, inputs)

	result, err := o.Run(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ArticlesPersisted != 2 {
		t.Errorf("expected 2 articles persisted, got %d", result.ArticlesPersisted)
	}
	if len(store.created) != 2 {
		t.Errorf("expected 2 articles created in store, got %d", len(store.created))
	}
	if result.ArticlesEmbedded != 2 {
		t.Errorf("expected 2 articles embedded, got %d", result.ArticlesEmbedded)
	}
	if len(provider.upserted) != 2 {
		t.Errorf("expected 2 vectors upserted, got %d", len(provider.upserted))
	}
}

func TestRunSkipsByteIdenticalFilesWithinOneRun(t *testing.T) {
	data := sampleXML("ART003", "Identical byte-for-byte article", time.Now())
	inputs := []source.RawInput{
		rawInput("a.xml", data),
		rawInput("b.xml", append([]byte{}, data...)),
	}
	o, store, _ := buildOrchestrator(t, inputs)

	result, err := o.Run(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FilesSkipped != 1 {
		t.Errorf("expected 1 file skipped as byte-identical, got %d", result.FilesSkipped)
	}
	if len(store.created) != 1 {
		t.Errorf("expected exactly 1 article persisted, got %d", len(store.created))
	}
}

func TestRunMarksExactContentDuplicateAgainstExistingStore(t *testing.T) {
	store := newFakeArticleStore()
	existing := &core.Article{InternalID: "existing-1", Title: "Preexisting article", Body: "Samsung Electronics announced new quarterly earnings today.", Summary: "Samsung posts strong earnings."}
	hasher := dedup.NewContentHasher(model.Hash128)
	existing.ContentHash = hasher.Hash(existing.Title, existing.Body, existing.Summary)
	store.byHash[existing.ContentHash] = existing
	store.byInternalID[existing.InternalID] = existing

	log := &fakeLog{}
	provider := &fakeANNProvider{}
	states := newFakeStateStore()
	ix := indexer.New("test", provider, states, store)
	detector := dedup.NewDuplicateDetector(hasher, 0.8)
	chunk := chunker.New(500, 50, chunker.StrategySentence)

	candidate := sampleXML("ART004", "Preexisting article", time.Now())
	o := New(fakeSource{inputs: []source.RawInput{rawInput("a.xml", candidate)}}, detector, hasher, chunk, fakeEmbedder{}, ix, store, log, Options{})

	result, err := o.Run(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ArticlesDuplicate != 1 {
		t.Errorf("expected 1 exact duplicate, got %d (persisted=%d)", result.ArticlesDuplicate, result.ArticlesPersisted)
	}
	if len(store.created) != 0 {
		t.Errorf("expected the duplicate to never be persisted, got %d created", len(store.created))
	}
}
