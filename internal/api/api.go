// Package api is the thin façade the CLI drives: it wires the config,
// persistence, dedup, chunking, embedding, indexing, retrieval, and LLM
// layers together behind the three entry points spec.md §6 names —
// ingest, incremental_ingest, and query.
package api

import (
	"context"
	"fmt"
	"time"

	"briefly/internal/chunker"
	"briefly/internal/config"
	"briefly/internal/dedup"
	"briefly/internal/embedder"
	"briefly/internal/indexer"
	"briefly/internal/llm"
	"briefly/internal/logger"
	"briefly/internal/model"
	"briefly/internal/orchestrator"
	"briefly/internal/persistence"
	"briefly/internal/retrieval"
	"briefly/internal/source"
)

// App aggregates every long-lived collaborator the CLI commands need.
// Build one with New and reuse it for the process lifetime.
type App struct {
	Config    *config.Config
	DB        persistence.Database
	Embedder  embedder.Embedder
	Indexer   *indexer.Indexer
	Keyword   *retrieval.KeywordIndex
	Engine    *retrieval.Engine
	LLM       llm.Client
	closeFns  []func() error
}

// New wires an App from cfg. The caller owns cfg's lifetime; Close tears
// down the database connection and the ANN provider (if it owns a handle).
// The keyword index is not closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := persistence.NewPostgresDB(cfg.Store.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	app := &App{Config: cfg, DB: db}
	app.closeFns = append(app.closeFns, db.Close)

	emb, err := buildEmbedder(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	app.Embedder = emb

	provider, providerCloser, err := buildANNProvider(ctx, cfg, db)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build ANN provider: %w", err)
	}
	if providerCloser != nil {
		app.closeFns = append(app.closeFns, providerCloser)
	}

	marker := articleMarkerAdapter{repo: db.Articles()}
	app.Indexer = indexer.New(cfg.Index.Name, provider, db.IndexStates(), marker)
	if _, err := app.Indexer.EnsureIndex(ctx, cfg.Index.Name, cfg.Index.Dimensions, cfg.Index.Distance); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	keyword, err := retrieval.NewKeywordIndex(cfg.Retrieval.BleveIndexPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build keyword index: %w", err)
	}
	app.Keyword = keyword

	app.Engine = retrieval.New(cfg.Index.Name, app.Indexer, app.Embedder, db.Articles(), app.Keyword)

	genClient, err := buildLLMClient(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build LLM client: %w", err)
	}
	app.LLM = genClient

	return app, nil
}

// Close releases every resource opened by New, in reverse order.
func (a *App) Close() error {
	var lastErr error
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		if err := a.closeFns[i](); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.Embedding.Backend {
	case "managed":
		return embedder.NewManagedEmbedder(ctx, cfg.Embedding.Managed.APIKey, cfg.Embedding.Managed.Model, int32(cfg.Embedding.Dimensions))
	case "local":
		return embedder.NewLocalEmbedder(cfg.Embedding.Local.APIKey, cfg.Embedding.Local.BaseURL, cfg.Embedding.Local.Model, cfg.Embedding.Dimensions), nil
	default:
		return embedder.NewFallbackEmbedder(cfg.Embedding.Dimensions), nil
	}
}

func buildANNProvider(ctx context.Context, cfg *config.Config, db persistence.Database) (indexer.ANNProvider, func() error, error) {
	switch cfg.ANN.Provider {
	case "pgvector":
		pgDB, ok := db.(*persistence.PostgresDB)
		if !ok {
			return nil, nil, fmt.Errorf("pgvector provider requires a PostgreSQL store")
		}
		return indexer.NewPgVectorProvider(pgDB.DB()), nil, nil
	default:
		provider, err := indexer.NewLocalProvider(ctx, cfg.ANN.LocalDB)
		if err != nil {
			return nil, nil, err
		}
		return provider, provider.Close, nil
	}
}

func buildLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return llm.NewFallbackClient(), nil
	}
	managed, err := llm.NewManagedClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		logger.Warn("managed LLM client unavailable, falling back", "error", err)
		return llm.NewFallbackClient(), nil
	}
	return llm.NewWithFallback(managed), nil
}

// articleMarkerAdapter bridges persistence.ArticleRepository's EmbeddedIDs
// to the narrower method name the Vector Indexer's reconcile walk expects.
type articleMarkerAdapter struct {
	repo persistence.ArticleRepository
}

func (a articleMarkerAdapter) MarkEmbedded(ctx context.Context, articleID, modelID, vectorRef string, embeddedAt time.Time) error {
	return a.repo.MarkEmbedded(ctx, articleID, modelID, vectorRef, embeddedAt)
}

func (a articleMarkerAdapter) MarkProcessingError(ctx context.Context, articleID, message string) error {
	return a.repo.MarkProcessingError(ctx, articleID, message)
}

func (a articleMarkerAdapter) EmbeddedArticleIDs(ctx context.Context, cursor string, limit int) ([]string, string, error) {
	return a.repo.EmbeddedIDs(ctx, cursor, limit)
}

// Ingest runs one full batch ingest pass over xmlDirectory from a zero
// watermark, per spec.md §6's `ingest(xml_directory, batch_size, max_workers)`.
func (a *App) Ingest(ctx context.Context, xmlDirectory string, batchSize, maxWorkers int) (*orchestrator.Result, error) {
	cfg := *a.Config
	if batchSize > 0 {
		cfg.Ingest.BatchSize = batchSize
	}
	if maxWorkers > 0 {
		cfg.Ingest.MaxWorkers = maxWorkers
	}
	scoped := *a
	scoped.Config = &cfg
	return scoped.IncrementalIngest(ctx, source.NewDirectorySource(xmlDirectory), time.Time{})
}

// IncrementalIngest runs one ingest pass against src starting from
// watermark; the zero value discovers every input the source offers,
// per spec.md §6's `incremental_ingest(source, watermark?)`.
func (a *App) IncrementalIngest(ctx context.Context, src source.Source, watermark time.Time) (*orchestrator.Result, error) {
	cfg := a.Config
	hasher := dedup.NewContentHasher(model.HashStrength(cfg.Dedup.HashStrength))
	detector := dedup.NewDuplicateDetector(hasher, cfg.Dedup.SimilarityThreshold)
	chunk := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, chunker.Strategy(cfg.Chunking.Strategy))

	orch := orchestrator.New(src, detector, hasher, chunk, a.Embedder, a.Indexer, a.DB.Articles(), a.DB.ProcessingLog(), orchestrator.Options{
		MaxWorkers:       cfg.Ingest.MaxWorkers,
		BatchSize:        cfg.Ingest.BatchSize,
		MaxPerInvocation: cfg.Ingest.MaxPerInvocation,
		IndexName:        cfg.Index.Name,
		EmbeddingModel:   a.Embedder.ModelID(),
		DedupPolicy:      model.NearDuplicatePolicy(cfg.Dedup.NearDuplicatePolicy),
	})

	result, err := orch.Run(ctx, watermark)
	if err != nil {
		return nil, err
	}

	if err := a.reindexKeywords(ctx); err != nil {
		logger.Warn("keyword reindex after ingest failed", "error", err)
	}

	return result, nil
}

// reindexKeywords refreshes the in-process bleve index with every article
// persisted so far. A full rebuild is acceptable at this corpus scale and
// keeps the keyword and vector streams from drifting apart after a run.
func (a *App) reindexKeywords(ctx context.Context) error {
	articles, err := a.DB.Articles().List(ctx, persistence.ListOptions{Limit: 0})
	if err != nil {
		return fmt.Errorf("list articles for keyword reindex: %w", err)
	}
	for i := range articles {
		if err := a.Keyword.IndexArticle(&articles[i]); err != nil {
			return fmt.Errorf("index article %s: %w", articles[i].InternalID, err)
		}
	}
	return nil
}

// Query runs one hybrid retrieval + LLM synthesis round trip, per
// spec.md §6's `query(query, top_k, similarity_threshold, filters, weights,
// max_context_length)`.
func (a *App) Query(ctx context.Context, req retrieval.Request) (*llm.Response, *retrieval.Response, error) {
	retrieved, err := a.Engine.Query(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieve: %w", err)
	}

	references := make([]llm.Reference, 0, len(retrieved.RetrievedDocs))
	for _, d := range retrieved.RetrievedDocs {
		references = append(references, llm.Reference{ArticleID: d.ArticleID, Title: d.Title, SourceURL: d.SourceURL})
	}

	answer, err := a.LLM.Generate(ctx, req.Query, retrieved.ContextString, references)
	if err != nil {
		return nil, retrieved, fmt.Errorf("generate answer: %w", err)
	}
	return answer, retrieved, nil
}
