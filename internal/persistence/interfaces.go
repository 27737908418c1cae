// Package persistence provides database abstraction interfaces and a
// PostgreSQL implementation for storing articles, embeddings, the active
// vector index state, and the append-only processing log.
package persistence

import (
	"context"
	"time"

	"briefly/internal/core"
)

// ArticleRepository handles article persistence, including the processing
// state transitions the Vector Indexer and Orchestrator drive.
type ArticleRepository interface {
	// Create inserts a new article with its categories, keywords and stock
	// codes, all within a single transaction.
	Create(ctx context.Context, article *core.Article) error

	// Get retrieves an article by internal ID.
	Get(ctx context.Context, internalID string) (*core.Article, error)

	// GetByExternalID retrieves an article by its source-assigned external ID.
	GetByExternalID(ctx context.Context, externalID string) (*core.Article, error)

	// GetByContentHash retrieves the most recently ingested article sharing
	// a normalized content fingerprint, used by the Dedup exact-hash path.
	GetByContentHash(ctx context.Context, contentHash string) (*core.Article, error)

	// List retrieves articles with pagination and filtering.
	List(ctx context.Context, opts ListOptions) ([]core.Article, error)

	// BulkLoad hydrates many articles in one round trip, for the Hybrid
	// Retrieval Engine's candidate-hydration step.
	BulkLoad(ctx context.Context, internalIDs []string) ([]core.Article, error)

	// Update rewrites an existing article's mutable fields.
	Update(ctx context.Context, article *core.Article) error

	// Delete removes an article by internal ID.
	Delete(ctx context.Context, internalID string) error

	// Unembedded lists persisted-but-unembedded articles, oldest first, for
	// the Orchestrator's batch-embed step.
	Unembedded(ctx context.Context, limit int) ([]core.Article, error)

	// MarkEmbedded sets is_embedded/embedding_model/embedded_at/
	// embedding_vector_ref for one article.
	MarkEmbedded(ctx context.Context, internalID, modelID, vectorRef string, embeddedAt time.Time) error

	// MarkProcessingError records a processing_error without touching
	// is_embedded, per the Vector Indexer's exhausted-retry contract.
	MarkProcessingError(ctx context.Context, internalID, message string) error

	// MarkNearDuplicate sets similar_to per the Dedup annotate policy.
	MarkNearDuplicate(ctx context.Context, internalID, similarTo string) error

	// EmbeddedIDs pages through internal IDs with is_embedded = true, for
	// the Vector Indexer's reconcile walk.
	EmbeddedIDs(ctx context.Context, cursor string, limit int) (ids []string, nextCursor string, err error)

	// MaxWatermark returns max(publish_time ∪ ingested_at) across all
	// articles, for the Orchestrator's watermark advance.
	MaxWatermark(ctx context.Context) (time.Time, error)
}

// EmbeddingRepository persists per-chunk embedding vectors independent of
// the ANN provider's own storage. The reconcile command does not read it;
// it re-embeds each article's IndexingText.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, record *core.EmbeddingRecord) error
	Get(ctx context.Context, articleID string, chunkIndex int) (*core.EmbeddingRecord, error)
	ListByArticle(ctx context.Context, articleID string) ([]core.EmbeddingRecord, error)
	Delete(ctx context.Context, articleID string, chunkIndex int) error
}

// IndexStateRepository persists the IndexState lifecycle the Vector
// Indexer drives.
type IndexStateRepository interface {
	Get(ctx context.Context, name string) (*core.IndexState, error)
	Create(ctx context.Context, state *core.IndexState) error
	SetActive(ctx context.Context, name string) error
	UpdateDeployment(ctx context.Context, name, endpointID, deployedID string) error
	UpdateStats(ctx context.Context, name string, totalVectors int64, lastUpdated time.Time) error
	Active(ctx context.Context) (*core.IndexState, error)
}

// ProcessingLogRepository appends audit rows for every pipeline step.
type ProcessingLogRepository interface {
	Append(ctx context.Context, entry *core.ProcessingLogEntry) error
	ListByArticle(ctx context.Context, articleID string, limit int) ([]core.ProcessingLogEntry, error)
	ListByCorrelation(ctx context.Context, correlationID string) ([]core.ProcessingLogEntry, error)
}

// ListOptions provides common filtering and pagination options.
type ListOptions struct {
	Limit  int               // maximum number of results (0 for default)
	Offset int               // number of results to skip
	SortBy string            // field to sort by
	Order  string            // "asc" or "desc"
	Filter map[string]string // key-value equality filters
}

// Database aggregates all repositories behind one connection.
type Database interface {
	Articles() ArticleRepository
	Embeddings() EmbeddingRepository
	IndexStates() IndexStateRepository
	ProcessingLog() ProcessingLogRepository

	Close() error
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction exposing the same
// repository surface scoped to it.
type Transaction interface {
	Commit() error
	Rollback() error

	Articles() ArticleRepository
	Embeddings() EmbeddingRepository
	IndexStates() IndexStateRepository
	ProcessingLog() ProcessingLogRepository
}
