// Package indexer owns the lifecycle of the ANN index and reconciles
// article embeddings into it with at-least-once semantics.
package indexer

import (
	"context"
	"fmt"
	"time"

	"briefly/internal/core"

	"github.com/sony/gobreaker"
)

// StateStore persists IndexState rows. Implemented by internal/persistence.
type StateStore interface {
	Get(ctx context.Context, name string) (*core.IndexState, error)
	Create(ctx context.Context, state *core.IndexState) error
	SetActive(ctx context.Context, name string) error
	UpdateDeployment(ctx context.Context, name, endpointID, deployedID string) error
	UpdateStats(ctx context.Context, name string, totalVectors int64, lastUpdated time.Time) error
}

// ArticleMarker applies the store-side transition that follows a
// successful provider upsert; it runs after the upsert, not in a shared
// transaction with it.
type ArticleMarker interface {
	MarkEmbedded(ctx context.Context, articleID, modelID, vectorRef string, embeddedAt time.Time) error
	MarkProcessingError(ctx context.Context, articleID, message string) error
	EmbeddedArticleIDs(ctx context.Context, cursor string, limit int) (ids []string, nextCursor string, err error)
}

// retry/backoff constants per spec.md §4.9: base 500ms, max 5 attempts.
const (
	baseBackoff = 500 * time.Millisecond
	maxAttempts = 5
)

// Indexer implements ensure_index/deploy/upsert/query/reconcile against an
// ANNProvider, wrapping provider calls in a circuit breaker so a wedged
// provider doesn't retry-storm every batch.
type Indexer struct {
	provider ANNProvider
	states   StateStore
	articles ArticleMarker
	breaker  *gobreaker.CircuitBreaker
}

// New builds an Indexer. name is used only to label the breaker.
func New(name string, provider ANNProvider, states StateStore, articles ArticleMarker) *Indexer {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "indexer-" + name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxAttempts)
		},
	})
	return &Indexer{provider: provider, states: states, articles: articles, breaker: breaker}
}

// EnsureIndex idempotently creates or verifies an IndexState, refusing a
// conflicting dimension or distance on an already-active index.
func (ix *Indexer) EnsureIndex(ctx context.Context, name string, dimensions int, distance string) (*core.IndexState, error) {
	if distance == "" {
		distance = "dot"
	}
	existing, err := ix.states.Get(ctx, name)
	if err == nil && existing != nil {
		if existing.Active && existing.Dimensions != dimensions {
			return nil, &IndexError{Kind: KindDimensionConflict, Err: fmt.Errorf("index %q has dimensions %d, requested %d", name, existing.Dimensions, dimensions)}
		}
		if existing.Active && existing.Distance != "" && existing.Distance != distance {
			return nil, &IndexError{Kind: KindDimensionConflict, Err: fmt.Errorf("index %q has distance %q, requested %q", name, existing.Distance, distance)}
		}
		return existing, nil
	}
	state := &core.IndexState{
		Name:        name,
		Dimensions:  dimensions,
		Distance:    distance,
		LastUpdated: time.Now().UTC(),
		Active:      true,
	}
	if err := ix.states.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create index state: %w", err)
	}
	if err := ix.states.SetActive(ctx, name); err != nil {
		return nil, fmt.Errorf("activate index state: %w", err)
	}
	return state, nil
}

// Deploy ties an IndexState to a query endpoint. Fails if the IndexState
// was never created.
func (ix *Indexer) Deploy(ctx context.Context, name, endpointID, deployedID string) error {
	state, err := ix.states.Get(ctx, name)
	if err != nil || state == nil {
		return &IndexError{Kind: KindNotCreated, Err: fmt.Errorf("index %q not created", name)}
	}
	return ix.states.UpdateDeployment(ctx, name, endpointID, deployedID)
}

// Upsert writes a batch through the provider with exponential backoff,
// marking each article's store-side outcome once the batch resolves.
// Provider failure after exhausted retries marks every article in the
// batch with processing_error and leaves is_embedded false; success marks
// is_embedded/embedded_at and advances IndexState's running totals.
func (ix *Indexer) Upsert(ctx context.Context, name string, batch []Vector, modelID string) error {
	if len(batch) == 0 {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := ix.breaker.Execute(func() (interface{}, error) {
			return nil, ix.provider.Upsert(ctx, name, batch)
		})
		if err == nil {
			return ix.onUpsertSuccess(ctx, name, batch, modelID)
		}

		lastErr = err
		idxErr, ok := err.(*IndexError)
		if ok && !idxErr.Retryable() {
			break
		}
		if attempt == maxAttempts {
			break
		}
		backoff := baseBackoff * time.Duration(1<<uint(attempt-1))
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxAttempts
		case <-time.After(backoff):
		}
	}

	ix.onUpsertFailure(ctx, batch, lastErr)
	return &IndexError{Kind: KindProviderPermanent, Err: lastErr}
}

func (ix *Indexer) onUpsertSuccess(ctx context.Context, name string, batch []Vector, modelID string) error {
	now := time.Now().UTC()
	for _, v := range batch {
		ref := fmt.Sprintf("%s:%d", v.ArticleID, v.ChunkIndex)
		if err := ix.articles.MarkEmbedded(ctx, v.ArticleID, modelID, ref, now); err != nil {
			return fmt.Errorf("mark embedded for %s: %w", v.ArticleID, err)
		}
	}
	count, err := ix.provider.Count(ctx, name)
	if err == nil {
		_ = ix.states.UpdateStats(ctx, name, count, now)
	}
	return nil
}

func (ix *Indexer) onUpsertFailure(ctx context.Context, batch []Vector, cause error) {
	for _, v := range batch {
		_ = ix.articles.MarkProcessingError(ctx, v.ArticleID, fmt.Sprintf("index upsert failed: %v", cause))
	}
}

// Query ranks the index's vectors against vector, honoring filter.
func (ix *Indexer) Query(ctx context.Context, name string, vector []float32, topK int, filter Filter) ([]ScoredArticle, error) {
	return ix.provider.Query(ctx, name, vector, topK, filter)
}

// Reconcile walks articles marked embedded and re-upserts any whose
// (article_id, chunk_index) is missing from the provider. Returns the
// number of articles repaired.
func (ix *Indexer) Reconcile(ctx context.Context, name string, refetch func(ctx context.Context, articleID string) ([]Vector, error)) (int, error) {
	repaired := 0
	cursor := ""
	for {
		ids, next, err := ix.articles.EmbeddedArticleIDs(ctx, cursor, 200)
		if err != nil {
			return repaired, fmt.Errorf("list embedded articles: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			present, err := ix.provider.Has(ctx, name, id, 0)
			if err != nil {
				return repaired, fmt.Errorf("check presence for %s: %w", id, err)
			}
			if present {
				continue
			}
			vectors, err := refetch(ctx, id)
			if err != nil {
				return repaired, fmt.Errorf("refetch vectors for %s: %w", id, err)
			}
			if len(vectors) == 0 {
				continue
			}
			if err := ix.provider.Upsert(ctx, name, vectors); err != nil {
				return repaired, fmt.Errorf("re-upsert %s: %w", id, err)
			}
			repaired++
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return repaired, nil
}
