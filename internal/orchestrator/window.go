package orchestrator

import (
	"context"
	"sync"

	"briefly/internal/core"
	"briefly/internal/dedup"
	"briefly/internal/persistence"
)

// dedupWindow implements dedup.ExistingLookup over a bounded, in-memory
// window of recently ingested articles, shared across one Run's worker
// pool. Exact-hash lookups also fall through to the store directly, since
// content_hash uniqueness is a full-corpus invariant (I1); title-duplicate
// and near-duplicate similarity scoring are bounded to the window, since
// comparing every new candidate against the entire corpus does not scale.
type dedupWindow struct {
	mu            sync.Mutex
	byContentHash map[string]*core.Article
	byTitleHash   map[string]*core.Article
	ordered       []core.Article
	store         persistence.ArticleRepository
}

func newDedupWindow(store persistence.ArticleRepository) *dedupWindow {
	return &dedupWindow{
		byContentHash: make(map[string]*core.Article),
		byTitleHash:   make(map[string]*core.Article),
		store:         store,
	}
}

// add indexes article into the window under both its content hash and its
// title hash, and appends a copy into the similarity-comparison slice.
func (w *dedupWindow) add(article *core.Article, hasher *dedup.ContentHasher) {
	w.mu.Lock()
	defer w.mu.Unlock()

	copied := *article
	w.ordered = append(w.ordered, copied)

	if article.ContentHash != "" {
		w.byContentHash[article.ContentHash] = &copied
	}
	if article.Title != "" {
		w.byTitleHash[hasher.HashText(article.Title)] = &copied
	}
}

// snapshot returns the current window contents for near-duplicate
// similarity scoring.
func (w *dedupWindow) snapshot() []core.Article {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]core.Article, len(w.ordered))
	copy(out, w.ordered)
	return out
}

// FindByHash satisfies dedup.ExistingLookup: check the in-memory window
// first, then fall through to the store's exact content-hash index.
func (w *dedupWindow) FindByHash(hash string) (*core.Article, bool) {
	w.mu.Lock()
	if match, ok := w.byContentHash[hash]; ok {
		w.mu.Unlock()
		return match, true
	}
	w.mu.Unlock()

	match, err := w.store.GetByContentHash(context.Background(), hash)
	if err != nil || match == nil {
		return nil, false
	}
	return match, true
}

// FindByTitleHash satisfies dedup.ExistingLookup, bounded to the window.
func (w *dedupWindow) FindByTitleHash(hash string) (*core.Article, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	match, ok := w.byTitleHash[hash]
	return match, ok
}
