package embedder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"briefly/internal/core"
)

// EmbedArticle embeds an article's indexing text through the given
// backend, returning the ArticleEmbedding the spec describes. It does not
// persist anything; the caller (the orchestrator) owns that.
func EmbedArticle(ctx context.Context, e Embedder, article *core.Article, metadataHash string) (*ArticleEmbedding, error) {
	text := PreprocessArticleText(article.Title, article.IndexingText)
	vector, err := e.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) != e.Dimensions() {
		return nil, &EmbedError{Kind: KindDimensionMismatch, Err: fmt.Errorf("got %d dims, want %d", len(vector), e.Dimensions())}
	}
	sum := sha256.Sum256([]byte(text))
	return &ArticleEmbedding{
		Vector:       vector,
		TextHash:     fmt.Sprintf("%x", sum),
		MetadataHash: metadataHash,
		ModelID:      e.ModelID(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}
