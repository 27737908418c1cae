package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"briefly/internal/indexer"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair drift between the article store and the vector index",
		Long: `Walk every embedded article and confirm its vector is present in
the index, re-embedding and re-upserting any that are missing.

Example:
  briefly reconcile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			refetch := func(ctx context.Context, articleID string) ([]indexer.Vector, error) {
				article, err := app.DB.Articles().Get(ctx, articleID)
				if err != nil {
					return nil, fmt.Errorf("load article %s: %w", articleID, err)
				}
				vec, err := app.Embedder.Embed(ctx, article.IndexingText)
				if err != nil {
					return nil, fmt.Errorf("re-embed article %s: %w", articleID, err)
				}
				return []indexer.Vector{{ArticleID: articleID, ChunkIndex: 0, Embedding: vec}}, nil
			}

			repaired, err := app.Indexer.Reconcile(cmd.Context(), app.Config.Index.Name, refetch)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}

			fmt.Printf("repaired: %d vectors\n", repaired)
			return nil
		},
	}

	return cmd
}
