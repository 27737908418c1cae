package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	var dir string
	var batchSize int
	var maxWorkers int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest every XML article under a directory",
		Long: `Discover, parse, deduplicate, persist, embed, and index every
*.xml article under --dir, starting from a zero watermark.

Example:
  briefly ingest --dir ./data/incoming --batch-size 50 --max-workers 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Ingest(cmd.Context(), dir, batchSize, maxWorkers)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			fmt.Printf("discovered:  %d\n", result.FilesDiscovered)
			fmt.Printf("skipped:     %d (byte-identical within this run)\n", result.FilesSkipped)
			fmt.Printf("persisted:   %d\n", result.ArticlesPersisted)
			fmt.Printf("duplicate:   %d\n", result.ArticlesDuplicate)
			fmt.Printf("failed:      %d\n", result.ArticlesFailed)
			fmt.Printf("embedded:    %d\n", result.ArticlesEmbedded)
			fmt.Printf("upserted:    %d vectors\n", result.VectorsUpserted)
			fmt.Printf("watermark:   %s\n", result.Watermark.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "./data/incoming", "directory of *.xml articles to ingest")
	cmd.Flags().IntVar(&batchSize, "batch-size", 50, "embedding batch size")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 4, "parse/dedup/persist worker pool size")

	return cmd
}
