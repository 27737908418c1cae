package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"briefly/internal/retrieval"
)

func newQueryCmd() *cobra.Command {
	var topK int
	var similarityThreshold float64
	var categories []string
	var writers []string
	var minBodyLength int
	var requiredKeyword string
	var stockCode string
	var startDate, endDate string
	var maxContextBytes int
	var vectorWeight, keywordWeight, rerankWeight float64

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the ingested corpus",
		Long: `Run the question through the Hybrid Retrieval Engine and ground an
LLM-generated answer in the retrieved articles.

Example:
  briefly query "what happened with Samsung's Q2 earnings?" --top-k 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			filter := retrieval.MetadataFilter{
				Categories:      categories,
				Writers:         writers,
				MinBodyLength:   minBodyLength,
				RequiredKeyword: requiredKeyword,
				StockCode:       stockCode,
			}
			if startDate != "" {
				t, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return fmt.Errorf("invalid --start-date: %w", err)
				}
				filter.StartDate = t
			}
			if endDate != "" {
				t, err := time.Parse("2006-01-02", endDate)
				if err != nil {
					return fmt.Errorf("invalid --end-date: %w", err)
				}
				filter.EndDate = t
			}

			req := retrieval.Request{
				Query:               args[0],
				TopK:                topK,
				SimilarityThreshold: similarityThreshold,
				Filter:              filter,
				MaxContextBytes:     maxContextBytes,
			}
			if vectorWeight > 0 || keywordWeight > 0 || rerankWeight > 0 {
				req.Weights = retrieval.Weights{Vector: vectorWeight, Keyword: keywordWeight, Rerank: rerankWeight}
			}

			answer, retrieved, err := app.Query(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			fmt.Println(answer.Text)
			fmt.Println()
			fmt.Printf("confidence: %.2f  source: %s  model: %s\n", answer.Confidence, answer.Source, answer.ModelID)
			if retrieved.Degraded {
				fmt.Println("warning: one retrieval backend was unavailable; results may be incomplete")
			}
			fmt.Println()
			fmt.Println("references:")
			for _, ref := range answer.References {
				fmt.Printf("  - %s (%s)\n", ref.Title, ref.SourceURL)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "number of results to retrieve")
	cmd.Flags().Float64Var(&similarityThreshold, "similarity-threshold", 0, "minimum vector similarity to include a result")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to one or more categories")
	cmd.Flags().StringSliceVar(&writers, "writer", nil, "restrict to one or more writers")
	cmd.Flags().IntVar(&minBodyLength, "min-body-length", 0, "minimum article body length in runes")
	cmd.Flags().StringVar(&requiredKeyword, "keyword", "", "require this keyword to be present")
	cmd.Flags().StringVar(&stockCode, "stock-code", "", "restrict to articles mentioning this stock code")
	cmd.Flags().StringVar(&startDate, "start-date", "", "earliest publish date, YYYY-MM-DD")
	cmd.Flags().StringVar(&endDate, "end-date", "", "latest publish date, YYYY-MM-DD")
	cmd.Flags().IntVar(&maxContextBytes, "max-context-bytes", 4000, "byte budget for the assembled LLM context")
	cmd.Flags().Float64Var(&vectorWeight, "vector-weight", 0, "fusion weight for the vector score (0.6 when no weight flag is set)")
	cmd.Flags().Float64Var(&keywordWeight, "keyword-weight", 0, "fusion weight for the keyword score (0.3 when no weight flag is set)")
	cmd.Flags().Float64Var(&rerankWeight, "rerank-weight", 0, "fusion weight for the rerank bonus (0.1 when no weight flag is set)")

	return cmd
}
