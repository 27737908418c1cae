// Package cmd wires the briefly CLI's subcommand tree: ingest, query,
// reconcile, index, and migrate; all but migrate are thin cobra wrappers
// around internal/api.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "briefly",
	Short: "briefly ingests news XML feeds and answers questions over them",
	Long: `briefly ingests news-feed XML documents into a deduplicated,
vector-and-keyword-indexed store, and answers natural-language questions
by retrieving the most relevant articles and grounding an LLM's answer in
them.`,
}

// Execute runs the root command; main calls this once per process.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.briefly.yaml)")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newReconcileCmd())
	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newMigrateCmd())
}
