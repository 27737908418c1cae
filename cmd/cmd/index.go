package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index's lifecycle",
	}

	cmd.AddCommand(newIndexEnsureCmd())
	cmd.AddCommand(newIndexDeployCmd())

	return cmd
}

func newIndexEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the configured index if it does not already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := app.Config.Index
			state, err := app.Indexer.EnsureIndex(cmd.Context(), cfg.Name, cfg.Dimensions, cfg.Distance)
			if err != nil {
				return fmt.Errorf("ensure index: %w", err)
			}

			fmt.Printf("index %q: dimensions=%d distance=%s active=%v\n", state.Name, state.Dimensions, state.Distance, state.Active)
			return nil
		},
	}
}

func newIndexDeployCmd() *cobra.Command {
	var endpointID, deployedID string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Record the deployed endpoint for the configured index",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Indexer.Deploy(cmd.Context(), app.Config.Index.Name, endpointID, deployedID); err != nil {
				return fmt.Errorf("deploy index: %w", err)
			}

			fmt.Printf("index %q deployed: endpoint=%s deployed_id=%s\n", app.Config.Index.Name, endpointID, deployedID)
			return nil
		},
	}

	cmd.Flags().StringVar(&endpointID, "endpoint", "", "serving endpoint identifier")
	cmd.Flags().StringVar(&deployedID, "deployed-id", "", "provider-assigned deployed-index identifier")
	return cmd
}
