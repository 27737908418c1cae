package cmd

import (
	"context"
	"fmt"

	"briefly/internal/api"
	"briefly/internal/config"
)

// loadApp loads configuration from the --config flag (or defaults) and
// wires a fresh api.App. Callers must app.Close() when done.
func loadApp(ctx context.Context) (*api.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return api.New(ctx, cfg)
}
