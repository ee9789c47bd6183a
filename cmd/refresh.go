package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one knowledge base refresh and exit",
	Long: `Fetches all configured sources, rebuilds the vector index and, when a
database is configured, archives the resulting snapshot. Useful for cron
jobs and for warming the archive before the first serve.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RefreshTimeout)
	defer cancel()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.coordinator.RunOnce(ctx); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	status := app.coordinator.Status()
	fmt.Printf("Refreshed knowledge base: version %d, %d documents, %d chunks\n",
		status.Version, status.Documents, status.Chunks)
	return nil
}
