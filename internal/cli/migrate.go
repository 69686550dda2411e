package cli

import (
	"fmt"
	"log/slog"

	"github.com/buildtall-systems/orderflow/internal/config"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger := newLogger(cfg.Log, cmd.ErrOrStderr())

		_, closeStore, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = closeStore() }()

		logger.Info("schema up to date", slog.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
