package commands

import (
	"errors"
	"fmt"

	"achieveit/internal/config"
	"achieveit/internal/logger"
	"achieveit/internal/repository/postgres"

	"github.com/spf13/cobra"
)

func addMigrate(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != "postgres" {
				return errors.New("migrate needs store.driver set to postgres")
			}
			if err := logger.Init(logger.Options{Development: cfg.Logging.Development}); err != nil {
				return err
			}
			defer logger.Sync()

			if err := postgres.Migrate(cfg.Store.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}

	topLevel.AddCommand(cmd)
}
