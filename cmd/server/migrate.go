package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	step := func(use, short string, fn func(cmd *cobra.Command, dsn string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()

				if err := fn(cmd, cfg.DSN); err != nil {
					logger.Error("migrate "+use, zap.Error(err))
					return err
				}
				logger.Info("migrate " + use + " done")
				return nil
			},
		}
	}

	cmd.AddCommand(
		step("up", "Apply all pending migrations", func(cmd *cobra.Command, dsn string) error {
			return migrate.Up(cmd.Context(), dsn)
		}),
		step("down", "Roll back the most recent migration", func(cmd *cobra.Command, dsn string) error {
			return migrate.Down(cmd.Context(), dsn)
		}),
		step("status", "Print applied and pending migrations", func(cmd *cobra.Command, dsn string) error {
			return migrate.Status(cmd.Context(), dsn)
		}),
	)
	return cmd
}
