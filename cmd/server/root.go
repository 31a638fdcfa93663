package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/config"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syncdo-server",
		Short: "Task tracking backend with Google Calendar sync",
		Long: `syncdo-server serves the SyncDo JSON API: account signup and login,
owner-scoped tasks, and best-effort mirroring of due tasks to Google Calendar.

Configuration is read from defaults, an optional JSON file (--config),
environment variables (SYNCDO_*, SECRET_KEY, DATABASE_URL, GOOGLE_CLIENT_ID,
GOOGLE_CLIENT_SECRET) and flags, in that order.`,
		Version:      fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

// loadConfig resolves the effective configuration for cmd and builds the logger.
func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd.Flags(), nil)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	var logger *zap.Logger
	if cfg.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
