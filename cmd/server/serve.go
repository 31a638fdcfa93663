package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/calendar"
	"github.com/and161185/syncdo/internal/calsync"
	"github.com/and161185/syncdo/internal/config"
	"github.com/and161185/syncdo/internal/crypto"
	"github.com/and161185/syncdo/internal/limiter"
	"github.com/and161185/syncdo/internal/metrics"
	"github.com/and161185/syncdo/internal/migrate"
	"github.com/and161185/syncdo/internal/repository/postgres"
	grpcserver "github.com/and161185/syncdo/internal/server/grpc"
	httpserver "github.com/and161185/syncdo/internal/server/http"
	"github.com/and161185/syncdo/internal/service"
	"github.com/and161185/syncdo/internal/session"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// serve runs migrations, wires the application and blocks until ctx is done
// or a listener fails.
func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("health", cfg.HealthAddr),
		zap.Bool("calendar", cfg.CalendarEnabled()),
	)
	if cfg.InsecureSecret() {
		logger.Warn("using the built-in signing secret; set SECRET_KEY")
	}

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return fmt.Errorf("pgxpool: %w", err)
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	taskRepo := postgres.NewTaskRepo(db)

	lim := limiter.NewPG(db.Pool, limiter.Config{
		Window:   cfg.LimiterWindow,
		MaxFails: cfg.LimiterMaxFails,
		BlockFor: cfg.LimiterBlockFor,
	})
	m := metrics.New()

	// Calendar sync; a nil connector leaves every task local-only.
	var connector calendar.Connector
	if cfg.CalendarEnabled() {
		connector = calendar.NewGoogleConnector(calendar.OAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			TokenURL:     cfg.GoogleTokenURL,
		})
	}
	engine := calsync.New(connector, taskRepo, m, calsync.Config{
		CalendarID: cfg.CalendarID,
		Timeout:    cfg.SyncTimeout,
	}, logger.Named("calsync"))

	sealer, err := crypto.NewSealer([]byte(cfg.SecretKey))
	if err != nil {
		return fmt.Errorf("sealer: %w", err)
	}

	// Services
	authSvc := service.NewAuthService(userRepo, session.NewIssuer([]byte(cfg.SecretKey), cfg.AccessTTL), lim, logger.Named("auth")).
		WithSealer(sealer)
	taskSvc := service.NewTaskService(taskRepo, engine, logger.Named("tasks"))

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpserver.NewRouter(httpserver.Deps{
			Auth:       authSvc,
			Tasks:      taskSvc,
			Health:     db,
			Metrics:    m,
			Scrape:     m.Handler(),
			Log:        logger.Named("http"),
			TrustProxy: cfg.TrustProxy,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	// Health & reflection (dev)
	var stopHealth func()
	if cfg.HealthAddr != "" {
		gs, hs := grpcserver.New(logger.Named("grpc"), cfg.Dev)
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			_ = httpSrv.Close()
			return fmt.Errorf("listen health: %w", err)
		}
		watchCtx, cancelWatch := context.WithCancel(ctx)
		go grpcserver.NewWatcher(db, hs, cfg.HealthInterval, logger.Named("health")).Run(watchCtx)
		go func() {
			logger.Info("grpc health listening", zap.String("addr", cfg.HealthAddr))
			if err := gs.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
		stopHealth = func() {
			cancelWatch()
			done := make(chan struct{})
			go func() {
				gs.GracefulStop()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(shutdownTimeout):
				gs.Stop()
			}
		}
	}

	// Wait for stop
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	// graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if stopHealth != nil {
		stopHealth()
	}

	logger.Info("shutdown complete")
	return runErr
}
