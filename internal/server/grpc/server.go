// Package grpcserver serves the standard gRPC health protocol for the SyncDo
// backend. Serving status follows the reachability of the database.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "syncdo.v1.SyncDo"

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds a gRPC server with logging/recovery interceptors and a registered
// health service. Every service starts NOT_SERVING until the first probe.
func New(log *zap.Logger, dev bool, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}
	return s, hs
}

// Watcher drives health status from periodic pings.
type Watcher struct {
	db       Pinger
	hs       *health.Server
	interval time.Duration
	log      *zap.Logger
	last     healthpb.HealthCheckResponse_ServingStatus
}

// NewWatcher constructs a Watcher. interval <= 0 falls back to 10s.
func NewWatcher(db Pinger, hs *health.Server, interval time.Duration, log *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Watcher{db: db, hs: hs, interval: interval, log: log}
}

// Run probes immediately and then on every tick until ctx is done, at which
// point all services are reported NOT_SERVING.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		w.Probe(ctx)
		select {
		case <-ctx.Done():
			w.hs.Shutdown()
			return
		case <-t.C:
		}
	}
}

// Probe runs a single ping and publishes the result.
func (w *Watcher) Probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := w.db.Ping(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		if w.last != st {
			w.log.Warn("database ping failed", zap.Error(err))
		}
	}
	if w.last != st {
		w.log.Info("health status", zap.String("status", st.String()))
		w.last = st
	}
	w.hs.SetServingStatus("", st)
	w.hs.SetServingStatus(ServiceName, st)
}
