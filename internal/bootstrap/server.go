package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/airticketing/config"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	shutdownTimeout   = 5 * time.Second
	readinessInterval = 15 * time.Second
)

// ReadyFunc reports whether the process can serve traffic.
type ReadyFunc func(ctx context.Context) error

type Servers struct {
	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
}

// Run starts the gRPC health server and the HTTP API and blocks until ctx is
// cancelled or a server fails.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler, ready ReadyFunc) error {
	s := newServers(cfg, handler)

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("http", cfg.HTTP.Address).Str("grpc", cfg.GRPC.Address).Msg("servers started")

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go watchReadiness(watchCtx, s.health, ready, readinessInterval)

	select {
	case err := <-errCh:
		s.health.Shutdown()
		s.grpcServer.Stop()
		_ = s.httpServer.Close()
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(cfg *config.Config, handler http.Handler) *Servers {
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		health:     hs,
		httpServer: httpSrv,
	}
}

// watchReadiness mirrors ready into the gRPC health status until ctx ends.
func watchReadiness(ctx context.Context, hs *health.Server, ready ReadyFunc, interval time.Duration) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if ready != nil {
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			err := ready(checkCtx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("readiness check failed")
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		hs.SetServingStatus("", status)
	}

	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
