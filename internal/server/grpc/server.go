// Package grpc serves the standard gRPC health service. The overall status
// follows the reachability of the credential store.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/consejo/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "consejo.credentials"

const pingTimeout = 2 * time.Second

// Pinger reports store health. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthServer struct {
	address  string
	store    Pinger
	interval time.Duration
	logger   logging.Logger
	health   *health.Server

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthServer(a string, l logging.Logger, p Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		store:    p,
		interval: interval,
		health:   health.NewServer(),
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

func (s *HealthServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *HealthServer) serve(parent context.Context, listen net.Listener) error {

	// the watcher stops with the server even when Serve fails on its own
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)

	// first check before accepting connections, so no caller sees a stale SERVING
	s.check(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watch(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	err := srv.Serve(listen)
	cancel()
	wg.Wait()
	return err
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check pings the store once and publishes the result.
func (s *HealthServer) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	err := s.store.PingContext(pingCtx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	s.mu.Lock()
	changed := s.last != status
	s.last = status
	s.mu.Unlock()

	if !changed {
		return
	}
	if err != nil {
		s.logger.Warn(ctx, "store unreachable", "status", status.String(), "error", err)
		return
	}
	s.logger.Info(ctx, "store reachable", "status", status.String())
}
