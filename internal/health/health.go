// Package health exposes session liveness through the standard gRPC health
// checking protocol.
package health

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/chg95211/msx-ethernet-audio/internal/session"
)

// Server serves grpc.health.v1.Health. The overall status ("") and one entry
// per session kind track whether sessions are running.
type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewServer prepares a health server on addr. Every service starts as
// NOT_SERVING.
func NewServer(addr string, logger *zap.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	return &Server{addr: addr, grpc: gs, health: hs, logger: logger}
}

// Observe updates health from a session status change. It has the signature
// of session.Session.OnChange.
func (s *Server) Observe(st session.Status) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if st.State == session.StateRunning {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(string(st.Kind), status)
	s.logger.Debug("health updated", zap.String("kind", string(st.Kind)), zap.Stringer("status", status))
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc health listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpc health serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	}
}
