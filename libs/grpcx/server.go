package grpcx

import (
	"context"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server bundles a grpc.Server with the standard health service.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	logger *slog.Logger
}

func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) *Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerRequestIDInterceptor()),
	}
	opts = append(opts, extra...)

	s := &Server{
		GRPC:   grpc.NewServer(opts...),
		Health: health.NewServer(),
		logger: logger,
	}
	healthpb.RegisterHealthServer(s.GRPC, s.Health)
	return s
}

// SetServing flips the overall ("") and per-service health status.
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus("", status)
	if service != "" {
		s.Health.SetServingStatus(service, status)
	}
}

// Serve blocks until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("grpc server starting", "addr", lis.Addr().String())
		errCh <- s.GRPC.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.Health.Shutdown()
		s.GRPC.GracefulStop()
		s.logger.Info("grpc server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
