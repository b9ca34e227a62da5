package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestHealthServing(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv.SetServing("booking-service", true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer callCancel()
	var header metadata.MD
	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: "booking-service"}, grpc.Header(&header))
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}
	if ids := header.Get(RequestIDMetadataKey); len(ids) != 1 || ids[0] == "" {
		t.Fatalf("expected a minted request id header, got %v", ids)
	}

	inbound := metadata.AppendToOutgoingContext(callCtx, RequestIDMetadataKey, "req-42")
	header = nil
	if _, err := healthpb.NewHealthClient(conn).Check(inbound, &healthpb.HealthCheckRequest{Service: "booking-service"}, grpc.Header(&header)); err != nil {
		t.Fatalf("health check: %v", err)
	}
	if ids := header.Get(RequestIDMetadataKey); len(ids) != 1 || ids[0] != "req-42" {
		t.Fatalf("expected inbound request id echoed, got %v", ids)
	}

	srv.SetServing("booking-service", false)
	resp, err = healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{Service: "booking-service"})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", resp.GetStatus())
	}
}
