package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported by the worker.
const ServiceName = "semantic-linker.worker"

// GRPCHealthServer serves grpc.health.v1.Health for the worker. Both the
// overall ("") and the ServiceName status follow SetServing.
type GRPCHealthServer struct {
	addr   string
	logger *slog.Logger
	health *health.Server
	server *grpc.Server
}

// NewGRPCHealthServer creates a gRPC health server reporting NOT_SERVING.
func NewGRPCHealthServer(addr string, logger *slog.Logger) *GRPCHealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &GRPCHealthServer{addr: addr, logger: logger, health: hs, server: srv}
}

// SetServing switches both statuses between SERVING and NOT_SERVING.
func (g *GRPCHealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(ServiceName, status)
}

// Health exposes the underlying health service.
func (g *GRPCHealthServer) Health() healthpb.HealthServer {
	return g.health
}

// Start listens on addr and serves until ctx is cancelled.
func (g *GRPCHealthServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", g.addr, err)
	}
	return g.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled.
func (g *GRPCHealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		g.logger.Info("grpc health server shutting down")
		g.health.Shutdown()
		g.server.GracefulStop()
	}()

	g.logger.Info("grpc health server starting", slog.String("addr", lis.Addr().String()))
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}
