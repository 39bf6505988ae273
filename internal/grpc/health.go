package grpc

import (
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"chat-realtime/internal/observability"
)

// ServiceName is the health service name reported for the realtime core.
const ServiceName = "chat.realtime"

// HealthServer exposes grpc.health.v1 for the process.
type HealthServer struct {
	server *grpclib.Server
	health *health.Server
}

// NewHealthServer builds the server with tracing and metrics attached. Both the
// overall and the named service start as NOT_SERVING until Serve is called.
func NewHealthServer() *HealthServer {
	server := grpclib.NewServer(
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return &HealthServer{server: server, health: hs}
}

// Serve marks the process SERVING and blocks until the listener closes.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	log.Printf("grpc health server listening addr=%s", lis.Addr())
	return s.server.Serve(lis)
}

// Shutdown flips every status to NOT_SERVING and stops the server gracefully.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
