package transportgrpc

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/pucco93/ebsi-access-control/internal/transport/grpc/interceptors"
)

// ConsoleService is the health service name reported for the console core.
const ConsoleService = "acl.Console"

// ServerDependencies encapsulates collaborators of the gRPC server layer.
type ServerDependencies struct {
	Logger  *zap.Logger
	Metrics *grpcinterceptors.GRPCMetrics
	Tracing *grpcinterceptors.Tracing
}

// Server exposes the standard health protocol and reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewServer wires the health and reflection services. The console starts as
// NOT_SERVING until SetServing is called.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	server := grpc.NewServer(
		deps.Tracing.ServerOption(),
		grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor()),
	)

	hs := health.NewServer()
	hs.SetServingStatus(ConsoleService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, hs)

	// Register reflection service for tools like grpcurl.
	reflection.Register(server)

	return &Server{grpc: server, health: hs, logger: logger}
}

// GRPC returns the underlying server for Serve and GracefulStop.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// SetServing flips the console health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ConsoleService, status)
	s.logger.Info("grpc health status changed", zap.String("service", ConsoleService), zap.String("status", status.String()))
}

// Shutdown marks every service NOT_SERVING and stops accepting calls.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
