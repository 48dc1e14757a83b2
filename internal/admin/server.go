// Package admin serves the gRPC health endpoint used by process supervisors
// and load balancers to check the relay.
package admin

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xiaoas/noname-server/internal/config"
)

// RelayService is the health service name reported alongside the overall ("") status.
const RelayService = "noname.relay"

// Server hosts the gRPC health service.
type Server struct {
	cfg    config.AdminConfig
	logger *zap.Logger

	grpcServer *grpc.Server
	health     *health.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates an admin server. Both services report NOT_SERVING until Start.
//
// Precondition: logger must be non-nil.
func NewServer(cfg config.AdminConfig, logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(RelayService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		grpcServer: grpcServer,
		health:     healthServer,
	}
}

// Start listens on the configured address and serves until Stop is called.
//
// Postcondition: Returns nil after Stop, or the listen/serve error.
func (s *Server) Start() error {
	start := time.Now()
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.SetServing(true)
	s.logger.Info("admin gRPC server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving gRPC: %w", err)
	}
	return nil
}

// SetServing flips both health entries between SERVING and NOT_SERVING.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(RelayService, status)
}

// Stop marks the services as shutting down and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	s.logger.Info("admin gRPC server stopped")
}

// Addr returns the listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
