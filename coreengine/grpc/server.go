package grpc

import (
	"fmt"
	"net"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
)

// HealthServer exposes per-worker serving status over the standard gRPC
// health protocol. The empty service name reports overall liveness; each
// worker role is registered as its own service.
type HealthServer struct {
	logger Logger
	server *grpc.Server
	health *health.Server

	mu       sync.Mutex
	listener net.Listener
	started  bool
}

// NewHealthServer creates the server with the standard interceptor stack
// and OTel stats instrumentation. Nothing listens until Start.
func NewHealthServer(logger Logger) *HealthServer {
	opts := append(ServerOptions(logger), grpc.StatsHandler(otelgrpc.NewServerHandler()))
	server := grpc.NewServer(opts...)
	h := health.NewServer()
	healthpb.RegisterHealthServer(server, h)

	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, role := range envelope.WorkerRoles() {
		h.SetServingStatus(string(role), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	h.SetServingStatus(string(envelope.RoleController), healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		logger: logger,
		server: server,
		health: h,
	}
}

// SetServing updates one worker's serving status. The health monitor calls
// this on every poll.
func (s *HealthServer) SetServing(role envelope.Role, healthy bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(string(role), status)
}

// SetOverall updates the empty-name service that most probes check.
func (s *HealthServer) SetOverall(healthy bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Start listens on addr and serves in a background goroutine.
func (s *HealthServer) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("health server already started")
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	s.started = true

	go func() {
		if err := s.server.Serve(lis); err != nil {
			s.logger.Error("grpc_server_error", "error", err.Error())
		}
	}()

	s.logger.Info("grpc_health_server_started", "address", lis.Addr().String())
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *HealthServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop marks every service NOT_SERVING, then drains in-flight RPCs.
func (s *HealthServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.health.Shutdown()
	s.server.GracefulStop()
	s.started = false
	s.logger.Info("grpc_health_server_stopped")
}
