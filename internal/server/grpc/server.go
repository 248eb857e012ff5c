package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/emmett/voxcode/internal/capture"
)

// ServiceName is the health-checked service that tracks the capture engine
const ServiceName = "voxcode.Capture"

// Server exposes the standard gRPC health service so supervisors can watch
// the capture engine
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	port       int
	log        zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Port   int
	Logger zerolog.Logger
}

// NewServer creates a new gRPC server. The engine service starts SERVING;
// register the server as a capture listener to keep it current.
func NewServer(cfg Config) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		port:       cfg.Port,
		log:        cfg.Logger.With().Str("component", "grpc").Logger(),
	}

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

// Start listens on the configured port and serves until Stop
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	return s.grpcServer.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops gracefully
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// Check answers a health check in-process
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// OnStateChange maps engine states to serving status
func (s *Server) OnStateChange(state capture.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if state == capture.StateDisposed {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.log.Debug().Str("state", state.String()).Str("status", status.String()).Msg("health status updated")
}

func (s *Server) OnTranscription(string, time.Time) {}
func (s *Server) OnError(capture.ErrorKind, string)  {}
func (s *Server) OnRecordingStart()                  {}
func (s *Server) OnRecordingStop()                   {}

var (
	_ capture.Listener      = (*Server)(nil)
	_ capture.StateListener = (*Server)(nil)
)
