// Package server exposes worker liveness and per-consumer state over the
// standard gRPC health protocol.
package server

import (
	"context"
	"net"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/KirkDiggler/streamclient/internal/consumer"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/logging"
)

// PipelineService is the health service name of the pipeline as a whole
const PipelineService = "streamclient.Pipeline"

// ConsumerService is the health service name of one consumer
func ConsumerService(name string) string {
	return "streamclient.consumer." + name
}

// Config holds the configuration for the health server
type Config struct {
	// Address to listen on; port 0 picks a free one
	Address string
	Logger  *zerolog.Logger
}

// Validate ensures the server can start
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("address", c.Address, vb)
	return vb.Build()
}

// Server is a gRPC server carrying the health and reflection services
type Server struct {
	srv    *grpc.Server
	health *health.Server
	lis    net.Listener
	logger zerolog.Logger
}

// New listens on cfg.Address. Nothing is served until Serve is called; every
// service starts NOT_SERVING.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to listen on %s", cfg.Address)
	}

	grpcLogger := logging.GRPCLogger(logger)
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(grpcLogger),
			grpc_recovery.UnaryServerInterceptor(),
			errorInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(grpcLogger),
			grpc_recovery.StreamServerInterceptor(),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	reflection.Register(srv)

	return &Server{
		srv:    srv,
		health: healthServer,
		lis:    lis,
		logger: logger.With().Str("addr", lis.Addr().String()).Logger(),
	}, nil
}

// Addr is the address actually listened on
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// Serve blocks until Stop is called
func (s *Server) Serve() error {
	s.logger.Info().Msg("health server starting")
	if err := s.srv.Serve(s.lis); err != nil && err != grpc.ErrServerStopped {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "failed to serve")
	}
	return nil
}

// SetServing sets the status of service; "" is the whole process
func (s *Server) SetServing(service string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// ConsumerStateChanged reports a consumer as serving while it is running
func (s *Server) ConsumerStateChanged(name string, _, to consumer.State) {
	s.SetServing(ConsumerService(name), to != consumer.StateStopped)
}

// Stop drains in-flight calls until ctx ends, then stops hard
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn().Msg("graceful shutdown timeout exceeded, forcing stop")
		s.srv.Stop()
	case <-stopped:
		s.logger.Info().Msg("health server stopped")
	}
}

func errorInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, errors.ToGRPCError(err)
}
