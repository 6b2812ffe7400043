package server_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/KirkDiggler/streamclient/internal/consumer"
	"github.com/KirkDiggler/streamclient/internal/server"
)

type ServerTestSuite struct {
	suite.Suite
	srv    *server.Server
	conn   *grpc.ClientConn
	client grpc_health_v1.HealthClient
	served chan error
	ctx    context.Context
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	srv, err := server.New(&server.Config{Address: "127.0.0.1:0"})
	s.Require().NoError(err)
	s.srv = srv

	s.served = make(chan error, 1)
	go func() { s.served <- srv.Serve() }()

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	s.conn = conn
	s.client = grpc_health_v1.NewHealthClient(conn)
	s.ctx = context.Background()
}

func (s *ServerTestSuite) TearDownTest() {
	_ = s.conn.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.srv.Stop(ctx)
	s.Assert().NoError(<-s.served)
}

func (s *ServerTestSuite) check(service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(s.ctx, time.Second)
	defer cancel()
	resp, err := s.client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

func (s *ServerTestSuite) TestStartsNotServing() {
	st, err := s.check("")
	s.Require().NoError(err)
	s.Assert().Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, st)
}

func (s *ServerTestSuite) TestSetServing() {
	s.srv.SetServing(server.PipelineService, true)
	st, err := s.check(server.PipelineService)
	s.Require().NoError(err)
	s.Assert().Equal(grpc_health_v1.HealthCheckResponse_SERVING, st)

	s.srv.SetServing(server.PipelineService, false)
	st, err = s.check(server.PipelineService)
	s.Require().NoError(err)
	s.Assert().Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, st)
}

func (s *ServerTestSuite) TestConsumerStateChanges() {
	s.srv.ConsumerStateChanged("consumer_01", consumer.StateIdle, consumer.StatePolling)
	st, err := s.check(server.ConsumerService("consumer_01"))
	s.Require().NoError(err)
	s.Assert().Equal(grpc_health_v1.HealthCheckResponse_SERVING, st)

	s.srv.ConsumerStateChanged("consumer_01", consumer.StatePolling, consumer.StateStopped)
	st, err = s.check(server.ConsumerService("consumer_01"))
	s.Require().NoError(err)
	s.Assert().Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, st)
}

func (s *ServerTestSuite) TestUnknownServiceIsNotFound() {
	_, err := s.check("streamclient.consumer.nobody")
	s.Require().Error(err)
	s.Assert().Equal(codes.NotFound, status.Code(err))
}

func TestNewValidation(t *testing.T) {
	_, err := server.New(nil)
	if err == nil {
		t.Fatal("expected error for nil config")
	}
	_, err = server.New(&server.Config{})
	if err == nil {
		t.Fatal("expected error for missing address")
	}
}
