package consumer_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/streamclient/internal/broker"
	brokermock "github.com/KirkDiggler/streamclient/internal/broker/mock"
	"github.com/KirkDiggler/streamclient/internal/consumer"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/pkg/clock"
)

type GroupReaderTestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	mockClient *brokermock.MockClient
	mem        *broker.InMemoryClient
	ctx        context.Context
}

func TestGroupReaderSuite(t *testing.T) {
	suite.Run(t, new(GroupReaderTestSuite))
}

func (s *GroupReaderTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockClient = brokermock.NewMockClient(s.ctrl)

	mem, err := broker.NewInMemory(&broker.InMemoryConfig{Clock: clock.New()})
	s.Require().NoError(err)
	s.mem = mem
	s.ctx = context.Background()
}

func (s *GroupReaderTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *GroupReaderTestSuite) appendVals(n int) []entities.StreamID {
	ids := make([]entities.StreamID, 0, n)
	for i := 0; i < n; i++ {
		out, err := s.mem.Append(s.ctx, broker.AppendInput{
			Log:    "mystream",
			Fields: entities.Fields{{Key: "val", Value: fmt.Sprint(i)}},
		})
		s.Require().NoError(err)
		ids = append(ids, out.ID)
	}
	return ids
}

func (s *GroupReaderTestSuite) newReader(client broker.Client, mutate func(cfg *consumer.GroupReaderConfig)) *consumer.GroupReader {
	cfg := &consumer.GroupReaderConfig{
		Client:        client,
		Log:           "mystream",
		Group:         "g1",
		Consumer:      "c1",
		Handler:       func(context.Context, entities.LogEntry) error { return nil },
		BatchSize:     1,
		BlockTimeout:  50 * time.Millisecond,
		StopOnTimeout: true,
		StartID:       entities.Beginning,
	}
	if mutate != nil {
		mutate(cfg)
	}
	reader, err := consumer.NewGroupReader(cfg)
	s.Require().NoError(err)
	return reader
}

func (s *GroupReaderTestSuite) TestConfigValidation() {
	testCases := []struct {
		name   string
		mutate func(cfg *consumer.GroupReaderConfig)
	}{
		{"missing client", func(cfg *consumer.GroupReaderConfig) { cfg.Client = nil }},
		{"missing handler", func(cfg *consumer.GroupReaderConfig) { cfg.Handler = nil }},
		{"missing group", func(cfg *consumer.GroupReaderConfig) { cfg.Group = "" }},
		{"missing consumer", func(cfg *consumer.GroupReaderConfig) { cfg.Consumer = " " }},
		{"zero batch", func(cfg *consumer.GroupReaderConfig) { cfg.BatchSize = 0 }},
		{"negative block", func(cfg *consumer.GroupReaderConfig) { cfg.BlockTimeout = -time.Second }},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := &consumer.GroupReaderConfig{
				Client:    s.mem,
				Log:       "mystream",
				Group:     "g1",
				Consumer:  "c1",
				Handler:   func(context.Context, entities.LogEntry) error { return nil },
				BatchSize: 1,
			}
			tc.mutate(cfg)
			_, err := consumer.NewGroupReader(cfg)
			s.Assert().True(errors.IsInvalidArgument(err), "got %v", err)
		})
	}

	_, err := consumer.NewGroupReader(nil)
	s.Assert().Error(err)
}

func (s *GroupReaderTestSuite) TestEmptyLogStopsAfterBlockTimeout() {
	var transitions []string
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.BlockTimeout = 2000 * time.Millisecond
		cfg.OnStateChange = func(from, to consumer.State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}
	})
	s.Require().NoError(reader.EnsureGroup(s.ctx))

	start := time.Now()
	s.Require().NoError(reader.Run(s.ctx))

	s.Assert().GreaterOrEqual(time.Since(start), 1900*time.Millisecond)
	s.Assert().Equal(consumer.StateStopped, reader.State())
	s.Assert().Equal([]string{"idle->polling", "polling->stopped"}, transitions)
	s.Assert().Equal(consumer.Stats{}, reader.Stats())
}

func (s *GroupReaderTestSuite) TestHandlesEntriesInOrderAndAcksThem() {
	ids := s.appendVals(5)

	var seen []entities.StreamID
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.BatchSize = 2
		cfg.Handler = func(_ context.Context, e entities.LogEntry) error {
			seen = append(seen, e.ID)
			return nil
		}
	})
	s.Require().NoError(reader.EnsureGroup(s.ctx))
	s.Require().NoError(reader.Run(s.ctx))

	s.Assert().Equal(ids, seen)
	s.Assert().Equal(consumer.Stats{Delivered: 5, Acked: 5}, reader.Stats())

	pending, err := s.mem.Pending(s.ctx, broker.PendingInput{Log: "mystream", Group: "g1", Count: 10})
	s.Require().NoError(err)
	s.Assert().Empty(pending.Entries)
}

func (s *GroupReaderTestSuite) TestFailedEntriesStayPending() {
	ids := s.appendVals(3)

	var failed []entities.StreamID
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.BatchSize = 10
		cfg.Handler = func(_ context.Context, e entities.LogEntry) error {
			if v, _ := e.Fields.Get("val"); v == "1" {
				return fmt.Errorf("cannot handle %s", v)
			}
			if v, _ := e.Fields.Get("val"); v == "2" {
				panic("boom")
			}
			return nil
		}
		cfg.OnFailure = func(e entities.LogEntry, err error) {
			failed = append(failed, e.ID)
		}
	})
	s.Require().NoError(reader.EnsureGroup(s.ctx))
	s.Require().NoError(reader.Run(s.ctx))

	s.Assert().Equal([]entities.StreamID{ids[1], ids[2]}, failed)
	s.Assert().Equal(consumer.Stats{Delivered: 3, Acked: 1, HandlerFailures: 2}, reader.Stats())

	pending, err := s.mem.Pending(s.ctx, broker.PendingInput{Log: "mystream", Group: "g1", Count: 10})
	s.Require().NoError(err)
	s.Require().Len(pending.Entries, 2)
	s.Assert().Equal(ids[1], pending.Entries[0].ID)
	s.Assert().Equal("c1", pending.Entries[0].Consumer)
}

func (s *GroupReaderTestSuite) TestAckedEntriesAreNotRedelivered() {
	s.appendVals(3)

	first := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) { cfg.BatchSize = 10 })
	s.Require().NoError(first.EnsureGroup(s.ctx))
	s.Require().NoError(first.Run(s.ctx))

	var redelivered int
	second := s.newReader(s.mem.Connect(), func(cfg *consumer.GroupReaderConfig) {
		cfg.Consumer = "c1"
		cfg.Handler = func(context.Context, entities.LogEntry) error {
			redelivered++
			return nil
		}
	})
	s.Require().NoError(second.Run(s.ctx))
	s.Assert().Zero(redelivered)
}

func (s *GroupReaderTestSuite) TestNotPendingOnAckIsInformational() {
	entry := entities.LogEntry{ID: entities.NewStreamID(1, 0), Fields: entities.Fields{{Key: "val", Value: "0"}}}

	gomock.InOrder(
		s.mockClient.EXPECT().ReadGroup(gomock.Any(), broker.ReadGroupInput{
			Log: "mystream", Group: "g1", Consumer: "c1", Count: 1, Block: 50 * time.Millisecond,
		}).Return(&broker.ReadGroupOutput{Entries: []entities.LogEntry{entry}}, nil),
		s.mockClient.EXPECT().Ack(gomock.Any(), broker.AckInput{Log: "mystream", Group: "g1", ID: entry.ID}).
			Return(errors.FailedPrecondition("entry is not pending")),
		s.mockClient.EXPECT().ReadGroup(gomock.Any(), gomock.Any()).Return(&broker.ReadGroupOutput{}, nil),
	)

	reader := s.newReader(s.mockClient, nil)
	s.Require().NoError(reader.Run(s.ctx))
	s.Assert().Equal(consumer.Stats{Delivered: 1, NotPending: 1}, reader.Stats())
}

func (s *GroupReaderTestSuite) TestAckFailureIsCountedAndLoopContinues() {
	entries := []entities.LogEntry{
		{ID: entities.NewStreamID(1, 0), Fields: entities.Fields{{Key: "val", Value: "0"}}},
		{ID: entities.NewStreamID(1, 1), Fields: entities.Fields{{Key: "val", Value: "1"}}},
	}

	gomock.InOrder(
		s.mockClient.EXPECT().ReadGroup(gomock.Any(), gomock.Any()).Return(&broker.ReadGroupOutput{Entries: entries}, nil),
		s.mockClient.EXPECT().Ack(gomock.Any(), gomock.Any()).Return(errors.Unavailable("connection reset")),
		s.mockClient.EXPECT().Ack(gomock.Any(), gomock.Any()).Return(nil),
		s.mockClient.EXPECT().ReadGroup(gomock.Any(), gomock.Any()).Return(&broker.ReadGroupOutput{}, nil),
	)

	reader := s.newReader(s.mockClient, func(cfg *consumer.GroupReaderConfig) { cfg.BatchSize = 2 })
	s.Require().NoError(reader.Run(s.ctx))
	s.Assert().Equal(consumer.Stats{Delivered: 2, Acked: 1, AckFailures: 1}, reader.Stats())
}

func (s *GroupReaderTestSuite) TestBrokerErrorStopsLoop() {
	testCases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"log missing", errors.NotFound("no such group"), broker.IsLogMissing},
		{"connection", errors.Unavailable("connection refused"), broker.IsConnectionError},
		{"rejected", errors.InvalidArgument("WRONGTYPE"), broker.IsRejected},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			client := brokermock.NewMockClient(s.ctrl)
			client.EXPECT().ReadGroup(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			reader := s.newReader(client, nil)
			err := reader.Run(s.ctx)
			s.Require().Error(err)
			s.Assert().True(tc.check(err))
			s.Assert().Equal(consumer.StateStopped, reader.State())
		})
	}
}

func (s *GroupReaderTestSuite) TestMissingGroupAgainstBroker() {
	s.appendVals(1)
	reader := s.newReader(s.mem, nil)

	err := reader.Run(s.ctx)
	s.Require().Error(err)
	s.Assert().True(broker.IsLogMissing(err))
}

func (s *GroupReaderTestSuite) TestCancellationStopsNonBlockingLoop() {
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.BlockTimeout = 0
		cfg.StopOnTimeout = false
		cfg.IdleBackoff = 10 * time.Millisecond
	})
	s.Require().NoError(reader.EnsureGroup(s.ctx))

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.Assert().NoError(err)
	case <-time.After(2 * time.Second):
		s.Fail("reader did not stop")
	}
	s.Assert().Equal(consumer.StateStopped, reader.State())
}

func (s *GroupReaderTestSuite) TestInFlightBatchIsDispatchedAfterCancel() {
	s.Require().NoError(s.mem.CreateGroup(s.ctx, broker.CreateGroupInput{Log: "mystream", Group: "g1", Start: entities.Beginning}))

	ctx, cancel := context.WithCancel(s.ctx)
	var mu sync.Mutex
	var handled int
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.BlockTimeout = 2 * time.Second
		cfg.StopOnTimeout = false
		cfg.Middleware = []consumer.Middleware{consumer.TimeoutMiddleware(time.Second)}
		cfg.Handler = func(hctx context.Context, _ entities.LogEntry) error {
			select {
			case <-hctx.Done():
				return hctx.Err()
			case <-time.After(20 * time.Millisecond):
			}
			mu.Lock()
			handled++
			mu.Unlock()
			return nil
		}
	})

	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	s.appendVals(1)

	s.Require().NoError(<-done)
	mu.Lock()
	defer mu.Unlock()
	s.Assert().Equal(1, handled)

	stats := reader.Stats()
	s.Assert().Equal(int64(1), stats.Delivered)
	s.Assert().Equal(int64(1), stats.Acked)
	s.Assert().Zero(stats.HandlerFailures)
}

func (s *GroupReaderTestSuite) TestRunTwiceFails() {
	reader := s.newReader(s.mem, nil)
	s.Require().NoError(reader.EnsureGroup(s.ctx))
	s.Require().NoError(reader.Run(s.ctx))

	err := reader.Run(s.ctx)
	s.Assert().True(errors.IsFailedPrecondition(err))
}

func (s *GroupReaderTestSuite) TestEnsureGroup() {
	reader := s.newReader(s.mem, nil)
	s.Require().NoError(reader.EnsureGroup(s.ctx))
	s.Require().NoError(reader.EnsureGroup(s.ctx), "existing group is fine")

	s.mockClient.EXPECT().CreateGroup(gomock.Any(), broker.CreateGroupInput{
		Log: "mystream", Group: "g1", Start: entities.Latest,
	}).Return(errors.Unavailable("connection refused"))

	failing := s.newReader(s.mockClient, func(cfg *consumer.GroupReaderConfig) { cfg.StartID = entities.Latest })
	err := failing.EnsureGroup(s.ctx)
	s.Assert().True(broker.IsConnectionError(err))
}

func (s *GroupReaderTestSuite) TestStateTransitionsForOneBatch() {
	s.appendVals(1)

	var transitions []string
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.OnStateChange = func(from, to consumer.State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}
	})
	s.Require().NoError(reader.EnsureGroup(s.ctx))
	s.Require().NoError(reader.Run(s.ctx))

	s.Assert().Equal([]string{
		"idle->polling",
		"polling->dispatching",
		"dispatching->idle",
		"idle->polling",
		"polling->stopped",
	}, transitions)
}

func (s *GroupReaderTestSuite) TestMiddlewareIsApplied() {
	s.appendVals(1)

	attempts := 0
	reader := s.newReader(s.mem, func(cfg *consumer.GroupReaderConfig) {
		cfg.Middleware = []consumer.Middleware{consumer.RetryMiddleware(consumer.RetryConfig{MaxAttempts: 3})}
		cfg.Handler = func(context.Context, entities.LogEntry) error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("transient")
			}
			return nil
		}
	})
	s.Require().NoError(reader.EnsureGroup(s.ctx))
	s.Require().NoError(reader.Run(s.ctx))

	s.Assert().Equal(3, attempts)
	s.Assert().Equal(consumer.Stats{Delivered: 1, Acked: 1}, reader.Stats())
}
