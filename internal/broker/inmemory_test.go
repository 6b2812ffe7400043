package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/entities"
	clockmock "github.com/KirkDiggler/streamclient/internal/pkg/clock/mock"
)

type InMemoryClientTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockClock *clockmock.MockClock
	client    *broker.InMemoryClient
	ctx       context.Context
	now       time.Time
}

func TestInMemoryClientSuite(t *testing.T) {
	suite.Run(t, new(InMemoryClientTestSuite))
}

func (s *InMemoryClientTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockClock = clockmock.NewMockClock(s.ctrl)
	s.now = time.UnixMilli(1700000000000)
	s.mockClock.EXPECT().Now().DoAndReturn(func() time.Time { return s.now }).AnyTimes()

	client, err := broker.NewInMemory(&broker.InMemoryConfig{Clock: s.mockClock})
	s.Require().NoError(err)
	s.client = client
	s.ctx = context.Background()
}

func (s *InMemoryClientTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *InMemoryClientTestSuite) appendOne() entities.StreamID {
	out, err := s.client.Append(s.ctx, broker.AppendInput{Log: "mystream", Fields: entities.Fields{{Key: "val", Value: "x"}}})
	s.Require().NoError(err)
	return out.ID
}

func (s *InMemoryClientTestSuite) TestNewInMemoryValidation() {
	_, err := broker.NewInMemory(nil)
	s.Assert().Error(err)

	_, err = broker.NewInMemory(&broker.InMemoryConfig{})
	s.Assert().Error(err)
}

func (s *InMemoryClientTestSuite) TestIDsFollowClockAndSequence() {
	first := s.appendOne()
	second := s.appendOne()

	s.now = s.now.Add(5 * time.Millisecond)
	third := s.appendOne()

	// clock moving backwards still yields increasing ids
	s.now = s.now.Add(-time.Second)
	fourth := s.appendOne()

	s.Assert().Equal(entities.NewStreamID(1700000000000, 0), first)
	s.Assert().Equal(entities.NewStreamID(1700000000000, 1), second)
	s.Assert().Equal(entities.NewStreamID(1700000000005, 0), third)
	s.Assert().Equal(entities.NewStreamID(1700000000005, 1), fourth)
}

func (s *InMemoryClientTestSuite) TestIDsKeepIncreasingAfterTrim() {
	s.appendOne()
	last := s.appendOne()

	_, err := s.client.Trim(s.ctx, broker.TrimInput{Log: "mystream", MaxLen: 0})
	s.Require().NoError(err)

	next := s.appendOne()
	s.Assert().True(next.After(last))
}

func (s *InMemoryClientTestSuite) TestPendingIdleUsesClock() {
	s.appendOne()
	s.Require().NoError(s.client.CreateGroup(s.ctx, broker.CreateGroupInput{Log: "mystream", Group: "g1", Start: entities.Beginning}))
	_, err := s.client.ReadGroup(s.ctx, broker.ReadGroupInput{Log: "mystream", Group: "g1", Consumer: "c1", Count: 1})
	s.Require().NoError(err)

	s.now = s.now.Add(3 * time.Second)

	out, err := s.client.Pending(s.ctx, broker.PendingInput{Log: "mystream", Group: "g1", Count: 1})
	s.Require().NoError(err)
	s.Require().Len(out.Entries, 1)
	s.Assert().Equal(3*time.Second, out.Entries[0].Idle)
}

func (s *InMemoryClientTestSuite) TestReturnedEntriesAreCopies() {
	s.appendOne()

	out, err := s.client.Read(s.ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 1})
	s.Require().NoError(err)
	out.Entries[0].Fields[0].Value = "mutated"

	again, err := s.client.Read(s.ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 1})
	s.Require().NoError(err)
	s.Assert().Equal("x", again.Entries[0].Fields[0].Value)
}

func (s *InMemoryClientTestSuite) TestClosedHandleIsConnectionError() {
	other := s.client.Connect()
	s.Require().NoError(other.Close())
	s.Require().NoError(other.Close())

	_, err := other.Append(s.ctx, broker.AppendInput{Log: "mystream", Fields: entities.Fields{{Key: "k", Value: "v"}}})
	s.Assert().True(broker.IsConnectionError(err))

	// siblings are unaffected
	s.appendOne()
}

func (s *InMemoryClientTestSuite) TestCloseInterruptsBlockedRead() {
	other := s.client.Connect()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = other.Close()
	}()

	_, err := other.Read(s.ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 1, Block: 5 * time.Second})
	s.Require().Error(err)
	s.Assert().True(broker.IsConnectionError(err))
}

func (s *InMemoryClientTestSuite) TestCancelInterruptsBlockedRead() {
	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := s.client.Read(ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 1, Block: 5 * time.Second})
	s.Require().Error(err)
	s.Assert().ErrorIs(err, context.Canceled)
	s.Assert().False(broker.IsConnectionError(err))
}

func (s *InMemoryClientTestSuite) TestDeleteWakesBlockedGroupRead() {
	s.Require().NoError(s.client.CreateGroup(s.ctx, broker.CreateGroupInput{Log: "mystream", Group: "g1", Start: entities.Beginning}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = s.client.Connect().DeleteLog(context.Background(), broker.DeleteLogInput{Log: "mystream"})
	}()

	_, err := s.client.ReadGroup(s.ctx, broker.ReadGroupInput{
		Log: "mystream", Group: "g1", Consumer: "c1", Count: 1, Block: 5 * time.Second,
	})
	s.Require().Error(err)
	s.Assert().True(broker.IsLogMissing(err))
}

func (s *InMemoryClientTestSuite) TestFactorySharesStore() {
	handle, err := s.client.Factory()()
	s.Require().NoError(err)

	s.appendOne()
	out, err := handle.Read(s.ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 10})
	s.Require().NoError(err)
	s.Assert().Len(out.Entries, 1)
}
