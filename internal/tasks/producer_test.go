package tasks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/streamclient/internal/broker"
	brokermock "github.com/KirkDiggler/streamclient/internal/broker/mock"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/pkg/clock"
	"github.com/KirkDiggler/streamclient/internal/tasks"
)

type ProducerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	mem  *broker.InMemoryClient
	ctx  context.Context
}

func TestProducerSuite(t *testing.T) {
	suite.Run(t, new(ProducerTestSuite))
}

func (s *ProducerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	mem, err := broker.NewInMemory(&broker.InMemoryConfig{Clock: clock.New()})
	s.Require().NoError(err)
	s.mem = mem
	s.ctx = context.Background()
}

func (s *ProducerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ProducerTestSuite) TestAppendsCountEntriesInOrder() {
	producer, err := tasks.NewProducer(&tasks.ProducerConfig{
		Client: s.mem,
		Log:    "mystream",
		Count:  5,
	})
	s.Require().NoError(err)

	ids, err := producer.Run(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(ids, 5)

	out, err := s.mem.Read(s.ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 10})
	s.Require().NoError(err)
	s.Require().Len(out.Entries, 5)
	for i, e := range out.Entries {
		s.Assert().Equal(ids[i], e.ID)
		s.Assert().Equal(tasks.DefaultFields(i), e.Fields)
	}
}

func (s *ProducerTestSuite) TestCustomFieldsAndMaxLen() {
	producer, err := tasks.NewProducer(&tasks.ProducerConfig{
		Client: s.mem,
		Log:    "mystream",
		Count:  6,
		MaxLen: 2,
		Fields: func(i int) entities.Fields {
			return entities.Fields{{Key: "kind", Value: "tick"}, {Key: "n", Value: string(rune('a' + i))}}
		},
	})
	s.Require().NoError(err)

	ids, err := producer.Run(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(ids, 6)

	out, err := s.mem.Read(s.ctx, broker.ReadInput{Log: "mystream", After: entities.Beginning, Count: 10})
	s.Require().NoError(err)
	s.Require().Len(out.Entries, 2)
	s.Assert().Equal(ids[4:], []entities.StreamID{out.Entries[0].ID, out.Entries[1].ID})
	n, _ := out.Entries[1].Fields.Get("n")
	s.Assert().Equal("f", n)
}

func (s *ProducerTestSuite) TestStopsAtFirstError() {
	client := brokermock.NewMockClient(s.ctrl)
	first := entities.NewStreamID(1, 0)
	gomock.InOrder(
		client.EXPECT().Append(gomock.Any(), broker.AppendInput{Log: "mystream", Fields: tasks.DefaultFields(0)}).
			Return(&broker.AppendOutput{ID: first}, nil),
		client.EXPECT().Append(gomock.Any(), broker.AppendInput{Log: "mystream", Fields: tasks.DefaultFields(1)}).
			Return(nil, errors.InvalidArgument("WRONGTYPE")),
	)

	producer, err := tasks.NewProducer(&tasks.ProducerConfig{Client: client, Log: "mystream", Count: 5})
	s.Require().NoError(err)

	ids, err := producer.Run(s.ctx)
	s.Require().Error(err)
	s.Assert().True(broker.IsRejected(err))
	s.Assert().Equal([]entities.StreamID{first}, ids)
}

func (s *ProducerTestSuite) TestCancelStopsBetweenAppends() {
	ctx, cancel := context.WithCancel(s.ctx)
	producer, err := tasks.NewProducer(&tasks.ProducerConfig{
		Client:   s.mem,
		Log:      "mystream",
		Count:    100,
		Interval: 10 * time.Millisecond,
	})
	s.Require().NoError(err)

	time.AfterFunc(35*time.Millisecond, cancel)
	ids, err := producer.Run(ctx)
	s.Require().NoError(err)
	s.Assert().NotEmpty(ids)
	s.Assert().Less(len(ids), 100)
}

func (s *ProducerTestSuite) TestValidation() {
	_, err := tasks.NewProducer(nil)
	s.Assert().Error(err)

	_, err = tasks.NewProducer(&tasks.ProducerConfig{Log: "mystream"})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = tasks.NewProducer(&tasks.ProducerConfig{Client: s.mem, Log: "mystream", Count: -1})
	s.Assert().Error(err)
}
