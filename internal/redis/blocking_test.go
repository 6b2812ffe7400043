package redis_test

import (
	"context"
	"time"

	"github.com/KirkDiggler/streamclient/internal/redis"
)

func (s *ClientTestSuite) blockingRead(opts *redis.Options, block time.Duration) (time.Duration, error) {
	client, err := redis.NewClient(s.mr.Addr(), opts)
	s.Require().NoError(err)
	defer func() { _ = client.Close() }()

	start := time.Now()
	err = redis.DoBlocking(context.Background(), client, "mystream", block,
		"XREAD", "COUNT", 1, "BLOCK", block.Milliseconds(), "STREAMS", "mystream", "0").Err()
	return time.Since(start), err
}

func (s *ClientTestSuite) TestDoBlockingOutlastsReadTimeout() {
	elapsed, err := s.blockingRead(&redis.Options{
		Protocol:    2,
		MaxRetries:  3,
		ReadTimeout: 150 * time.Millisecond,
	}, 450*time.Millisecond)

	s.Assert().ErrorIs(err, redis.Nil)
	s.Assert().GreaterOrEqual(elapsed, 400*time.Millisecond)
	s.Assert().Less(elapsed, time.Second)
}

func (s *ClientTestSuite) TestDoBlockingWithoutSocketDeadline() {
	elapsed, err := s.blockingRead(&redis.Options{
		Protocol:    2,
		ReadTimeout: -1,
	}, 200*time.Millisecond)

	s.Assert().ErrorIs(err, redis.Nil)
	s.Assert().GreaterOrEqual(elapsed, 150*time.Millisecond)
}

func (s *ClientTestSuite) TestDoBlockingZeroBlockIsPlainDo() {
	_, err := s.mr.XAdd("mystream", "1-1", []string{"val", "0"})
	s.Require().NoError(err)

	client, err := redis.NewClient(s.mr.Addr(), &redis.Options{Protocol: 2})
	s.Require().NoError(err)
	defer func() { _ = client.Close() }()

	reply, err := redis.DoBlocking(context.Background(), client, "mystream", 0,
		"XREAD", "COUNT", 1, "STREAMS", "mystream", "0").Result()
	s.Require().NoError(err)
	s.Assert().NotNil(reply)
}
