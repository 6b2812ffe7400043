package redis

import (
	"github.com/redis/go-redis/v9"
)

// Client wraps redis.UniversalClient so callers do not care which topology
// they were handed.
type Client interface {
	redis.UniversalClient
}

// Nil is returned by go-redis when a blocking read times out with no data
const Nil = redis.Nil

// Error is implemented by replies the server sent back as errors
type Error = redis.Error
