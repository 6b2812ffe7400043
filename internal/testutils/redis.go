// Package testutils provides utilities for testing, including Redis test helpers
package testutils

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/streamclient/internal/redis"
)

// CreateTestRedisClient creates an in-memory Redis server and a client for it
func CreateTestRedisClient(t *testing.T) (redis.Client, func()) {
	client, _, cleanup := CreateTestRedisServer(t, nil)
	return client, cleanup
}

// CreateTestRedisServer starts miniredis and returns a client, the server
// (for connecting more clients or simulating outages) and a cleanup func.
func CreateTestRedisServer(t *testing.T, opts *redis.Options) (redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to create miniredis")

	client := ConnectTestRedis(t, mr, opts)

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, mr, cleanup
}

// ConnectTestRedis opens another client on a running miniredis
func ConnectTestRedis(t *testing.T, mr *miniredis.Miniredis, opts *redis.Options) redis.Client {
	if opts == nil {
		opts = &redis.Options{Protocol: 2, MaxRetries: -1}
	}

	client, err := redis.NewClient(mr.Addr(), opts)
	require.NoError(t, err, "failed to create redis client")
	return client
}
