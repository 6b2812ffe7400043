package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DoBlocking sends a command carrying BLOCK <block> to the node serving key.
//
// Raw Do commands are read with the client's ReadTimeout and go-redis
// retries a read that times out, so a block longer than that timeout would
// fail as a connection error after MaxRetries attempts. DoBlocking runs the
// command on a clone of the node client whose socket timeout covers the
// block, and bounds the call with a deadline of the same length so a read
// that does time out is not retried.
func DoBlocking(ctx context.Context, c Client, key string, block time.Duration, args ...interface{}) *redis.Cmd {
	if block <= 0 {
		return c.Do(ctx, args...)
	}

	var node *redis.Client
	switch client := c.(type) {
	case *redis.Client:
		node = client
	case *redis.ClusterClient:
		master, err := client.MasterForKey(ctx, key)
		if err != nil {
			cmd := redis.NewCmd(ctx, args...)
			cmd.SetErr(err)
			return cmd
		}
		node = master
	default:
		return c.Do(ctx, args...)
	}

	// zero and negative mean the socket read has no deadline
	base := node.Options().ReadTimeout
	if base <= 0 {
		return node.Do(ctx, args...)
	}

	timeout := block + base
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return node.WithTimeout(timeout).Do(bctx, args...)
}
