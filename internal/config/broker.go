package config

import (
	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/pkg/clock"
)

// BrokerFactory opens connections to the configured broker. Every connection
// from one memory factory shares the same store.
func (c *Config) BrokerFactory() (broker.Factory, error) {
	switch c.Broker.Kind {
	case BrokerRedis:
		return broker.NewRedisFactory(c.RedisSettings()), nil
	case BrokerMemory:
		mem, err := broker.NewInMemory(&broker.InMemoryConfig{Clock: clock.New()})
		if err != nil {
			return nil, err
		}
		return mem.Factory(), nil
	default:
		return nil, errors.InvalidArgumentf("unknown broker kind %q", c.Broker.Kind)
	}
}
