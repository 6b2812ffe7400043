// Package config loads streamctl settings from TOML.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/KirkDiggler/streamclient/internal/consumer"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/logging"
	"github.com/KirkDiggler/streamclient/internal/pkg/idgen"
	"github.com/KirkDiggler/streamclient/internal/redis"
)

// BrokerKind selects the broker implementation
type BrokerKind string

const (
	BrokerRedis  BrokerKind = "redis"
	BrokerMemory BrokerKind = "memory" // single process only, nothing survives exit
)

// Consumer name styles
const (
	NamesSequential = "sequential" // consumer_01, consumer_02, ...
	NamesUUID       = "uuid"
)

// BrokerConfiguration names the broker and the log everything works on
type BrokerConfiguration struct {
	Kind           BrokerKind `toml:"kind"`
	Log            string     `toml:"log"`
	DeleteOnFinish bool       `toml:"delete_on_finish"`
}

// RedisConfiguration describes the Redis deployment
type RedisConfiguration struct {
	Mode          string   `toml:"mode"` // single, cluster or sentinel
	Addrs         []string `toml:"addrs"`
	MasterName    string   `toml:"master_name"`
	Username      string   `toml:"username"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MinIdleConns  int      `toml:"min_idle_conns"`
	MaxRetries    int      `toml:"max_retries"`
	DialTimeoutMS int      `toml:"dial_timeout_ms"`
	ReadTimeoutMS int      `toml:"read_timeout_ms"` // raised above block_ms when lower
	Protocol      int      `toml:"protocol"`
	TLS           bool     `toml:"tls"`
	ReadOnly      bool     `toml:"read_only"`
}

// ConsumerConfiguration controls the group readers
type ConsumerConfiguration struct {
	Group         string `toml:"group"`
	Consumers     int    `toml:"consumers"`
	NamePrefix    string `toml:"name_prefix"`
	NameStyle     string `toml:"name_style"`
	BatchSize     int64  `toml:"batch_size"`
	BlockMS       int    `toml:"block_ms"` // 0 polls without waiting
	StopOnTimeout bool   `toml:"stop_on_timeout"`
	IdleBackoffMS int    `toml:"idle_backoff_ms"`
	StartID       string `toml:"start_id"` // "0", "$" or ms-seq
	HandlerMS     int    `toml:"handler_timeout_ms"`
	Retries       int    `toml:"retries"`
	RetryMS       int    `toml:"retry_backoff_ms"`
}

// ProducerConfiguration controls the producer
type ProducerConfiguration struct {
	Count       int   `toml:"count"`
	IntervalMS  int   `toml:"interval_ms"`
	MaxLen      int64 `toml:"max_len"`
	Approximate bool  `toml:"approximate"`
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// MetricsConfiguration controls the prometheus endpoint
type MetricsConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// HealthConfiguration controls the gRPC health server
type HealthConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Config is the whole streamctl configuration
type Config struct {
	Broker   BrokerConfiguration   `toml:"broker"`
	Redis    RedisConfiguration    `toml:"redis"`
	Consumer ConsumerConfiguration `toml:"consumer"`
	Producer ProducerConfiguration `toml:"producer"`
	Log      LoggingConfiguration  `toml:"log"`
	Metrics  MetricsConfiguration  `toml:"metrics"`
	Health   HealthConfiguration   `toml:"health"`
}

// Default returns the configuration used when no file overrides it
func Default() *Config {
	return &Config{
		Broker: BrokerConfiguration{
			Kind: BrokerRedis,
			Log:  "mystream",
		},
		Redis: RedisConfiguration{
			Mode:          string(redis.ModeSingle),
			Addrs:         []string{"localhost:6379"},
			PoolSize:      10,
			MaxRetries:    3,
			DialTimeoutMS: 5000,
			ReadTimeoutMS: 3000,
		},
		Consumer: ConsumerConfiguration{
			Group:         "mygroup",
			Consumers:     2,
			NamePrefix:    "consumer",
			NameStyle:     NamesSequential,
			BatchSize:     1,
			BlockMS:       2000,
			StopOnTimeout: true,
			StartID:       "0",
		},
		Producer: ProducerConfiguration{
			Count: 10,
		},
		Log: LoggingConfiguration{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Metrics: MetricsConfiguration{
			Address: "127.0.0.1:9090",
		},
		Health: HealthConfiguration{
			Address: "127.0.0.1:50051",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("config file %s not found", path).WithMeta("path", path)
		}
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	cfg, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML over the defaults. Unknown keys are rejected.
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to decode config")
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.InvalidArgumentf("unknown config keys: %v", keys).WithMeta("keys", keys)
	}

	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateEnum("broker.kind", string(c.Broker.Kind), []string{string(BrokerRedis), string(BrokerMemory)}, vb)
	errors.ValidateRequired("broker.log", c.Broker.Log, vb)

	if c.Broker.Kind == BrokerRedis {
		errors.ValidateEnum("redis.mode", c.Redis.Mode,
			[]string{string(redis.ModeSingle), string(redis.ModeCluster), string(redis.ModeSentinel)}, vb)
		if len(c.Redis.Addrs) == 0 {
			vb.RequiredField("redis.addrs")
		}
		if redis.Mode(c.Redis.Mode) == redis.ModeSentinel {
			errors.ValidateRequired("redis.master_name", c.Redis.MasterName, vb)
		}
		if c.Redis.Protocol != 0 && c.Redis.Protocol != 2 && c.Redis.Protocol != 3 {
			vb.InvalidField("redis.protocol", "must be 2 or 3")
		}
		errors.ValidateNonNegative("redis.dial_timeout_ms", int64(c.Redis.DialTimeoutMS), vb)
		errors.ValidateNonNegative("redis.read_timeout_ms", int64(c.Redis.ReadTimeoutMS), vb)
	}

	errors.ValidateRequired("consumer.group", c.Consumer.Group, vb)
	errors.ValidateNonNegative("consumer.consumers", int64(c.Consumer.Consumers), vb)
	errors.ValidateEnum("consumer.name_style", c.Consumer.NameStyle, []string{NamesSequential, NamesUUID}, vb)
	errors.ValidatePositive("consumer.batch_size", c.Consumer.BatchSize, vb)
	errors.ValidateNonNegative("consumer.block_ms", int64(c.Consumer.BlockMS), vb)
	errors.ValidateNonNegative("consumer.idle_backoff_ms", int64(c.Consumer.IdleBackoffMS), vb)
	errors.ValidateNonNegative("consumer.handler_timeout_ms", int64(c.Consumer.HandlerMS), vb)
	errors.ValidateNonNegative("consumer.retries", int64(c.Consumer.Retries), vb)
	errors.ValidateNonNegative("consumer.retry_backoff_ms", int64(c.Consumer.RetryMS), vb)
	if _, err := entities.ParseStreamID(c.Consumer.StartID); err != nil {
		vb.InvalidField("consumer.start_id", err.Error())
	}

	errors.ValidateNonNegative("producer.count", int64(c.Producer.Count), vb)
	errors.ValidateNonNegative("producer.interval_ms", int64(c.Producer.IntervalMS), vb)
	errors.ValidateNonNegative("producer.max_len", c.Producer.MaxLen, vb)

	errors.ValidateEnum("log.format", c.Log.Format, []string{logging.FormatConsole, logging.FormatJSON}, vb)

	if c.Metrics.Enabled {
		errors.ValidateRequired("metrics.address", c.Metrics.Address, vb)
	}
	if c.Health.Enabled {
		errors.ValidateRequired("health.address", c.Health.Address, vb)
	}

	return vb.Build()
}

// BlockTimeout is consumer.block_ms as a duration
func (c *Config) BlockTimeout() time.Duration {
	return ms(c.Consumer.BlockMS)
}

// IdleBackoff is consumer.idle_backoff_ms as a duration
func (c *Config) IdleBackoff() time.Duration {
	return ms(c.Consumer.IdleBackoffMS)
}

// Interval is producer.interval_ms as a duration
func (c *Config) Interval() time.Duration {
	return ms(c.Producer.IntervalMS)
}

// StartID parses consumer.start_id
func (c *Config) StartID() (entities.StreamID, error) {
	return entities.ParseStreamID(c.Consumer.StartID)
}

// RedisSettings converts the redis section for redis.Connect. The read
// timeout always leaves a second of headroom over the block timeout so a
// blocking read is never cut short by the socket.
func (c *Config) RedisSettings() redis.Settings {
	readTimeout := ms(c.Redis.ReadTimeoutMS)
	if floor := c.BlockTimeout() + time.Second; readTimeout < floor {
		readTimeout = floor
	}

	return redis.Settings{
		Mode:       redis.Mode(c.Redis.Mode),
		Addrs:      c.Redis.Addrs,
		MasterName: c.Redis.MasterName,
		Options: &redis.Options{
			Username:     c.Redis.Username,
			Password:     c.Redis.Password,
			DB:           c.Redis.DB,
			PoolSize:     c.Redis.PoolSize,
			MinIdleConns: c.Redis.MinIdleConns,
			MaxRetries:   c.Redis.MaxRetries,
			DialTimeout:  ms(c.Redis.DialTimeoutMS),
			ReadTimeout:  readTimeout,
			Protocol:     c.Redis.Protocol,
			UseTLS:       c.Redis.TLS,
			ReadOnly:     c.Redis.ReadOnly,
		},
	}
}

// Logging converts the log section for logging.New
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
	}
}

// Names returns the consumer name generator
func (c *Config) Names() idgen.Generator {
	if c.Consumer.NameStyle == NamesUUID {
		return idgen.NewUUID(c.Consumer.NamePrefix)
	}
	return idgen.NewSequential(c.Consumer.NamePrefix)
}

// Middleware returns the handler middleware the consumer section asks for
func (c *Config) Middleware() []consumer.Middleware {
	var mws []consumer.Middleware
	if c.Consumer.Retries > 0 {
		backoff := ms(c.Consumer.RetryMS)
		mws = append(mws, consumer.RetryMiddleware(consumer.RetryConfig{
			MaxAttempts: c.Consumer.Retries + 1,
			Backoff:     func(attempt int) time.Duration { return backoff * time.Duration(attempt) },
		}))
	}
	if c.Consumer.HandlerMS > 0 {
		mws = append(mws, consumer.TimeoutMiddleware(ms(c.Consumer.HandlerMS)))
	}
	return mws
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
