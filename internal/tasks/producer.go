package tasks

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/metrics"
)

// FieldsFunc builds the fields of the i-th appended entry
type FieldsFunc func(i int) entities.Fields

// DefaultFields produces a single val=i field
func DefaultFields(i int) entities.Fields {
	return entities.Fields{{Key: "val", Value: strconv.Itoa(i)}}
}

// ProducerConfig holds the configuration for a Producer
type ProducerConfig struct {
	Client broker.Client
	Log    string
	Count  int
	// Interval is waited between appends
	Interval time.Duration
	// MaxLen caps the log on every append; zero leaves it unbounded
	MaxLen      int64
	Approximate bool
	Fields      FieldsFunc

	Logger  *zerolog.Logger
	Metrics *metrics.ProducerMetrics
}

// Validate ensures the producer can run
func (c *ProducerConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("client")
	}
	errors.ValidateRequired("log", c.Log, vb)
	errors.ValidateNonNegative("count", int64(c.Count), vb)
	errors.ValidateNonNegative("interval", int64(c.Interval), vb)
	errors.ValidateNonNegative("max_len", c.MaxLen, vb)
	return vb.Build()
}

// Producer appends Count entries to a log
type Producer struct {
	cfg     ProducerConfig
	fields  FieldsFunc
	logger  zerolog.Logger
	metrics *metrics.ProducerMetrics
}

// NewProducer creates a producer
func NewProducer(cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	fields := cfg.Fields
	if fields == nil {
		fields = DefaultFields
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NoopProducerMetrics()
	}

	return &Producer{
		cfg:     *cfg,
		fields:  fields,
		logger:  logger.With().Str("log", cfg.Log).Logger(),
		metrics: m,
	}, nil
}

// Run appends the entries in order and returns their IDs. It stops at the
// first append error, returning the IDs appended so far with the error.
// Cancellation stops it quietly between appends.
func (p *Producer) Run(ctx context.Context) ([]entities.StreamID, error) {
	ids := make([]entities.StreamID, 0, p.cfg.Count)

	for i := 0; i < p.cfg.Count; i++ {
		if i > 0 && !p.wait(ctx) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		out, err := p.cfg.Client.Append(ctx, broker.AppendInput{
			Log:         p.cfg.Log,
			Fields:      p.fields(i),
			MaxLen:      p.cfg.MaxLen,
			Approximate: p.cfg.Approximate,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.metrics.AppendFailures.With(p.cfg.Log).Inc()
			p.logger.Error().Err(err).Int("index", i).Msg("append failed")
			return ids, errors.Wrapf(err, "append %d of %d failed", i+1, p.cfg.Count)
		}

		p.metrics.Appended.With(p.cfg.Log).Inc()
		p.logger.Info().Str("id", out.ID.String()).Int("index", i).Msg("appended")
		ids = append(ids, out.ID)
	}

	if ctx.Err() != nil {
		p.logger.Info().Int("appended", len(ids)).Msg("producer canceled")
	}
	return ids, nil
}

func (p *Producer) wait(ctx context.Context) bool {
	if p.cfg.Interval <= 0 {
		return true
	}
	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
