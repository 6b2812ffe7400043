package consumer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/cursor"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/metrics"
)

// TailReaderConfig holds the configuration for a TailReader
type TailReaderConfig struct {
	Client     broker.Client
	Log        string
	Start      entities.StreamID
	Handler    Handler
	Middleware []Middleware

	BatchSize     int64
	BlockTimeout  time.Duration
	StopOnTimeout bool
	IdleBackoff   time.Duration

	Logger  *zerolog.Logger
	Metrics *metrics.ReaderMetrics
}

// Validate ensures the reader can run
func (c *TailReaderConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("client")
	}
	if c.Handler == nil {
		vb.RequiredField("handler")
	}
	errors.ValidateRequired("log", c.Log, vb)
	errors.ValidatePositive("batch_size", c.BatchSize, vb)
	errors.ValidateNonNegative("block_timeout", int64(c.BlockTimeout), vb)
	errors.ValidateNonNegative("idle_backoff", int64(c.IdleBackoff), vb)
	return vb.Build()
}

// TailReader follows a log without a consumer group. Its cursor moves past
// every entry it sees whether or not the handler succeeded; there is nothing
// to acknowledge.
type TailReader struct {
	cfg     TailReaderConfig
	handler Handler
	cursor  *cursor.Cursor
	logger  zerolog.Logger
	metrics *metrics.ReaderMetrics
	labels  []string

	started   atomic.Bool
	state     atomic.Int32
	delivered atomic.Int64
	failures  atomic.Int64
}

// NewTailReader creates a reader positioned at cfg.Start
func NewTailReader(cfg *TailReaderConfig) (*TailReader, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NoopReaderMetrics()
	}

	return &TailReader{
		cfg:     *cfg,
		handler: Chain(cfg.Handler, append([]Middleware{RecoveryMiddleware()}, cfg.Middleware...)...),
		cursor:  cursor.New(cfg.Start),
		logger:  logger.With().Str("log", cfg.Log).Logger(),
		metrics: m,
		labels:  []string{cfg.Log, "", ""},
	}, nil
}

// Position returns the cursor position. Only meaningful once Run has returned.
func (t *TailReader) Position() entities.StreamID {
	return t.cursor.Position()
}

// State returns the current state; safe from any goroutine
func (t *TailReader) State() State {
	return State(t.state.Load())
}

// Stats returns a snapshot of the counters
func (t *TailReader) Stats() Stats {
	return Stats{
		Delivered:       t.delivered.Load(),
		HandlerFailures: t.failures.Load(),
	}
}

// Run reads until canceled, a read times out under StopOnTimeout, the broker
// fails, or the broker hands back an entry out of order.
func (t *TailReader) Run(ctx context.Context) error {
	if !t.started.CompareAndSwap(false, true) {
		return errors.FailedPrecondition("reader has already run")
	}
	defer t.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			t.logger.Info().Msg("reader canceled")
			return nil
		}

		t.setState(StatePolling)
		start := time.Now()
		out, err := t.cfg.Client.Read(context.WithoutCancel(ctx), broker.ReadInput{
			Log:   t.cfg.Log,
			After: t.cursor.Position(),
			Count: t.cfg.BatchSize,
			Block: t.cfg.BlockTimeout,
		})
		t.metrics.PollSeconds.With(t.labels...).Observe(time.Since(start).Seconds())
		if err != nil {
			t.logger.Error().Err(err).Msg("read failed")
			return errors.Wrap(err, "read failed")
		}

		if len(out.Entries) == 0 {
			if t.cfg.StopOnTimeout {
				t.logger.Info().Msg("no entries within block timeout, assuming writer is done")
				return nil
			}
			t.setState(StateIdle)
			t.backoff(ctx)
			continue
		}

		// the batch is finished even if ctx is canceled while it runs
		t.setState(StateDispatching)
		hctx := context.WithoutCancel(ctx)
		for _, entry := range out.Entries {
			if err := t.cursor.Advance(entry.ID); err != nil {
				t.logger.Error().Err(err).Msg("broker returned an entry out of order")
				return err
			}

			t.delivered.Add(1)
			t.metrics.Delivered.With(t.labels...).Inc()
			if err := t.handler(hctx, entry); err != nil {
				t.failures.Add(1)
				t.metrics.HandlerFailures.With(t.labels...).Inc()
				t.logger.Warn().Err(err).Str("id", entry.ID.String()).Msg("handler failed")
			}
		}
		t.setState(StateIdle)
	}
}

func (t *TailReader) backoff(ctx context.Context) {
	if t.cfg.BlockTimeout > 0 || t.cfg.IdleBackoff <= 0 {
		return
	}
	timer := time.NewTimer(t.cfg.IdleBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (t *TailReader) setState(to State) {
	t.state.Store(int32(to))
	t.metrics.State.With(t.labels...).Set(float64(to))
}
