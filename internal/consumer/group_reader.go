package consumer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/metrics"
)

// GroupReaderConfig holds the configuration for a GroupReader
type GroupReaderConfig struct {
	Client   broker.Client
	Log      string
	Group    string
	Consumer string
	Handler  Handler
	// Middleware wraps Handler inside the always-on panic recovery
	Middleware []Middleware

	BatchSize int64
	// BlockTimeout bounds each read. Zero polls without waiting.
	BlockTimeout time.Duration
	// StopOnTimeout ends the loop the first time a read comes back empty
	StopOnTimeout bool
	// IdleBackoff is slept between empty non-blocking polls
	IdleBackoff time.Duration
	// StartID positions a group created by EnsureGroup
	StartID entities.StreamID

	Logger  *zerolog.Logger
	Metrics *metrics.ReaderMetrics

	// OnFailure sees every entry whose handler failed
	OnFailure func(entry entities.LogEntry, err error)
	// OnStateChange sees every transition
	OnStateChange func(from, to State)
}

// Validate ensures the reader can run
func (c *GroupReaderConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("client")
	}
	if c.Handler == nil {
		vb.RequiredField("handler")
	}
	errors.ValidateRequired("log", c.Log, vb)
	errors.ValidateRequired("group", c.Group, vb)
	errors.ValidateRequired("consumer", c.Consumer, vb)
	errors.ValidatePositive("batch_size", c.BatchSize, vb)
	errors.ValidateNonNegative("block_timeout", int64(c.BlockTimeout), vb)
	errors.ValidateNonNegative("idle_backoff", int64(c.IdleBackoff), vb)
	return vb.Build()
}

// GroupReader is one consumer of a consumer group. It polls for entries never
// delivered to the group, hands them to the handler in order and acks the ones
// that succeeded. Failed entries stay pending.
type GroupReader struct {
	cfg     GroupReaderConfig
	handler Handler
	logger  zerolog.Logger
	metrics *metrics.ReaderMetrics
	labels  []string

	started atomic.Bool
	state   atomic.Int32

	delivered       atomic.Int64
	acked           atomic.Int64
	handlerFailures atomic.Int64
	ackFailures     atomic.Int64
	notPending      atomic.Int64
}

// NewGroupReader creates a reader in StateIdle
func NewGroupReader(cfg *GroupReaderConfig) (*GroupReader, error) {
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

	mws := append([]Middleware{RecoveryMiddleware()}, cfg.Middleware...)

	return &GroupReader{
		cfg:     *cfg,
		handler: Chain(cfg.Handler, mws...),
		logger: logger.With().
			Str("log", cfg.Log).
			Str("group", cfg.Group).
			Str("consumer", cfg.Consumer).
			Logger(),
		metrics: m,
		labels:  []string{cfg.Log, cfg.Group, cfg.Consumer},
	}, nil
}

// Consumer returns the consumer name
func (r *GroupReader) Consumer() string {
	return r.cfg.Consumer
}

// State returns the current state; safe from any goroutine
func (r *GroupReader) State() State {
	return State(r.state.Load())
}

// Stats returns a snapshot of the counters
func (r *GroupReader) Stats() Stats {
	return Stats{
		Delivered:       r.delivered.Load(),
		Acked:           r.acked.Load(),
		HandlerFailures: r.handlerFailures.Load(),
		AckFailures:     r.ackFailures.Load(),
		NotPending:      r.notPending.Load(),
	}
}

// EnsureGroup creates the consumer group at StartID. An existing group is
// left alone.
func (r *GroupReader) EnsureGroup(ctx context.Context) error {
	err := r.cfg.Client.CreateGroup(ctx, broker.CreateGroupInput{
		Log:   r.cfg.Log,
		Group: r.cfg.Group,
		Start: r.cfg.StartID,
	})
	if broker.IsGroupExists(err) {
		r.logger.Info().Msg("consumer group already exists")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to create consumer group")
	}

	r.logger.Info().Str("start", r.cfg.StartID.String()).Msg("created consumer group")
	return nil
}

// Run polls until the context is canceled, a read times out under
// StopOnTimeout, or the broker fails. Cancellation is honored between polls;
// a read in flight runs to its block timeout and its entries are dispatched.
// Broker errors end the loop and are returned; cancellation returns nil.
func (r *GroupReader) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.FailedPrecondition("reader has already run").WithMeta("consumer", r.cfg.Consumer)
	}
	defer r.setState(StateStopped)

	r.logger.Debug().
		Int64("batch_size", r.cfg.BatchSize).
		Dur("block_timeout", r.cfg.BlockTimeout).
		Bool("stop_on_timeout", r.cfg.StopOnTimeout).
		Msg("consumer started")

	for {
		if ctx.Err() != nil {
			r.logger.Info().Msg("consumer canceled")
			return nil
		}

		r.setState(StatePolling)
		entries, err := r.poll(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("group read failed")
			return errors.Wrap(err, "group read failed")
		}

		if len(entries) == 0 {
			if r.cfg.StopOnTimeout {
				r.logger.Info().Msg("no entries within block timeout, assuming producers are done")
				return nil
			}
			r.setState(StateIdle)
			r.backoff(ctx)
			continue
		}

		r.setState(StateDispatching)
		r.dispatch(ctx, entries)
		r.setState(StateIdle)
	}
}

func (r *GroupReader) poll(ctx context.Context) ([]entities.LogEntry, error) {
	start := time.Now()
	out, err := r.cfg.Client.ReadGroup(context.WithoutCancel(ctx), broker.ReadGroupInput{
		Log:      r.cfg.Log,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		Count:    r.cfg.BatchSize,
		Block:    r.cfg.BlockTimeout,
	})
	r.metrics.PollSeconds.With(r.labels...).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// dispatch hands a batch that was already read to the handler. Entries are
// delivered to this consumer once read, so the batch is finished even after
// ctx is canceled and handlers see a context that is never canceled.
func (r *GroupReader) dispatch(ctx context.Context, entries []entities.LogEntry) {
	hctx := context.WithoutCancel(ctx)
	for _, entry := range entries {
		r.delivered.Add(1)
		r.metrics.Delivered.With(r.labels...).Inc()

		if err := r.handler(hctx, entry); err != nil {
			r.handlerFailures.Add(1)
			r.metrics.HandlerFailures.With(r.labels...).Inc()
			r.logger.Warn().Err(err).Str("id", entry.ID.String()).Msg("handler failed, entry left pending")
			if r.cfg.OnFailure != nil {
				r.cfg.OnFailure(entry, err)
			}
			continue
		}

		r.ack(ctx, entry.ID)
	}
}

// ack is best effort. A failed ack leaves the entry pending.
func (r *GroupReader) ack(ctx context.Context, id entities.StreamID) {
	err := r.cfg.Client.Ack(context.WithoutCancel(ctx), broker.AckInput{
		Log:   r.cfg.Log,
		Group: r.cfg.Group,
		ID:    id,
	})
	switch {
	case err == nil:
		r.acked.Add(1)
		r.metrics.Acked.With(r.labels...).Inc()
		r.logger.Debug().Str("id", id.String()).Msg("acked")
	case broker.IsNotPending(err):
		r.notPending.Add(1)
		r.metrics.NotPending.With(r.labels...).Inc()
		r.logger.Info().Str("id", id.String()).Msg("entry was no longer pending")
	default:
		r.ackFailures.Add(1)
		r.metrics.AckFailures.With(r.labels...).Inc()
		r.logger.Error().Err(err).Str("id", id.String()).Msg("ack failed")
	}
}

func (r *GroupReader) backoff(ctx context.Context) {
	if r.cfg.BlockTimeout > 0 || r.cfg.IdleBackoff <= 0 {
		return
	}
	timer := time.NewTimer(r.cfg.IdleBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (r *GroupReader) setState(to State) {
	from := State(r.state.Swap(int32(to)))
	r.metrics.State.With(r.labels...).Set(float64(to))
	if from != to && r.cfg.OnStateChange != nil {
		r.cfg.OnStateChange(from, to)
	}
}
