package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/consumer"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/metrics"
	"github.com/KirkDiggler/streamclient/internal/pkg/idgen"
)

// PipelineConfig holds the configuration for a Pipeline
type PipelineConfig struct {
	// Factory opens one broker connection per producer, per consumer and one
	// for group administration.
	Factory broker.Factory
	Log     string
	Group   string
	StartID entities.StreamID

	// Consumers is the number of group readers started
	Consumers int
	// Names generates consumer names; defaults to consumer_01, consumer_02, ...
	Names idgen.Generator

	Count       int
	Interval    time.Duration
	MaxLen      int64
	Approximate bool
	Fields      FieldsFunc

	Handler       consumer.Handler
	Middleware    []consumer.Middleware
	BatchSize     int64
	BlockTimeout  time.Duration
	StopOnTimeout bool
	IdleBackoff   time.Duration

	// DeleteOnFinish removes the log once every task has returned
	DeleteOnFinish bool

	Logger *zerolog.Logger
	// Metrics registers the pipeline collectors; one pipeline per registry
	Metrics *metrics.Registry

	OnStateChange func(name string, from, to consumer.State)
}

// Validate ensures the pipeline can run
func (c *PipelineConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Factory == nil {
		vb.RequiredField("factory")
	}
	errors.ValidateRequired("log", c.Log, vb)
	errors.ValidateRequired("group", c.Group, vb)
	errors.ValidateNonNegative("consumers", int64(c.Consumers), vb)
	errors.ValidateNonNegative("count", int64(c.Count), vb)
	errors.ValidatePositive("batch_size", c.BatchSize, vb)
	if c.Consumers == 0 && c.Count == 0 {
		vb.Field("consumers", "nothing to run without consumers or entries to produce")
	}
	return vb.Build()
}

// ConsumerResult is what one consumer did during a run
type ConsumerResult struct {
	Name  string
	Stats consumer.Stats
	Err   error
}

// PipelineResult summarizes a run
type PipelineResult struct {
	Produced  []entities.StreamID
	Consumers []ConsumerResult
}

// Pipeline runs one producer and a group of consumers against one log
type Pipeline struct {
	cfg    PipelineConfig
	names  idgen.Generator
	logger zerolog.Logger

	readerMetrics   *metrics.ReaderMetrics
	producerMetrics *metrics.ProducerMetrics

	mu      sync.Mutex
	readers []*consumer.GroupReader
}

// NewPipeline creates a pipeline
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	names := cfg.Names
	if names == nil {
		names = idgen.NewSequential("consumer")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Pipeline{
		cfg:             *cfg,
		names:           names,
		logger:          logger.With().Str("log", cfg.Log).Str("group", cfg.Group).Logger(),
		readerMetrics:   metrics.NewReaderMetrics(cfg.Metrics),
		producerMetrics: metrics.NewProducerMetrics(cfg.Metrics),
	}, nil
}

// States reports the current state of every started consumer by name
func (p *Pipeline) States() map[string]consumer.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make(map[string]consumer.State, len(p.readers))
	for _, r := range p.readers {
		states[r.Consumer()] = r.State()
	}
	return states
}

// Run ensures the group exists, starts the consumers and the producer, and
// waits for all of them. Consumers started without StopOnTimeout run until
// ctx is canceled.
func (p *Pipeline) Run(ctx context.Context) (*PipelineResult, error) {
	admin, err := p.cfg.Factory()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect")
	}
	defer func() {
		if err := admin.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("failed to close admin connection")
		}
	}()

	if p.cfg.Consumers > 0 {
		err := admin.CreateGroup(ctx, broker.CreateGroupInput{
			Log:   p.cfg.Log,
			Group: p.cfg.Group,
			Start: p.cfg.StartID,
		})
		if err != nil && !broker.IsGroupExists(err) {
			return nil, errors.Wrap(err, "failed to create consumer group")
		}
	}

	readers, clients, err := p.buildReaders()
	defer closeAll(p.logger, clients)
	if err != nil {
		return nil, err
	}

	tasks := make([]*ConsumerTask, len(readers))
	for i, r := range readers {
		tasks[i] = StartConsumer(ctx, r)
	}

	result := &PipelineResult{}
	var produceErr error
	if p.cfg.Count > 0 {
		result.Produced, produceErr = p.produce(ctx)
		if produceErr != nil {
			for _, t := range tasks {
				t.Stop()
			}
		}
	}

	var firstErr error
	for i, t := range tasks {
		err := t.Wait()
		result.Consumers = append(result.Consumers, ConsumerResult{
			Name:  readers[i].Consumer(),
			Stats: readers[i].Stats(),
			Err:   err,
		})
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "consumer %s failed", readers[i].Consumer())
		}
	}

	if p.cfg.DeleteOnFinish {
		if _, err := admin.DeleteLog(context.WithoutCancel(ctx), broker.DeleteLogInput{Log: p.cfg.Log}); err != nil {
			p.logger.Warn().Err(err).Msg("failed to delete log")
		}
	}

	if produceErr != nil {
		return result, produceErr
	}
	return result, firstErr
}

func (p *Pipeline) buildReaders() ([]*consumer.GroupReader, []broker.Client, error) {
	var clients []broker.Client
	readers := make([]*consumer.GroupReader, 0, p.cfg.Consumers)

	handler := p.cfg.Handler
	if handler == nil {
		handler = p.logEntry
	}

	for i := 0; i < p.cfg.Consumers; i++ {
		client, err := p.cfg.Factory()
		if err != nil {
			return nil, clients, errors.Wrap(err, "failed to connect consumer")
		}
		clients = append(clients, client)

		name := p.names.Generate()
		logger := p.logger
		reader, err := consumer.NewGroupReader(&consumer.GroupReaderConfig{
			Client:        client,
			Log:           p.cfg.Log,
			Group:         p.cfg.Group,
			Consumer:      name,
			Handler:       handler,
			Middleware:    p.cfg.Middleware,
			BatchSize:     p.cfg.BatchSize,
			BlockTimeout:  p.cfg.BlockTimeout,
			StopOnTimeout: p.cfg.StopOnTimeout,
			IdleBackoff:   p.cfg.IdleBackoff,
			StartID:       p.cfg.StartID,
			Logger:        &logger,
			Metrics:       p.readerMetrics,
			OnStateChange: p.stateHook(name),
		})
		if err != nil {
			return nil, clients, err
		}
		readers = append(readers, reader)
	}

	p.mu.Lock()
	p.readers = readers
	p.mu.Unlock()
	return readers, clients, nil
}

func (p *Pipeline) produce(ctx context.Context) ([]entities.StreamID, error) {
	client, err := p.cfg.Factory()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect producer")
	}
	defer closeAll(p.logger, []broker.Client{client})

	logger := p.logger
	producer, err := NewProducer(&ProducerConfig{
		Client:      client,
		Log:         p.cfg.Log,
		Count:       p.cfg.Count,
		Interval:    p.cfg.Interval,
		MaxLen:      p.cfg.MaxLen,
		Approximate: p.cfg.Approximate,
		Fields:      p.cfg.Fields,
		Logger:      &logger,
		Metrics:     p.producerMetrics,
	})
	if err != nil {
		return nil, err
	}
	return producer.Run(ctx)
}

func (p *Pipeline) stateHook(name string) func(from, to consumer.State) {
	if p.cfg.OnStateChange == nil {
		return nil
	}
	return func(from, to consumer.State) {
		p.cfg.OnStateChange(name, from, to)
	}
}

func (p *Pipeline) logEntry(_ context.Context, entry entities.LogEntry) error {
	p.logger.Info().
		Str("id", entry.ID.String()).
		Interface("fields", entry.Fields.Map()).
		Msg("received")
	return nil
}

func closeAll(logger zerolog.Logger, clients []broker.Client) {
	for _, c := range clients {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close broker connection")
		}
	}
}
