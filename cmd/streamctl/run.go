package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/config"
	"github.com/KirkDiggler/streamclient/internal/consumer"
	"github.com/KirkDiggler/streamclient/internal/errors"
	"github.com/KirkDiggler/streamclient/internal/logging"
	"github.com/KirkDiggler/streamclient/internal/metrics"
	"github.com/KirkDiggler/streamclient/internal/server"
	"github.com/KirkDiggler/streamclient/internal/tasks"
)

const shutdownTimeout = 30 * time.Second

var (
	configPath string
	logName    string
	groupName  string
	consumers  int
	count      int
	forever    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a producer and a consumer group",
	Long: `Run appends producer.count entries to the log while consumer.consumers
readers drain it as one consumer group. With --forever the readers keep
polling until interrupted.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	runCmd.Flags().StringVar(&logName, "log", "", "Log name (overrides broker.log)")
	runCmd.Flags().StringVar(&groupName, "group", "", "Consumer group (overrides consumer.group)")
	runCmd.Flags().IntVar(&consumers, "consumers", 0, "Number of consumers (overrides consumer.consumers)")
	runCmd.Flags().IntVar(&count, "count", 0, "Entries to produce (overrides producer.count)")
	runCmd.Flags().BoolVar(&forever, "forever", false, "Keep consuming until interrupted")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistry()
		metricsSrv := serveMetrics(cfg.Metrics.Address, registry, logger)
		defer shutdownHTTP(metricsSrv, logger)
	}

	var health *server.Server
	if cfg.Health.Enabled {
		health, err = server.New(&server.Config{Address: cfg.Health.Address, Logger: &logger})
		if err != nil {
			return err
		}
		go func() {
			if err := health.Serve(); err != nil {
				logger.Error().Err(err).Msg("health server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			health.Stop(shutdownCtx)
		}()
		health.SetServing("", true)
		health.SetServing(server.PipelineService, true)
	}

	factory, err := cfg.BrokerFactory()
	if err != nil {
		return err
	}
	start, err := cfg.StartID()
	if err != nil {
		return err
	}

	pipelineCfg := &tasks.PipelineConfig{
		Factory:        factory,
		Log:            cfg.Broker.Log,
		Group:          cfg.Consumer.Group,
		StartID:        start,
		Consumers:      cfg.Consumer.Consumers,
		Names:          cfg.Names(),
		Count:          cfg.Producer.Count,
		Interval:       cfg.Interval(),
		MaxLen:         cfg.Producer.MaxLen,
		Approximate:    cfg.Producer.Approximate,
		Middleware:     cfg.Middleware(),
		BatchSize:      cfg.Consumer.BatchSize,
		BlockTimeout:   cfg.BlockTimeout(),
		StopOnTimeout:  cfg.Consumer.StopOnTimeout,
		IdleBackoff:    cfg.IdleBackoff(),
		DeleteOnFinish: cfg.Broker.DeleteOnFinish,
		Logger:         &logger,
		Metrics:        registry,
	}
	if health != nil {
		pipelineCfg.OnStateChange = health.ConsumerStateChanged
	}

	pipeline, err := tasks.NewPipeline(pipelineCfg)
	if err != nil {
		return err
	}

	logger.Info().
		Str("log", cfg.Broker.Log).
		Str("group", cfg.Consumer.Group).
		Int("consumers", cfg.Consumer.Consumers).
		Int("count", cfg.Producer.Count).
		Msg("pipeline starting")

	result, err := pipeline.Run(ctx)
	if health != nil {
		health.SetServing(server.PipelineService, false)
	}
	if result != nil {
		logSummary(logger, result)
	}
	if err != nil {
		return errors.Wrap(err, "pipeline failed")
	}
	return nil
}

func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log") {
		cfg.Broker.Log = logName
	}
	if flags.Changed("group") {
		cfg.Consumer.Group = groupName
	}
	if flags.Changed("consumers") {
		cfg.Consumer.Consumers = consumers
	}
	if flags.Changed("count") {
		cfg.Producer.Count = count
	}
	if forever {
		cfg.Consumer.StopOnTimeout = false
	}
}

func serveMetrics(addr string, registry *metrics.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown failed")
	}
}

func logSummary(logger zerolog.Logger, result *tasks.PipelineResult) {
	logger.Info().Int("produced", len(result.Produced)).Msg("producer finished")

	var total consumer.Stats
	for _, c := range result.Consumers {
		logger.Info().
			Str("consumer", c.Name).
			Int64("delivered", c.Stats.Delivered).
			Int64("acked", c.Stats.Acked).
			Int64("handler_failures", c.Stats.HandlerFailures).
			Int64("ack_failures", c.Stats.AckFailures).
			Msg("consumer finished")
		total.Delivered += c.Stats.Delivered
		total.Acked += c.Stats.Acked
	}
	logger.Info().Int64("delivered", total.Delivered).Int64("acked", total.Acked).Msg("pipeline finished")
}
