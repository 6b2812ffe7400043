// Package client provides one-shot commands against a stream broker and the
// worker health endpoint
package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/config"
	"github.com/KirkDiggler/streamclient/internal/entities"
	"github.com/KirkDiggler/streamclient/internal/errors"
)

var (
	// Connection flags
	configPath string
	timeout    time.Duration
)

// ClientCmd is the root command for all client commands
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "One-shot commands against the configured broker",
	Long:  `Client commands append, read and manage stream logs directly, or query a running worker's health.`,
}

func init() {
	ClientCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	ClientCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	ClientCmd.AddCommand(appendCmd)
	ClientCmd.AddCommand(readCmd)
	ClientCmd.AddCommand(trimCmd)
	ClientCmd.AddCommand(deleteCmd)
	ClientCmd.AddCommand(groupCmd)
	ClientCmd.AddCommand(pendingCmd)
	ClientCmd.AddCommand(ackCmd)
	ClientCmd.AddCommand(healthCmd)
}

// openBroker connects to the broker named in the config file
func openBroker() (broker.Client, *config.Config, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if cfg.Broker.Kind == config.BrokerMemory {
		return nil, nil, nil, errors.FailedPrecondition("client commands need a broker shared between processes")
	}

	factory, err := cfg.BrokerFactory()
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := factory()
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = client.Close() // nolint:errcheck // safe to ignore in cleanup
	}
	return client, cfg, cleanup, nil
}

// logOrDefault picks the --log flag over broker.log
func logOrDefault(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	return cfg.Broker.Log
}

// parseFields turns key=value pairs into ordered fields
func parseFields(pairs []string) (entities.Fields, error) {
	fields := make(entities.Fields, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.InvalidArgumentf("field %q is not key=value", pair)
		}
		fields = append(fields, entities.Field{Key: key, Value: value})
	}
	return fields, nil
}

func printEntries(w io.Writer, entries []entities.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no entries)")
		return
	}
	for _, e := range entries {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Key + "=" + f.Value
		}
		fmt.Fprintf(w, "%s  %s\n", e.ID, strings.Join(parts, " "))
	}
}
