package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/entities"
)

var (
	ackLog   string
	ackGroup string
	ackIDs   []string
)

var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge pending entries",
	RunE:  runAck,
}

func init() {
	ackCmd.Flags().StringVar(&ackLog, "log", "", "Log name (defaults to broker.log)")
	ackCmd.Flags().StringVar(&ackGroup, "group", "", "Consumer group (defaults to consumer.group)")
	ackCmd.Flags().StringSliceVar(&ackIDs, "id", nil, "Entry id (repeatable, required)")
	_ = ackCmd.MarkFlagRequired("id") // nolint:errcheck // safe to ignore in init
}

func runAck(cmd *cobra.Command, _ []string) error {
	ids := make([]entities.StreamID, len(ackIDs))
	for i, raw := range ackIDs {
		id, err := entities.ParseStreamID(raw)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := logOrDefault(ackLog, cfg)
	group := groupOrDefault(ackGroup, cfg.Consumer.Group)
	for _, id := range ids {
		err := client.Ack(ctx, broker.AckInput{Log: log, Group: group, ID: id})
		switch {
		case err == nil:
			fmt.Fprintf(cmd.OutOrStdout(), "acked %s\n", id)
		case broker.IsNotPending(err):
			fmt.Fprintf(cmd.OutOrStdout(), "%s was not pending\n", id)
		default:
			return fmt.Errorf("failed to ack %s: %w", id, err)
		}
	}
	return nil
}
