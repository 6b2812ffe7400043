package client

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
)

var (
	pendingLog      string
	pendingGroup    string
	pendingConsumer string
	pendingCount    int64
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List entries delivered to a group but not acknowledged",
	RunE:  runPending,
}

func init() {
	pendingCmd.Flags().StringVar(&pendingLog, "log", "", "Log name (defaults to broker.log)")
	pendingCmd.Flags().StringVar(&pendingGroup, "group", "", "Consumer group (defaults to consumer.group)")
	pendingCmd.Flags().StringVar(&pendingConsumer, "consumer", "", "Only this consumer's entries")
	pendingCmd.Flags().Int64Var(&pendingCount, "count", 100, "Maximum entries to list")
}

func runPending(cmd *cobra.Command, _ []string) error {
	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := client.Pending(ctx, broker.PendingInput{
		Log:      logOrDefault(pendingLog, cfg),
		Group:    groupOrDefault(pendingGroup, cfg.Consumer.Group),
		Count:    pendingCount,
		Consumer: pendingConsumer,
	})
	if err != nil {
		return fmt.Errorf("failed to list pending: %w", err)
	}

	if len(out.Entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(nothing pending)")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONSUMER\tIDLE\tDELIVERIES")
	for _, e := range out.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.ID, e.Consumer, e.Idle, e.Deliveries)
	}
	return w.Flush()
}
