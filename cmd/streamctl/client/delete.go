package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
)

var deleteLog string

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a log with its groups",
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().StringVar(&deleteLog, "log", "", "Log name (defaults to broker.log)")
}

func runDelete(cmd *cobra.Command, _ []string) error {
	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	name := logOrDefault(deleteLog, cfg)
	out, err := client.DeleteLog(ctx, broker.DeleteLogInput{Log: name})
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	if out.Deleted != 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s did not exist\n", name)
	}
	return nil
}
