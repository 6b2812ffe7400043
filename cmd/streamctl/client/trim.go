package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
)

var (
	trimLog    string
	trimMaxLen int64
)

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Drop the oldest entries of a log",
	RunE:  runTrim,
}

func init() {
	trimCmd.Flags().StringVar(&trimLog, "log", "", "Log name (defaults to broker.log)")
	trimCmd.Flags().Int64Var(&trimMaxLen, "max-len", 0, "Entries to keep")
}

func runTrim(cmd *cobra.Command, _ []string) error {
	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := client.Trim(ctx, broker.TrimInput{Log: logOrDefault(trimLog, cfg), MaxLen: trimMaxLen})
	if err != nil {
		return fmt.Errorf("failed to trim: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "dropped %d\n", out.Dropped)
	return nil
}
