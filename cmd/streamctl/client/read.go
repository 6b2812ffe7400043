package client

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
	"github.com/KirkDiggler/streamclient/internal/entities"
)

var (
	readLog   string
	readAfter string
	readCount int64
	readBlock time.Duration
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read entries after an id",
	Long:  `Read up to --count entries strictly after --after ("0" for the beginning, "$" for only new entries).`,
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVar(&readLog, "log", "", "Log name (defaults to broker.log)")
	readCmd.Flags().StringVar(&readAfter, "after", "0", "Read entries after this id")
	readCmd.Flags().Int64Var(&readCount, "count", 10, "Maximum entries to return")
	readCmd.Flags().DurationVar(&readBlock, "block", 0, "Wait this long for entries (0 returns at once)")
}

func runRead(cmd *cobra.Command, _ []string) error {
	after, err := entities.ParseStreamID(readAfter)
	if err != nil {
		return err
	}

	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout+readBlock)
	defer cancel()

	out, err := client.Read(ctx, broker.ReadInput{
		Log:   logOrDefault(readLog, cfg),
		After: after,
		Count: readCount,
		Block: readBlock,
	})
	if err != nil {
		return fmt.Errorf("failed to read: %w", err)
	}

	printEntries(cmd.OutOrStdout(), out.Entries)
	return nil
}
