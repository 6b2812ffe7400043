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
	groupLog      string
	groupName     string
	groupStart    string
	groupConsumer string
	groupCount    int64
	groupBlock    time.Duration
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage and read consumer groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a consumer group",
	Long:  `Create a consumer group positioned at --start, creating the log if it does not exist.`,
	RunE:  runGroupCreate,
}

var groupReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Read new entries as one consumer of a group",
	Long:  `Read entries never delivered to the group. They stay pending until acknowledged with the ack command.`,
	RunE:  runGroupRead,
}

func init() {
	groupCmd.PersistentFlags().StringVar(&groupLog, "log", "", "Log name (defaults to broker.log)")
	groupCmd.PersistentFlags().StringVar(&groupName, "group", "", "Consumer group (defaults to consumer.group)")

	groupCreateCmd.Flags().StringVar(&groupStart, "start", "0", `Group position: "0", "$" or an id`)

	groupReadCmd.Flags().StringVar(&groupConsumer, "consumer", "", "Consumer name (required)")
	groupReadCmd.Flags().Int64Var(&groupCount, "count", 1, "Maximum entries to return")
	groupReadCmd.Flags().DurationVar(&groupBlock, "block", 0, "Wait this long for entries (0 returns at once)")
	_ = groupReadCmd.MarkFlagRequired("consumer") // nolint:errcheck // safe to ignore in init

	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupReadCmd)
}

func groupOrDefault(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func runGroupCreate(cmd *cobra.Command, _ []string) error {
	start, err := entities.ParseStreamID(groupStart)
	if err != nil {
		return err
	}

	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	group := groupOrDefault(groupName, cfg.Consumer.Group)
	err = client.CreateGroup(ctx, broker.CreateGroupInput{
		Log:   logOrDefault(groupLog, cfg),
		Group: group,
		Start: start,
	})
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created group %s at %s\n", group, start)
	return nil
}

func runGroupRead(cmd *cobra.Command, _ []string) error {
	client, cfg, cleanup, err := openBroker()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), timeout+groupBlock)
	defer cancel()

	out, err := client.ReadGroup(ctx, broker.ReadGroupInput{
		Log:      logOrDefault(groupLog, cfg),
		Group:    groupOrDefault(groupName, cfg.Consumer.Group),
		Consumer: groupConsumer,
		Count:    groupCount,
		Block:    groupBlock,
	})
	if err != nil {
		return fmt.Errorf("failed to read group: %w", err)
	}

	printEntries(cmd.OutOrStdout(), out.Entries)
	return nil
}
