package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/internal/broker"
)

var (
	appendLog    string
	appendFields []string
	appendMaxLen int64
	appendApprox bool
)

var appendCmd = &cobra.Command{
	Use:   "append",
	Short: "Append one entry to a log",
	Long:  `Append one entry built from --field key=value pairs, in the order given.`,
	RunE:  runAppend,
}

func init() {
	appendCmd.Flags().StringVar(&appendLog, "log", "", "Log name (defaults to broker.log)")
	appendCmd.Flags().StringArrayVar(&appendFields, "field", nil, "Field as key=value (repeatable, required)")
	appendCmd.Flags().Int64Var(&appendMaxLen, "max-len", 0, "Trim the log to this many entries")
	appendCmd.Flags().BoolVar(&appendApprox, "approximate", false, "Let the broker trim approximately")
	_ = appendCmd.MarkFlagRequired("field") // nolint:errcheck // safe to ignore in init
}

func runAppend(cmd *cobra.Command, _ []string) error {
	fields, err := parseFields(appendFields)
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

	out, err := client.Append(ctx, broker.AppendInput{
		Log:         logOrDefault(appendLog, cfg),
		Fields:      fields,
		MaxLen:      appendMaxLen,
		Approximate: appendApprox,
	})
	if err != nil {
		return fmt.Errorf("failed to append: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), out.ID)
	return nil
}
