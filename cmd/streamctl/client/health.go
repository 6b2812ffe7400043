package client

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/KirkDiggler/streamclient/internal/errors"
)

var (
	serverAddr    string
	healthService string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running worker",
	Long: `Query the gRPC health service of a worker started with health.enabled.
--service "" is the whole process, streamclient.Pipeline the pipeline and
streamclient.consumer.<name> a single consumer.`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&serverAddr, "server", "localhost:50051", "gRPC server address")
	healthCmd.Flags().StringVar(&healthService, "service", "", "Service to check")
}

// createConnection creates a gRPC connection to the server
func createConnection() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return conn, nil
}

func runHealth(cmd *cobra.Command, _ []string) error {
	conn, err := createConnection()
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close() // nolint:errcheck // safe to ignore in cleanup
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: healthService,
	})
	if err != nil {
		return errors.FromGRPCError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus())
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return errors.Unavailablef("service %q is %s", healthService, resp.GetStatus())
	}
	return nil
}
