// Package main is the entry point for streamctl
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/streamclient/cmd/streamctl/client"
)

var rootCmd = &cobra.Command{
	Use:   "streamctl",
	Short: "Produce to and consume from stream logs",
	Long: `streamctl runs producers and consumer groups against a Redis Streams log,
and offers one-shot commands for inspecting and managing logs.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(client.ClientCmd)
}
