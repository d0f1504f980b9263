package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/asio/internal/command"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show runtime statistics",
	Long: `Query the asio daemon for runtime statistics.

Shows: datagrams received and replied, reply errors, datagrams without
destination metadata, family mismatches, ancillary anomalies and
truncation counts.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := command.NewUDSClient(socketPath, 10*time.Second)
		if err := runStats(context.Background(), client, os.Stdout); err != nil {
			exitWithError("stats failed", err)
		}
	},
}

func runStats(ctx context.Context, client ControlClient, out io.Writer) error {
	stats, err := client.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to query stats: %w", err)
	}

	resultJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}

	fmt.Fprintln(out, string(resultJSON))
	return nil
}
