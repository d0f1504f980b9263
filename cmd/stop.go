// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/asio/internal/command"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the asio daemon",
	Long: `Stop the asio daemon gracefully.

This command sends a shutdown request to the running daemon via Unix
Domain Socket. The daemon closes its sockets, removes the PID file and
exits cleanly.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := command.NewUDSClient(socketPath, 10*time.Second)
		if err := runStop(context.Background(), client, os.Stdout); err != nil {
			exitWithError("stop failed", err)
		}
	},
}

func runStop(ctx context.Context, client ControlClient, out io.Writer) error {
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("daemon is not running or socket is inaccessible: %w", err)
	}

	if err := client.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	fmt.Fprintln(out, "✓ Daemon is shutting down")
	return nil
}
