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

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query the asio daemon for its overall status.

Shows: version, pid, uptime, listen address, family, whether destination
discovery is active, and the remaining reply budget.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := command.NewUDSClient(socketPath, 10*time.Second)
		if err := runStatus(context.Background(), client, os.Stdout); err != nil {
			exitWithError("status failed", err)
		}
	},
}

func runStatus(ctx context.Context, client ControlClient, out io.Writer) error {
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("daemon is not running or socket is inaccessible: %w", err)
	}

	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to query daemon status: %w", err)
	}

	resultJSON, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}

	fmt.Fprintln(out, string(resultJSON))
	return nil
}
