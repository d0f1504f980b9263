package cmd

import (
	"context"

	"firestige.xyz/asio/internal/command"
)

// ControlClient is the slice of the UDS client the subcommands use.
// Tests substitute a mock for it.
type ControlClient interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) (*command.DaemonStatus, error)
	Stats(ctx context.Context) (*command.EchoStats, error)
	Shutdown(ctx context.Context) error
}
