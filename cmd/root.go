// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "asio",
	Short: "Asio - address-aware UDP echo service",
	Long: `Asio is a UDP echo daemon for multihomed hosts. It echoes every
datagram back to its sender and, using the kernel's packet info records,
replies from the exact address the datagram was sent to instead of the
route-selected default.

Features:
  - Destination discovery: IP_PKTINFO / IPV6_RECVPKTINFO ancillary data
  - Dual stack: one IPv6 socket serves both families
  - Local control: CLI via Unix Domain Socket
  - Prometheus metrics endpoint`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (optional, defaults apply without one)")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/asio.sock",
		"daemon control socket path")

	// Subcommands; start registers itself, it only exists on linux builds
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
