//go:build linux

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/asio/internal/config"
	"firestige.xyz/asio/internal/daemon"
	"firestige.xyz/asio/internal/log"
)

var (
	listenPort int
	useIPv4    bool
	useIPv6    bool
	echoCount  uint64
	verbosity  int
	pidFile    string
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the asio echo daemon in foreground",
	Long: `Run the asio echo daemon in foreground.

The daemon will:
  1. Bind the UDP socket and enable destination discovery
  2. Start the metrics endpoint and the control socket
  3. Echo datagrams until stopped or the reply count is reached
  4. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)

Examples:
  asio start                     # IPv6 dual stack socket on port 4040, unbounded
  asio start -4 -l 7             # IPv4 socket on port 7
  asio start -n 1000 -v          # stop after 1000 replies, log each datagram
  asio start -c /etc/asio.yml    # settings from a config file`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStartDaemon(cmd); err != nil {
			exitWithError("daemon failed", err)
		}
	},
}

func init() {
	startCmd.Flags().IntVarP(&listenPort, "port", "l", 4040,
		"UDP port to listen on")
	startCmd.Flags().BoolVarP(&useIPv4, "ipv4", "4", false,
		"bind an IPv4 socket")
	startCmd.Flags().BoolVarP(&useIPv6, "ipv6", "6", false,
		"bind an IPv6 socket (dual stack, the default)")
	startCmd.Flags().Uint64VarP(&echoCount, "count", "n", 0,
		"replies to serve before exiting (0 = unbounded)")
	startCmd.Flags().CountVarP(&verbosity, "verbose", "v",
		"per-datagram output (-v basic, -vv with ancillary detail)")
	startCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (overrides config)")

	rootCmd.AddCommand(startCmd)
}

func runStartDaemon(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override the file, but only when actually given
	if cmd.Flags().Changed("port") {
		cfg.Listen.Port = listenPort
	}
	if useIPv4 && useIPv6 {
		return fmt.Errorf("flags -4 and -6 are mutually exclusive")
	}
	if useIPv4 {
		cfg.Listen.Family = "ipv4"
	}
	if useIPv6 {
		cfg.Listen.Family = "ipv6"
	}
	if cmd.Flags().Changed("count") {
		cfg.Echo.Count = echoCount
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Log.Level = log.VerbosityLevel(verbosity)
	}
	if cmd.Flags().Changed("pidfile") {
		cfg.Control.PIDFile = pidFile
	}
	if cmd.Flag("socket").Changed {
		cfg.Control.Socket = socketPath
	}

	d := daemon.New(cfg, configFile)
	if err := d.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Run main loop (blocks until shutdown)
	return d.Run()
}
