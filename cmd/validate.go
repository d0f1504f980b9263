package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/asio/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate an asio configuration file without starting the daemon.

This is useful for pre-checking configuration before rolling it out.

Examples:
  asio validate -f /etc/asio/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(validateConfigFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	budget := "unbounded"
	if cfg.Echo.Count > 0 {
		budget = fmt.Sprintf("%d replies", cfg.Echo.Count)
	}

	fmt.Fprintf(out, "VALID: %s port %d, %s, log level %s\n",
		cfg.Listen.Family, cfg.Listen.Port, budget, cfg.Log.Level)
	return nil
}
