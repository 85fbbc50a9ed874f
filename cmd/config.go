package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arin/trafficsense/internal/config"
	"github.com/arin/trafficsense/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage trafficsense configuration",
	// Config commands must work even when the stored file is invalid.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := logging.Setup(os.Stderr, "warn", "text")
		return err
	},
}

var setEndpointCmd = &cobra.Command{
	Use:   "set-endpoint <url>",
	Short: "Set the chat stream URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetEndpoint(args[0]); err != nil {
			return fmt.Errorf("failed to save endpoint: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Endpoint saved to %s.\n", config.Path())
		return nil
	},
}

var setTimeoutCmd = &cobra.Command{
	Use:   "set-timeout <duration>",
	Short: "Set how long to wait for response headers (e.g. 30s, 2m)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetTimeout(args[0]); err != nil {
			return fmt.Errorf("failed to save timeout: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Timeout set to %s.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		otlp := c.OTLPEndpoint
		if otlp == "" {
			otlp = "(disabled)"
		}
		fmt.Fprintf(out, "Endpoint:   %s\n", c.Endpoint)
		fmt.Fprintf(out, "Timeout:    %s\n", c.RequestTimeout())
		fmt.Fprintf(out, "Log level:  %s (%s)\n", c.LogLevel, c.LogFormat)
		fmt.Fprintf(out, "Tracing:    %s\n", otlp)
		fmt.Fprintf(out, "Config:     %s\n", config.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(setEndpointCmd)
	configCmd.AddCommand(setTimeoutCmd)
	configCmd.AddCommand(showCmd)
}
