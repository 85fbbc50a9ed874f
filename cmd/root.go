package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arin/trafficsense/internal/config"
	"github.com/arin/trafficsense/internal/logging"
	"github.com/arin/trafficsense/internal/telemetry"
)

const flushTimeout = 5 * time.Second

var (
	endpointFlag string
	verbose      bool
	logFormat    string

	version = "dev"

	// Populated by setup before any command runs.
	cfg               *config.Config
	shutdownTelemetry func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "trafficsense [question]",
	Short: "Terminal client for the TrafficSense traffic analysis assistant",
	Long: `trafficsense streams answers from the TrafficSense AI service.

Examples:
  trafficsense                       start an interactive chat
  trafficsense 请分析当前交通状况      ask one question
  trafficsense trace                 request source-tracing prediction
  trafficsense decide                request decision suggestions`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runChat(cmd, args)
		}
		return runAsk(cmd, args)
	},
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpointFlag, "endpoint", "", "Chat stream URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
}

// SetVersion records the build version shown by --version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the entry point called from main. Spans are flushed even
// when the command fails.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	flushTelemetry()
	return err
}

func flushTelemetry() {
	if shutdownTelemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := shutdownTelemetry(ctx); err != nil {
		slog.Warn("trace export failed", "error", err)
	}
	shutdownTelemetry = nil
}

// setup loads configuration and wires logging and tracing.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if endpointFlag != "" {
		endpoint, err := config.NormalizeEndpoint(endpointFlag)
		if err != nil {
			return err
		}
		loaded.Endpoint = endpoint
	}
	if logFormat != "" {
		loaded.LogFormat = logFormat
	}
	if verbose {
		loaded.LogLevel = "debug"
	}
	cfg = loaded

	if _, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(cmd.Context(), cfg.OTLPEndpoint, version)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			shutdownTelemetry = shutdown
		}
	}

	slog.Debug("configuration loaded",
		"endpoint", cfg.Endpoint,
		"timeout", cfg.RequestTimeout(),
		"config", config.Path(),
	)
	return nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
