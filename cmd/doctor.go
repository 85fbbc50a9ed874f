package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/trafficsense/internal/config"
)

var configErr error

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and service connectivity",
	Long: `Run a health check on your trafficsense setup.
Verifies the config directory, the configuration itself, that the
chat endpoint answers, and whether tracing is enabled.`,
	// Report a broken configuration as a failed check instead of aborting.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configErr = setup(cmd, args)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  🩺 trafficsense doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " (%s)", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		check("trafficsense binary", func() (string, error) {
			path, err := os.Executable()
			if err != nil {
				return "", fmt.Errorf("could not locate trafficsense binary")
			}
			return path, nil
		})

		check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", fmt.Errorf("warn:%s not found; run trafficsense config set-endpoint to create it", dir)
			}
			if !info.IsDir() {
				return "", fmt.Errorf("%s exists but is not a directory", dir)
			}
			return dir, nil
		})

		check("Configuration valid", func() (string, error) {
			if configErr != nil {
				return "", configErr
			}
			return config.Path(), nil
		})

		check("Chat endpoint reachable", func() (string, error) {
			if cfg == nil {
				return "", fmt.Errorf("skipped: configuration could not be loaded")
			}
			return probeEndpoint(cmd.Context(), cfg.Endpoint)
		})

		check("Tracing", func() (string, error) {
			if cfg == nil || cfg.OTLPEndpoint == "" {
				return "", fmt.Errorf("warn:disabled; set TRAFFICSENSE_OTLP_ENDPOINT to export spans")
			}
			return cfg.OTLPEndpoint, nil
		})

		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s, %s", runtime.GOOS, runtime.GOARCH, version), nil
		})

		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}

		return nil
	},
}

// probeEndpoint reports whether anything answers at endpoint. The chat
// route only accepts POST, so any HTTP status counts as reachable.
func probeEndpoint(ctx context.Context, endpoint string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("could not connect to %s", endpoint)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("warn:%s answered with status %d", endpoint, resp.StatusCode)
	}
	return fmt.Sprintf("%s, status %d", endpoint, resp.StatusCode), nil
}
