package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wsbench [flags] [message]",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.SetNormalizeFunc(normalizeFlagName)

	// Core run flags
	flags.StringP("address", "a", "", "WebSocket URI to benchmark (ws:// or wss://)")
	flags.IntP("connections", "c", 1, "Number of concurrent connections")
	flags.IntP("messages", "m", 1, "Messages to send on each connection")
	flags.BoolP("log-errors", "l", false, "Collect failed sends into an error breakdown")
	flags.Float64P("resp-sample-rate", "s", 0, "Probability (0.0-1.0) of printing each text frame received")
	flags.StringSlice("header", nil, "Additional handshake header in key=value form")

	// Pacing and timeouts
	flags.Int("rate", 0, "Messages per second per connection (0 means unlimited)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Spacing of rate-limited sends (uniform or poisson)")
	flags.Duration("handshake-timeout", 30*time.Second, "WebSocket handshake timeout (0 disables)")
	flags.Duration("write-timeout", 0, "Per-message write deadline (0 disables)")
	flags.Duration("drain-timeout", 5*time.Second, "How long samplers keep reading after the last send")
	flags.Bool("fail-fast", true, "Abort the run when any handshake fails")

	// Output flags
	flags.String("sample-json-path", "", "Print only this JSON path of sampled frames (e.g. $.data.id)")
	flags.Bool("json-output", false, "Emit the report as JSON")
	flags.Bool("yaml-output", false, "Emit the report as YAML")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("progress", false, "Print a live progress line to stderr")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'send_latency:p99 < 5')")
	flags.String("log-level", "warn", "Diagnostic log level (debug, info, warn, error)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of runs to trace (0.0-1.0)")
}

// normalizeFlagName accepts --addr as an alias of --address.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "addr" {
		name = "address"
	}
	return pflag.NormalizedName(name)
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("address") {
		val, err := fs.GetString("address")
		if err != nil {
			return err
		}
		cfg.Address = strings.TrimSpace(val)
	}
	if fs.Changed("connections") {
		val, err := fs.GetInt("connections")
		if err != nil {
			return err
		}
		cfg.Connections = val
	}
	if fs.Changed("messages") {
		val, err := fs.GetInt("messages")
		if err != nil {
			return err
		}
		cfg.Messages = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("resp-sample-rate") {
		val, err := fs.GetFloat64("resp-sample-rate")
		if err != nil {
			return err
		}
		cfg.SampleRate = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("handshake-timeout") {
		val, err := fs.GetDuration("handshake-timeout")
		if err != nil {
			return err
		}
		cfg.HandshakeTimeout = val
	}
	if fs.Changed("write-timeout") {
		val, err := fs.GetDuration("write-timeout")
		if err != nil {
			return err
		}
		cfg.WriteTimeout = val
	}
	if fs.Changed("drain-timeout") {
		val, err := fs.GetDuration("drain-timeout")
		if err != nil {
			return err
		}
		cfg.DrainTimeout = val
	}
	if fs.Changed("fail-fast") {
		val, err := fs.GetBool("fail-fast")
		if err != nil {
			return err
		}
		cfg.FailFast = val
	}
	if fs.Changed("sample-json-path") {
		val, err := fs.GetString("sample-json-path")
		if err != nil {
			return err
		}
		cfg.SampleJSONPath = strings.TrimSpace(val)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
