package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultMessage is sent when no payload argument is given.
const DefaultMessage = "hello world!"

type Config struct {
	Address          string            `mapstructure:"address"`
	Connections      int               `mapstructure:"connections"`
	Messages         int               `mapstructure:"messages"`
	Message          string            `mapstructure:"message"`
	LogErrors        bool              `mapstructure:"log_errors"`
	SampleRate       float64           `mapstructure:"resp_sample_rate"`
	Rate             int               `mapstructure:"rate"`
	Arrival          ArrivalModel      `mapstructure:"arrival_model"`
	HandshakeTimeout time.Duration     `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration     `mapstructure:"write_timeout"`
	DrainTimeout     time.Duration     `mapstructure:"drain_timeout"`
	FailFast         bool              `mapstructure:"fail_fast"`
	Headers          map[string]string `mapstructure:"headers"`
	SampleJSONPath   string            `mapstructure:"sample_json_path"`
	JSONOutput       bool              `mapstructure:"json_output"`
	YAMLOutput       bool              `mapstructure:"yaml_output"`
	Dashboard        bool              `mapstructure:"dashboard"`
	Progress         bool              `mapstructure:"progress"`
	MetricsAddr      string            `mapstructure:"metrics_addr"`
	Thresholds       []string          `mapstructure:"thresholds"`
	Tracing          TracingConfig     `mapstructure:"tracing"`
	LogLevel         string            `mapstructure:"log_level"`
	ConfigFile       string            `mapstructure:"-"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"` // nil follows Enabled
}

// Enabled reports whether an exporter endpoint is configured, either here or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context goes into handshake headers.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Warnings lists settings that are valid but worth a second look before
// load is sent to a system.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Connections > 500 {
		warnings = append(warnings, fmt.Sprintf("high connection count configured (%d); ensure you have authorization to test the target system", c.Connections))
	}
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("high per-connection rate configured (%d msg/s); ensure you have authorization to test the target system", c.Rate))
	}
	return warnings
}

// Validate checks every field and reports all problems at once. It performs
// no network I/O.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Address) == "" {
		issues = append(issues, "address is required (use --help for usage information)")
	} else if u, err := url.Parse(c.Address); err != nil {
		issues = append(issues, fmt.Sprintf("address: %v", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		issues = append(issues, fmt.Sprintf("address must use the ws or wss scheme, got %q", u.Scheme))
	} else if u.Host == "" {
		issues = append(issues, "address must include a host")
	}

	if c.Connections < 1 {
		issues = append(issues, "connections must be >= 1")
	}
	if c.Messages < 1 {
		issues = append(issues, "messages must be >= 1")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("resp_sample_rate must be between 0.0 and 1.0, got %g", c.SampleRate))
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	switch c.Arrival {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", c.Arrival))
	}
	if c.HandshakeTimeout < 0 {
		issues = append(issues, "handshake_timeout must be >= 0")
	}
	if c.WriteTimeout < 0 {
		issues = append(issues, "write_timeout must be >= 0")
	}
	if c.DrainTimeout < 0 {
		issues = append(issues, "drain_timeout must be >= 0")
	}

	outputs := 0
	for _, on := range []bool{c.JSONOutput, c.YAMLOutput, c.Dashboard} {
		if on {
			outputs++
		}
	}
	if outputs > 1 {
		issues = append(issues, "dashboard, json-output and yaml-output are mutually exclusive")
	}
	if c.Dashboard && c.Progress {
		issues = append(issues, "dashboard and progress are mutually exclusive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
