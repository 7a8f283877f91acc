package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/wsbench/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{"-a", "ws://localhost:9001"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Connections != 1 {
		t.Errorf("Connections = %d, want 1", cfg.Connections)
	}
	if cfg.Messages != 1 {
		t.Errorf("Messages = %d, want 1", cfg.Messages)
	}
	if cfg.Message != "hello world!" {
		t.Errorf("Message = %q, want hello world!", cfg.Message)
	}
	if cfg.LogErrors {
		t.Error("LogErrors = true, want false")
	}
	if cfg.SampleRate != 0 {
		t.Errorf("SampleRate = %v, want 0", cfg.SampleRate)
	}
	if cfg.HandshakeTimeout != 30*time.Second {
		t.Errorf("HandshakeTimeout = %s, want 30s", cfg.HandshakeTimeout)
	}
	if cfg.DrainTimeout != 5*time.Second {
		t.Errorf("DrainTimeout = %s, want 5s", cfg.DrainTimeout)
	}
	if !cfg.FailFast {
		t.Error("FailFast = false, want true")
	}
	if cfg.Arrival != config.ArrivalModelUniform {
		t.Errorf("Arrival = %q, want uniform", cfg.Arrival)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
	if len(cfg.Headers) != 0 {
		t.Errorf("Headers len = %d, want 0", len(cfg.Headers))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadNoArgumentsRequestsHelp(t *testing.T) {
	_, err := config.NewLoader().Load(nil)
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(nil) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadRejectsExtraPositionals(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"-a", "ws://x", "one", "two"})
	if err == nil {
		t.Fatal("expected error for two message arguments")
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"address": "ws://bench.example.com:9001",
		"connections": 10,
		"messages": 500,
		"message": "from-file",
		"log_errors": true,
		"resp_sample_rate": 0.2,
		"rate": 100,
		"headers": {"Authorization": "Bearer file"},
		"jsonOutput": true
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load([]string{"--config", path, "-c", "20", "--header", "X-Env=ci"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Address != "ws://bench.example.com:9001" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.Connections != 20 {
		t.Errorf("Connections = %d, want 20 (flag wins)", cfg.Connections)
	}
	if cfg.Messages != 500 {
		t.Errorf("Messages = %d, want 500", cfg.Messages)
	}
	if cfg.Message != "from-file" {
		t.Errorf("Message = %q, want from-file", cfg.Message)
	}
	if !cfg.LogErrors {
		t.Error("LogErrors = false, want true")
	}
	if cfg.SampleRate != 0.2 {
		t.Errorf("SampleRate = %v, want 0.2", cfg.SampleRate)
	}
	if cfg.Rate != 100 {
		t.Errorf("Rate = %d, want 100", cfg.Rate)
	}
	if cfg.Headers["Authorization"] != "Bearer file" || cfg.Headers["X-Env"] != "ci" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if !cfg.JSONOutput {
		t.Error("JSONOutput = false, want true")
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"addr: wss://service.example.com/ws",
		"connections: 4",
		"messages: 20",
		"handshake_timeout: 3s",
		"write_timeout: 1s",
		"drain_timeout: 0s",
		"fail_fast: false",
		"arrival_model: poisson",
		"thresholds:",
		"  - \"messages:rate > 100\"",
		"  - \"send_latency:p99 < 5\"",
		"tracing:",
		"  endpoint: localhost:4317",
		"  insecure: true",
		"  sample_rate: 0.5",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Address != "wss://service.example.com/ws" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.HandshakeTimeout != 3*time.Second || cfg.WriteTimeout != time.Second || cfg.DrainTimeout != 0 {
		t.Errorf("timeouts = %s/%s/%s", cfg.HandshakeTimeout, cfg.WriteTimeout, cfg.DrainTimeout)
	}
	if cfg.FailFast {
		t.Error("FailFast = true, want false")
	}
	if cfg.Arrival != config.ArrivalModelPoisson {
		t.Errorf("Arrival = %q, want poisson", cfg.Arrival)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if !cfg.Tracing.Enabled() || !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func validConfig() config.Config {
	return config.Config{
		Address:     "ws://localhost:9001",
		Connections: 3,
		Messages:    10,
		Message:     "ping",
		FailFast:    true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"wss", func(c *config.Config) { c.Address = "wss://example.com/socket" }, ""},
		{"sample rate one", func(c *config.Config) { c.SampleRate = 1 }, ""},
		{"missing address", func(c *config.Config) { c.Address = "" }, "address is required"},
		{"http scheme", func(c *config.Config) { c.Address = "http://localhost" }, "ws or wss scheme"},
		{"no host", func(c *config.Config) { c.Address = "ws://" }, "must include a host"},
		{"zero connections", func(c *config.Config) { c.Connections = 0 }, "connections must be >= 1"},
		{"zero messages", func(c *config.Config) { c.Messages = 0 }, "messages must be >= 1"},
		{"sample rate above one", func(c *config.Config) { c.SampleRate = 1.5 }, "resp_sample_rate must be between 0.0 and 1.0"},
		{"negative sample rate", func(c *config.Config) { c.SampleRate = -0.1 }, "resp_sample_rate"},
		{"negative rate", func(c *config.Config) { c.Rate = -1 }, "rate must be >= 0"},
		{"bad arrival", func(c *config.Config) { c.Arrival = "bursty" }, "arrival model"},
		{"negative drain", func(c *config.Config) { c.DrainTimeout = -time.Second }, "drain_timeout"},
		{"json and yaml", func(c *config.Config) { c.JSONOutput, c.YAMLOutput = true, true }, "mutually exclusive"},
		{"dashboard and progress", func(c *config.Config) { c.Dashboard, c.Progress = true, true }, "mutually exclusive"},
		{"bad log level", func(c *config.Config) { c.LogLevel = "trace" }, "log_level"},
		{"bad tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "thrift" }, "tracing: protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("error type = %T, want ValidationError", err)
			}
		})
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := config.Config{SampleRate: 2}
	err := cfg.Validate()
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}
	if got := len(verr.Issues()); got != 4 {
		t.Errorf("issues = %v, want 4 (address, connections, messages, sample rate)", verr.Issues())
	}
}

func TestTracingConfigPropagation(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var tc config.TracingConfig
	if tc.Enabled() || tc.ShouldPropagate() {
		t.Error("empty tracing config should be disabled")
	}
	tc.Endpoint = "localhost:4317"
	if !tc.Enabled() || !tc.ShouldPropagate() {
		t.Error("endpoint should enable tracing and propagation")
	}
	off := false
	tc.Propagate = &off
	if tc.ShouldPropagate() {
		t.Error("explicit propagate=false ignored")
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{"none", config.Config{Connections: 10, Rate: 100}, nil},
		{"connections", config.Config{Connections: 501}, []string{"high connection count configured (501)"}},
		{"rate", config.Config{Connections: 1, Rate: 5000}, []string{"high per-connection rate configured (5000 msg/s)"}},
		{"both", config.Config{Connections: 1000, Rate: 2000}, []string{"connection count", "per-connection rate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Warnings()
			if len(got) != len(tt.want) {
				t.Fatalf("Warnings() = %v, want %d entries", got, len(tt.want))
			}
			for i, w := range tt.want {
				if !strings.Contains(got[i], w) {
					t.Errorf("warning %d = %q, want it to contain %q", i, got[i], w)
				}
			}
		})
	}
}
