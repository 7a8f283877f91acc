package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gopkg.in/yaml.v3"

	"github.com/torosent/wsbench/internal/config"
	"github.com/torosent/wsbench/internal/runner"
)

// testServer upgrades every request unless reject says otherwise, and
// counts handshake attempts.
type testServer struct {
	*httptest.Server
	attempts atomic.Int64
}

func newTestServer(t *testing.T, echo bool, reject func(n int64) bool) *testServer {
	t.Helper()
	ts := &testServer{}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.attempts.Add(1)
		if reject != nil && reject(n) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if echo {
				if err := conn.WriteMessage(mt, msg); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestRunPrintsSummary(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var stdout, stderr bytes.Buffer

	err := run([]string{"-a", ts.wsURL(), "-c", "3", "-m", "10"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v, stderr = %s", err, stderr.String())
	}

	out := stdout.String()
	for _, want := range []string{"Ok:                30", "Err:               0", "Total:             30", "Connections:       3"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunEchoPrintsEverySampledFrame(t *testing.T) {
	ts := newTestServer(t, true, nil)
	var stdout, stderr bytes.Buffer

	args := []string{"-a", ts.wsURL(), "-c", "3", "-m", "10", "-s", "1", "--drain-timeout", "5s", "ping"}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v, stderr = %s", err, stderr.String())
	}

	lines := 0
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line == "ping" {
			lines++
		}
	}
	if lines != 30 {
		t.Errorf("printed %d sampled frames, expected 30", lines)
	}
}

func TestRunJSONOutput(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var stdout, stderr bytes.Buffer

	args := []string{"-a", ts.wsURL(), "-c", "2", "-m", "5", "--json-output", "--threshold", "messages:count >= 10"}
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v, stderr = %s", err, stderr.String())
	}

	var doc struct {
		Ok         int64 `json:"ok"`
		Total      int64 `json:"total"`
		Thresholds struct {
			Passed int `json:"passed"`
		} `json:"thresholds"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout.String())
	}
	if doc.Ok != 10 || doc.Total != 10 {
		t.Errorf("ok/total = %d/%d, expected 10/10", doc.Ok, doc.Total)
	}
	if doc.Thresholds.Passed != 1 {
		t.Errorf("passed thresholds = %d, expected 1", doc.Thresholds.Passed)
	}
}

func TestRunMachineReadableOutputKeepsSamplesOffStdout(t *testing.T) {
	for _, format := range []string{"--json-output", "--yaml-output"} {
		t.Run(format, func(t *testing.T) {
			ts := newTestServer(t, true, nil)
			var stdout, stderr bytes.Buffer

			args := []string{"-a", ts.wsURL(), "-c", "2", "-m", "3", "-s", "1", format, "ping"}
			if err := run(args, &stdout, &stderr); err != nil {
				t.Fatalf("run() error = %v, stderr = %s", err, stderr.String())
			}

			var doc struct {
				Ok            int64 `json:"ok" yaml:"ok"`
				FramesSampled int64 `json:"frames_sampled" yaml:"frames_sampled"`
			}
			var err error
			if format == "--json-output" {
				err = json.Unmarshal(stdout.Bytes(), &doc)
			} else {
				err = yaml.Unmarshal(stdout.Bytes(), &doc)
			}
			if err != nil {
				t.Fatalf("stdout is not a single document: %v\n%s", err, stdout.String())
			}
			if doc.Ok != 6 || doc.FramesSampled != 6 {
				t.Errorf("ok/sampled = %d/%d, want 6/6", doc.Ok, doc.FramesSampled)
			}
			if got := strings.Count(stderr.String(), "ping\n"); got != 6 {
				t.Errorf("stderr carries %d sampled lines, want 6:\n%s", got, stderr.String())
			}
		})
	}
}

func TestRunLogsConfigWarnings(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var stdout, stderr bytes.Buffer

	if err := run([]string{"-a", ts.wsURL(), "--rate", "2000"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(stderr.String(), "high per-connection rate configured (2000 msg/s)") {
		t.Errorf("expected rate warning on stderr, got:\n%s", stderr.String())
	}
	if strings.Contains(stdout.String(), "high per-connection rate") {
		t.Error("warning leaked into the report on stdout")
	}
}

func TestRunRejectsInvalidSampleRateBeforeConnecting(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var stdout, stderr bytes.Buffer

	err := run([]string{"-a", ts.wsURL(), "-s", "1.5"}, &stdout, &stderr)
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "resp_sample_rate must be between 0.0 and 1.0") {
		t.Errorf("unexpected message: %v", err)
	}
	if n := ts.attempts.Load(); n != 0 {
		t.Errorf("made %d handshakes, expected none", n)
	}
}

func TestRunRejectsInvalidThresholdBeforeConnecting(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var stdout, stderr bytes.Buffer

	err := run([]string{"-a", ts.wsURL(), "--threshold", "bogus"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected threshold parse error")
	}
	if n := ts.attempts.Load(); n != 0 {
		t.Errorf("made %d handshakes, expected none", n)
	}
}

func TestRunFailingThresholdReturnsError(t *testing.T) {
	ts := newTestServer(t, false, nil)
	var stdout, stderr bytes.Buffer

	err := run([]string{"-a", ts.wsURL(), "-m", "2", "--threshold", "messages:count >= 1000"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 thresholds failed") {
		t.Fatalf("expected threshold failure, got %v", err)
	}
	if !strings.Contains(stdout.String(), "0 of 1 passed") {
		t.Errorf("expected threshold summary in output:\n%s", stdout.String())
	}
}

func TestRunFailFastReturnsSetupError(t *testing.T) {
	ts := newTestServer(t, false, func(int64) bool { return true })
	var stdout, stderr bytes.Buffer

	err := run([]string{"-a", ts.wsURL(), "-c", "2"}, &stdout, &stderr)
	var setupErr *runner.SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("expected SetupError, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no summary, got:\n%s", stdout.String())
	}
}

func TestRunDegradedModeReportsFailedConnections(t *testing.T) {
	ts := newTestServer(t, false, func(n int64) bool { return n == 2 })
	var stdout, stderr bytes.Buffer

	err := run([]string{"-a", ts.wsURL(), "-c", "3", "-m", "4", "--fail-fast=false"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "1 of 3 connections failed") {
		t.Fatalf("expected failed connection error, got %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"Failed to connect: 1 of 3", "Ok:                8", "Err:               4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestMakeHeaders(t *testing.T) {
	got := makeHeaders(map[string]string{
		"Authorization": "Bearer token",
		"X-Custom":      "value",
	})
	if got.Get("Authorization") != "Bearer token" {
		t.Errorf("Authorization = %q, want Bearer token", got.Get("Authorization"))
	}
	if got.Get("X-Custom") != "value" {
		t.Errorf("X-Custom = %q, want value", got.Get("X-Custom"))
	}
	if makeHeaders(nil) != nil {
		t.Error("expected nil header for empty input")
	}
}

func TestHandshakeTimeout(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, -1},
		{5 * time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := handshakeTimeout(tt.in); got != tt.want {
			t.Errorf("handshakeTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToRunnerArrivalModel(t *testing.T) {
	tests := []struct {
		input config.ArrivalModel
		want  runner.ArrivalModel
	}{
		{config.ArrivalModelUniform, runner.ArrivalModelUniform},
		{config.ArrivalModelPoisson, runner.ArrivalModelPoisson},
		{"", runner.ArrivalModelUniform},
	}

	for _, tt := range tests {
		if got := toRunnerArrivalModel(tt.input); got != tt.want {
			t.Errorf("toRunnerArrivalModel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDescribeRunError(t *testing.T) {
	setupErr := &runner.SetupError{Conn: 1, Err: errors.New("bad handshake")}
	if got := describeRunError(setupErr); got != error(setupErr) {
		t.Errorf("SetupError should pass through, got %v", got)
	}

	got := describeRunError(fmt.Errorf("wrapped: %w", context.Canceled))
	if !errors.Is(got, context.Canceled) || !strings.HasPrefix(got.Error(), "run interrupted") {
		t.Errorf("unexpected cancellation error: %v", got)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := newLogger("loud", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := newLogger("debug", &bytes.Buffer{}); err != nil {
		t.Errorf("debug level: %v", err)
	}
}
