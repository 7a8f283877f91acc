package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/wsbench/internal/metrics"
)

// syncBuffer guards a bytes.Buffer written by the reporter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatProgress(t *testing.T) {
	line := formatProgress(metrics.Snapshot{Success: 200, Failed: 3, Established: 4}, 5, 2*time.Second)
	for _, want := range []string{"\rConnected: 4/5", "Ok: 200", "Err: 3", "Rate: 100.0 msg/s"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "Received") {
		t.Errorf("line %q should omit responses when none arrived", line)
	}

	line = formatProgress(metrics.Snapshot{Received: 10, Sampled: 2}, 1, 0)
	if !strings.Contains(line, "Received: 10 | Sampled: 2") {
		t.Errorf("line %q missing response counts", line)
	}
	if !strings.Contains(line, "Rate: 0.0") {
		t.Errorf("line %q should not divide by zero elapsed", line)
	}
}

func TestProgressReporterBasic(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&metrics.Counters{}, 1, 100*time.Millisecond, &buf)
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}
	// Stop without Start is a no-op.
	reporter.Stop()
	if buf.Len() != 0 {
		t.Errorf("output = %q, want none", buf.String())
	}
}

func TestProgressReporterWritesUpdates(t *testing.T) {
	counters := &metrics.Counters{}
	counters.Success.Inc()
	counters.Established.Add(1)

	var buf syncBuffer
	reporter := NewProgressReporter(counters, 1, 20*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()

	time.Sleep(100 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "Connected: 1/1") || !strings.Contains(out, "Ok: 1") {
		t.Errorf("output = %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Stop should end the status line")
	}
}
