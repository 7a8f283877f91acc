package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/wsbench/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	counters    *metrics.Counters
	connections int
	ticker      *time.Ticker
	done        chan struct{}
	finished    chan struct{}
	writer      io.Writer
	active      int32
	start       time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(counters *metrics.Counters, connections int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		counters:    counters,
		connections: connections,
		ticker:      time.NewTicker(interval),
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
		writer:      writer,
		start:       time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the status line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, formatProgress(p.counters.Snapshot(), p.connections, time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

func formatProgress(s metrics.Snapshot, connections int, elapsed time.Duration) string {
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(s.Success) / secs
	}
	line := fmt.Sprintf("\rConnected: %d/%d | Ok: %d | Err: %d | Rate: %.1f msg/s",
		s.Established, connections, s.Success, s.Failed, rate)
	if s.Received > 0 {
		line += fmt.Sprintf(" | Received: %d | Sampled: %d", s.Received, s.Sampled)
	}
	return line
}
