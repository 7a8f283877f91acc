package metrics

import "time"

// RunTotals is everything the controller gathered once all workers joined.
type RunTotals struct {
	RunID                 string
	Address               string
	Connections           int
	Established           int
	MessagesPerConnection int
	PayloadBytes          int
	Ok                    int64
	FramesReceived        int64
	FramesSampled         int64
	Elapsed               time.Duration
	Errors                ErrorHistogram
	ConnectErrors         ErrorHistogram
	Latency               *LatencyRecorder
}

// Report is the final, read-only summary of a run.
type Report struct {
	RunID                 string        `json:"run_id" yaml:"run_id"`
	Address               string        `json:"address" yaml:"address"`
	Connections           int           `json:"connections" yaml:"connections"`
	Established           int           `json:"established" yaml:"established"`
	FailedConnections     int           `json:"failed_connections" yaml:"failed_connections"`
	MessagesPerConnection int           `json:"messages_per_connection" yaml:"messages_per_connection"`
	Ok                    int64         `json:"ok" yaml:"ok"`
	Err                   int64         `json:"err" yaml:"err"`
	Total                 int64         `json:"total" yaml:"total"`
	Elapsed               time.Duration `json:"-" yaml:"-"`
	ElapsedSeconds        float64       `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	PayloadBytes          int           `json:"payload_bytes" yaml:"payload_bytes"`
	RequestsPerSec        float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
	ThroughputMbps        float64       `json:"throughput_mbps" yaml:"throughput_mbps"`
	Latency               LatencyStats  `json:"send_latency" yaml:"send_latency"`
	FramesReceived        int64         `json:"frames_received" yaml:"frames_received"`
	FramesSampled         int64         `json:"frames_sampled" yaml:"frames_sampled"`
	Errors                []ErrorCount  `json:"errors,omitempty" yaml:"errors,omitempty"`
	ConnectErrors         []ErrorCount  `json:"connect_errors,omitempty" yaml:"connect_errors,omitempty"`
}

// BuildReport derives rate and throughput from the run totals.
func BuildReport(t RunTotals) Report {
	total := int64(t.Connections) * int64(t.MessagesPerConnection)
	ok := t.Ok
	if ok > total {
		ok = total
	}

	r := Report{
		RunID:                 t.RunID,
		Address:               t.Address,
		Connections:           t.Connections,
		Established:           t.Established,
		FailedConnections:     t.Connections - t.Established,
		MessagesPerConnection: t.MessagesPerConnection,
		Ok:                    ok,
		Err:                   total - ok,
		Total:                 total,
		Elapsed:               t.Elapsed,
		ElapsedSeconds:        t.Elapsed.Seconds(),
		PayloadBytes:          t.PayloadBytes,
		FramesReceived:        t.FramesReceived,
		FramesSampled:         t.FramesSampled,
	}
	if r.FailedConnections < 0 {
		r.FailedConnections = 0
	}

	if r.ElapsedSeconds > 0 {
		r.RequestsPerSec = float64(ok) / r.ElapsedSeconds
	}
	r.ThroughputMbps = r.RequestsPerSec * float64(t.PayloadBytes) * 8 / 1_000_000

	if t.Latency != nil {
		r.Latency = t.Latency.Stats()
	}
	if len(t.Errors) > 0 {
		r.Errors = t.Errors.Sorted()
	}
	if len(t.ConnectErrors) > 0 {
		r.ConnectErrors = t.ConnectErrors.Sorted()
	}
	return r
}
