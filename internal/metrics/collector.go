package metrics

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyRecorder tracks send latencies for one worker. It is not safe for
// concurrent use; each worker owns its own and the controller merges them.
type LatencyRecorder struct {
	hist *hdrhistogram.Histogram
}

// LatencyStats summarises a LatencyRecorder.
type LatencyStats struct {
	Count  int64         `json:"count" yaml:"count"`
	Min    time.Duration `json:"-" yaml:"-"`
	Max    time.Duration `json:"-" yaml:"-"`
	Mean   time.Duration `json:"-" yaml:"-"`
	P50    time.Duration `json:"-" yaml:"-"`
	P90    time.Duration `json:"-" yaml:"-"`
	P99    time.Duration `json:"-" yaml:"-"`
	MinMs  float64       `json:"min_ms" yaml:"min_ms"`
	MaxMs  float64       `json:"max_ms" yaml:"max_ms"`
	MeanMs float64       `json:"mean_ms" yaml:"mean_ms"`
	P50Ms  float64       `json:"p50_ms" yaml:"p50_ms"`
	P90Ms  float64       `json:"p90_ms" yaml:"p90_ms"`
	P99Ms  float64       `json:"p99_ms" yaml:"p99_ms"`
}

func NewLatencyRecorder() *LatencyRecorder {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &LatencyRecorder{hist: hdrhistogram.New(1, 60_000_000, 3)}
}

// Record adds one latency sample, clamped to the trackable range.
func (r *LatencyRecorder) Record(latency time.Duration) {
	us := latency.Microseconds()
	if us < r.hist.LowestTrackableValue() {
		us = r.hist.LowestTrackableValue()
	}
	if us > r.hist.HighestTrackableValue() {
		us = r.hist.HighestTrackableValue()
	}
	_ = r.hist.RecordValue(us)
}

// Merge folds other into r.
func (r *LatencyRecorder) Merge(other *LatencyRecorder) {
	if other == nil {
		return
	}
	r.hist.Merge(other.hist)
}

// Stats computes the summary.
func (r *LatencyRecorder) Stats() LatencyStats {
	if r == nil || r.hist.TotalCount() == 0 {
		return LatencyStats{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }

	stats := LatencyStats{
		Count: r.hist.TotalCount(),
		Min:   us(r.hist.Min()),
		Max:   us(r.hist.Max()),
		Mean:  time.Duration(r.hist.Mean() * float64(time.Microsecond)),
		P50:   us(r.hist.ValueAtQuantile(50)),
		P90:   us(r.hist.ValueAtQuantile(90)),
		P99:   us(r.hist.ValueAtQuantile(99)),
	}
	stats.MinMs = toMillis(stats.Min)
	stats.MaxMs = toMillis(stats.Max)
	stats.MeanMs = toMillis(stats.Mean)
	stats.P50Ms = toMillis(stats.P50)
	stats.P90Ms = toMillis(stats.P90)
	stats.P99Ms = toMillis(stats.P99)
	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
