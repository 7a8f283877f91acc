package metrics

import "sync/atomic"

// SuccessCounter counts messages that were handed to the connection without
// error. Only the final total matters, so plain atomic adds are enough.
type SuccessCounter struct {
	n atomic.Int64
}

// Inc records one successful send and returns the new total.
func (c *SuccessCounter) Inc() int64 {
	return c.n.Add(1)
}

// Load returns the current total.
func (c *SuccessCounter) Load() int64 {
	return c.n.Load()
}

// Counters holds the run-wide values that are updated concurrently and read
// by live views while a run is in progress.
type Counters struct {
	Success     SuccessCounter
	Failed      atomic.Int64
	Received    atomic.Int64
	Sampled     atomic.Int64
	Established atomic.Int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Success     int64
	Failed      int64
	Received    int64
	Sampled     int64
	Established int64
}

// Snapshot copies the current values. Individual fields are read atomically
// but not as a group.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Success:     c.Success.Load(),
		Failed:      c.Failed.Load(),
		Received:    c.Received.Load(),
		Sampled:     c.Sampled.Load(),
		Established: c.Established.Load(),
	}
}
