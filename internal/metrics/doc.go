// Package metrics aggregates the results of a WebSocket load run.
//
// # Counters
//
// [SuccessCounter] is the only value every worker writes to. It is an atomic
// integer and never exceeds connections × messages. [Counters] bundles it with
// the other live values (failures, frames received and sampled, established
// connections) that progress views poll while a run is in flight.
//
// # Per-worker state
//
// Each worker owns an [ErrorHistogram] and a [LatencyRecorder]. Neither is
// safe for concurrent use. Workers hand them to the controller once their send
// loop is over, and the controller merges them:
//
//	merged := metrics.ErrorHistogram{}
//	for res := range results {
//		merged.Merge(res.Errors)
//		latency.Merge(res.Latency)
//	}
//
// # Report
//
// [BuildReport] is a pure function from [RunTotals] to [Report]:
//
//	elapsed    = end - start
//	err        = connections*messages - ok
//	rate       = ok / elapsed
//	throughput = rate * payloadBytes * 8 / 1e6   (Mbit/s)
//
// # Prometheus
//
// [Exporter] mirrors the live counters into a private Prometheus registry and
// can serve them on /metrics while the run is going.
package metrics
