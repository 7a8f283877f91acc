// Package runner is the benchmark engine of wsbench.
//
// A run opens Connections WebSocket connections, waits at a start barrier
// until every handshake has finished, then has each connection send the same
// text payload Messages times. Only the send window is timed, so handshake
// cost never inflates the message rate.
//
// # Lifecycle
//
// Every connection is driven by one worker goroutine and, when SampleRate is
// above zero, one sampler goroutine reading the inbound half:
//
//	handshake -> start sampler -> barrier -> send x Messages -> flush
//
// The controller joins all workers, lets samplers drain for up to
// DrainTimeout, interrupts the rest, and only then closes the connections.
//
// # Failures
//
// A failed send is counted and the worker keeps going. A failed handshake
// returns a [*SetupError] when FailFast is set; otherwise the connection is
// reported as failed and its messages count as errors. A failed flush
// returns a [*FlushError]. Both abort the run.
//
// # Pacing
//
// With Rate set, each connection is throttled on its own, either with
// uniform spacing ([ArrivalModelUniform]) or exponential gaps
// ([ArrivalModelPoisson]).
package runner
