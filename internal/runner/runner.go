package runner

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/wsbench/internal/barrier"
	"github.com/torosent/wsbench/internal/metrics"
	"github.com/torosent/wsbench/internal/tracing"
)

// Runner drives one benchmark run: N connections, each sending M copies of
// the payload after every handshake has completed.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Counters exposes the live counters, for progress displays.
func (r *Runner) Counters() *metrics.Counters {
	return r.opt.Counters
}

// Run executes the benchmark. The returned error is a *SetupError when a
// handshake fails in fail-fast mode, a *FlushError when a final flush fails,
// or the context error when ctx is cancelled. On error the report is empty.
func (r *Runner) Run(ctx context.Context) (metrics.Report, error) {
	opt := &r.opt
	runID := ulid.Make().String()
	log := opt.Logger.With(zap.String("run_id", runID))

	ctx, span := tracing.StartRunSpan(ctx, opt.Tracer, runID, opt.Address, opt.Connections, opt.Messages)

	// Samplers outlive the send window, so they hang off ctx rather than the
	// worker group's context.
	samplerCtx, stopSamplers := context.WithCancel(ctx)
	defer stopSamplers()
	samplers := newSamplerGroup(samplerCtx, opt)

	n := opt.Connections
	start := barrier.New(n + 1)
	conns := make([]Connection, n)
	results := make(chan workerResult, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return r.runWorker(gctx, i, start, samplers, conns, results)
		})
	}

	log.Debug("waiting for handshakes", zap.Int("connections", n))
	if err := start.Wait(gctx); err != nil {
		if werr := g.Wait(); werr != nil {
			err = werr
		}
		r.shutdown(samplers, stopSamplers, conns, 0)
		tracing.EndSpan(span, err)
		return metrics.Report{}, err
	}

	runStart := time.Now()
	log.Info("run started",
		zap.String("address", opt.Address),
		zap.Int("connections", n),
		zap.Int("messages", opt.Messages),
		zap.Int64("established", opt.Counters.Established.Load()),
	)

	werr := g.Wait()
	elapsed := time.Since(runStart)
	if werr != nil {
		r.shutdown(samplers, stopSamplers, conns, 0)
		tracing.EndSpan(span, werr)
		return metrics.Report{}, werr
	}
	r.shutdown(samplers, stopSamplers, conns, opt.DrainTimeout)
	close(results)

	totals := metrics.RunTotals{
		RunID:                 runID,
		Address:               opt.Address,
		Connections:           n,
		MessagesPerConnection: opt.Messages,
		PayloadBytes:          opt.Payload.Len(),
		Elapsed:               elapsed,
		Errors:                metrics.ErrorHistogram{},
		ConnectErrors:         metrics.ErrorHistogram{},
		Latency:               metrics.NewLatencyRecorder(),
	}
	for res := range results {
		if res.established {
			totals.Established++
		} else {
			totals.ConnectErrors.Record(res.connectErr)
		}
		totals.Errors.Merge(res.errors)
		totals.Latency.Merge(res.latency)
	}
	totals.Ok = opt.Counters.Success.Load()
	totals.FramesReceived = opt.Counters.Received.Load()
	totals.FramesSampled = opt.Counters.Sampled.Load()

	report := metrics.BuildReport(totals)
	log.Info("run finished",
		zap.Int64("ok", report.Ok),
		zap.Int64("err", report.Err),
		zap.Duration("elapsed", elapsed),
	)
	tracing.EndSpan(span, nil,
		attribute.Int64("wsbench.ok", report.Ok),
		attribute.Int64("wsbench.err", report.Err),
		attribute.Int("wsbench.failed_connections", report.FailedConnections),
	)
	return report, nil
}

// shutdown gives samplers up to drain to finish on their own, interrupts
// whatever is left, waits for all of them and then closes every connection.
func (r *Runner) shutdown(samplers *samplerGroup, stop context.CancelFunc, conns []Connection, drain time.Duration) {
	done := make(chan struct{})
	go func() {
		samplers.wait()
		close(done)
	}()

	if drain > 0 {
		timer := time.NewTimer(drain)
		select {
		case <-done:
		case <-timer.C:
			r.opt.Logger.Debug("drain timeout reached, interrupting samplers", zap.Duration("drain_timeout", drain))
		}
		timer.Stop()
	}
	stop()
	<-done

	for i, c := range conns {
		if c.Closer == nil {
			continue
		}
		if err := c.Closer.Close(); err != nil {
			r.opt.Logger.Debug("close connection", zap.Int("conn", i), zap.Error(err))
		}
	}
}
