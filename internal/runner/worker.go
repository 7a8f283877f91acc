package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/torosent/wsbench/internal/barrier"
	"github.com/torosent/wsbench/internal/metrics"
	"github.com/torosent/wsbench/internal/tracing"
)

// workerResult is what a worker hands back to the controller. Nothing in it
// is shared with other goroutines.
type workerResult struct {
	conn        int
	established bool
	connectErr  error
	ok          int
	errors      metrics.ErrorHistogram
	latency     *metrics.LatencyRecorder
}

// runWorker owns connection id from handshake to flush. The connection is
// published in conns[id] for the controller to close once samplers are done.
func (r *Runner) runWorker(ctx context.Context, id int, start *barrier.Barrier, samplers *samplerGroup, conns []Connection, results chan<- workerResult) error {
	opt := &r.opt
	ctx, span := tracing.StartConnectionSpan(ctx, opt.Tracer, id, opt.Address)
	res := workerResult{conn: id}

	conn, err := opt.Dialer.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			tracing.EndSpan(span, ctx.Err())
			return ctx.Err()
		}
		setupErr := &SetupError{Conn: id, Err: err}
		tracing.EndSpan(span, setupErr, attribute.Bool("wsbench.established", false))
		if opt.FailFast {
			return setupErr
		}
		opt.Logger.Warn("connection failed to establish", zap.Int("conn", id), zap.Error(err))
		res.connectErr = err
		results <- res
		// Still a barrier party, otherwise the others would never start.
		return start.Wait(ctx)
	}
	conns[id] = conn
	res.established = true
	opt.Counters.Established.Add(1)
	opt.Observer.ConnectionEstablished()

	if opt.SampleRate > 0 && conn.In != nil {
		samplers.spawn(id, conn.In)
	}

	if err := start.Wait(ctx); err != nil {
		tracing.EndSpan(span, err)
		return err
	}

	if err := r.sendLoop(ctx, conn.Out, &res); err != nil {
		tracing.EndSpan(span, err, attribute.Int("wsbench.ok", res.ok))
		return err
	}

	tracing.EndSpan(span, nil,
		attribute.Bool("wsbench.established", true),
		attribute.Int("wsbench.ok", res.ok),
		attribute.Int("wsbench.failed", opt.Messages-res.ok),
	)
	results <- res
	return nil
}

// sendLoop makes exactly opt.Messages attempts, in order, then flushes.
// Individual send failures are counted and the loop carries on.
func (r *Runner) sendLoop(ctx context.Context, out Sender, res *workerResult) error {
	opt := &r.opt
	pace := r.newPacer(res.conn)
	res.latency = metrics.NewLatencyRecorder()
	if opt.LogErrors {
		res.errors = metrics.ErrorHistogram{}
	}

	for i := 0; i < opt.Messages; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pace != nil {
			if err := pace.Wait(ctx); err != nil {
				return err
			}
		}

		begin := time.Now()
		err := out.Send(opt.Payload)
		latency := time.Since(begin)
		if err != nil {
			opt.Counters.Failed.Add(1)
			opt.Observer.MessageFailed()
			if res.errors != nil {
				res.errors.Record(err)
			}
			continue
		}
		opt.Counters.Success.Inc()
		opt.Observer.MessageSent(latency)
		res.latency.Record(latency)
		res.ok++
	}

	if err := out.Flush(ctx); err != nil {
		return &FlushError{Conn: res.conn, Err: err}
	}
	return nil
}
