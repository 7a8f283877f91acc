package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes live run metrics in the Prometheus text format. It uses
// its own registry so several runs in one process do not collide.
type Exporter struct {
	registry    *prometheus.Registry
	sent        prometheus.Counter
	failed      prometheus.Counter
	received    prometheus.Counter
	sampled     prometheus.Counter
	established prometheus.Gauge
	latency     prometheus.Histogram
	server      *http.Server
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsbench_messages_sent_total",
			Help: "Messages written without error",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsbench_messages_failed_total",
			Help: "Messages that failed to send",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsbench_frames_received_total",
			Help: "Frames read from the server",
		}),
		sampled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsbench_frames_sampled_total",
			Help: "Frames printed by response samplers",
		}),
		established: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wsbench_connections_established",
			Help: "Connections that completed the handshake",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wsbench_send_latency_seconds",
			Help:    "Time spent writing one message",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20),
		}),
	}
	e.registry.MustRegister(e.sent, e.failed, e.received, e.sampled, e.established, e.latency)
	return e
}

func (e *Exporter) MessageSent(latency time.Duration) {
	e.sent.Inc()
	e.latency.Observe(latency.Seconds())
}

func (e *Exporter) MessageFailed() { e.failed.Inc() }

func (e *Exporter) FrameReceived() { e.received.Inc() }

func (e *Exporter) FrameSampled() { e.sampled.Inc() }

func (e *Exporter) ConnectionEstablished() { e.established.Inc() }

// Handler serves the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr. The listener is
// bound before Serve returns so address errors surface immediately; later
// server failures go to onError, which may be nil.
func (e *Exporter) Serve(addr string, onError func(error)) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && onError != nil {
			onError(err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the HTTP server started by Serve.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}
