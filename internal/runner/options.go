package runner

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/wsbench/internal/extractor"
	"github.com/torosent/wsbench/internal/metrics"
	ws "github.com/torosent/wsbench/internal/websocket"
)

// Sender is the outbound half of a connection. Exactly one worker uses it.
type Sender interface {
	Send(p *ws.Payload) error
	Flush(ctx context.Context) error
}

// Receiver is the inbound half of a connection. Exactly one sampler uses it.
// Interrupt must be safe to call from any goroutine.
type Receiver interface {
	Receive() (ws.Message, error)
	Interrupt() error
}

// Connection is one established WebSocket, split into its halves.
type Connection struct {
	Out    Sender
	In     Receiver
	Closer io.Closer
}

// Dialer opens one connection per call.
type Dialer interface {
	Dial(ctx context.Context) (Connection, error)
}

// Observer receives live events from workers and samplers. Implementations
// must be safe for concurrent use.
type Observer interface {
	MessageSent(latency time.Duration)
	MessageFailed()
	FrameReceived()
	FrameSampled()
	ConnectionEstablished()
}

// Options configure the Runner.
type Options struct {
	Address        string                      // target URI, used for reporting and tracing
	Connections    int                         // concurrent connections (>= 1)
	Messages       int                         // messages per connection (>= 1)
	Payload        *ws.Payload                 // text frame sent by every worker (required)
	LogErrors      bool                        // keep per-connection error histograms
	SampleRate     float64                     // probability of printing an inbound frame, 0 disables samplers
	SampleFormat   extractor.Func              // optional transformation of sampled frames
	SampleOutput   io.Writer                   // destination for sampled frames (default io.Discard)
	Rate           int                         // messages per second per connection (0 means unlimited)
	Arrival        ArrivalModel                // spacing of rate-limited sends (default uniform)
	DrainTimeout   time.Duration               // how long samplers may keep reading after the send window
	FailFast       bool                        // abort the run on the first handshake failure
	Dialer         Dialer                      // connection factory (required)
	Counters       *metrics.Counters           // shared live counters (allocated when nil)
	Observer       Observer                    // optional live event sink
	Logger         *zap.Logger                 // diagnostics (no-op when nil)
	Tracer         trace.Tracer                // optional tracer
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	RandSeed       func(conn int) int64        // optional deterministic sampling for tests
	PoissonSampler func() float64              // optional injection for tests
}

func (o *Options) normalize() {
	if o.Connections <= 0 {
		o.Connections = 1
	}
	if o.Messages <= 0 {
		o.Messages = 1
	}
	if o.SampleRate < 0 {
		o.SampleRate = 0
	}
	if o.SampleRate > 1 {
		o.SampleRate = 1
	}
	if o.Rate < 0 {
		o.Rate = 0
	}
	if o.Arrival == "" {
		o.Arrival = ArrivalModelUniform
	}
	if o.DrainTimeout < 0 {
		o.DrainTimeout = 0
	}
	if o.SampleOutput == nil {
		o.SampleOutput = io.Discard
	}
	if o.Counters == nil {
		o.Counters = &metrics.Counters{}
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("wsbench")
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
	if o.RandSeed == nil {
		o.RandSeed = func(conn int) int64 {
			return time.Now().UnixNano() + int64(conn)
		}
	}
}

type nopObserver struct{}

func (nopObserver) MessageSent(time.Duration) {}
func (nopObserver) MessageFailed()            {}
func (nopObserver) FrameReceived()            {}
func (nopObserver) FrameSampled()             {}
func (nopObserver) ConnectionEstablished()    {}

// WebSocketDialer adapts a websocket.Dialer to the runner's Dialer.
type WebSocketDialer struct {
	Dialer *ws.Dialer
}

func (d WebSocketDialer) Dial(ctx context.Context) (Connection, error) {
	conn, err := d.Dialer.Dial(ctx)
	if err != nil {
		return Connection{}, err
	}
	return Connection{Out: conn.Outbound(), In: conn.Inbound(), Closer: conn}, nil
}
