package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 30 * time.Second
	closeFrameTimeout       = 5 * time.Second
)

// Message represents a WebSocket frame read from the server.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// IsText reports whether the frame carries text.
func (m Message) IsText() bool {
	return m.Type == websocket.TextMessage
}

// Payload is a text frame prepared once and written many times.
type Payload struct {
	prepared *websocket.PreparedMessage
	data     []byte
}

// NewTextPayload prepares data for repeated sends as a text frame.
func NewTextPayload(data []byte) (*Payload, error) {
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return nil, fmt.Errorf("prepare payload: %w", err)
	}
	return &Payload{prepared: pm, data: data}, nil
}

// Len returns the payload size in bytes.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.data)
}

// Config configures the WebSocket dialer.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration // zero selects the 30s default, negative disables it
	WriteTimeout     time.Duration // per-frame write deadline, zero means none

	// InjectHeaders, when set, may add per-dial headers such as trace context.
	InjectHeaders func(ctx context.Context, h http.Header)
}

// Dialer opens WebSocket connections to one target.
type Dialer struct {
	url          string
	headers      http.Header
	timeout      time.Duration
	writeTimeout time.Duration
	inject       func(ctx context.Context, h http.Header)
	dialer       *websocket.Dialer
}

// NewDialer creates a dialer with the given configuration.
func NewDialer(cfg Config) *Dialer {
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}
	if timeout < 0 {
		timeout = 0
	}

	return &Dialer{
		url:          cfg.URL,
		headers:      cfg.Headers,
		timeout:      timeout,
		writeTimeout: cfg.WriteTimeout,
		inject:       cfg.InjectHeaders,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
			Proxy:            http.ProxyFromEnvironment,
		},
	}
}

// Dial performs the opening handshake.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	headers := d.headers
	if d.inject != nil {
		headers = d.headers.Clone()
		if headers == nil {
			headers = http.Header{}
		}
		d.inject(ctx, headers)
	}

	conn, resp, err := d.dialer.DialContext(ctx, d.url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	return &Conn{
		conn: conn,
		out:  &Outbound{conn: conn, writeTimeout: d.writeTimeout},
		in:   &Inbound{conn: conn},
	}, nil
}

// Conn is an established connection split into an outbound and an inbound
// half. Each half may be used by one goroutine, concurrently with the other.
type Conn struct {
	conn      *websocket.Conn
	out       *Outbound
	in        *Inbound
	closeOnce sync.Once
	closeErr  error
}

// Outbound returns the sending half.
func (c *Conn) Outbound() *Outbound { return c.out }

// Inbound returns the receiving half.
func (c *Conn) Inbound() *Inbound { return c.in }

// Close tears down the underlying network connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Outbound is the sending half of a connection.
type Outbound struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	broken       error
}

// Send writes one payload frame. After the first failure every later send
// fails too, because the connection cannot recover from a broken write.
func (o *Outbound) Send(p *Payload) error {
	if o.writeTimeout > 0 {
		if err := o.conn.SetWriteDeadline(time.Now().Add(o.writeTimeout)); err != nil {
			o.broken = err
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := o.conn.WritePreparedMessage(p.prepared); err != nil {
		o.broken = err
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Flush ends the outbound stream with a normal-closure close frame, pushing
// out anything still queued ahead of it. A connection whose earlier send
// already failed has nothing left to deliver, so Flush returns nil for it.
func (o *Outbound) Flush(ctx context.Context) error {
	if o.broken != nil {
		return nil
	}
	deadline := time.Now().Add(closeFrameTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	err := o.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		o.broken = err
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Inbound is the receiving half of a connection.
type Inbound struct {
	conn *websocket.Conn
}

// Receive blocks until the next data frame arrives or the connection fails.
func (i *Inbound) Receive() (Message, error) {
	msgType, data, err := i.conn.ReadMessage()
	if err != nil {
		return Message{}, fmt.Errorf("read message: %w", err)
	}
	return Message{Type: msgType, Data: data}, nil
}

// Interrupt unblocks a pending Receive. The inbound half is unusable
// afterwards. It may be called from any goroutine: the deadline is set on the
// network connection, which allows concurrent use.
func (i *Inbound) Interrupt() error {
	return i.conn.NetConn().SetReadDeadline(time.Now())
}

// IsNormalClose reports whether err is the peer ending the stream cleanly.
func IsNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
}
