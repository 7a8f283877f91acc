package runner

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	ws "github.com/torosent/wsbench/internal/websocket"
)

// samplerGroup supervises every sampler of a run: they share one context and
// the controller joins them through wg.
type samplerGroup struct {
	ctx context.Context
	wg  sync.WaitGroup
	opt *Options
	out *lineWriter
}

func newSamplerGroup(ctx context.Context, opt *Options) *samplerGroup {
	return &samplerGroup{
		ctx: ctx,
		opt: opt,
		out: &lineWriter{w: opt.SampleOutput},
	}
}

func (g *samplerGroup) spawn(conn int, in Receiver) {
	s := &sampler{
		conn:  conn,
		in:    in,
		rate:  g.opt.SampleRate,
		rnd:   rand.New(rand.NewSource(g.opt.RandSeed(conn))),
		group: g,
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		s.run(g.ctx)
	}()
}

// wait blocks until every sampler has returned.
func (g *samplerGroup) wait() {
	g.wg.Wait()
}

// sampler reads one connection's inbound half and prints a random subset of
// its text frames.
type sampler struct {
	conn  int
	in    Receiver
	rate  float64
	rnd   *rand.Rand
	group *samplerGroup
}

func (s *sampler) run(ctx context.Context) {
	opt := s.group.opt
	stop := context.AfterFunc(ctx, func() {
		if err := s.in.Interrupt(); err != nil {
			opt.Logger.Debug("sampler interrupt failed", zap.Int("conn", s.conn), zap.Error(err))
		}
	})
	defer stop()

	for {
		msg, err := s.in.Receive()
		if err != nil {
			if ctx.Err() == nil && !ws.IsNormalClose(err) {
				opt.Logger.Debug("sampler read failed", zap.Int("conn", s.conn), zap.Error(err))
			}
			return
		}
		opt.Counters.Received.Add(1)
		opt.Observer.FrameReceived()

		if !msg.IsText() || !s.keep() {
			continue
		}
		line := string(msg.Data)
		if opt.SampleFormat != nil {
			var ok bool
			if line, ok = opt.SampleFormat(msg.Data); !ok {
				continue
			}
		}
		if err := s.group.out.WriteLine(line); err != nil {
			opt.Logger.Debug("sample output failed", zap.Int("conn", s.conn), zap.Error(err))
			continue
		}
		opt.Counters.Sampled.Add(1)
		opt.Observer.FrameSampled()
	}
}

// keep runs one Bernoulli trial with probability rate.
func (s *sampler) keep() bool {
	if s.rate >= 1 {
		return true
	}
	return s.rnd.Float64() < s.rate
}

// lineWriter serialises whole lines from several samplers onto one writer.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) WriteLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintln(l.w, line)
	return err
}
