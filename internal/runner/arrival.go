package runner

import (
	"context"
	"math"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// ArrivalModel selects how a rate-limited connection spaces its sends.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// pacer delays the next send of one connection.
type pacer interface {
	Wait(ctx context.Context) error
}

// newPacer returns nil when the connection is unthrottled.
func (r *Runner) newPacer(conn int) pacer {
	opt := &r.opt
	if opt.Rate <= 0 {
		return nil
	}
	switch opt.Arrival {
	case ArrivalModelPoisson:
		sample := opt.PoissonSampler
		if sample == nil {
			sample = rand.New(rand.NewSource(opt.RandSeed(conn))).ExpFloat64
		}
		return &poissonArrival{rate: float64(opt.Rate), sample: sample}
	default:
		limiter := opt.LimiterFactory(opt.Rate)
		if limiter == nil {
			return nil
		}
		return limiter
	}
}

// poissonArrival samples exponential gaps so sends approximate a Poisson
// process with the configured mean rate.
type poissonArrival struct {
	rate   float64
	sample func() float64
}

func (p *poissonArrival) Wait(ctx context.Context) error {
	delay := p.nextDelay()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *poissonArrival) nextDelay() time.Duration {
	if p.rate <= 0 || p.sample == nil {
		return 0
	}
	delay := float64(time.Second) * p.sample() / p.rate
	if delay > math.MaxInt64 {
		delay = math.MaxInt64
	}
	return time.Duration(delay)
}

var _ pacer = (*rate.Limiter)(nil)
