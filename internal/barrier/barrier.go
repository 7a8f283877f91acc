// Package barrier provides a one-shot rendezvous for a fixed number of goroutines.
package barrier

import (
	"context"
	"errors"
	"sync"
)

// ErrTooManyParties is returned when more goroutines arrive than the barrier was built for.
var ErrTooManyParties = errors.New("barrier: more parties arrived than expected")

// Barrier releases every waiter at once, after the configured number of
// parties have arrived. It cannot be reused.
type Barrier struct {
	parties int

	mu      sync.Mutex
	arrived int
	release chan struct{}
}

// New creates a barrier for the given number of parties. Values below one are
// treated as one.
func New(parties int) *Barrier {
	if parties < 1 {
		parties = 1
	}
	return &Barrier{
		parties: parties,
		release: make(chan struct{}),
	}
}

// Wait registers the caller as arrived and blocks until all parties have
// arrived or ctx is done. An arrival that is abandoned through ctx still
// counts towards the total.
func (b *Barrier) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.arrived++
	switch {
	case b.arrived == b.parties:
		close(b.release)
	case b.arrived > b.parties:
		b.mu.Unlock()
		return ErrTooManyParties
	}
	b.mu.Unlock()

	// A released barrier wins over a cancelled context.
	select {
	case <-b.release:
		return nil
	default:
	}

	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
