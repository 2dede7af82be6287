// Package pacer serialises task dispatch to a steady maximum rate.
package pacer

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces calls evenly at a configured rate. All pacing state is the
// single next-allowed timestamp guarded by one mutex; the sleep itself
// happens outside the lock so concurrent callers wait in parallel on their
// reserved slots.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// New returns a Pacer allowing callsPerSecond dispatches per second.
// A rate of zero (or below) disables pacing entirely.
func New(callsPerSecond float64) *Pacer {
	p := &Pacer{}
	if callsPerSecond > 0 {
		p.interval = time.Duration(float64(time.Second) / callsPerSecond)
	}
	return p
}

// Acquire blocks until the next dispatch is permitted, then advances the
// next-allowed time by one interval. Returns immediately when pacing is
// disabled. A cancelled ctx ends the wait early; the slot already reserved
// is forfeited, never re-issued.
func (p *Pacer) Acquire(ctx context.Context) {
	if p.interval <= 0 {
		return
	}

	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.interval)
	p.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
