// Package stats aggregates task outcomes over sliding time windows.
package stats

import (
	"sync"
	"time"

	"github.com/Wq5881898/Scraper/internal/domain"
)

const defaultCapacity = 10000

// Event is a recorded outcome plus the wall-clock time it was observed.
// Events are appended once and never mutated.
type Event struct {
	At     time.Time     `json:"timestamp"`
	Result domain.Result `json:"result"`
}

// Snapshot is an immutable aggregate over the events inside one trailing
// window. Computed fresh on every query, never cached.
type Snapshot struct {
	Window         time.Duration `json:"window"`
	TotalRequests  int           `json:"total_requests"`
	SuccessCount   int           `json:"success_count"`
	TimeoutCount   int           `json:"timeout_count"`
	ConnErrorCount int           `json:"conn_error_count"`
	HTTP429Count   int           `json:"http_429_count"`
	HTTP403Count   int           `json:"http_403_count"`
	BanSuspected   bool          `json:"ban_suspected"`
	AvgLatencyMS   float64       `json:"avg_latency_ms"`
	TakenAt        time.Time     `json:"taken_at"`
}

// Collector is a thread-safe, bounded log of outcome events. The ring keeps
// the most recent capacity events; writes evict the oldest once full.
type Collector struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
	now  func() time.Time
}

// New returns a Collector retaining the default 10,000 most recent events.
func New() *Collector {
	return NewWithCapacity(defaultCapacity)
}

// NewWithCapacity returns a Collector retaining at most capacity events.
func NewWithCapacity(capacity int) *Collector {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Collector{
		buf: make([]Event, capacity),
		now: time.Now,
	}
}

// Record appends the result with the current timestamp.
func (c *Collector) Record(res domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[c.next] = Event{At: c.now(), Result: res}
	c.next++
	if c.next == len(c.buf) {
		c.next = 0
		c.full = true
	}
}

// Snapshot aggregates the events recorded within the trailing window.
// Matching events are copied out under the lock and counted outside it, so
// recording workers are never stalled behind aggregation.
func (c *Collector) Snapshot(window time.Duration) Snapshot {
	now := c.now()
	cutoff := now.Add(-window)

	c.mu.Lock()
	matched := make([]Event, 0, c.len())
	c.scan(func(ev Event) {
		if !ev.At.Before(cutoff) {
			matched = append(matched, ev)
		}
	})
	c.mu.Unlock()

	snap := Snapshot{Window: window, TakenAt: now}
	var latencySum int64
	for _, ev := range matched {
		r := ev.Result
		snap.TotalRequests++
		if r.Success {
			snap.SuccessCount++
		}
		switch r.ErrorClass {
		case domain.ErrClassTimeout:
			snap.TimeoutCount++
		case domain.ErrClassConnection:
			snap.ConnErrorCount++
		}
		switch r.StatusCode {
		case 429:
			snap.HTTP429Count++
		case 403:
			snap.HTTP403Count++
		}
		latencySum += r.LatencyMS
	}
	if snap.TotalRequests > 0 {
		snap.AvgLatencyMS = float64(latencySum) / float64(snap.TotalRequests)
	}
	snap.BanSuspected = snap.HTTP403Count >= 3
	return snap
}

// Export returns a copy of every retained event, oldest first.
func (c *Collector) Export() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, 0, c.len())
	c.scan(func(ev Event) {
		out = append(out, ev)
	})
	return out
}

// len reports the number of retained events. Caller holds the lock.
func (c *Collector) len() int {
	if c.full {
		return len(c.buf)
	}
	return c.next
}

// scan visits retained events oldest first. Caller holds the lock.
func (c *Collector) scan(visit func(Event)) {
	if c.full {
		for i := c.next; i < len(c.buf); i++ {
			visit(c.buf[i])
		}
	}
	for i := 0; i < c.next; i++ {
		visit(c.buf[i])
	}
}
