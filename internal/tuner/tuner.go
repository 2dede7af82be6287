// Package tuner runs the background control loop that adapts the pool's
// admission ceiling to observed error and latency signals.
package tuner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Wq5881898/Scraper/internal/stats"
	"github.com/Wq5881898/Scraper/pkg/telemetry"
)

const (
	// DefaultInterval is how often the tuner evaluates its policies.
	DefaultInterval = 5 * time.Second
	// DefaultWindow is the trailing window each evaluation aggregates over.
	DefaultWindow = 15 * time.Second
)

// Snapshotter provides windowed outcome aggregates. Satisfied by the
// stats collector.
type Snapshotter interface {
	Snapshot(window time.Duration) stats.Snapshot
}

type state int

const (
	stateStopped state = iota
	stateRunning
)

// Tuner periodically snapshots the metrics collector and applies the first
// matching policy. One adjustment at most per cycle.
type Tuner struct {
	metrics  Snapshotter
	limiter  Limiter
	policies []Policy
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	state state
}

// New builds a Tuner. Zero interval or window fall back to the defaults;
// nil policies fall back to DefaultPolicies.
func New(metrics Snapshotter, limiter Limiter, policies []Policy, interval, window time.Duration, logger *slog.Logger) *Tuner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Tuner{
		metrics:  metrics,
		limiter:  limiter,
		policies: policies,
		interval: interval,
		window:   window,
		logger:   logger,
	}
}

// Run evaluates once immediately, then on every interval until ctx is
// cancelled. Returns immediately if the tuner is already running.
func (t *Tuner) Run(ctx context.Context) {
	t.mu.Lock()
	if t.state == stateRunning {
		t.mu.Unlock()
		return
	}
	t.state = stateRunning
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.state = stateStopped
		t.mu.Unlock()
	}()

	t.logger.Info("tuner started",
		slog.Duration("interval", t.interval),
		slog.Duration("window", t.window),
	)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tuner stopped")
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// Running reports whether the evaluation loop is active.
func (t *Tuner) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateRunning
}

// tick takes one snapshot and applies the first matching policy.
func (t *Tuner) tick() {
	snap := t.metrics.Snapshot(t.window)
	for _, pol := range t.policies {
		if !pol.ShouldApply(snap) {
			continue
		}
		old := t.limiter.Limit()
		pol.Apply(t.limiter, snap)
		current := t.limiter.Limit()

		telemetry.TunerAdjustmentsTotal.WithLabelValues(pol.Name()).Inc()
		t.logger.Info("concurrency adjustment",
			slog.String("policy", pol.Name()),
			slog.Int("old_limit", old),
			slog.Int("new_limit", current),
			slog.Duration("window", snap.Window),
			slog.Int("total_requests", snap.TotalRequests),
			slog.Int("timeout_count", snap.TimeoutCount),
			slog.Int("http_429_count", snap.HTTP429Count),
			slog.Int("http_403_count", snap.HTTP403Count),
			slog.Float64("avg_latency_ms", snap.AvgLatencyMS),
			slog.Bool("ban_suspected", snap.BanSuspected),
		)
		return
	}
}
