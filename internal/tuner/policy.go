package tuner

import (
	"sync/atomic"

	"github.com/Wq5881898/Scraper/internal/stats"
)

// Limiter is the adjustable admission ceiling the policies act on.
// Satisfied by the bounded pool.
type Limiter interface {
	SetLimit(n int) (old, current int)
	Limit() int
}

// Policy inspects a metrics snapshot and optionally adjusts the ceiling.
// Policies are evaluated in priority order; only the first whose condition
// holds is applied per tuning cycle.
type Policy interface {
	Name() string
	ShouldApply(snap stats.Snapshot) bool
	Apply(limiter Limiter, snap stats.Snapshot)
}

// ReducePolicy lowers the ceiling by one when rate-limiting or timeouts
// cross their thresholds.
type ReducePolicy struct {
	Threshold429     float64
	ThresholdTimeout float64
	MinLimit         int
}

// NewReducePolicy returns a ReducePolicy with the stock thresholds: 5%
// HTTP 429, 10% timeouts, floor of 1.
func NewReducePolicy() *ReducePolicy {
	return &ReducePolicy{Threshold429: 0.05, ThresholdTimeout: 0.10, MinLimit: 1}
}

func (p *ReducePolicy) Name() string { return "reduce_concurrency" }

func (p *ReducePolicy) ShouldApply(snap stats.Snapshot) bool {
	if snap.TotalRequests == 0 {
		return false
	}
	total := float64(snap.TotalRequests)
	rate429 := float64(snap.HTTP429Count) / total
	rateTimeout := float64(snap.TimeoutCount) / total
	return rate429 >= p.Threshold429 || rateTimeout >= p.ThresholdTimeout
}

func (p *ReducePolicy) Apply(limiter Limiter, snap stats.Snapshot) {
	next := limiter.Limit() - 1
	if next < p.MinLimit {
		next = p.MinLimit
	}
	limiter.SetLimit(next)
}

// RotateProxyPolicy is the extension point for switching egress identity
// when a ban is suspected. No proxy pool is wired yet, so applying it only
// counts the activation.
type RotateProxyPolicy struct {
	activations atomic.Int64
}

func NewRotateProxyPolicy() *RotateProxyPolicy { return &RotateProxyPolicy{} }

func (p *RotateProxyPolicy) Name() string { return "rotate_proxy" }

func (p *RotateProxyPolicy) ShouldApply(snap stats.Snapshot) bool {
	return snap.BanSuspected
}

func (p *RotateProxyPolicy) Apply(limiter Limiter, snap stats.Snapshot) {
	p.activations.Add(1)
}

// Activations reports how many times the policy has fired.
func (p *RotateProxyPolicy) Activations() int64 {
	return p.activations.Load()
}

// IncreasePolicy raises the ceiling by one while the timeout rate stays
// below its threshold.
type IncreasePolicy struct {
	ThresholdTimeout float64
	MaxLimit         int
}

// NewIncreasePolicy returns an IncreasePolicy with the stock settings:
// under 2% timeouts, ceiling capped at 20.
func NewIncreasePolicy() *IncreasePolicy {
	return &IncreasePolicy{ThresholdTimeout: 0.02, MaxLimit: 20}
}

func (p *IncreasePolicy) Name() string { return "increase_concurrency" }

func (p *IncreasePolicy) ShouldApply(snap stats.Snapshot) bool {
	if snap.TotalRequests == 0 {
		return false
	}
	return float64(snap.TimeoutCount)/float64(snap.TotalRequests) < p.ThresholdTimeout
}

func (p *IncreasePolicy) Apply(limiter Limiter, snap stats.Snapshot) {
	next := limiter.Limit() + 1
	if next > p.MaxLimit {
		next = p.MaxLimit
	}
	limiter.SetLimit(next)
}

// DefaultPolicies returns the stock policy chain in priority order:
// reduce first, then proxy rotation, then increase.
func DefaultPolicies() []Policy {
	return []Policy{
		NewReducePolicy(),
		NewRotateProxyPolicy(),
		NewIncreasePolicy(),
	}
}
