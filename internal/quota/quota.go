// Package quota implements the analysis budget gates consulted before any
// taint bookkeeping is performed. When a gate is exhausted, taint operations
// degrade to transparent pass-throughs.
package quota

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Gate is queried before every taint and propagation decision. HasQuota
// reports whether the current unit of work still has analysis budget; Spend
// records that one unit of bookkeeping was performed.
type Gate interface {
	HasQuota() bool
	Spend()
}

// -- Trivial gates --

type unlimited struct{}

func (unlimited) HasQuota() bool { return true }
func (unlimited) Spend()         {}

type exhausted struct{}

func (exhausted) HasQuota() bool { return false }
func (exhausted) Spend()         {}

// Unlimited returns a gate that always grants quota.
func Unlimited() Gate { return unlimited{} }

// Exhausted returns a gate that never grants quota. Scopes created for
// unsampled units use it so every taint call is a no-op.
func Exhausted() Gate { return exhausted{} }

// -- Budget --

// Budget grants a fixed number of taint operations to one analysis unit and
// then shuts off. Safe for concurrent use.
type Budget struct {
	remaining atomic.Int64
}

// NewBudget returns a budget of n operations. A non-positive n yields an
// already-exhausted budget.
func NewBudget(n int) *Budget {
	b := &Budget{}
	b.remaining.Store(int64(n))
	return b
}

// HasQuota reports whether at least one operation remains.
func (b *Budget) HasQuota() bool { return b.remaining.Load() > 0 }

// Spend consumes one operation from the budget.
func (b *Budget) Spend() { b.remaining.Add(-1) }

// Remaining returns the operations left, clamped at zero.
func (b *Budget) Remaining() int {
	if n := b.remaining.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// -- Sampler --

// Sampler decides at unit start whether a unit of work is analyzed at all.
// It wraps a token bucket so that long-running servers analyze a bounded
// number of requests per second regardless of traffic volume.
type Sampler struct {
	limiter *rate.Limiter
}

// NewSampler returns a sampler admitting up to unitsPerSecond analyzed units
// with a burst of one. A non-positive rate admits everything (sampling
// disabled).
func NewSampler(unitsPerSecond float64) *Sampler {
	if unitsPerSecond <= 0 {
		return &Sampler{}
	}
	return &Sampler{limiter: rate.NewLimiter(rate.Limit(unitsPerSecond), 1)}
}

// Sample reports whether the next unit should receive an analysis budget.
func (s *Sampler) Sample() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
