package taint

import (
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintflow/api/schemas"
	"github.com/xkilldash9x/taintflow/internal/config"
	"github.com/xkilldash9x/taintflow/internal/quota"
	"github.com/xkilldash9x/taintflow/internal/registry"
)

// Engine holds the process-wide pieces of the taint tracker: configuration,
// the unit sampler, and the handle allocator. It is cheap to share across
// request handlers; all per-request state lives in the Scope.
type Engine struct {
	cfg     config.TaintConfig
	sampler *quota.Sampler
	logger  *zap.Logger
	handles atomic.Uint64
}

// NewEngine creates an engine from configuration. A nil logger is replaced
// with a no-op logger so the engine can never fail a host application on
// logging grounds.
func NewEngine(cfg config.TaintConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		sampler: quota.NewSampler(cfg.SampleRate),
		logger:  logger.Named("taint"),
	}
}

// nextHandle allocates a fresh, process-unique identity. Handles start at 1;
// zero is the "never tainted" sentinel.
func (e *Engine) nextHandle() registry.Handle {
	return registry.Handle(e.handles.Add(1))
}

// capRanges enforces the configured per-value range ceiling. Values derived
// through pathological numbers of operations keep their leftmost provenance
// rather than growing without bound.
func (e *Engine) capRanges(ranges []schemas.TaintRange) []schemas.TaintRange {
	if e.cfg.MaxRanges > 0 && len(ranges) > e.cfg.MaxRanges {
		return ranges[:e.cfg.MaxRanges]
	}
	return ranges
}

// Scope is the analysis unit: one per request (or equivalent unit of work).
// It owns a registry and a quota gate, and every taint-aware operation goes
// through it. NewScope marks unit start; End marks unit end and releases all
// registry entries, which is what bounds the engine's memory over time.
type Scope struct {
	id       string
	engine   *Engine
	registry *registry.Registry
	gate     quota.Gate
	logger   *zap.Logger
	ended    atomic.Bool
}

// NewScope starts an analysis unit. The sampler decides whether this unit is
// analyzed at all; unsampled scopes carry an exhausted gate and behave as
// transparent pass-throughs at near-zero cost.
func (e *Engine) NewScope() *Scope {
	id := uuid.NewString()
	gate := quota.Gate(quota.Exhausted())
	if e.cfg.Enabled && e.sampler.Sample() {
		if e.cfg.UnitBudget > 0 {
			gate = quota.NewBudget(e.cfg.UnitBudget)
		} else {
			gate = quota.Unlimited()
		}
	}
	return &Scope{
		id:       id,
		engine:   e,
		registry: registry.New(),
		gate:     gate,
		logger:   e.logger.With(zap.String("scope_id", id)),
	}
}

// ID returns the scope's unique identifier, used to correlate reports.
func (s *Scope) ID() string { return s.id }

// Sampled reports whether this unit received an analysis budget.
func (s *Scope) Sampled() bool { return s.gate.HasQuota() }

// End closes the analysis unit and drops every registry entry. Safe to call
// more than once. Callers must not run End concurrently with in-flight
// operations on the same scope; in practice it runs after response
// processing completes.
func (s *Scope) End() {
	if s.ended.Swap(true) {
		return
	}
	released := s.registry.Len()
	s.registry.Clear()
	if released > 0 {
		s.logger.Debug("Analysis scope ended.", zap.Int("entries_released", released))
	}
}

// Taint marks a value as wholly originating from source. It is the boundary
// entry point called by input extraction. The call is a no-op returning the
// input unchanged when quota is exhausted, the value is empty or invalid, or
// the source is absent; the taint boundary must never be able to break host
// application behavior. Otherwise the value is rebound to a fresh handle and
// a single range covering it is registered under that handle.
func (s *Scope) Taint(v Tracked, src *schemas.Source) Tracked {
	if src == nil || v.kind == KindInvalid || v.Len() == 0 || !s.gate.HasQuota() {
		return v
	}
	if s.engine.cfg.RedactSources {
		red := src.Redacted()
		src = &red
	}
	out := v
	out.handle = s.engine.nextHandle()
	s.registry.Register(out.handle, []schemas.TaintRange{{Start: 0, Length: out.Len(), Source: src}})
	s.gate.Spend()
	return out
}

// IsTainted reports whether the value has at least one registered range.
func (s *Scope) IsTainted(v Tracked) bool {
	return s.registry.IsTainted(v.handle)
}

// Ranges returns the value's ordered range sequence, or nil when untainted.
func (s *Scope) Ranges(v Tracked) []schemas.TaintRange {
	return s.registry.Lookup(v.handle)
}

// Release drops the registry entry for a value the caller knows is dead.
// Purely an optimization; End clears everything regardless.
func (s *Scope) Release(v Tracked) {
	s.registry.Remove(v.handle)
}
