// Package registry implements the identity-keyed side table that maps a
// tracked value's handle to its ordered taint range sequence. The registry
// is the only shared mutable state in the engine; everything else is derived
// on the fly.
package registry

import (
	"fmt"
	"sync"

	"github.com/xkilldash9x/taintflow/api/schemas"
)

// Handle is the stable identity assigned to a value when it is first tainted
// or derived from tainted operands. Handle 0 is reserved and means "never
// tainted"; it is never present in the table.
type Handle uint64

// Registry associates handles with their range sequences. All methods are
// safe for concurrent use: lookups share a read lock, mutations take the
// write lock. The registry does not retain the tracked values themselves,
// only their handles, so it never extends a value's lifetime.
type Registry struct {
	mu      sync.RWMutex
	entries map[Handle][]schemas.TaintRange
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Handle][]schemas.TaintRange)}
}

// Register associates ranges with a handle. Registration is single-assignment
// per handle: a duplicate registration means the propagation engine mis-tracked
// an identity, so it panics rather than silently corrupting provenance.
// Empty range sequences and the zero handle are ignored.
func (r *Registry) Register(h Handle, ranges []schemas.TaintRange) {
	if h == 0 || len(ranges) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[h]; exists {
		panic(fmt.Sprintf("registry: handle %d registered twice", h))
	}
	r.entries[h] = ranges
}

// Lookup returns the range sequence for a handle, or nil if the handle is
// untainted. Callers must not mutate the returned slice.
func (r *Registry) Lookup(h Handle) []schemas.TaintRange {
	if h == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[h]
}

// IsTainted reports whether the handle has a non-empty range sequence.
func (r *Registry) IsTainted(h Handle) bool {
	if h == 0 {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[h]) > 0
}

// Remove drops a single entry. Used when the engine can prove a value is no
// longer reachable; missing handles are a no-op.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, h)
}

// Clear drops every entry. Called at the end of an analysis unit; this is
// the primary defense against unbounded growth across long-lived processes.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[Handle][]schemas.TaintRange)
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
