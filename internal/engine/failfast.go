package engine

import "sync/atomic"

// FailFastGuard is an optional abort-on-first-failure mode: once any
// recipe anywhere in the run fails, Tripped reports true and subsequent
// Execute calls short-circuit to FailFastAbortedError instead of doing
// any work. It is a small atomic guard consulted on every step rather
// than a channel-based cancellation, so tripping it never races with a
// concurrent Execute that is already past the check.
type FailFastGuard struct {
	enabled bool
	tripped int32
}

// NewFailFastGuard returns a guard; enabled=false makes Trip a no-op and
// Tripped always false, the default "unrelated subgraphs continue"
// behaviour.
func NewFailFastGuard(enabled bool) *FailFastGuard {
	return &FailFastGuard{enabled: enabled}
}

// Trip records a failure. Idempotent.
func (g *FailFastGuard) Trip() {
	if g == nil || !g.enabled {
		return
	}
	atomic.StoreInt32(&g.tripped, 1)
}

// Tripped reports whether a failure has already been recorded.
func (g *FailFastGuard) Tripped() bool {
	if g == nil || !g.enabled {
		return false
	}
	return atomic.LoadInt32(&g.tripped) == 1
}
