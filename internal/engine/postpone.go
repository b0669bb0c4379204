package engine

import (
	"fmt"
	"sync"
)

// PostponeTracker bounds how many times a (target, action) pair may
// report Postponed before the run gives up on it as a fatal error. The
// limit defaults to one retry and is configurable via
// WithPostponeRetries rather than hard-coded, since callers disagree on
// how patient a build should be with a recipe that keeps deferring
// itself.
//
// It keeps a per-key attempt count, consulted before allowing another
// attempt — the same shape as a cycle detector's per-key visited set,
// just counting instead of booleans.
type PostponeTracker struct {
	mu      sync.Mutex
	limit   int
	attempt map[string]int
}

// NewPostponeTracker returns a tracker allowing retries attempts (in
// addition to the first) before a repeated Postponed becomes fatal.
// retries < 0 is clamped to 0 (no retries at all).
func NewPostponeTracker(retries int) *PostponeTracker {
	if retries < 0 {
		retries = 0
	}
	return &PostponeTracker{limit: retries, attempt: make(map[string]int)}
}

// Postponed records one postponement of key, returning ok=false once the
// configured retry budget is exceeded.
func (p *PostponeTracker) Postponed(key string) (ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.attempt[key]
	p.attempt[key] = n + 1
	return n < p.limit
}

// PostponeExceededError reports that a target was postponed more times
// than the configured retry budget allows.
type PostponeExceededError struct {
	Target string
	Action uint32
	Limit  int
}

func (e *PostponeExceededError) Error() string {
	return fmt.Sprintf("postponed-retry-exceeded: %s (action %d) postponed more than %d time(s)", e.Target, e.Action, e.Limit)
}
