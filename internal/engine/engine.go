// Package engine implements the dependency executor: the concurrent,
// parallelisable traversal that drives the match/apply protocol over a
// set of root targets for a chosen action and runs the resulting recipe
// graph bottom-up (or top-down for clean-style operations), honouring
// each target's per-action execution state machine.
package engine

import (
	"fmt"
	"sync"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/diag"
	"github.com/kiln-build/kiln/internal/rule"
	"github.com/kiln-build/kiln/internal/target"
)

// execKey identifies one (target, action) execution slot — the unit the
// "at most once" single-execution guarantee is scoped to.
type execKey struct {
	t *target.Target
	a uint32
}

type execResult struct {
	done  chan struct{}
	state target.State
	err   error
}

// Engine is the dependency executor: it implements target.Driver so
// recipes can recurse into their own prerequisites through it, and
// exposes Run as the top-level entry point that drives a set of root
// targets to completion for one action.
type Engine struct {
	DefaultType *target.Type // type used by target.Resolve for bare prerequisite names
	TargetSet   *target.Set  // set used to resolve bare prerequisite names during search
	Clock       *Clock

	queue        *readyQueue
	postpone     *PostponeTracker
	failFast     *FailFastGuard
	OnTransition func(t *target.Target, a uint32, s target.State) // optional trace hook

	mu      sync.Mutex
	results map[execKey]*execResult
}

// Option configures a new Engine.
type Option func(*Engine)

// WithWorkers bounds concurrent recipe execution to n simultaneous
// goroutines fanned out from Run. n <= 0 means unbounded.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.queue = newReadyQueue(n) }
}

// WithPostponeRetries configures how many times a (action, target) pair
// may report Postponed before it becomes a fatal error. Default 1.
func WithPostponeRetries(n int) Option {
	return func(e *Engine) { e.postpone = NewPostponeTracker(n) }
}

// WithFailFast aborts the whole run as soon as any recipe fails, instead
// of letting unrelated subgraphs continue to completion.
func WithFailFast(enabled bool) Option {
	return func(e *Engine) { e.failFast = NewFailFastGuard(enabled) }
}

// WithTargetSet registers the target set Run and Execute use to resolve
// bare prerequisite names during search.
func WithTargetSet(s *target.Set) Option {
	return func(e *Engine) { e.TargetSet = s }
}

// New returns an Engine ready to drive targets of defaultType (used when
// a prerequisite name has no separately declared target).
func New(defaultType *target.Type, set *target.Set, opts ...Option) *Engine {
	e := &Engine{
		DefaultType: defaultType,
		TargetSet:   set,
		Clock:       NewClock(),
		queue:       newReadyQueue(0),
		postpone:    NewPostponeTracker(1),
		failFast:    NewFailFastGuard(false),
		results:     make(map[execKey]*execResult),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute implements target.Driver: the public, single-execution entry
// point. Every external caller (Run's root fan-out, target.ExecuteAll)
// goes through here, each starting a fresh ancestor chain for cycle
// detection.
func (e *Engine) Execute(t *target.Target, a uint32) (target.State, error) {
	return e.executeChain(t, a, map[execKey]bool{})
}

// executeChain is the recursive worker. ancestors is this call chain's
// own view of in-flight (target, action) pairs — not shared with
// sibling branches — so independent fan-outs never falsely collide, but
// a genuine self-referential prerequisite chain is caught before it can
// block forever waiting on its own completion channel.
func (e *Engine) executeChain(t *target.Target, a uint32, ancestors map[execKey]bool) (target.State, error) {
	key := execKey{t: t, a: a}

	if e.failFast.Tripped() {
		return target.StateFailed, &FailFastAbortedError{Target: t.Name}
	}

	if ancestors[key] {
		return target.StateFailed, &CycleError{Chain: chainNames(ancestors, t)}
	}

	e.mu.Lock()
	if r, ok := e.results[key]; ok {
		e.mu.Unlock()
		<-r.done
		return r.state, r.err
	}
	r := &execResult{done: make(chan struct{})}
	e.results[key] = r
	e.mu.Unlock()

	childAncestors := make(map[execKey]bool, len(ancestors)+1)
	for k := range ancestors {
		childAncestors[k] = true
	}
	childAncestors[key] = true

	state, err := e.run(t, a, childAncestors)

	if state == target.StatePostponed {
		// Postponed is not a genuine terminal completion: remove the
		// cache entry so a later retry actually re-invokes the recipe.
		e.mu.Lock()
		delete(e.results, key)
		e.mu.Unlock()
	}

	r.state, r.err = state, err
	close(r.done)

	if err != nil {
		e.failFast.Trip()
	}
	if e.OnTransition != nil {
		e.OnTransition(t, a, state)
	}
	return state, err
}

func chainNames(ancestors map[execKey]bool, t *target.Target) []string {
	names := make([]string, 0, len(ancestors)+1)
	for k := range ancestors {
		names = append(names, k.t.Name)
	}
	names = append(names, t.Name)
	return names
}

func (e *Engine) run(t *target.Target, a uint32, ancestors map[execKey]bool) (target.State, error) {
	t.SetState(target.StateTouched)
	e.stamp(t, a, target.StateTouched)

	if len(t.PrerequisiteTargets()) == 0 && len(t.Prereqs) > 0 {
		resolved, rerr := target.Resolve(t, e.TargetSet, e.DefaultType)
		if rerr != nil {
			return target.StateFailed, &ExecutionError{
				Target: t.Name, Action: a,
				Diagnostic: diag.Errorf(diag.CategoryExecution, "%v", rerr),
			}
		}
		t.SetPrerequisiteTargets(resolved)
	}

	base := t.BaseScope
	r, md, err := rule.Match(base, action.ID(a), t, "")
	if err != nil {
		t.SetState(target.StateFailed)
		return target.StateFailed, &ExecutionError{
			Target: t.Name, Action: a,
			Diagnostic: diag.Errorf(diag.CategoryRuleProtocol, "%v", err),
		}
	}

	recipe, err := rule.Apply(r, action.ID(a), t, md)
	if err != nil {
		t.SetState(target.StateFailed)
		return target.StateFailed, &ExecutionError{
			Target: t.Name, Action: a,
			Diagnostic: diag.Errorf(diag.CategoryRuleProtocol, "%v", err),
		}
	}
	t.SetState(target.StateMatched)
	e.stamp(t, a, target.StateMatched)

	if recipe == nil {
		recipe = target.Noop
	}

	t.SetState(target.StateExecuting)
	e.stamp(t, a, target.StateExecuting)

	drv := &chainDriver{eng: e, ancestors: ancestors}
	state, err := recipe.Run(t, a, drv)
	if err != nil {
		t.SetState(target.StateFailed)
		return target.StateFailed, &ExecutionError{
			Target: t.Name, Action: a,
			Diagnostic: diag.Errorf(diag.CategoryExecution, "%v", err),
		}
	}

	if state == target.StatePostponed {
		if !e.postpone.Postponed(key(t, a)) {
			t.SetState(target.StateFailed)
			return target.StateFailed, &PostponeExceededError{Target: t.Name, Action: a, Limit: e.postpone.limit}
		}
	}

	t.SetState(state)
	e.stamp(t, a, state)
	if state.Terminal() {
		for _, p := range t.PrerequisiteTargets() {
			p.DecDependents()
		}
	}
	return state, nil
}

func key(t *target.Target, a uint32) string {
	return fmt.Sprintf("%p/%d", t, a)
}

func (e *Engine) stamp(t *target.Target, a uint32, s target.State) {
	if e.Clock != nil {
		e.Clock.Next()
	}
}

// chainDriver adapts Engine+ancestors to target.Driver for one recursion
// level, so nested d.Execute calls extend this call's own ancestor
// chain instead of starting a fresh one (which is what the public
// Engine.Execute entry point does).
type chainDriver struct {
	eng       *Engine
	ancestors map[execKey]bool
}

func (d *chainDriver) Execute(p *target.Target, a uint32) (target.State, error) {
	return d.eng.executeChain(p, a, d.ancestors)
}

// Run drives every root in roots to completion for action a, then runs
// a second pass over any that ended Postponed, fanning
// the independent roots out across the worker pool. It returns the
// first error encountered; with WithFailFast(false) (the default),
// unrelated subgraphs still run to completion before Run returns.
func (e *Engine) Run(a action.ID, roots []*target.Target) ([]target.State, error) {
	states, errs := e.runPass(a, roots)

	var postponedIdx []int
	var postponedRoots []*target.Target
	for i, s := range states {
		if s == target.StatePostponed {
			postponedIdx = append(postponedIdx, i)
			postponedRoots = append(postponedRoots, roots[i])
		}
	}
	if len(postponedRoots) > 0 {
		retryStates, retryErrs := e.runPass(a, postponedRoots)
		for ri, i := range postponedIdx {
			states[i] = retryStates[ri]
			errs[i] = retryErrs[ri]
		}
	}

	for _, err := range errs {
		if err != nil {
			return states, err
		}
	}
	return states, nil
}

// runPass fans roots out across the worker pool and returns, aligned
// with roots, each one's terminal state and error (nil on success).
func (e *Engine) runPass(a action.ID, roots []*target.Target) ([]target.State, []error) {
	states := make([]target.State, len(roots))
	errs := make([]error, len(roots))

	var wg sync.WaitGroup
	for i, t := range roots {
		i, t := i, t
		wg.Add(1)
		e.queue.Acquire()
		go func() {
			defer wg.Done()
			defer e.queue.Release()
			s, err := e.Execute(t, uint32(a))
			states[i] = s
			errs[i] = err
		}()
	}
	wg.Wait()
	return states, errs
}
