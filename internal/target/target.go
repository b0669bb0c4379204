// Package target implements the target type system and the global,
// interned target set described by the engine's data model: polymorphic
// target types with single inheritance, and a process-lifetime set keyed
// by (type, dir, out, name) that hands back the same *Target for the
// same key every time.
//
// Targets are owned by the Set for the life of the process; everything
// else holds non-owning pointers into it. The only fields that change
// after insertion are a target's local variables, prerequisites,
// resolved prerequisite targets, installed recipe/action, extension, and
// execution state — matching the invariant in §3 of the engine's data
// model that insertion fixes identity, not content.
package target

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kiln-build/kiln/internal/pool"
	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/vars"
)

// Type is a target type descriptor: a name, an optional base type for
// single inheritance, and the capability hooks a language module would
// normally supply (extension derivation, prerequisite search, printing).
// SeeThrough marks "group-like" types whose members are discovered
// dynamically rather than declared directly; the loader sets it on dir
// and group. Neither the engine nor any rule consults it.
type Type struct {
	Name       string
	Base       *Type
	SeeThrough bool

	// Factory optionally builds a fresh zero-value Target for this type.
	// Set.Insert does not call it; it always uses a plain struct literal.
	Factory func() *Target
	// DefaultExt derives a target's extension when none was given
	// explicitly, mirroring the source's per-type extension callback.
	DefaultExt func(t *Target) pool.Ext
	// Search returns the additional, implicitly-declared prerequisites a
	// target of this type carries beyond what the buildfile wrote down
	// (e.g. fsdir's implicit parent-directory chain). Resolve appends
	// these to t.Prereqs before resolving names to targets.
	Search func(t *Target) []Prerequisite
}

// NewType returns a new target type descriptor named name, inheriting
// from base (nil for a root type).
func NewType(name string, base *Type) *Type {
	return &Type{Name: name, Base: base}
}

// IsA reports whether ty is other, or inherits from it transitively.
func (ty *Type) IsA(other *Type) bool {
	for cur := ty; cur != nil; cur = cur.Base {
		if cur == other {
			return true
		}
	}
	return false
}

// String returns the type's name, for diagnostics.
func (ty *Type) String() string {
	if ty == nil {
		return "<nil>"
	}
	return ty.Name
}

// Prerequisite is a declared edge from a target to a dependency named by
// Name in directory Dir, before it has been resolved ("searched") against
// the target set into a *Target.
type Prerequisite struct {
	Name string
	Dir  pool.Dir
}

// State is a target's position in the per-(action,target) execution
// state machine: unknown -> touched -> matched -> executing -> one of
// the terminal outcomes (unchanged, changed, postponed, failed, group).
type State int32

const (
	StateUnknown State = iota
	StateTouched
	StateMatched
	StateExecuting
	StateUnchanged
	StateChanged
	StatePostponed
	StateFailed
	StateGroup
)

func (s State) String() string {
	switch s {
	case StateTouched:
		return "touched"
	case StateMatched:
		return "matched"
	case StateExecuting:
		return "executing"
	case StateUnchanged:
		return "unchanged"
	case StateChanged:
		return "changed"
	case StatePostponed:
		return "postponed"
	case StateFailed:
		return "failed"
	case StateGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a genuine completion of a (action,
// target) pair — the point at which dependents may observe the state
// and decrement their wait count. Postponed is deliberately excluded: it
// means "not done, retry", not "done".
func (s State) Terminal() bool {
	switch s {
	case StateUnchanged, StateChanged, StateFailed, StateGroup:
		return true
	default:
		return false
	}
}

// Driver is what a recipe uses to recurse into its own prerequisites. The
// dependency executor (internal/engine) implements it; rule_test's
// miniDriver implements a minimal non-concurrent version for exercising a
// single rule's recipe end to end.
type Driver interface {
	Execute(t *Target, a uint32) (State, error)
}

// Recipe is the callable a rule installs on a target for one action.
type Recipe interface {
	Run(t *Target, a uint32, d Driver) (State, error)
}

// RecipeFunc adapts a function to Recipe.
type RecipeFunc func(t *Target, a uint32, d Driver) (State, error)

// Run calls f.
func (f RecipeFunc) Run(t *Target, a uint32, d Driver) (State, error) { return f(t, a, d) }

// Noop is the recipe that does nothing and reports Unchanged, used by
// path_rule for clean and as the fallback when a rule's Apply installs no
// recipe at all.
var Noop Recipe = RecipeFunc(func(t *Target, a uint32, d Driver) (State, error) {
	return StateUnchanged, nil
})

// ExecuteAll drives every target in ts through d for action a, in order,
// stopping at the first error. It reports whether any of them reported
// Changed and whether any reported Postponed, the pair a forwarding
// recipe needs to decide its own terminal state: Postponed takes
// precedence over Changed, since a subtree with a postponed member has
// not actually finished regardless of what its other members did.
func ExecuteAll(ts []*Target, a uint32, d Driver) (changed, postponed bool, err error) {
	for _, t := range ts {
		s, err := d.Execute(t, a)
		if err != nil {
			return changed, postponed, err
		}
		switch s {
		case StateChanged:
			changed = true
		case StatePostponed:
			postponed = true
		}
	}
	return changed, postponed, nil
}

// Target is an addressable build entity: a file, filesystem directory,
// alias, or group, identified by (Type, Dir, Out, Name) and owned by a
// Set for the life of the process.
//
// Type, Dir, Out, Name, and BaseScope are fixed at construction and read
// freely without synchronisation, matching the execute phase's "scope
// tree and target set are read-only" contract. Everything reached
// through the mutex, plus State/dependents (atomic), is the
// load/match-time or per-execution mutable slice the spec calls out as
// the sole exception to that read-only discipline.
type Target struct {
	Type *Type
	Dir  pool.Dir
	Out  pool.Dir
	Name string

	// BaseScope is the scope a target's rule matching starts its
	// scopes-enumerated-upward walk from: normally the scope of the
	// buildfile that declared it.
	BaseScope *scope.Scope

	// Prereqs are the prerequisites as declared in the buildfile, before
	// Resolve turns them into concrete *Target pointers.
	Prereqs []Prerequisite

	// Group is the weak, nullable back-pointer to the group target this
	// target is a member of, set by whatever rule discovered the
	// membership during apply.
	Group *Target

	mu              sync.Mutex
	ext             pool.Ext
	variables       map[string]*vars.Binding
	prereqTargets   []*Target
	recipe          Recipe
	installedAction uint32

	state      int32 // atomic State
	dependents int32 // atomic
}

// String renders the target's addressable path, for diagnostics: Out
// joined with Name if Out is set (a target sourced from the src tree),
// else Dir joined with Name.
func (t *Target) String() string {
	if t.Out.String() != "" {
		return filepath.Join(t.Out.String(), t.Name)
	}
	return filepath.Join(t.Dir.String(), t.Name)
}

// State returns the target's current position in the execution state
// machine.
func (t *Target) State() State { return State(atomic.LoadInt32(&t.state)) }

// SetState transitions the target's execution state. Transitions are
// expected to be monotonic per the state machine in §4.G; SetState itself
// does not enforce that — the dependency executor is the sole writer and
// already drives the machine in order.
func (t *Target) SetState(s State) { atomic.StoreInt32(&t.state, int32(s)) }

// incDependents records that another target now holds a reference to t
// as a resolved prerequisite — called by SetPrerequisiteTargets, the
// "during match" half of the dependents-count contract in §4.G.
func (t *Target) incDependents() { atomic.AddInt32(&t.dependents, 1) }

// DecDependents records that one dependent has observed t's terminal
// state, the "during execution" half of the dependents-count contract.
// It returns the count after decrementing, so a group/alias rule can
// tell when every dependent has finished.
func (t *Target) DecDependents() int32 { return atomic.AddInt32(&t.dependents, -1) }

// DependentsCount returns the current outstanding-dependents count.
func (t *Target) DependentsCount() int32 { return atomic.LoadInt32(&t.dependents) }

// PrerequisiteTargets returns the resolved prerequisite targets, or nil
// if Resolve has not run yet.
func (t *Target) PrerequisiteTargets() []*Target {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prereqTargets
}

// SetPrerequisiteTargets installs the resolved prerequisite targets and
// bumps each one's dependents count, the "populated during match,
// thereafter immutable" step §4.G and §5 both describe.
func (t *Target) SetPrerequisiteTargets(ts []*Target) {
	t.mu.Lock()
	t.prereqTargets = ts
	t.mu.Unlock()
	for _, p := range ts {
		p.incDependents()
	}
}

// Recipe returns the recipe currently installed for whichever action last
// won Apply's override check, or nil if none has been installed yet.
func (t *Target) Recipe() Recipe {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recipe
}

// InstalledAction returns the action the current recipe was installed
// for, or 0 if none.
func (t *Target) InstalledAction() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.installedAction
}

// Install records recipe as bound to action a. Callers (rule.Apply) are
// expected to have already checked recipe-override precedence; Install
// itself just stores the pair.
func (t *Target) Install(a uint32, recipe Recipe) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.installedAction = a
	t.recipe = recipe
}

// Extension returns the target's interned extension, or the zero Ext
// ("unspecified") if none has been set yet.
func (t *Target) Extension() pool.Ext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ext
}

// ExtensionMismatchError reports an attempt to change a target's already-
// specified extension to a different specified value, violating the
// "unspecified -> specified, never specified -> a different specified"
// monotonicity invariant in §3.
type ExtensionMismatchError struct {
	Target, Old, New string
}

func (e *ExtensionMismatchError) Error() string {
	return fmt.Sprintf("extension-mismatch: target %s already has extension %q, cannot set %q", e.Target, e.Old, e.New)
}

// SetExtension upgrades the target's extension, enforcing monotonicity:
// setting an unspecified extension is always fine, re-setting to the same
// specified value is a no-op, and setting a different specified value
// once one is already recorded fails.
func (t *Target) SetExtension(e pool.Ext) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !e.Valid() {
		return nil
	}
	if !t.ext.Valid() {
		t.ext = e
		return nil
	}
	if !t.ext.Equal(e) {
		return &ExtensionMismatchError{Target: t.Name, Old: t.ext.String(), New: e.String()}
	}
	return nil
}

// LocalVar returns the target-visibility binding for name, creating an
// empty one on first reference. Local variables are only ever touched
// during the single-threaded load phase, but the mutex keeps this safe
// even if a future caller disagrees.
func (t *Target) LocalVar(name string) *vars.Binding {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.variables == nil {
		t.variables = make(map[string]*vars.Binding)
	}
	b, ok := t.variables[name]
	if !ok {
		b = &vars.Binding{}
		t.variables[name] = b
	}
	return b
}
