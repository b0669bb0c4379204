package target

import (
	"fmt"
	"sync"

	"github.com/kiln-build/kiln/internal/pool"
)

// setKey identifies a target's interned identity: type identity plus
// dir/out/name. Extension deliberately is not part of the key — §3's
// monotonic extension-upgrade rule only makes sense if a target found
// with an unspecified extension and one later declared with a specific
// extension are the same target, not two different entries.
type setKey struct {
	typ  *Type
	dir  pool.Dir
	out  pool.Dir
	name string
}

// Set is the process-wide, global target set: every target in a build is
// interned here exactly once, keyed by (type, dir, out, name), and lives
// for the process's lifetime. Lookup and insert are safe for concurrent
// use; a successful insert calls setup (if given) before the target is
// published to other callers, so the caller can finish initialising it
// (e.g. assign BaseScope) without anyone else observing a half-built
// target.
type Set struct {
	mu  sync.RWMutex
	byK map[setKey]*Target
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byK: make(map[setKey]*Target)}
}

// Insert finds or creates the target keyed by (typ, dir, out, name). It
// returns the target and whether this call created it. setup runs once,
// only on creation, before the new target is stored — the "insert-locked"
// window §4.D describes, during which the caller may freely mutate the
// target without a concurrent reader seeing a partial state.
func (s *Set) Insert(typ *Type, dir, out pool.Dir, name string, setup func(*Target)) (*Target, bool) {
	k := setKey{typ: typ, dir: dir, out: out, name: name}

	s.mu.RLock()
	if t, ok := s.byK[k]; ok {
		s.mu.RUnlock()
		return t, false
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byK[k]; ok {
		return t, false
	}
	t := &Target{Type: typ, Dir: dir, Out: out, Name: name}
	if setup != nil {
		setup(t)
	}
	s.byK[k] = t
	return t, true
}

// Lookup returns the target already interned under (typ, dir, out, name),
// if any, without creating one.
func (s *Set) Lookup(typ *Type, dir, out pool.Dir, name string) (*Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byK[setKey{typ: typ, dir: dir, out: out, name: name}]
	return t, ok
}

// findByDirName searches across every type for a target already interned
// at (dir, name), the shape a bare prerequisite reference needs: the
// buildfile names a prerequisite without saying what type it is, so
// resolution has to search before falling back to a default type.
func (s *Set) findByDirName(dir pool.Dir, name string) (*Target, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, t := range s.byK {
		if k.dir == dir && k.name == name {
			return t, true
		}
	}
	return nil, false
}

// Len returns the number of interned targets, for diagnostics/tests.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byK)
}

// UnresolvedPrerequisiteError reports a prerequisite name with neither an
// existing target anywhere in the set nor a default type to fall back to.
type UnresolvedPrerequisiteError struct {
	Target, Prerequisite string
}

func (e *UnresolvedPrerequisiteError) Error() string {
	return fmt.Sprintf("unresolved prerequisite %q of target %q: no existing target and no default type to create one", e.Prerequisite, e.Target)
}

// Resolve implements prerequisite "search": for each of t's declared
// Prereqs (plus whatever t.Type.Search contributes implicitly), find the
// existing target already interned at that (dir, name) regardless of
// type, or — if none exists and defaultType is non-nil — intern a new
// one of defaultType. It does not install the result on t; callers use
// SetPrerequisiteTargets for that, which is also what bumps each
// resolved target's dependents count.
func Resolve(t *Target, set *Set, defaultType *Type) ([]*Target, error) {
	prereqs := t.Prereqs
	if t.Type != nil && t.Type.Search != nil {
		prereqs = append(append([]Prerequisite{}, t.Type.Search(t)...), prereqs...)
	}

	resolved := make([]*Target, 0, len(prereqs))
	for _, p := range prereqs {
		if existing, ok := set.findByDirName(p.Dir, p.Name); ok {
			resolved = append(resolved, existing)
			continue
		}
		if defaultType == nil {
			return resolved, &UnresolvedPrerequisiteError{Target: t.Name, Prerequisite: p.Name}
		}
		nt, _ := set.Insert(defaultType, p.Dir, p.Dir, p.Name, nil)
		resolved = append(resolved, nt)
	}
	return resolved, nil
}
