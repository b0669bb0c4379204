package scope

import (
	"sync"

	"github.com/kiln-build/kiln/internal/pool"
)

// Tree owns the process-wide scope tree, rooted at a global scope that
// owns the process-wide pools. Like the target set, mutation is confined
// to the load phase: Insert is safe to call repeatedly for the same
// out-path and returns the existing scope.
type Tree struct {
	pool   *pool.Pool
	mu     sync.Mutex
	global *Scope
	byOut  map[string]*Scope
}

// New returns a Tree with its global scope already created.
func New(p *pool.Pool) *Tree {
	t := &Tree{pool: p, byOut: make(map[string]*Scope)}
	t.global = &Scope{tree: t}
	return t
}

// Global returns the tree's global scope.
func (t *Tree) Global() *Scope { return t.global }

// Insert finds or creates the scope rooted at outDir, parented under the
// deepest existing scope that contains it (or the global scope if none
// does). If root is true the scope is marked as a project root.
func (t *Tree) Insert(outDir string, root bool) *Scope {
	d := t.pool.InternDir(outDir)

	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.byOut[d.String()]; ok {
		if root {
			s.isRoot = true
		}
		return s
	}

	parent := t.deepestContainingLocked(d)
	if parent == nil {
		parent = t.global
	}
	s := &Scope{tree: t, parent: parent, outPath: d, isRoot: root}
	t.byOut[d.String()] = s
	parent.children = append(parent.children, s)
	return s
}

// NewDetached returns a scope parented under parent but not registered
// in the tree's out-path index. The import protocol uses this to build a
// temporary scope for evaluating export.build: nothing assigned into it
// is ever reachable by a later Tree.Find/Insert, which is how import
// guarantees no variables leak back into the importing scope.
func NewDetached(parent *Scope) *Scope {
	return &Scope{tree: parent.tree, parent: parent}
}

// Find returns the deepest scope whose out-path contains path, or the
// global scope if none does.
func (t *Tree) Find(path string) *Scope {
	d := t.pool.InternDir(path)
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.deepestContainingLocked(d); s != nil {
		return s
	}
	return t.global
}

func (t *Tree) deepestContainingLocked(d pool.Dir) *Scope {
	var best *Scope
	bestLen := -1
	for _, s := range t.byOut {
		if s.outPath.IsPrefixOf(d) {
			l := len(s.outPath.String())
			if l > bestLen {
				best = s
				bestLen = l
			}
		}
	}
	return best
}
