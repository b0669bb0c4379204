// Package scope implements the hierarchical namespace of variables and
// rule maps described by the engine's scope tree: a tree of scopes rooted
// at a global scope, with root scopes marking project boundaries.
//
// Mutation of scope maps happens only during the single-threaded load
// phase; once the dependency executor starts, reads are lock-free,
// enforcing a clean split between load-time scope assembly and
// concurrent execution.
package scope

import (
	"fmt"
	"sync"

	"github.com/kiln-build/kiln/internal/pool"
	"github.com/kiln-build/kiln/internal/vars"
)

// Scope is a node in the hierarchical namespace. The zero value is not
// usable; obtain scopes via Tree.Insert / Tree.Global.
type Scope struct {
	tree   *Tree
	parent *Scope

	outPath pool.Dir
	srcPath pool.Dir
	hasSrc  bool

	isRoot bool

	mu       sync.RWMutex
	vars     map[string]*vars.Binding
	rules    RuleMap
	modules  map[string]struct{}
	sourced  map[string]struct{}
	children []*Scope
}

// OutPath returns the scope's absolute out-path.
func (s *Scope) OutPath() pool.Dir { return s.outPath }

// SrcPath returns the scope's absolute src-path and whether it has been
// set. Once set, SrcPath is immutable for the life of the scope.
func (s *Scope) SrcPath() (pool.Dir, bool) { return s.srcPath, s.hasSrc }

// SetSrcPath sets the scope's src-path. Returns an error if already set
// to a different value, preserving "once set, immutable".
func (s *Scope) SetSrcPath(p pool.Dir) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSrc {
		if !s.srcPath.Equal(p) {
			return fmt.Errorf("root-mismatch: src_path already set to %q, got %q", s.srcPath, p)
		}
		return nil
	}
	s.srcPath = p
	s.hasSrc = true
	return nil
}

// IsRoot reports whether the scope was inserted as a project root scope.
func (s *Scope) IsRoot() bool { return s.isRoot }

// Parent returns the scope's parent, or nil for the global scope.
func (s *Scope) Parent() *Scope { return s.parent }

// RootScope returns the nearest enclosing root scope, walking upward
// including s itself; returns nil only for the global scope.
func (s *Scope) RootScope() *Scope {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.isRoot {
			return cur
		}
	}
	return nil
}

// Assign sets name's base value at this scope (plain assign, "=").
func (s *Scope) Assign(name string, v vars.Value, decl *Decl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bindingLocked(name, decl)
	b.Base = v
}

// Append applies "+=" semantics: appends v to the existing base value at
// this scope, or sets it if unset.
func (s *Scope) Append(name string, v vars.Value, decl *Decl) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bindingLocked(name, decl)
	if b.Base == nil {
		b.Base = v
		return nil
	}
	merged, err := vars.Append(b.Base, v)
	if err != nil {
		return err
	}
	b.Base = merged
	return nil
}

// DefaultAssign applies "?=" semantics: sets the value only if unset.
func (s *Scope) DefaultAssign(name string, v vars.Value, decl *Decl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bindingLocked(name, decl)
	if b.Base == nil {
		b.Base = v
	}
}

// Override records an override for name effective at dir and below.
func (s *Scope) Override(name string, at pool.Dir, v vars.Value, decl *Decl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bindingLocked(name, decl)
	b.AddOverride(at, v)
}

func (s *Scope) bindingLocked(name string, decl *Decl) *vars.Binding {
	if s.vars == nil {
		s.vars = make(map[string]*vars.Binding)
	}
	b, ok := s.vars[name]
	if !ok {
		var vd *vars.Decl
		if decl != nil {
			vd = decl.toVarsDecl(name)
		}
		b = &vars.Binding{Decl: vd}
		s.vars[name] = b
	}
	return b
}

// Decl describes the declared type/visibility to use when a variable is
// first bound at a scope (the caller's view of internal/vars.Decl).
type Decl struct {
	Kind       vars.Kind
	Visibility vars.Visibility
}

func (d *Decl) toVarsDecl(name string) *vars.Decl {
	return &vars.Decl{Name: name, Kind: d.Kind, Visibility: d.Visibility}
}

// Find looks up name starting at this scope and walking to ancestors,
// then the global scope, applying the override chain at each step.
// Returns the resolved value and the scope at which the binding was
// found, or (nil, nil) if undeclared anywhere in the chain.
func (s *Scope) Find(name string) (vars.Value, *Scope) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return b.Resolve(s.outPath), cur
		}
	}
	return nil, nil
}

// FindDecl returns the declared type/visibility for name, walking the
// same ancestor chain as Find, without resolving a value — used by the
// defined() and visibility() built-in functions, which ask about a
// variable's declaration rather than its current value.
func (s *Scope) FindDecl(name string) (*vars.Decl, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return b.Decl, true
		}
	}
	return nil, false
}

// FindOriginal returns the base value and the depth (number of overrides)
// at which it was found, ignoring the override chain, used to disambiguate
// override application.
func (s *Scope) FindOriginal(name string) (vars.Value, int) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		b, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return b.FindOriginal()
		}
	}
	return nil, -1
}

// MarkSourced records that buildfile path has been sourced at this scope,
// returning false if it had already been sourced ("once" semantics).
func (s *Scope) MarkSourced(path string) (first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sourced == nil {
		s.sourced = make(map[string]struct{})
	}
	if _, ok := s.sourced[path]; ok {
		return false
	}
	s.sourced[path] = struct{}{}
	return true
}

// RegisterModule records that module name has been loaded at this scope.
func (s *Scope) RegisterModule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modules == nil {
		s.modules = make(map[string]struct{})
	}
	s.modules[name] = struct{}{}
}

// HasModule reports whether module name has been loaded at this scope.
func (s *Scope) HasModule(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.modules[name]
	return ok
}

// Rules returns the scope's rule map, for registration and lookup by the
// rule package.
func (s *Scope) Rules() *RuleMap { return &s.rules }
