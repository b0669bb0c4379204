package vars

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Visibility controls how far a variable's value is visible from its
// point of declaration: target and prerequisite are the narrowest, scope
// reaches descendant scopes, project reaches the whole project including
// subprojects, and global is visible everywhere.
type Visibility int

const (
	VisibilityTarget Visibility = iota
	VisibilityPrerequisite
	VisibilityScope
	VisibilityProject
	VisibilityGlobal
)

func (v Visibility) String() string {
	switch v {
	case VisibilityTarget:
		return "target"
	case VisibilityPrerequisite:
		return "prerequisite"
	case VisibilityScope:
		return "scope"
	case VisibilityProject:
		return "project"
	default:
		return "global"
	}
}

// Decl is an interned variable declaration: a dotted, namespaced name, its
// declared type, visibility, and the pattern (if any) it inherited its
// typing from.
type Decl struct {
	Name       string
	Kind       Kind
	Visibility Visibility
	Pattern    string
}

// pattern is a registered wildcard-typing rule, e.g. "config.*.configured"
// typed as bool.
type pattern struct {
	re         *regexp.Regexp
	raw        string
	kind       Kind
	visibility Visibility
}

// Pool is the single process-wide table of variable declarations. Lookup
// by name returns a stable *Decl reference for the life of the process,
// per the "variables are interned in a single pool" invariant.
type Pool struct {
	mu       sync.RWMutex
	decls    map[string]*Decl
	patterns []pattern
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{decls: make(map[string]*Decl)}
}

// ErrRedeclared is returned by Insert when a name is already declared
// with an incompatible type.
type ErrRedeclared struct {
	Name     string
	Old, New Kind
}

func (e *ErrRedeclared) Error() string {
	return fmt.Sprintf("variable-redeclared: %s: %s -> %s", e.Name, e.Old, e.New)
}

// RegisterPattern registers a wildcard-typing rule. glob uses "*" to match
// a single dotted segment, as in "config.*.configured".
func (p *Pool) RegisterPattern(glob string, kind Kind, vis Visibility) error {
	re, err := globToRegexp(glob)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns = append(p.patterns, pattern{re: re, raw: glob, kind: kind, visibility: vis})
	return nil
}

func globToRegexp(glob string) (*regexp.Regexp, error) {
	parts := strings.Split(glob, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return regexp.Compile("^" + strings.Join(parts, "[^.]*") + "$")
}

// PatternMatch returns the first registered pattern matching name, if any.
func (p *Pool) PatternMatch(name string) (kind Kind, vis Visibility, raw string, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pat := range p.patterns {
		if pat.re.MatchString(name) {
			return pat.kind, pat.visibility, pat.raw, true
		}
	}
	return KindUntyped, VisibilityScope, "", false
}

// Insert declares name with the given type/visibility, or returns the
// existing declaration if it already matches. If name matches a
// registered pattern and explicit is false, the pattern's typing is
// inherited. Insertion with
// an incompatible declared type fails with ErrRedeclared.
func (p *Pool) Insert(name string, kind Kind, vis Visibility, explicit bool) (*Decl, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if d, ok := p.decls[name]; ok {
		if explicit && d.Kind != KindUntyped && kind != KindUntyped && d.Kind != kind {
			return nil, &ErrRedeclared{Name: name, Old: d.Kind, New: kind}
		}
		return d, nil
	}

	patRaw := ""
	if !explicit {
		if pk, pv, raw, ok := p.matchPatternLocked(name); ok {
			kind, vis, patRaw = pk, pv, raw
		}
	}
	d := &Decl{Name: name, Kind: kind, Visibility: vis, Pattern: patRaw}
	p.decls[name] = d
	return d, nil
}

func (p *Pool) matchPatternLocked(name string) (Kind, Visibility, string, bool) {
	for _, pat := range p.patterns {
		if pat.re.MatchString(name) {
			return pat.kind, pat.visibility, pat.raw, true
		}
	}
	return KindUntyped, VisibilityScope, "", false
}

// Find returns the declaration for name, if any has been inserted.
func (p *Pool) Find(name string) (*Decl, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.decls[name]
	return d, ok
}
