// Package pool interns the small alphabet of strings and paths that the
// engine compares by identity rather than by value: extensions, project
// names, and directory paths. Everything here is process-lifetime — once
// interned, a reference stays valid and stable until the process exits.
package pool

import (
	"path/filepath"
	"strings"
	"sync"
)

// Ext is an interned file extension ("" means "no extension", which is
// distinct from "extension not yet known" — callers track the latter with
// a separate bool).
type Ext struct {
	ptr *string
}

// String returns the extension text.
func (e Ext) String() string {
	if e.ptr == nil {
		return ""
	}
	return *e.ptr
}

// Valid reports whether e was produced by a pool (vs. the zero value).
func (e Ext) Valid() bool { return e.ptr != nil }

// Equal compares two interned extensions by identity.
func (e Ext) Equal(o Ext) bool { return e.ptr == o.ptr }

// ProjectName is an interned project name, split into its canonical
// base/extension decomposition per the platform's path-comparison rules.
type ProjectName struct {
	ptr *projectNameData
}

type projectNameData struct {
	base string
	ext  string
}

// Base returns the project name's base component.
func (p ProjectName) Base() string {
	if p.ptr == nil {
		return ""
	}
	return p.ptr.base
}

// Ext returns the project name's extension component (without the dot).
func (p ProjectName) Ext() string {
	if p.ptr == nil {
		return ""
	}
	return p.ptr.ext
}

// Equal compares two interned project names by identity.
func (p ProjectName) Equal(o ProjectName) bool { return p.ptr == o.ptr }

// Dir is an interned, normalised directory path, stored and printed
// clean, without a trailing separator.
type Dir struct {
	ptr *string
}

// String returns the directory's clean path, without a trailing separator.
func (d Dir) String() string {
	if d.ptr == nil {
		return ""
	}
	return *d.ptr
}

// Equal compares two interned directories by identity.
func (d Dir) Equal(o Dir) bool { return d.ptr == o.ptr }

// IsPrefixOf reports whether d is an ancestor directory of (or equal to) o,
// used to check the scope-tree invariant that a parent's out-path is a
// proper prefix of its child's.
func (d Dir) IsPrefixOf(o Dir) bool {
	if d.ptr == nil || o.ptr == nil {
		return false
	}
	ds, os := *d.ptr, *o.ptr
	if ds == os {
		return true
	}
	return strings.HasPrefix(os, ds+string(filepath.Separator))
}

// Pool is the process-wide intern table. The zero value is not usable;
// construct with New.
type Pool struct {
	mu           sync.RWMutex
	exts         map[string]*string
	projectNames map[string]*projectNameData
	dirs         map[string]*string
}

// New returns an empty, ready-to-use Pool.
func New() *Pool {
	return &Pool{
		exts:         make(map[string]*string),
		projectNames: make(map[string]*projectNameData),
		dirs:         make(map[string]*string),
	}
}

// InternExt interns a file extension (without the leading dot). The empty
// string interns to the canonical "no extension" value.
func (p *Pool) InternExt(s string) Ext {
	p.mu.RLock()
	if v, ok := p.exts[s]; ok {
		p.mu.RUnlock()
		return Ext{ptr: v}
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.exts[s]; ok {
		return Ext{ptr: v}
	}
	v := s
	p.exts[s] = &v
	return Ext{ptr: &v}
}

// InternProjectName interns a project name, splitting it into base/ext on
// the last '.' the way build2 splits "foo.bash" into base "foo", ext
// "bash". Comparison elsewhere is case-insensitive per the platform path
// rules; the pool stores the name as given and callers fold case before
// calling Intern if the target platform is case-insensitive.
func (p *Pool) InternProjectName(s string) ProjectName {
	base, ext := splitBaseExt(s)
	key := base + "\x00" + ext
	p.mu.RLock()
	if v, ok := p.projectNames[key]; ok {
		p.mu.RUnlock()
		return ProjectName{ptr: v}
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.projectNames[key]; ok {
		return ProjectName{ptr: v}
	}
	v := &projectNameData{base: base, ext: ext}
	p.projectNames[key] = v
	return ProjectName{ptr: v}
}

func splitBaseExt(s string) (base, ext string) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// InternDir interns a directory path, cleaning it first (Clean also
// removes any trailing separator).
func (p *Pool) InternDir(path string) Dir {
	clean := filepath.Clean(path)
	p.mu.RLock()
	if v, ok := p.dirs[clean]; ok {
		p.mu.RUnlock()
		return Dir{ptr: v}
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.dirs[clean]; ok {
		return Dir{ptr: v}
	}
	v := clean
	p.dirs[clean] = &v
	return Dir{ptr: &v}
}
