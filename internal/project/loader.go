// Package project implements the project bootstrap/load protocol:
// two-step root discovery (out then src), subproject and amalgamation
// traversal, and the import protocol that pulls a target out of another
// project's export.build into a temporary, leak-proof scope.
//
// Loading follows a parse-then-validate split, returning at the first
// error, and a "resolve a path, then load it" shape for each root and
// subproject it walks into.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/builtfile"
	"github.com/kiln-build/kiln/internal/pool"
	"github.com/kiln-build/kiln/internal/rule"
	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/target"
	"github.com/kiln-build/kiln/internal/vars"
)

// Loader owns the process-wide pools and drives bootstrap/load.
type Loader struct {
	Pool    *pool.Pool
	Vars    *vars.Pool
	Scopes  *scope.Tree
	Targets *target.Set
	Types   map[string]*target.Type

	// Config maps project name -> out_root, consulted by Import when the
	// importing scope has no config.<project> variable of its own.
	Config map[string]string

	tables map[*scope.Scope]*action.Table
}

// NewLoader wires a fresh set of process-wide pools and registers the
// built-in target types (file, dir, alias, fsdir, group).
func NewLoader() *Loader {
	l := &Loader{
		Pool:   pool.New(),
		Vars:   vars.New(),
		Types:  make(map[string]*target.Type),
		Config: make(map[string]string),
		tables: make(map[*scope.Scope]*action.Table),
	}
	l.Scopes = scope.New(l.Pool)
	l.Targets = target.NewSet()

	fileType := target.NewType("file", nil)
	l.Types["file"] = fileType
	l.Types["alias"] = target.NewType("alias", nil)
	dirType := target.NewType("dir", nil)
	dirType.SeeThrough = true
	l.Types["dir"] = dirType
	fsdirType := target.NewType("fsdir", dirType)
	l.Types["fsdir"] = fsdirType
	groupType := target.NewType("group", nil)
	groupType.SeeThrough = true
	l.Types["group"] = groupType
	return l
}

// IsSrcRoot reports whether dir contains build/bootstrap.build or
// build/root.build.
func IsSrcRoot(dir string) bool {
	return exists(filepath.Join(dir, "build", "bootstrap.build")) ||
		exists(filepath.Join(dir, "build", "root.build"))
}

// IsOutRoot reports whether dir contains build/bootstrap/src-root.build.
func IsOutRoot(dir string) bool {
	return exists(filepath.Join(dir, "build", "bootstrap", "src-root.build"))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RootMismatchError reports create_root being called twice for the same
// out_root with an inconsistent src_root.
type RootMismatchError struct {
	OutRoot        string
	Old, Attempted string
}

func (e *RootMismatchError) Error() string {
	return fmt.Sprintf("root-mismatch: %s already bootstrapped with src_root %q, got %q", e.OutRoot, e.Old, e.Attempted)
}

// CreateRoot allocates or reuses the root scope for outRoot, seeds its
// canonical action table, and assigns out_root/src_root. Step 1 of the
// bootstrap sequence.
func (l *Loader) CreateRoot(outRoot, srcRoot string) (*scope.Scope, error) {
	sc := l.Scopes.Insert(outRoot, true)
	sc.Assign("out_root", vars.DirPath(outRoot), &scope.Decl{Kind: vars.KindAbsDirPath, Visibility: vars.VisibilityProject})

	if srcRoot != "" {
		if err := sc.SetSrcPath(l.Pool.InternDir(srcRoot)); err != nil {
			old, _ := sc.SrcPath()
			return nil, &RootMismatchError{OutRoot: outRoot, Old: old.String(), Attempted: srcRoot}
		}
		sc.Assign("src_root", vars.DirPath(srcRoot), &scope.Decl{Kind: vars.KindAbsDirPath, Visibility: vars.VisibilityProject})
	}

	if _, ok := l.tables[sc]; !ok {
		l.tables[sc] = action.NewTable()
	}
	return sc, nil
}

// Table returns the action table for a root scope, creating one if
// CreateRoot had not already (defensive; normal flow always goes through
// CreateRoot first).
func (l *Loader) Table(root *scope.Scope) *action.Table {
	t, ok := l.tables[root]
	if !ok {
		t = action.NewTable()
		l.tables[root] = t
	}
	return t
}

// sourceOnceIfExists sources path into sc via builtfile.Parse, honouring
// "once" semantics via sc.MarkSourced; existed is false (no error) if the
// file is simply absent.
func (l *Loader) sourceOnceIfExists(sc *scope.Scope, path string) (existed bool, err error) {
	if !sc.MarkSourced(path) {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	sink := &scopeSink{l: l, sc: sc}
	if err := builtfile.Parse(f, sink); err != nil {
		return true, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// sourceCUEOnceIfExists is sourceOnceIfExists's CUE-syntax counterpart:
// same "once" and absence-is-not-an-error semantics, driving
// builtfile.ParseCUE instead of Parse.
func (l *Loader) sourceCUEOnceIfExists(sc *scope.Scope, path string) (existed bool, err error) {
	if !sc.MarkSourced(path) {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	sink := &scopeSink{l: l, sc: sc}
	if err := builtfile.ParseCUE(f, path, sink); err != nil {
		return true, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// BootstrapOut is step 2: source <out_root>/build/bootstrap/src-root.build
// once, if present.
func (l *Loader) BootstrapOut(sc *scope.Scope) error {
	out, _ := sc.Find("out_root")
	outRoot := valueString(out)
	_, err := l.sourceOnceIfExists(sc, filepath.Join(outRoot, "build", "bootstrap", "src-root.build"))
	return err
}

// BootstrapSrc is step 3: source <src_root>/build/bootstrap.build once.
// Returns false if absent.
func (l *Loader) BootstrapSrc(sc *scope.Scope) (bool, error) {
	src, hasSrc := sc.SrcPath()
	if !hasSrc {
		return false, fmt.Errorf("no-src-root: scope %s has no src_root", sc.OutPath())
	}
	return l.sourceOnceIfExists(sc, filepath.Join(src.String(), "build", "bootstrap.build"))
}

// CreateBootstrapOuter is step 4: if the amalgamation variable is set,
// recursively bootstrap the enclosing project the same way, and verify
// any src_root adjustment matches.
func (l *Loader) CreateBootstrapOuter(sc *scope.Scope) error {
	amalg, _ := sc.Find("amalgamation")
	dir, ok := amalg.(vars.DirPath)
	if !ok || dir == "" {
		return nil
	}
	outerOut := string(dir)
	outer, err := l.CreateRoot(outerOut, "")
	if err != nil {
		return err
	}
	if err := l.BootstrapOut(outer); err != nil {
		return err
	}
	if _, err := l.BootstrapSrc(outer); err != nil {
		return err
	}
	if err := l.CreateBootstrapOuter(outer); err != nil {
		return err
	}

	outerSrc, hasOuterSrc := outer.SrcPath()
	if hasOuterSrc {
		if curSrc, hasCurSrc := sc.SrcPath(); hasCurSrc && !outerSrc.IsPrefixOf(curSrc) {
			return fmt.Errorf("bootstrap-mismatch: amalgamation src_root %s does not enclose %s", outerSrc, curSrc)
		}
	}
	return nil
}

// CreateBootstrapInner is step 5: if the subprojects variable lists a
// subproject containing the current out_base, descend and bootstrap it.
func (l *Loader) CreateBootstrapInner(sc *scope.Scope, outBase string) error {
	subs, _ := sc.Find("subprojects")
	list, ok := subs.(vars.List)
	if !ok {
		return nil
	}
	for _, v := range list.Vals {
		sub, ok := v.(vars.DirPath)
		if !ok {
			continue
		}
		subDir := l.Pool.InternDir(string(sub))
		if !subDir.IsPrefixOf(l.Pool.InternDir(outBase)) {
			continue
		}
		inner, err := l.CreateRoot(string(sub), "")
		if err != nil {
			return err
		}
		if err := l.BootstrapOut(inner); err != nil {
			return err
		}
		if _, err := l.BootstrapSrc(inner); err != nil {
			return err
		}
	}
	return nil
}

// LoadRootPre is step 6: source <src_root>/build/root.build once per
// scope, after outer roots have been bootstrapped.
func (l *Loader) LoadRootPre(sc *scope.Scope) error {
	src, hasSrc := sc.SrcPath()
	if !hasSrc {
		return fmt.Errorf("no-src-root: scope %s has no src_root", sc.OutPath())
	}
	_, err := l.sourceOnceIfExists(sc, filepath.Join(src.String(), "build", "root.build"))
	return err
}

// Bootstrap runs the full create_root..load_root_pre sequence for one
// project root.
func (l *Loader) Bootstrap(outRoot, srcRoot string) (*scope.Scope, error) {
	sc, err := l.CreateRoot(outRoot, srcRoot)
	if err != nil {
		return nil, err
	}
	if err := l.BootstrapOut(sc); err != nil {
		return nil, err
	}
	if _, err := l.BootstrapSrc(sc); err != nil {
		return nil, err
	}
	if err := l.CreateBootstrapOuter(sc); err != nil {
		return nil, err
	}
	if err := l.CreateBootstrapInner(sc, outRoot); err != nil {
		return nil, err
	}
	if err := l.LoadRootPre(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// LoadDir sources <dir>/buildfile and <dir>/buildfile.cue, if present,
// into the scope rooted at dir (creating it as a non-root child of
// root's tree if this is the first reference to it). Absence of either
// is not an error: a directory with only subdirectories of interest is
// common, and a directory can also mix the two, e.g. a line-oriented
// buildfile for its own targets plus a generated buildfile.cue for
// tool-authored ones.
func (l *Loader) LoadDir(dir string) (*scope.Scope, error) {
	sc := l.Scopes.Insert(dir, false)
	if _, err := l.sourceOnceIfExists(sc, filepath.Join(dir, "buildfile")); err != nil {
		return nil, err
	}
	if _, err := l.sourceCUEOnceIfExists(sc, filepath.Join(dir, "buildfile.cue")); err != nil {
		return nil, err
	}
	return sc, nil
}

// RegisterBuiltinRules installs the built-in path/dir/fsdir/install rules
// on root for the four reserved operations, the way a language module's
// "register rules for my target types" bootstrap step would for its own
// types. Every project root needs this once, since nothing else in the
// loader installs a default rule for the file/alias/dir/fsdir/group
// types it creates in NewLoader.
func (l *Loader) RegisterBuiltinRules(root *scope.Scope) {
	for _, op := range []uint8{action.OpDefault, action.OpUpdate, action.OpClean} {
		rule.Register(root, op, "file", "", "path_rule", rule.PathRule{})
		rule.Register(root, op, "fsdir", "", "fsdir_rule", rule.FsdirRule{})
		for _, tn := range []string{"alias", "dir", "group"} {
			rule.Register(root, op, tn, "", "dir_rule", rule.DirRule{})
		}
	}
	rule.Register(root, action.OpInstall, "file", "", "install_rule", rule.InstallRule{})
	for _, tn := range []string{"alias", "dir", "fsdir", "group"} {
		rule.Register(root, action.OpInstall, tn, "", "dir_rule", rule.DirRule{})
	}
}

func valueString(v vars.Value) string {
	switch t := v.(type) {
	case vars.DirPath:
		return string(t)
	case vars.Path:
		return string(t)
	case vars.String:
		return string(t)
	default:
		return ""
	}
}
