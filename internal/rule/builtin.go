package rule

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kiln-build/kiln/internal/action"
	"github.com/kiln-build/kiln/internal/manifest"
	"github.com/kiln-build/kiln/internal/target"
	"github.com/kiln-build/kiln/internal/vars"
)

// pathMatchData carries the filesystem path derived during Match, so
// Apply does not need to recompute it.
type pathMatchData struct {
	path string
	info os.FileInfo // nil if the file did not exist at match time
}

// PathRule is the fallback rule for plain path targets: for update it
// matches only if the file exists on disk; for other operations it
// matches unconditionally, returning noop for clean and default
// otherwise. It declares itself a Fallback so an explicit, more specific
// rule for the same (operation, type) wins the ambiguous-match tie-break.
type PathRule struct{}

func (PathRule) IsFallback() bool { return true }

func (PathRule) Match(a action.ID, t *target.Target, hint string) (MatchData, bool) {
	p := targetPath(t)
	info, err := os.Stat(p)
	if a.Operation() == action.OpUpdate {
		if err != nil {
			return nil, false
		}
		return pathMatchData{path: p, info: info}, true
	}
	if err == nil {
		return pathMatchData{path: p, info: info}, true
	}
	return pathMatchData{path: p}, true
}

func (PathRule) Apply(a action.ID, t *target.Target, md MatchData) (target.Recipe, error) {
	pmd := md.(pathMatchData)
	switch a.Operation() {
	case action.OpClean:
		return target.Noop, nil
	case action.OpUpdate:
		return target.RecipeFunc(func(t *target.Target, act uint32, d target.Driver) (target.State, error) {
			return performPathUpdate(t, act, d, pmd)
		}), nil
	default:
		return defaultForwardRecipe(), nil
	}
}

// OlderPrerequisiteError reports that a path target's newest prerequisite
// is newer than the target itself, with no recipe able to rebuild it.
type OlderPrerequisiteError struct {
	Target, Prerequisite string
	Delta                time.Duration
}

func (e *OlderPrerequisiteError) Error() string {
	return fmt.Sprintf("no-recipe-but-older-prereq: prerequisite %s ahead of target %s by %s",
		e.Prerequisite, e.Target, e.Delta)
}

func performPathUpdate(t *target.Target, a uint32, d target.Driver, pmd pathMatchData) (target.State, error) {
	if pmd.info == nil {
		info, err := os.Stat(pmd.path)
		if err != nil {
			return target.StateFailed, err
		}
		pmd.info = info
	}
	prereqs := t.PrerequisiteTargets()
	_, postponed, err := target.ExecuteAll(prereqs, a, d)
	if err != nil {
		return target.StateFailed, err
	}
	if postponed {
		return target.StatePostponed, nil
	}
	for _, p := range prereqs {
		pi, err := os.Stat(targetPath(p))
		if err != nil {
			continue
		}
		if pi.ModTime().After(pmd.info.ModTime()) {
			return target.StateFailed, &OlderPrerequisiteError{
				Target:       t.Name,
				Prerequisite: p.Name,
				Delta:        pi.ModTime().Sub(pmd.info.ModTime()),
			}
		}
	}
	return target.StateUnchanged, nil
}

// DirRule is alias-like: it just forwards to prerequisites. On clean, it
// filters prerequisites to those inside its own directory, mirroring the
// engine's "clean only what this directory owns" rule.
type DirRule struct {
	// InspectAction controls whether Match inspects the action at all:
	// when set, Match rejects operations it does not recognise instead
	// of matching unconditionally.
	InspectAction bool
}

func (d DirRule) Match(a action.ID, t *target.Target, hint string) (MatchData, bool) {
	if d.InspectAction {
		switch a.Operation() {
		case action.OpDefault, action.OpUpdate, action.OpClean:
		default:
			return nil, false
		}
	}
	return nil, true
}

func (d DirRule) Apply(a action.ID, t *target.Target, md MatchData) (target.Recipe, error) {
	if a.Operation() == action.OpClean {
		return target.RecipeFunc(func(t *target.Target, act uint32, drv target.Driver) (target.State, error) {
			var owned []*target.Target
			for _, p := range t.PrerequisiteTargets() {
				if t.Dir.IsPrefixOf(p.Dir) {
					owned = append(owned, p)
				}
			}
			changed, postponed, err := target.ExecuteAll(owned, act, drv)
			if err != nil {
				return target.StateFailed, err
			}
			if postponed {
				return target.StatePostponed, nil
			}
			if changed {
				return target.StateChanged, nil
			}
			return target.StateUnchanged, nil
		}), nil
	}
	return defaultForwardRecipe(), nil
}

// FsdirRule materialises a filesystem directory target: update creates
// it (after its prerequisite chain, i.e. parent directories), clean
// removes it in reverse order and reports Postponed if the directory is
// not empty.
type FsdirRule struct{}

func (FsdirRule) Match(a action.ID, t *target.Target, hint string) (MatchData, bool) {
	switch a.Operation() {
	case action.OpDefault, action.OpUpdate, action.OpClean:
		return nil, true
	default:
		return nil, false
	}
}

func (FsdirRule) Apply(a action.ID, t *target.Target, md MatchData) (target.Recipe, error) {
	switch a.Operation() {
	case action.OpUpdate, action.OpDefault:
		return target.RecipeFunc(func(t *target.Target, act uint32, d target.Driver) (target.State, error) {
			return performFsdirUpdate(t, act, d)
		}), nil
	case action.OpClean:
		return target.RecipeFunc(func(t *target.Target, act uint32, d target.Driver) (target.State, error) {
			return performFsdirClean(t, act, d)
		}), nil
	default:
		return target.Noop, nil
	}
}

func performFsdirUpdate(t *target.Target, a uint32, d target.Driver) (target.State, error) {
	_, postponed, err := target.ExecuteAll(t.PrerequisiteTargets(), a, d)
	if err != nil {
		return target.StateFailed, err
	}
	if postponed {
		return target.StatePostponed, nil
	}
	p := targetDirPath(t)
	info, err := os.Stat(p)
	if err == nil && info.IsDir() {
		return target.StateUnchanged, nil
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return target.StateFailed, err
	}
	return target.StateChanged, nil
}

func performFsdirClean(t *target.Target, a uint32, d target.Driver) (target.State, error) {
	p := targetDirPath(t)
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return cleanPrereqsInReverse(t, a, d)
		}
		if isNotEmpty(err) {
			return target.StatePostponed, nil
		}
		return target.StateFailed, err
	}
	return cleanPrereqsInReverse(t, a, d)
}

func cleanPrereqsInReverse(t *target.Target, a uint32, d target.Driver) (target.State, error) {
	prereqs := t.PrerequisiteTargets()
	postponed := false
	for i := len(prereqs) - 1; i >= 0; i-- {
		s, err := d.Execute(prereqs[i], a)
		if err != nil {
			return target.StateFailed, err
		}
		if s == target.StatePostponed {
			postponed = true
		}
	}
	if postponed {
		return target.StatePostponed, nil
	}
	return target.StateChanged, nil
}

func isNotEmpty(err error) bool {
	pe, ok := err.(*os.PathError)
	if !ok {
		return false
	}
	return pe.Err != nil && (pe.Err.Error() == "directory not empty" || os.IsExist(pe.Err))
}

func targetPath(t *target.Target) string {
	if t.Out.String() != "" {
		return filepath.Join(t.Out.String(), t.Name)
	}
	return filepath.Join(t.Dir.String(), t.Name)
}

func targetDirPath(t *target.Target) string {
	return filepath.Join(t.Dir.String(), t.Name) + string(filepath.Separator)
}

// InstallRule matches file targets for the "install" operation: it
// forwards to prerequisites first (so a target and everything it depends
// on lands together), then copies the target's own path into the
// resolved destination directory and appends a record to the project's
// install manifest.
type InstallRule struct{}

func (InstallRule) Match(a action.ID, t *target.Target, hint string) (MatchData, bool) {
	return nil, true
}

func (InstallRule) Apply(a action.ID, t *target.Target, md MatchData) (target.Recipe, error) {
	return target.RecipeFunc(func(t *target.Target, act uint32, d target.Driver) (target.State, error) {
		return performInstall(t, act, d)
	}), nil
}

func performInstall(t *target.Target, a uint32, d target.Driver) (target.State, error) {
	_, postponed, err := target.ExecuteAll(t.PrerequisiteTargets(), a, d)
	if err != nil {
		return target.StateFailed, err
	}
	if postponed {
		return target.StatePostponed, nil
	}

	destDir := installDestDir(t)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return target.StateFailed, err
	}

	src := targetPath(t)
	dst := filepath.Join(destDir, t.Name)
	if err := copyFile(src, dst); err != nil {
		return target.StateFailed, err
	}

	if err := recordInstall(t, src, dst); err != nil {
		return target.StateFailed, err
	}

	return target.StateChanged, nil
}

// installDestDir resolves the "install.destdir" scope variable, falling
// back to <out_root>/.kiln/install when the project leaves it unset.
func installDestDir(t *target.Target) string {
	if v, _ := t.BaseScope.Find("install.destdir"); v != nil {
		if s, ok := v.(vars.String); ok && s != "" {
			return string(s)
		}
		if p, ok := v.(vars.DirPath); ok && p != "" {
			return string(p)
		}
	}
	return filepath.Join(t.BaseScope.OutPath().String(), ".kiln", "install")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func recordInstall(t *target.Target, src, dst string) error {
	dir := filepath.Join(t.BaseScope.OutPath().String(), ".kiln")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w, err := manifest.Create(filepath.Join(dir, "install-manifest.jsonl"))
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Append(manifest.Record{Source: src, Destination: dst, InstalledAt: time.Now()})
}

// defaultForwardRecipe is the "default" recipe: forward to prerequisites,
// reporting Postponed if any of them did, else Changed iff any changed.
func defaultForwardRecipe() target.Recipe {
	return target.RecipeFunc(func(t *target.Target, a uint32, d target.Driver) (target.State, error) {
		changed, postponed, err := target.ExecuteAll(t.PrerequisiteTargets(), a, d)
		if err != nil {
			return target.StateFailed, err
		}
		if postponed {
			return target.StatePostponed, nil
		}
		if changed {
			return target.StateChanged, nil
		}
		return target.StateUnchanged, nil
	})
}
