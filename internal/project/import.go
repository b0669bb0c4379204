package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/vars"
)

// UnknownImportProjectError reports that config.<project> is not set for
// an imported project name.
type UnknownImportProjectError struct {
	Project string
}

func (e *UnknownImportProjectError) Error() string {
	return fmt.Sprintf("unknown-import-project: no config.%s out_root configured", e.Project)
}

// OpenFailedError reports that an imported project's export.build could
// not be opened.
type OpenFailedError struct {
	Path string
	Err  error
}

func (e *OpenFailedError) Error() string {
	return fmt.Sprintf("open-failed: %s: %v", e.Path, e.Err)
}

// Import implements the import protocol: split name into project and
// target, resolve the imported project's out_root, bootstrap it without
// guessing src_root, then evaluate export.build in a temporary scope
// that pre-assigns out_root/src_root/target and is discarded afterward —
// guaranteeing nothing leaks back into ibase.
func (l *Loader) Import(ibase *scope.Scope, name, loc string) (vars.Value, error) {
	projectName, targetName, err := splitImportName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}

	outRoot, err := l.resolveImportOutRoot(ibase, projectName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}

	root, err := l.CreateRoot(outRoot, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	if err := l.BootstrapOut(root); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	if _, err := l.BootstrapSrc(root); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	if err := l.CreateBootstrapOuter(root); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	if err := l.LoadRootPre(root); err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}

	src, hasSrc := root.SrcPath()
	if !hasSrc {
		return nil, fmt.Errorf("%s: no-src-root: import of %s has no src_root", loc, name)
	}

	tmp := scope.NewDetached(root)
	tmp.Assign("out_root", vars.DirPath(outRoot), nil)
	tmp.Assign("src_root", vars.DirPath(src.String()), nil)
	tmp.Assign("target", vars.String(targetName), nil)

	exportPath := filepath.Join(src.String(), "build", "export.build")
	existed, err := l.sourceOnceIfExists(tmp, exportPath)
	if err != nil {
		return nil, &OpenFailedError{Path: exportPath, Err: err}
	}
	if !existed {
		return nil, &OpenFailedError{Path: exportPath, Err: fmt.Errorf("not found")}
	}

	v, _ := tmp.Find(targetName)
	return v, nil
}

func (l *Loader) resolveImportOutRoot(ibase *scope.Scope, projectName string) (string, error) {
	if v, _ := ibase.Find("config." + projectName); v != nil {
		if s := valueString(v); s != "" {
			return s, nil
		}
	}
	if out, ok := l.Config[projectName]; ok {
		return out, nil
	}
	return "", &UnknownImportProjectError{Project: projectName}
}

func splitImportName(name string) (project, target string, err error) {
	project, target, ok := strings.Cut(name, "%")
	if !ok {
		return "", "", fmt.Errorf("invalid import name %q: want project%%target", name)
	}
	return project, target, nil
}
