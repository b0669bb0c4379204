package cli

import (
	"path/filepath"
	"strings"

	"github.com/kiln-build/kiln/internal/config"
	"github.com/kiln-build/kiln/internal/project"
	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/target"
)

// splitArgs separates a perform-style argument list into target names
// and "name=value" configuration overrides, the same split build2's
// command line makes between operation arguments and config variables.
func splitArgs(args []string) (targets, configArgs []string) {
	for _, a := range args {
		if strings.Contains(a, "=") && !strings.Contains(a, "/") {
			configArgs = append(configArgs, a)
			continue
		}
		targets = append(targets, a)
	}
	return targets, configArgs
}

// projectHandle bundles everything a meta-operation command needs after
// bootstrapping: the loader (process-wide pools), the root scope, and
// the layered configuration.
type projectHandle struct {
	Loader *project.Loader
	Root   *scope.Scope
	Config *config.Build
}

// openProject bootstraps outRoot/srcRoot, registers the built-in rules,
// and layers cliConfigArgs on top of the persisted config.build.
func openProject(outRoot, srcRoot string, cliConfigArgs []string) (*projectHandle, error) {
	l := project.NewLoader()
	root, err := l.Bootstrap(outRoot, srcRoot)
	if err != nil {
		return nil, err
	}
	l.RegisterBuiltinRules(root)

	cfg, err := config.Load(outRoot, cliConfigArgs)
	if err != nil {
		return nil, err
	}
	return &projectHandle{Loader: l, Root: root, Config: cfg}, nil
}

// resolveTargets loads each target name's containing directory buildfile
// (so a target already declared there brings its real prerequisites)
// and returns the resolved *target.Target for each, in argument order.
// A name with no declaration anywhere is inserted fresh with the "file"
// type (or "fsdir" for a trailing-slash name), matching the loader's own
// DeclareTarget convention for a bare reference.
func (h *projectHandle) resolveTargets(names []string) ([]*target.Target, error) {
	if len(names) == 0 {
		return []*target.Target{h.defaultTarget()}, nil
	}

	out := make([]*target.Target, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSuffix(name, "/")
		dir := filepath.Dir(trimmed)
		base := filepath.Base(trimmed)
		if dir == "." {
			dir = h.Root.OutPath().String()
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(h.Root.OutPath().String(), dir)
		}

		sc, err := h.Loader.LoadDir(dir)
		if err != nil {
			return nil, err
		}

		typ := h.Loader.Types["file"]
		if strings.HasSuffix(name, "/") {
			typ = h.Loader.Types["fsdir"]
			base += "/"
		}
		d := h.Loader.Pool.InternDir(dir)
		t, _ := h.Loader.Targets.Insert(typ, d, d, base, func(nt *target.Target) {
			nt.BaseScope = sc
		})
		out = append(out, t)
	}
	return out, nil
}

// defaultTarget returns the root scope's "default" alias target, the
// implicit target a bare "kiln perform update" (no target arguments)
// builds.
func (h *projectHandle) defaultTarget() *target.Target {
	d := h.Root.OutPath()
	t, _ := h.Loader.Targets.Insert(h.Loader.Types["alias"], d, d, "default", func(nt *target.Target) {
		nt.BaseScope = h.Root
	})
	return t
}
