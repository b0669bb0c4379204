package project

import (
	"fmt"
	"strings"

	"github.com/kiln-build/kiln/internal/scope"
	"github.com/kiln-build/kiln/internal/target"
	"github.com/kiln-build/kiln/internal/vars"
)

// scopeSink adapts a Loader+Scope pair to builtfile.Sink, translating
// the minimal buildfile surface into concrete scope assign/append and
// target-set insert operations.
type scopeSink struct {
	l          *Loader
	sc         *scope.Scope
	lastTarget *target.Target
}

func (s *scopeSink) Assign(name, value string) error {
	s.sc.Assign(name, coerce(name, value), nil)
	return s.maybeSetSrcPath(name, value)
}

// maybeSetSrcPath special-cases an assignment to "src_root" at a root
// scope: this is how an out-of-tree project's
// build/bootstrap/src-root.build tells its out-of-tree out_root scope
// where its source tree actually lives, the one piece of bootstrap state
// that has to flow from a sourced buildfile into the scope's authoritative
// src-path rather than just its variable table.
func (s *scopeSink) maybeSetSrcPath(name, value string) error {
	if name != "src_root" || !s.sc.IsRoot() {
		return nil
	}
	return s.sc.SetSrcPath(s.l.Pool.InternDir(value))
}

func (s *scopeSink) Append(name, value string) error {
	return s.sc.Append(name, coerce(name, value), nil)
}

func (s *scopeSink) DefaultAssign(name, value string) error {
	s.sc.DefaultAssign(name, coerce(name, value), nil)
	return nil
}

func (s *scopeSink) DeclareTarget(name string, prereqs []string) error {
	typ := s.l.Types["file"]
	if strings.HasSuffix(name, "/") {
		typ = s.l.Types["fsdir"]
	}
	dir := s.sc.OutPath()
	t, _ := s.l.Targets.Insert(typ, dir, dir, name, func(nt *target.Target) {
		nt.BaseScope = s.sc
	})
	for _, p := range prereqs {
		t.Prereqs = append(t.Prereqs, target.Prerequisite{Name: p, Dir: dir})
	}
	s.lastTarget = t
	return nil
}

func (s *scopeSink) SetTargetVar(targetName, varName, value string) error {
	if s.lastTarget == nil || s.lastTarget.Name != targetName {
		return fmt.Errorf("no current target %q for local variable %q", targetName, varName)
	}
	b := s.lastTarget.LocalVar(varName)
	b.Base = coerce(varName, value)
	return nil
}

// coerce does a best-effort typing of a raw buildfile value: true/false
// become Bool, anything else stays a String. Richer typing belongs to the
// (out of scope) real buildfile evaluator; this keeps the minimal surface
// usable for config.* flags without inventing a parser.
func coerce(name, value string) vars.Value {
	switch value {
	case "true":
		return vars.Bool(true)
	case "false":
		return vars.Bool(false)
	default:
		return vars.String(value)
	}
}
