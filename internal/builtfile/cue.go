package builtfile

import (
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// ParseCUE reads a CUE-encoded buildfile, a structured alternative to
// Parse's line-oriented directive syntax, and drives the same sink
// assign/declare-target/set-target-var calls Parse does. A CUE buildfile
// has the shape:
//
//	vars: {
//		"config.cxx.std": "c++20"
//	}
//	targets: {
//		hello: {
//			prereqs: ["hello.cxx", "world.cxx"]
//			vars: {
//				"dist.subdir": "bin"
//			}
//		}
//	}
//
// filename is used only to attribute CUE's own error positions.
func ParseCUE(r io.Reader, filename string, sink Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return formatCUEError(filename, err)
	}

	if varsVal := v.LookupPath(cue.ParsePath("vars")); varsVal.Exists() {
		if err := applyCUEVars(varsVal, sink); err != nil {
			return formatCUEError(filename, err)
		}
	}

	targetsVal := v.LookupPath(cue.ParsePath("targets"))
	if !targetsVal.Exists() {
		return nil
	}
	iter, err := targetsVal.Fields()
	if err != nil {
		return formatCUEError(filename, err)
	}
	for iter.Next() {
		if err := applyCUETarget(iter.Label(), iter.Value(), sink); err != nil {
			return formatCUEError(filename, err)
		}
	}
	return nil
}

func applyCUEVars(v cue.Value, sink Sink) error {
	iter, err := v.Fields()
	if err != nil {
		return err
	}
	for iter.Next() {
		name := iter.Label()
		value, err := iter.Value().String()
		if err != nil {
			return fmt.Errorf("var %s: %w", name, err)
		}
		if err := sink.Assign(name, value); err != nil {
			return err
		}
	}
	return nil
}

func applyCUETarget(name string, v cue.Value, sink Sink) error {
	var prereqs []string
	if prereqVal := v.LookupPath(cue.ParsePath("prereqs")); prereqVal.Exists() {
		listIter, err := prereqVal.List()
		if err != nil {
			return fmt.Errorf("target %s: prereqs: %w", name, err)
		}
		for listIter.Next() {
			s, err := listIter.Value().String()
			if err != nil {
				return fmt.Errorf("target %s: prereqs: %w", name, err)
			}
			prereqs = append(prereqs, s)
		}
	}
	if err := sink.DeclareTarget(name, prereqs); err != nil {
		return fmt.Errorf("target %s: %w", name, err)
	}

	varsVal := v.LookupPath(cue.ParsePath("vars"))
	if !varsVal.Exists() {
		return nil
	}
	iter, err := varsVal.Fields()
	if err != nil {
		return fmt.Errorf("target %s: vars: %w", name, err)
	}
	for iter.Next() {
		varName := iter.Label()
		value, err := iter.Value().String()
		if err != nil {
			return fmt.Errorf("target %s.%s: %w", name, varName, err)
		}
		if err := sink.SetTargetVar(name, varName, value); err != nil {
			return fmt.Errorf("target %s.%s: %w", name, varName, err)
		}
	}
	return nil
}

// formatCUEError narrows a CUE error list down to its first, positioned
// error, the same reduction the teacher's own compiler package applies
// to keep multi-error CUE diagnostics from swamping the caller.
func formatCUEError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		p := positions[0]
		return fmt.Errorf("%s:%d:%d: %s", filename, p.Line(), p.Column(), first.Error())
	}
	return fmt.Errorf("%s: %w", filename, first)
}
