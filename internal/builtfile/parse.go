// Package builtfile implements the buildfile surface that drives the
// loader's parser-facing API: assign, append, declare-target,
// set-target-var. Parse reads the minimal line-oriented directive
// syntax; ParseCUE reads the same directives expressed as structured
// CUE data, for projects that would rather declare their targets and
// variables as data than as line-oriented text.
package builtfile

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Sink is the contract a buildfile source drives as it parses:
// assignment, appending, target declaration, and per-target variable
// assignment. internal/project.Loader implements it.
type Sink interface {
	// Assign handles "name = value".
	Assign(name, value string) error
	// Append handles "name += value".
	Append(name, value string) error
	// DefaultAssign handles "name ?= value".
	DefaultAssign(name, value string) error
	// DeclareTarget handles "target: prereq1 prereq2 ...".
	DeclareTarget(name string, prereqs []string) error
	// SetTargetVar handles an indented "name = value" line immediately
	// following a target declaration, setting a target-local variable.
	SetTargetVar(targetName, varName, value string) error
}

// Parse reads a buildfile from r line by line, dispatching each directive
// to sink. Comments start with '#'; blank lines are ignored. A line
// indented with whitespace is a target-local variable assignment for the
// most recently declared target.
func Parse(r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	currentTarget := ""
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(strings.TrimSpace(raw), "#") {
			continue
		}
		indented := len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t')
		line := strings.TrimSpace(raw)

		if indented {
			if currentTarget == "" {
				return fmt.Errorf("buildfile:%d: indented line outside any target", lineNo)
			}
			name, value, err := parseAssignment(line)
			if err != nil {
				return fmt.Errorf("buildfile:%d: %w", lineNo, err)
			}
			if err := sink.SetTargetVar(currentTarget, name, value); err != nil {
				return fmt.Errorf("buildfile:%d: %w", lineNo, err)
			}
			continue
		}

		if idx := findTargetColon(line); idx >= 0 {
			name := strings.TrimSpace(line[:idx])
			rest := strings.TrimSpace(line[idx+1:])
			var prereqs []string
			if rest != "" {
				prereqs = strings.Fields(rest)
			}
			if err := sink.DeclareTarget(name, prereqs); err != nil {
				return fmt.Errorf("buildfile:%d: %w", lineNo, err)
			}
			currentTarget = name
			continue
		}

		currentTarget = ""
		name, op, value, err := parseDirective(line)
		if err != nil {
			return fmt.Errorf("buildfile:%d: %w", lineNo, err)
		}
		switch op {
		case "=":
			err = sink.Assign(name, value)
		case "+=":
			err = sink.Append(name, value)
		case "?=":
			err = sink.DefaultAssign(name, value)
		}
		if err != nil {
			return fmt.Errorf("buildfile:%d: %w", lineNo, err)
		}
	}
	return scanner.Err()
}

// findTargetColon finds the ':' that separates a target name from its
// prerequisite list: the first colon in line, or -1 if an '=' comes
// before it (the line is then an assignment). Quotes are not
// interpreted.
func findTargetColon(line string) int {
	if strings.ContainsAny(line, "=?") {
		// A line containing an assignment operator before any colon is a
		// variable assignment, not a target declaration (e.g.
		// "config.cxx.std ?= \"latest\"" contains no colon at all, but
		// this guard also protects "a = b:c" style values).
		eq := strings.IndexAny(line, "=")
		colon := strings.IndexByte(line, ':')
		if eq >= 0 && (colon < 0 || eq < colon) {
			return -1
		}
	}
	return strings.IndexByte(line, ':')
}

func parseAssignment(line string) (name, value string, err error) {
	n, op, v, err := parseDirective(line)
	if err != nil {
		return "", "", err
	}
	if op != "=" {
		return "", "", fmt.Errorf("target-local assignment must use '=': %q", line)
	}
	return n, v, nil
}

func parseDirective(line string) (name, op, value string, err error) {
	for _, candidate := range []string{"?=", "+=", "="} {
		if idx := strings.Index(line, candidate); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			value = strings.TrimSpace(line[idx+len(candidate):])
			value = strings.Trim(value, `"`)
			return name, candidate, value, nil
		}
	}
	return "", "", "", fmt.Errorf("not a recognised directive: %q", line)
}
