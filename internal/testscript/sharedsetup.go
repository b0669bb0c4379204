package testscript

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// SharedSetup is a block of lines prefixed with "+" at the top of a
// script file, parsed once and replayed into every scenario's scope
// before that scenario's own lines run. It exists for fixtures shared
// across many scenarios in the same file — creating a working tree,
// exporting common variables — without repeating them in each one.
type SharedSetup struct {
	Lines []Line
}

// ParseWithSetup reads a script file that may begin with a run of
// "+"-prefixed lines (the shared setup block) followed by the
// scenario's own lines, unprefixed. The "+" and exactly one following
// space are stripped before the line is parsed as usual; a shared
// setup line may not itself be blank or a comment-only line once
// unprefixed, since the prefix is what marks it as shared.
func ParseWithSetup(r io.Reader) (*SharedSetup, *Script, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	p := &parser{sc: sc}
	var setupLines, bodyLines []Line
	inSetup := true
	for p.advance() {
		if p.blank() {
			continue
		}
		raw := p.cur
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "+") {
			if !inSetup {
				return nil, nil, fmt.Errorf("testscript: line %d: shared setup line after scenario body started", p.lineNo)
			}
			p.cur = strings.TrimPrefix(strings.TrimPrefix(trimmed, "+"), " ")
			line, err := p.parseLine()
			if err != nil {
				return nil, nil, fmt.Errorf("testscript: line %d: %w", p.lineNo, err)
			}
			setupLines = append(setupLines, line)
			continue
		}
		inSetup = false
		line, err := p.parseLine()
		if err != nil {
			return nil, nil, fmt.Errorf("testscript: line %d: %w", p.lineNo, err)
		}
		bodyLines = append(bodyLines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("testscript: %w", err)
	}
	return &SharedSetup{Lines: setupLines}, &Script{Lines: bodyLines}, nil
}

// Apply replays the shared setup's lines into sc, ahead of running the
// scenario body that follows it. It does not enter or leave sc — the
// caller's Run call around the combined execution owns that.
func (s *SharedSetup) Apply(r *Runner, sc *Scope) error {
	return r.execBlock2(s.Lines, sc)
}

// RunScenario enters sc, replays setup (if non-nil) into it, then runs
// script, leaving sc whether or not the run succeeded.
func (r *Runner) RunScenario(setup *SharedSetup, script *Script, sc *Scope) error {
	if err := r.Enter(sc); err != nil {
		return err
	}
	var runErr error
	if setup != nil {
		runErr = setup.Apply(r, sc)
	}
	if runErr == nil {
		runErr = r.execBlock2(script.Lines, sc)
	}
	leaveErr := r.Leave(sc)
	if runErr != nil {
		return runErr
	}
	return leaveErr
}
