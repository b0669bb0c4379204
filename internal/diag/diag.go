// Package diag implements the engine's diagnostic model: categorised,
// severity-tagged, chainable diagnostics bound to a source location.
//
// It wraps github.com/ZanzyTHEbar/errbuilder-go (the chained-diagnostics
// library avular-robotics-avular-packages' CLI layer uses for its own
// error reporting) rather than hand-rolling a parallel chain/cause/code
// type, since that library's WithCode/WithMsg/WithCause/WithDetails chain
// already matches the category+severity+info-annotation shape this
// package needs.
package diag

import (
	"fmt"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
)

// Category is one of the engine's six error categories.
type Category int

const (
	CategoryUserInput Category = iota
	CategoryEnvironment
	CategoryConfiguration
	CategoryRuleProtocol
	CategoryExecution
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryUserInput:
		return "user-input"
	case CategoryEnvironment:
		return "environment"
	case CategoryConfiguration:
		return "configuration"
	case CategoryRuleProtocol:
		return "rule-protocol"
	case CategoryExecution:
		return "execution"
	default:
		return "internal"
	}
}

// code maps a Category to the nearest errbuilder.ErrCode, so
// exit-code derivation downstream (cmd/kiln) can reuse errbuilder.CodeOf
// the way avular-packages' exitCodeForError does.
func (c Category) code() errbuilder.ErrCode {
	switch c {
	case CategoryUserInput:
		return errbuilder.CodeInvalidArgument
	case CategoryEnvironment:
		return errbuilder.CodeUnavailable
	case CategoryConfiguration:
		return errbuilder.CodeFailedPrecondition
	case CategoryRuleProtocol:
		return errbuilder.CodeFailedPrecondition
	case CategoryExecution:
		return errbuilder.CodeAborted
	default:
		return errbuilder.CodeInternal
	}
}

// Severity is the engine's five-level diagnostic scale. Fail is
// terminating; Error records and continues.
type Severity int

const (
	Trace Severity = iota
	Info
	Warn
	Error
	Fail
)

func (s Severity) String() string {
	switch s {
	case Trace:
		return "trace"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "fail"
	}
}

// Location is a source position a diagnostic is bound to.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line == 0 {
		return l.File
	}
	if l.Column == 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Diagnostic is a categorised, severity-tagged, chainable error. It wraps
// an *errbuilder.ErrBuilder so callers can still use errbuilder.CodeOf
// and errors.As against the underlying builder.
type Diagnostic struct {
	category Category
	severity Severity
	location Location
	infos    []string
	builder  *errbuilder.ErrBuilder
}

// New starts a Diagnostic in the given category at severity Fail (the
// common case for an aborting diagnostic); chain WithSeverity to change
// it, or use the Tracef/Infof/Warnf/Errorf/Failf constructors below.
func New(category Category) *Diagnostic {
	return &Diagnostic{
		category: category,
		severity: Fail,
		builder:  errbuilder.New().WithCode(category.code()),
	}
}

func build(category Category, severity Severity, format string, args ...any) *Diagnostic {
	d := New(category)
	d.severity = severity
	d.builder = d.builder.WithMsg(fmt.Sprintf(format, args...))
	return d
}

func Tracef(c Category, format string, args ...any) *Diagnostic {
	return build(c, Trace, format, args...)
}
func Infof(c Category, format string, args ...any) *Diagnostic {
	return build(c, Info, format, args...)
}
func Warnf(c Category, format string, args ...any) *Diagnostic {
	return build(c, Warn, format, args...)
}
func Errorf(c Category, format string, args ...any) *Diagnostic {
	return build(c, Error, format, args...)
}
func Failf(c Category, format string, args ...any) *Diagnostic {
	return build(c, Fail, format, args...)
}

// WithSeverity sets the diagnostic's severity.
func (d *Diagnostic) WithSeverity(s Severity) *Diagnostic {
	d.severity = s
	return d
}

// WithLocation binds the diagnostic to a source position.
func (d *Diagnostic) WithLocation(file string, line, col int) *Diagnostic {
	d.location = Location{File: file, Line: line, Column: col}
	return d
}

// WithMessage sets the diagnostic's primary message.
func (d *Diagnostic) WithMessage(format string, args ...any) *Diagnostic {
	d.builder = d.builder.WithMsg(fmt.Sprintf(format, args...))
	return d
}

// WithCause chains an underlying error as the diagnostic's cause.
func (d *Diagnostic) WithCause(err error) *Diagnostic {
	d.builder = d.builder.WithCause(err)
	return d
}

// WithInfo appends a chained "info" annotation, the way build2's
// diagnostics chain a primary message with one or more info lines.
func (d *Diagnostic) WithInfo(format string, args ...any) *Diagnostic {
	d.infos = append(d.infos, fmt.Sprintf(format, args...))
	return d
}

// Category returns the diagnostic's category.
func (d *Diagnostic) Category() Category { return d.category }

// Severity returns the diagnostic's severity.
func (d *Diagnostic) Severity() Severity { return d.severity }

// Fatal reports whether the diagnostic's severity aborts the invocation.
func (d *Diagnostic) Fatal() bool { return d.severity == Fail }

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	loc := d.location.String()
	msg := d.builder.Error()
	out := msg
	if loc != "" {
		out = fmt.Sprintf("%s: %s: %s", loc, d.severity, msg)
	} else {
		out = fmt.Sprintf("%s: %s", d.severity, msg)
	}
	for _, info := range d.infos {
		out += "\n  info: " + info
	}
	return out
}

// Unwrap exposes the underlying errbuilder chain to errors.As/errors.Is.
func (d *Diagnostic) Unwrap() error { return d.builder }

// Log accumulates non-fatal diagnostics ("error: records and continues"),
// mirroring the engine's log-and-continue policy for Error severity.
type Log struct {
	entries []*Diagnostic
}

// Record appends a diagnostic to the log.
func (l *Log) Record(d *Diagnostic) { l.entries = append(l.entries, d) }

// Entries returns the accumulated diagnostics.
func (l *Log) Entries() []*Diagnostic { return l.entries }

// HasErrors reports whether any recorded diagnostic is at Error or Fail
// severity.
func (l *Log) HasErrors() bool {
	for _, d := range l.entries {
		if d.severity >= Error {
			return true
		}
	}
	return false
}
