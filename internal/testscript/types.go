package testscript

// RedirectKind identifies what a command's stream is connected to.
type RedirectKind int

const (
	RedirectPass  RedirectKind = iota // inherit the parent's stream
	RedirectNull                      // /dev/null
	RedirectTrace                     // like pass, but echoed to the driver's trace
	RedirectMerge                     // dup of another stream's descriptor
	RedirectFile                      // an actual file, compare/overwrite/append
	RedirectNone                      // assert the stream produced no output
	RedirectHereStrLiteral
	RedirectHereStrRegex
	RedirectHereDocLiteral
	RedirectHereDocRegex
	RedirectHereDocRef // reference to a named here-document or here-string
)

// FileMode is the disposition of a RedirectFile output redirect.
type FileMode int

const (
	FileCompare   FileMode = iota // fail the command if content differs
	FileOverwrite                 // replace the file's content
	FileAppend                    // append to the file's content
)

// RegexLine is one line of a regex here-document/here-string: either a
// literal or a regular expression, carrying its source position for
// diagnostics.
type RegexLine struct {
	Regex bool
	Value string // the regex source, if Regex; otherwise the literal text
	Flags string // per-line flags, valid only if Regex (e.g. "d" for "don't require full match")
	Line  int
}

// RegexLines is a here-document/here-string body pre-parsed into
// per-line literal/regex alternatives plus flags applying to the whole
// body (e.g. "i" case-insensitive, "n" got may have more lines than
// specified).
type RegexLines struct {
	Flags string
	Lines []RegexLine
}

// Redirect describes one stream (stdin, stdout, or stderr) of a command.
type Redirect struct {
	Kind RedirectKind

	MergeFD int // RedirectMerge: 1 (stdout) or 2 (stderr)

	FilePath string   // RedirectFile
	FileMode FileMode // RedirectFile

	HereStr string // RedirectHereStrLiteral content, or RedirectHereStrRegex single line's source before parsing

	HereDoc RegexLines // RedirectHereDocLiteral/RedirectHereDocRegex content (literal lines have Regex=false)

	RefName string // RedirectHereDocRef: name of a here-document registered by DefineHereDoc
}

// CleanupKind is the strictness qualifier on a registered cleanup path.
type CleanupKind int

const (
	CleanupAlways CleanupKind = iota // fail if the path is missing when removed
	CleanupMaybe                     // ignore a missing path
	CleanupNever                     // don't remove, but still require presence unless maybe
)

// Cleanup is a path a command registers for removal when its scope is
// left, along with how strict that removal must be.
type Cleanup struct {
	Kind CleanupKind
	Path string
}

// ExitComparison is how a command's actual exit code is compared
// against its expectation.
type ExitComparison int

const (
	ExitEq ExitComparison = iota
	ExitNe
)

// Exit is a command's expected termination status.
type Exit struct {
	Comparison ExitComparison
	Code       uint8
}

// DefaultExit is the implicit expectation of every command that doesn't
// specify one: exit code 0.
var DefaultExit = Exit{Comparison: ExitEq, Code: 0}

// Command is one program invocation within a pipe.
type Command struct {
	Program string
	Args    []string

	In, Out, Err Redirect

	Cleanups []Cleanup
	Exit     Exit

	Line int
}

// Pipe is a sequence of commands connected by `|`.
type Pipe []Command

// ExprOp joins two pipes in an Expression.
type ExprOp int

const (
	ExprOr  ExprOp = iota // ||
	ExprAnd               // &&
)

// ExprTerm is one pipe in an Expression, AND/OR-ed against the running
// result of the terms before it. The first term's Op is ignored (the
// parser sets it to ExprAnd).
type ExprTerm struct {
	Op   ExprOp
	Pipe Pipe
}

// Expression is a sequence of pipes joined by && / || with short-circuit
// evaluation, the unit a command line or an if/ifn condition compiles to.
type Expression []ExprTerm

// LineKind identifies what kind of statement a parsed Line is.
type LineKind int

const (
	LineVar LineKind = iota
	LineCmd
	LineIf
	LineIfn
	LineElif
	LineElifn
	LineElse
	LineEnd
)

// Line is one pre-parsed statement of a script.
type Line struct {
	Kind LineKind

	VarName  string // LineVar
	VarValue string // LineVar
	VarOp    string // LineVar: "=", "+=", "=+", "?="

	Cond Expression // LineIf/LineIfn/LineElif/LineElifn
	Expr Expression // LineCmd

	SourceLine int
}

// Script is a parsed, flat sequence of lines; Runner groups them into
// scopes and evaluates control flow as it executes.
type Script struct {
	Lines []Line
}
