package testscript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleCommand(t *testing.T) {
	script, err := Parse(strings.NewReader("touch foo.txt\n"))
	require.NoError(t, err)
	require.Len(t, script.Lines, 1)

	ln := script.Lines[0]
	assert.Equal(t, LineCmd, ln.Kind)
	require.Len(t, ln.Expr, 1)
	require.Len(t, ln.Expr[0].Pipe, 1)
	assert.Equal(t, "touch", ln.Expr[0].Pipe[0].Program)
	assert.Equal(t, []string{"foo.txt"}, ln.Expr[0].Pipe[0].Args)
	assert.Equal(t, DefaultExit, ln.Expr[0].Pipe[0].Exit)
}

func TestParse_VarAssignment(t *testing.T) {
	script, err := Parse(strings.NewReader("out_dir = output\n"))
	require.NoError(t, err)
	require.Len(t, script.Lines, 1)

	ln := script.Lines[0]
	assert.Equal(t, LineVar, ln.Kind)
	assert.Equal(t, "out_dir", ln.VarName)
	assert.Equal(t, "=", ln.VarOp)
	assert.Equal(t, "output", ln.VarValue)
}

func TestParse_ExitExpectation(t *testing.T) {
	script, err := Parse(strings.NewReader("false == 1\n"))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	assert.Equal(t, Exit{Comparison: ExitEq, Code: 1}, cmd.Exit)
}

func TestParse_Cleanup(t *testing.T) {
	script, err := Parse(strings.NewReader("mkdir out &out &?maybe.txt &!never.txt\n"))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	require.Len(t, cmd.Cleanups, 3)
	assert.Equal(t, Cleanup{Kind: CleanupAlways, Path: "out"}, cmd.Cleanups[0])
	assert.Equal(t, Cleanup{Kind: CleanupMaybe, Path: "maybe.txt"}, cmd.Cleanups[1])
	assert.Equal(t, Cleanup{Kind: CleanupNever, Path: "never.txt"}, cmd.Cleanups[2])
}

func TestParse_Pipe(t *testing.T) {
	script, err := Parse(strings.NewReader("cat foo.txt | grep bar\n"))
	require.NoError(t, err)
	pipe := script.Lines[0].Expr[0].Pipe
	require.Len(t, pipe, 2)
	assert.Equal(t, "cat", pipe[0].Program)
	assert.Equal(t, "grep", pipe[1].Program)
}

func TestParse_AndOrShortCircuit(t *testing.T) {
	script, err := Parse(strings.NewReader("true && echo yes || echo no\n"))
	require.NoError(t, err)
	expr := script.Lines[0].Expr
	require.Len(t, expr, 3)
	assert.Equal(t, ExprAnd, expr[1].Op)
	assert.Equal(t, ExprOr, expr[2].Op)
}

func TestParse_HereDocLiteral(t *testing.T) {
	src := "cat <<EOO >=out.txt\nhello\nworld\nEOO\n"
	script, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	assert.Equal(t, RedirectHereDocLiteral, cmd.In.Kind)
	require.Len(t, cmd.In.HereDoc.Lines, 2)
	assert.Equal(t, "hello", cmd.In.HereDoc.Lines[0].Value)
	assert.Equal(t, "world", cmd.In.HereDoc.Lines[1].Value)
	assert.Equal(t, RedirectFile, cmd.Out.Kind)
	assert.Equal(t, FileOverwrite, cmd.Out.FileMode)
}

func TestParse_HereDocFusedTerminator(t *testing.T) {
	// "<<EOO" with no space between the operator and the terminator
	// must parse identically to "<< EOO".
	src := "cat <<EOO\nline one\nEOO\n"
	script, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	require.Len(t, cmd.In.HereDoc.Lines, 1)
	assert.Equal(t, "line one", cmd.In.HereDoc.Lines[0].Value)
}

func TestParse_HereDocCustomPercentTerminator(t *testing.T) {
	src := "cat <<%END-OF-BLOCK%\nEOO\nstill inside\nEND-OF-BLOCK\n"
	script, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	require.Len(t, cmd.In.HereDoc.Lines, 2)
	assert.Equal(t, "EOO", cmd.In.HereDoc.Lines[0].Value)
	assert.Equal(t, "still inside", cmd.In.HereDoc.Lines[1].Value)
}

func TestParse_HereStringRegex(t *testing.T) {
	script, err := Parse(strings.NewReader(`grep foo <<<:'^[0-9]+$'` + "\n"))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	assert.Equal(t, RedirectHereStrRegex, cmd.In.Kind)
}

func TestParse_MergeStreams(t *testing.T) {
	script, err := Parse(strings.NewReader("prog 2>&1\n"))
	require.NoError(t, err)
	cmd := script.Lines[0].Expr[0].Pipe[0]
	assert.Equal(t, Redirect{Kind: RedirectMerge, MergeFD: 1}, cmd.Err)
}

func TestParse_IfElifElseEnd(t *testing.T) {
	src := "if (true)\n  echo a\nelif (true)\n  echo b\nelse\n  echo c\nend\n"
	script, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	var kinds []LineKind
	for _, ln := range script.Lines {
		kinds = append(kinds, ln.Kind)
	}
	assert.Equal(t, []LineKind{LineIf, LineCmd, LineElif, LineCmd, LineElse, LineCmd, LineEnd}, kinds)
}

func TestParse_UnterminatedHereDocErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("cat <<EOO\nhello\n"))
	assert.Error(t, err)
}

func TestParse_UnterminatedQuoteErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("echo 'unterminated\n"))
	assert.Error(t, err)
}
