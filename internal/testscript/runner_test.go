package testscript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScript(t *testing.T, src string) (*Scope, error) {
	t.Helper()
	script, err := Parse(strings.NewReader(src))
	require.NoError(t, err)

	dir := t.TempDir()
	work := filepath.Join(dir, "scope")
	sc := NewScope(work)
	r := NewRunner()
	return sc, r.Run(script, sc)
}

func TestRunner_SimpleCommandSucceeds(t *testing.T) {
	_, err := runScript(t, "true\n")
	assert.NoError(t, err)
}

func TestRunner_ExitMismatchFails(t *testing.T) {
	_, err := runScript(t, "false\n")
	require.Error(t, err)
}

func TestRunner_ExplicitExitCode(t *testing.T) {
	_, err := runScript(t, "false == 1\n")
	assert.NoError(t, err)
}

func TestRunner_CreatesFileWithCleanup(t *testing.T) {
	sc, err := runScript(t, "touch greeting.txt &greeting.txt\n")
	require.NoError(t, err)
	// cleanup already ran as part of Run; the file should be gone.
	_, statErr := os.Stat(filepath.Join(sc.WorkDir, "greeting.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunner_CleanupAlwaysFailsIfMissing(t *testing.T) {
	_, err := runScript(t, "true &nonexistent.txt\n")
	require.Error(t, err)
	var cerr *CleanupError
	ok := asCleanupError(err, &cerr)
	require.True(t, ok)
}

func TestRunner_CleanupMaybeToleratesMissing(t *testing.T) {
	_, err := runScript(t, "true &?nonexistent.txt\n")
	assert.NoError(t, err)
}

func TestRunner_HereStringAgainstStdoutMatches(t *testing.T) {
	_, err := runScript(t, "echo hello >>>hello\n")
	assert.NoError(t, err)
}

func TestRunner_HereStringMismatchProducesOutputMismatchError(t *testing.T) {
	_, err := runScript(t, "echo hello >>>goodbye\n")
	require.Error(t, err)
	var omErr *OutputMismatchError
	ok := asOutputMismatchError(err, &omErr)
	require.True(t, ok)
	assert.Equal(t, "stdout", omErr.Stream)
}

func TestRunner_HereStringRegexMatches(t *testing.T) {
	_, err := runScript(t, `echo 42 >>>:'[0-9]+'`+"\n")
	assert.NoError(t, err)
}

func TestRunner_RedirectNoneAssertsSilence(t *testing.T) {
	_, err := runScript(t, "true >-\n")
	assert.NoError(t, err)
}

func TestRunner_RedirectNoneFailsOnOutput(t *testing.T) {
	_, err := runScript(t, "echo noisy >-\n")
	require.Error(t, err)
}

func TestRunner_VariableExpansion(t *testing.T) {
	_, err := runScript(t, "name = world\necho hello $name >>>'hello world'\n")
	assert.NoError(t, err)
}

func TestRunner_IfTakesTrueBranch(t *testing.T) {
	_, err := runScript(t, "if (true)\n  echo yes >>>yes\nelse\n  echo no >>>yes\nend\n")
	assert.NoError(t, err)
}

func TestRunner_IfnTakesBranchOnFailure(t *testing.T) {
	_, err := runScript(t, "ifn (false)\n  echo yes >>>yes\nelse\n  echo no >>>yes\nend\n")
	assert.NoError(t, err)
}

func TestRunner_AndShortCircuitSkipsSecondTerm(t *testing.T) {
	_, err := runScript(t, "false && echo unreachable >-\n")
	require.Error(t, err) // the expression itself still fails (first term failed)
}

func TestRunner_OrShortCircuitRecoversFromFailure(t *testing.T) {
	_, err := runScript(t, "false || true\n")
	assert.NoError(t, err)
}

func TestRunner_PipeJoinsCommands(t *testing.T) {
	_, err := runScript(t, "echo hello | cat >>>hello\n")
	assert.NoError(t, err)
}

func TestRunner_FileRedirectCompareRoundTrip(t *testing.T) {
	sc, err := runScript(t, "echo hello >=out.txt\ncat <out.txt >>>hello &out.txt\n")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(sc.WorkDir, "out.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func asCleanupError(err error, target **CleanupError) bool {
	for {
		if ce, ok := err.(*CleanupError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
		if err == nil {
			return false
		}
	}
}

func asOutputMismatchError(err error, target **OutputMismatchError) bool {
	if oe, ok := err.(*OutputMismatchError); ok {
		*target = oe
		return true
	}
	return false
}
