package testscript

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden runs script against a fresh scope rooted at workDir,
// tracing every command it executes (program, arguments, and observed
// exit code, one line each), and asserts that trace against
// testdata/golden/<name>.golden using goldie. Regenerate golden files
// with:
//
//	go test ./internal/testscript -update
func RunWithGolden(t *testing.T, name, workDir string, script *Script) error {
	t.Helper()

	var buf bytes.Buffer
	r := NewRunner()
	r.Trace = &buf
	r.forceTrace = true

	sc := NewScope(workDir)
	runErr := r.Run(script, sc)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())

	return runErr
}
