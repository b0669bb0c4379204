package builtfile_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-build/kiln/internal/builtfile"
)

// recordingSink captures every call ParseCUE/Parse makes, in order,
// enough to assert a CUE buildfile dispatches the same directives a
// line-oriented one would.
type recordingSink struct {
	assigns []string
	targets []string
	prereqs map[string][]string
	tvars   []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{prereqs: make(map[string][]string)}
}

func (s *recordingSink) Assign(name, value string) error {
	s.assigns = append(s.assigns, name+"="+value)
	return nil
}

func (s *recordingSink) Append(name, value string) error {
	s.assigns = append(s.assigns, name+"+="+value)
	return nil
}

func (s *recordingSink) DefaultAssign(name, value string) error {
	s.assigns = append(s.assigns, name+"?="+value)
	return nil
}

func (s *recordingSink) DeclareTarget(name string, prereqs []string) error {
	s.targets = append(s.targets, name)
	s.prereqs[name] = prereqs
	return nil
}

func (s *recordingSink) SetTargetVar(targetName, varName, value string) error {
	s.tvars = append(s.tvars, targetName+"."+varName+"="+value)
	return nil
}

func TestParseCUE_DeclaresTargetsAndVars(t *testing.T) {
	src := `
vars: {
	"config.cxx.std": "c++20"
}
targets: {
	hello: {
		prereqs: ["hello.cxx", "world.cxx"]
		vars: {
			"dist.subdir": "bin"
		}
	}
}
`
	sink := newRecordingSink()
	require.NoError(t, builtfile.ParseCUE(strings.NewReader(src), "buildfile.cue", sink))

	assert.Equal(t, []string{"config.cxx.std=c++20"}, sink.assigns)
	assert.Equal(t, []string{"hello"}, sink.targets)
	assert.Equal(t, []string{"hello.cxx", "world.cxx"}, sink.prereqs["hello"])
	assert.Equal(t, []string{"hello.dist.subdir=bin"}, sink.tvars)
}

func TestParseCUE_MissingSectionsAreNotErrors(t *testing.T) {
	sink := newRecordingSink()
	require.NoError(t, builtfile.ParseCUE(strings.NewReader(`vars: {}`), "buildfile.cue", sink))
	assert.Empty(t, sink.targets)
}

func TestParseCUE_InvalidCUEReportsPosition(t *testing.T) {
	sink := newRecordingSink()
	err := builtfile.ParseCUE(strings.NewReader(`targets: { hello: prereqs: [1, 2] } }`), "buildfile.cue", sink)
	require.Error(t, err)
	assert.Regexp(t, `^buildfile\.cue:\d+:\d+: `, err.Error())
}
