package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-build/kiln/internal/project"
	"github.com/kiln-build/kiln/internal/vars"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// S4: importing a target from another project evaluates export.build in a
// scope detached from the tree, so nothing it assigns is visible from the
// importing project's own scope afterward.
func TestScenario_ImportDoesNotLeakVariablesIntoImporter(t *testing.T) {
	tmp := t.TempDir()

	importerOut := filepath.Join(tmp, "importer")
	otherOut := filepath.Join(tmp, "other-out")
	otherSrc := filepath.Join(tmp, "other-src")
	require.NoError(t, os.MkdirAll(importerOut, 0o755))

	writeFile(t, filepath.Join(otherOut, "build", "bootstrap", "src-root.build"), `src_root = "`+otherSrc+`"`+"\n")
	writeFile(t, filepath.Join(otherSrc, "build", "export.build"), `greeting = "hello"`+"\n")

	l := project.NewLoader()
	l.Config["other"] = otherOut

	root, err := l.Bootstrap(importerOut, importerOut)
	require.NoError(t, err)

	v, err := l.Import(root, "other%greeting", "test")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, vars.String("hello"), v)

	leaked, _ := root.Find("greeting")
	assert.Nil(t, leaked)
}

func TestScenario_ImportUnknownProjectFails(t *testing.T) {
	tmp := t.TempDir()
	importerOut := filepath.Join(tmp, "importer")
	require.NoError(t, os.MkdirAll(importerOut, 0o755))

	l := project.NewLoader()
	root, err := l.Bootstrap(importerOut, importerOut)
	require.NoError(t, err)

	_, err = l.Import(root, "nosuch%target", "test")
	require.Error(t, err)
	var unknown *project.UnknownImportProjectError
	require.ErrorAs(t, err, &unknown)
}
