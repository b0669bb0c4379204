package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-build/kiln/internal/vars"
)

func TestString_Conversions(t *testing.T) {
	s, err := String(vars.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, vars.String("true"), s)

	s, err = String(vars.Int64(-7))
	require.NoError(t, err)
	assert.Equal(t, vars.String("-7"), s)

	s, err = String(vars.UInt64(42))
	require.NoError(t, err)
	assert.Equal(t, vars.String("42"), s)
}

func TestString_RejectsUnsupportedType(t *testing.T) {
	_, err := String(vars.List{Elem: vars.KindString})
	assert.Error(t, err)
}

func TestQuote_PlainValuePassesThrough(t *testing.T) {
	q, err := Quote(vars.String("simple"), "")
	require.NoError(t, err)
	assert.Equal(t, vars.String("simple"), q)
}

func TestQuote_EscapesEmbeddedQuote(t *testing.T) {
	q, err := Quote(vars.String("it's here"), "")
	require.NoError(t, err)
	assert.Equal(t, vars.String(`'it'\''s here'`), q)
}

func TestQuote_ExtraEscapeSetForcesQuoting(t *testing.T) {
	q, err := Quote(vars.String("a=b"), "=")
	require.NoError(t, err)
	assert.Equal(t, vars.String("'a=b'"), q)
}

func TestSize_List(t *testing.T) {
	list := vars.List{Elem: vars.KindString, Vals: []vars.Value{vars.String("a"), vars.String("b")}}
	n, err := Size(list)
	require.NoError(t, err)
	assert.Equal(t, vars.UInt64(2), n)
}

func TestSize_String(t *testing.T) {
	n, err := Size(vars.String("hello"))
	require.NoError(t, err)
	assert.Equal(t, vars.UInt64(5), n)
}

func TestSort_OrdersAndDedupsByCollationKey(t *testing.T) {
	list := vars.List{Elem: vars.KindString, Vals: []vars.Value{
		vars.String("banana"), vars.String("apple"), vars.String("apple"), vars.String("cherry"),
	}}
	sorted, err := Sort(list, true)
	require.NoError(t, err)
	require.Len(t, sorted.Vals, 3)
	assert.Equal(t, vars.String("apple"), sorted.Vals[0])
	assert.Equal(t, vars.String("banana"), sorted.Vals[1])
	assert.Equal(t, vars.String("cherry"), sorted.Vals[2])
}

func TestSort_WithoutDedupKeepsDuplicates(t *testing.T) {
	list := vars.List{Elem: vars.KindString, Vals: []vars.Value{vars.String("b"), vars.String("a"), vars.String("a")}}
	sorted, err := Sort(list, false)
	require.NoError(t, err)
	require.Len(t, sorted.Vals, 3)
}

func TestGetenv_SetAndUnset(t *testing.T) {
	t.Setenv("KILN_BUILTIN_TEST_VAR", "hello")
	assert.Equal(t, vars.String("hello"), Getenv("KILN_BUILTIN_TEST_VAR"))

	_, isNull := Getenv("KILN_BUILTIN_TEST_VAR_UNSET_XYZ").(vars.Null)
	assert.True(t, isNull)
}

func TestPathSearch_MatchesGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.md"), []byte("x"), 0o644))

	list, warnings, err := PathSearch("*.txt", dir)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, list.Vals, 2)
}

func TestPathSearch_WarnsOnDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "broken.txt")
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing-target"), link))

	list, warnings, err := PathSearch("*.txt", dir)
	require.NoError(t, err)
	assert.Len(t, list.Vals, 1)
	assert.Len(t, warnings, 1)
}
