package vars_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-build/kiln/internal/pool"
	"github.com/kiln-build/kiln/internal/vars"
)

func TestTypify_UntypedSingleNameToString(t *testing.T) {
	u := vars.Untyped{Names: []vars.Name{{Value: "hello"}}}
	v, err := vars.Typify(u, vars.KindString)
	require.NoError(t, err)
	assert.Equal(t, vars.String("hello"), v)
}

func TestTypify_UntypedListToListString(t *testing.T) {
	u := vars.Untyped{Names: []vars.Name{{Value: "a"}, {Value: "b"}}}
	v, err := vars.Typify(u, vars.KindListString)
	require.NoError(t, err)
	list, ok := v.(vars.List)
	require.True(t, ok)
	assert.Len(t, list.Vals, 2)
	assert.Equal(t, vars.String("a"), list.Vals[0])
}

func TestTypify_AlreadyTypedPassesThrough(t *testing.T) {
	v, err := vars.Typify(vars.Bool(true), vars.KindBool)
	require.NoError(t, err)
	assert.Equal(t, vars.Bool(true), v)
}

func TestTypify_MismatchedTypedValueErrors(t *testing.T) {
	_, err := vars.Typify(vars.Bool(true), vars.KindString)
	require.Error(t, err)
	var mismatch *vars.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestTypify_MultiNameScalarIsAmbiguous(t *testing.T) {
	u := vars.Untyped{Names: []vars.Name{{Value: "a"}, {Value: "b"}}}
	_, err := vars.Typify(u, vars.KindString)
	require.Error(t, err)
}

func TestAppend_StringConcatenates(t *testing.T) {
	v, err := vars.Append(vars.String("foo"), vars.String("bar"))
	require.NoError(t, err)
	assert.Equal(t, vars.String("foobar"), v)
}

func TestAppend_ListConcatenates(t *testing.T) {
	base := vars.List{Elem: vars.KindString, Vals: []vars.Value{vars.String("a")}}
	other := vars.List{Elem: vars.KindString, Vals: []vars.Value{vars.String("b")}}
	v, err := vars.Append(base, other)
	require.NoError(t, err)
	list := v.(vars.List)
	assert.Len(t, list.Vals, 2)
}

func TestAppend_MismatchedKindsErrors(t *testing.T) {
	_, err := vars.Append(vars.String("foo"), vars.Bool(true))
	require.Error(t, err)
}

func TestAppend_NullBaseAdoptsOther(t *testing.T) {
	v, err := vars.Append(vars.Null{}, vars.String("x"))
	require.NoError(t, err)
	assert.Equal(t, vars.String("x"), v)
}

func TestPrepend_IsAppendReversed(t *testing.T) {
	v, err := vars.Prepend(vars.String("bar"), vars.String("foo"))
	require.NoError(t, err)
	assert.Equal(t, vars.String("foobar"), v)
}

func TestBinding_ResolveAppliesMostSpecificOverride(t *testing.T) {
	p := pool.New()
	root := p.InternDir("/out")
	sub := p.InternDir("/out/sub")
	leaf := p.InternDir("/out/sub/leaf")

	b := &vars.Binding{Base: vars.String("root-value")}
	b.AddOverride(root, vars.String("root-override"))
	b.AddOverride(sub, vars.String("sub-override"))

	assert.Equal(t, vars.String("sub-override"), b.Resolve(leaf))
	assert.Equal(t, vars.String("sub-override"), b.Resolve(sub))
	assert.Equal(t, vars.String("root-override"), b.Resolve(root))
}

func TestBinding_ResolveWithNoMatchingOverrideUsesBase(t *testing.T) {
	p := pool.New()
	elsewhere := p.InternDir("/elsewhere")
	sub := p.InternDir("/out/sub")

	b := &vars.Binding{Base: vars.String("base")}
	b.AddOverride(sub, vars.String("sub-override"))

	assert.Equal(t, vars.String("base"), b.Resolve(elsewhere))
}

func TestBinding_FindOriginalIgnoresOverrides(t *testing.T) {
	p := pool.New()
	sub := p.InternDir("/out/sub")

	b := &vars.Binding{Base: vars.String("base")}
	b.AddOverride(sub, vars.String("sub-override"))

	v, depth := b.FindOriginal()
	assert.Equal(t, vars.String("base"), v)
	assert.Equal(t, 1, depth)
}

func TestPool_InsertIsIdempotentForSameKind(t *testing.T) {
	p := vars.New()
	d1, err := p.Insert("config.cxx.std", vars.KindString, vars.VisibilityProject, true)
	require.NoError(t, err)
	d2, err := p.Insert("config.cxx.std", vars.KindString, vars.VisibilityProject, true)
	require.NoError(t, err)
	assert.Same(t, d1, d2)
}

func TestPool_InsertRejectsIncompatibleRedeclaration(t *testing.T) {
	p := vars.New()
	_, err := p.Insert("x", vars.KindString, vars.VisibilityScope, true)
	require.NoError(t, err)
	_, err = p.Insert("x", vars.KindBool, vars.VisibilityScope, true)
	require.Error(t, err)
	var redeclared *vars.ErrRedeclared
	require.ErrorAs(t, err, &redeclared)
}

func TestPool_PatternMatchAppliesWildcardTyping(t *testing.T) {
	p := vars.New()
	require.NoError(t, p.RegisterPattern("config.*.configured", vars.KindBool, vars.VisibilityProject))

	kind, vis, raw, ok := p.PatternMatch("config.cxx.configured")
	require.True(t, ok)
	assert.Equal(t, vars.KindBool, kind)
	assert.Equal(t, vars.VisibilityProject, vis)
	assert.Equal(t, "config.*.configured", raw)

	_, _, _, ok = p.PatternMatch("config.cxx.std")
	assert.False(t, ok)
}

func TestPool_InsertInheritsPatternTypingWhenImplicit(t *testing.T) {
	p := vars.New()
	require.NoError(t, p.RegisterPattern("config.*.configured", vars.KindBool, vars.VisibilityProject))

	d, err := p.Insert("config.cxx.configured", vars.KindUntyped, vars.VisibilityScope, false)
	require.NoError(t, err)
	assert.Equal(t, vars.KindBool, d.Kind)
	assert.Equal(t, vars.VisibilityProject, d.Visibility)
}
