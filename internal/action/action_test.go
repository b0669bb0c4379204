package action_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiln-build/kiln/internal/action"
)

func TestID_PackAndAccessors(t *testing.T) {
	a := action.Pack(action.MetaPerform, action.OpUpdate, 5)
	assert.Equal(t, action.MetaPerform, a.Meta())
	assert.Equal(t, action.OpUpdate, a.Outer())
	assert.EqualValues(t, 5, a.Inner())
	assert.EqualValues(t, 5, a.Operation())
}

func TestID_OperationFallsBackToOuterWhenInnerZero(t *testing.T) {
	a := action.Pack(action.MetaPerform, action.OpClean, 0)
	assert.Equal(t, action.OpClean, a.Operation())
}

func TestID_SupersedesRequiresSameMetaOuterAndStrictlyGreaterInner(t *testing.T) {
	base := action.Pack(action.MetaPerform, action.OpUpdate, 1)
	stronger := action.Pack(action.MetaPerform, action.OpUpdate, 2)
	differentOuter := action.Pack(action.MetaPerform, action.OpClean, 2)

	assert.True(t, stronger.Supersedes(base))
	assert.False(t, base.Supersedes(stronger))
	assert.False(t, base.Supersedes(base))
	assert.False(t, differentOuter.Supersedes(base))
}

func TestID_String(t *testing.T) {
	plain := action.Pack(action.MetaPerform, action.OpUpdate, 0)
	assert.Equal(t, "1/2", plain.String())

	recursive := action.Pack(action.MetaPerform, action.OpUpdate, 3)
	assert.Equal(t, "1/2(3)", recursive.String())
}

func TestID_MarshalJSON(t *testing.T) {
	a := action.Pack(action.MetaPerform, action.OpUpdate, 0)
	b, err := a.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1/2"`, string(b))
}

func TestTable_SeededWithCanonicalOperations(t *testing.T) {
	tbl := action.NewTable()

	id, ok := tbl.OpByName("update")
	require.True(t, ok)
	assert.Equal(t, action.OpUpdate, id)

	entry, ok := tbl.Op(action.OpClean)
	require.True(t, ok)
	assert.Equal(t, action.Last, entry.ExecMode)

	metaID, ok := tbl.MetaByName("perform")
	require.True(t, ok)
	assert.Equal(t, action.MetaPerform, metaID)
}

func TestTable_RegisterOpAndMetaAssignSequentialIDs(t *testing.T) {
	tbl := action.NewTable()

	opID := tbl.RegisterOp("install", action.First, nil, nil)
	assert.EqualValues(t, 5, opID)

	metaID := tbl.RegisterMeta("configure")
	assert.EqualValues(t, 2, metaID)

	entry, ok := tbl.Op(opID)
	require.True(t, ok)
	assert.Equal(t, "install", entry.Name)
}

func TestTable_LookupMissingIDsFail(t *testing.T) {
	tbl := action.NewTable()
	_, ok := tbl.Op(99)
	assert.False(t, ok)
	_, ok = tbl.OpByName("nonexistent")
	assert.False(t, ok)
}
