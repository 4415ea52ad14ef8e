package batched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSetConcurrent(t *testing.T) {
	set, err := newStreamSet(newCPU(t), false)
	require.NoError(t, err)
	defer set.destroy()

	assert.Len(t, set.owned, int(numRoles))
	assert.NotSame(t, set.get(roleMatrix), set.get(roleRHS))
	assert.NotSame(t, set.get(roleRHS), set.get(rolePivot))
	require.NoError(t, set.barrier())
}

func TestStreamSetSerial(t *testing.T) {
	set, err := newStreamSet(newCPU(t), true)
	require.NoError(t, err)
	defer set.destroy()

	assert.Len(t, set.owned, 1)
	for r := range numRoles {
		assert.Same(t, set.owned[0], set.get(r), r.String())
	}
}

func TestStreamSetDestroyIdempotent(t *testing.T) {
	set, err := newStreamSet(newCPU(t), false)
	require.NoError(t, err)

	require.NoError(t, set.destroy())
	require.NoError(t, set.destroy())

	var none *streamSet
	assert.NoError(t, none.destroy())
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "matrix", roleMatrix.String())
	assert.Equal(t, "rhs", roleRHS.String())
	assert.Equal(t, "pivot", rolePivot.String())
	assert.Equal(t, "role(7)", role(7).String())
}
