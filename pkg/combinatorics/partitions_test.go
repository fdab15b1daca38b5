package combinatorics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributions(t *testing.T) {
	got, err := Distributions(2, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, [][][]int{
		{{2, 0}},
		{{1, 1}},
		{{0, 2}},
	}, got)

	got, err = Distributions(3, 2, 2)
	require.NoError(t, err)
	// C(3+4-1, 3)
	require.Len(t, got, 20)
	for _, d := range got {
		require.Len(t, d, 2)
		sum := 0
		for _, group := range d {
			require.Len(t, group, 2)
			for _, v := range group {
				require.GreaterOrEqual(t, v, 0)
				sum += v
			}
		}
		assert.Equal(t, 3, sum)
	}
	assert.Equal(t, [][]int{{3, 0}, {0, 0}}, got[0])
	assert.Equal(t, [][]int{{0, 0}, {0, 3}}, got[len(got)-1])

	again, err := Distributions(3, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestDistributionsInvalid(t *testing.T) {
	_, err := Distributions(-1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Distributions(1, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Distributions(1, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Distributions(200, 10, 4)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestIntegerPartitions(t *testing.T) {
	got, err := IntegerPartitions(5, 5, 5)
	require.NoError(t, err)
	assert.Equal(t, [][]int{
		{5},
		{4, 1},
		{3, 2},
		{3, 1, 1},
		{2, 2, 1},
		{2, 1, 1, 1},
		{1, 1, 1, 1, 1},
	}, got)

	got, err = IntegerPartitions(5, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 2, 1}}, got)

	got, err = IntegerPartitions(0, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{}}, got)

	_, err = IntegerPartitions(-1, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
