package combinatorics

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactorial(t *testing.T) {
	tests := []struct {
		n    int
		want int64
	}{
		{0, 1},
		{1, 1},
		{5, 120},
		{10, 3628800},
		{20, 2432902008176640000},
	}
	for _, tt := range tests {
		got, err := Factorial(tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "factorial(%d)", tt.n)
	}

	_, err := Factorial(21)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = Factorial(-1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// exhaustiveRoundTripMax is the largest n whose every index is checked.
// From 10! up there are too many indexes to walk in a unit test, so the
// larger sizes through 12 are sampled instead.
func exhaustiveRoundTripMax() int {
	if testing.Short() {
		return 8
	}
	return 9
}

func TestIthPermutationRoundTripExhaustive(t *testing.T) {
	for n := 1; n <= exhaustiveRoundTripMax(); n++ {
		total, err := Factorial(n)
		require.NoError(t, err)
		var prev []int
		for i := int64(0); i < total; i++ {
			perm, err := IthPermutation(n, i)
			require.NoError(t, err)
			rank, err := PermutationRank(perm)
			require.NoError(t, err)
			require.Equal(t, i, rank, "n=%d", n)
			if prev != nil {
				require.Equal(t, -1, slices.Compare(prev, perm), "n=%d i=%d not lexicographic", n, i)
			}
			prev = perm
		}
	}
}

func TestIthPermutationRoundTripSampled(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for n := exhaustiveRoundTripMax() + 1; n <= 12; n++ {
		total, err := Factorial(n)
		require.NoError(t, err)
		indexes := []int64{0, 1, total / 2, total - 2, total - 1}
		for k := 0; k < 2000; k++ {
			indexes = append(indexes, rng.Int64N(total))
		}
		for _, i := range indexes {
			perm, err := IthPermutation(n, i)
			require.NoError(t, err)
			rank, err := PermutationRank(perm)
			require.NoError(t, err)
			require.Equal(t, i, rank, "n=%d", n)
		}
	}
}

func TestIthPermutationEndpoints(t *testing.T) {
	first, err := IthPermutation(4, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, first)

	last, err := IthPermutation(4, 23)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1, 0}, last)

	_, err = IthPermutation(4, 24)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = IthPermutation(4, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = IthPermutation(21, 0)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestPermutationRankRejectsNonPermutation(t *testing.T) {
	_, err := PermutationRank([]int{0, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = PermutationRank([]int{0, 3})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBinomial(t *testing.T) {
	tests := []struct {
		n, k int
		want int64
	}{
		{0, 0, 1},
		{5, 0, 1},
		{5, 2, 10},
		{5, 5, 1},
		{5, 6, 0},
		{5, -1, 0},
		{52, 5, 2598960},
		{62, 31, 465428353255261088},
		// The running product passes 2^64 before dividing.
		{66, 33, 7219428434016265740},
	}
	for _, tt := range tests {
		got, err := Binomial(tt.n, tt.k)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "C(%d,%d)", tt.n, tt.k)
	}

	for _, c := range [][2]int{{67, 33}, {68, 34}, {100, 50}} {
		_, err := Binomial(c[0], c[1])
		assert.ErrorIs(t, err, ErrOverflow, "C(%d,%d)", c[0], c[1])
	}
}

func TestCombinationRoundTrip(t *testing.T) {
	for k := 1; k <= 5; k++ {
		total, err := Binomial(9, k)
		require.NoError(t, err)
		var prev []int
		for i := int64(0); i < total; i++ {
			combo, err := IthCombination(k, i)
			require.NoError(t, err)
			require.Len(t, combo, k)
			require.True(t, slices.IsSorted(combo))
			require.Less(t, combo[k-1], 9, "colex rank %d must stay inside 0..8", i)
			rank, err := CombinationRank(combo)
			require.NoError(t, err)
			require.Equal(t, i, rank)
			require.NotEqual(t, prev, combo)
			prev = combo
		}
	}

	first, err := IthCombination(3, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, first)

	empty, err := IthCombination(0, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = CombinationRank([]int{2, 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
