// Package combinatorics provides factorial-number-system utilities for
// ranking and unranking permutations and combinations, plus partition
// enumeration.
package combinatorics

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

var (
	// ErrInvalidArgument is returned when an index or count is outside its domain.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOverflow is returned when a result does not fit in an int64.
	ErrOverflow = errors.New("arithmetic overflow")
)

// MaxFactorial is the largest n for which n! fits in an int64.
const MaxFactorial = 20

var factorials = func() [MaxFactorial + 1]int64 {
	var f [MaxFactorial + 1]int64
	f[0] = 1
	for i := 1; i <= MaxFactorial; i++ {
		f[i] = f[i-1] * int64(i)
	}
	return f
}()

// Factorial returns n! for 0 <= n <= 20.
func Factorial(n int) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("factorial of %d: %w", n, ErrInvalidArgument)
	}
	if n > MaxFactorial {
		return 0, fmt.Errorf("factorial of %d: %w", n, ErrOverflow)
	}
	return factorials[n], nil
}

// IthPermutation returns the i-th permutation of 0..n-1 in lexicographic order.
// Index 0 is the identity.
func IthPermutation(n int, i int64) ([]int, error) {
	total, err := Factorial(n)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= total {
		return nil, fmt.Errorf("permutation index %d outside [0, %d): %w", i, total, ErrInvalidArgument)
	}

	pool := make([]int, n)
	for j := range pool {
		pool[j] = j
	}

	perm := make([]int, 0, n)
	remaining := i
	for pos := 0; pos < n; pos++ {
		radix := factorials[n-1-pos]
		digit := remaining / radix
		remaining %= radix
		perm = append(perm, pool[digit])
		pool = append(pool[:digit], pool[digit+1:]...)
	}
	return perm, nil
}

// PermutationRank is the inverse of IthPermutation.
func PermutationRank(perm []int) (int64, error) {
	n := len(perm)
	if n > MaxFactorial {
		return 0, fmt.Errorf("permutation of length %d: %w", n, ErrOverflow)
	}

	seen := make([]bool, n)
	for _, v := range perm {
		if v < 0 || v >= n || seen[v] {
			return 0, fmt.Errorf("%v is not a permutation of 0..%d: %w", perm, n-1, ErrInvalidArgument)
		}
		seen[v] = true
	}

	var rank int64
	for pos, v := range perm {
		smaller := 0
		for _, w := range perm[pos+1:] {
			if w < v {
				smaller++
			}
		}
		rank += int64(smaller) * factorials[n-1-pos]
	}
	return rank, nil
}

// Binomial returns n choose k. It is zero when k < 0 or k > n.
func Binomial(n, k int) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("binomial with n=%d: %w", n, ErrInvalidArgument)
	}
	if k < 0 || k > n {
		return 0, nil
	}
	if k > n-k {
		k = n - k
	}

	// result is C(n, i) after each step. The 128-bit product divides
	// exactly, and the quotient fits in 64 bits iff hi < i+1.
	var result uint64 = 1
	for i := 0; i < k; i++ {
		hi, lo := bits.Mul64(result, uint64(n-i))
		d := uint64(i + 1)
		if hi >= d {
			return 0, fmt.Errorf("binomial(%d, %d): %w", n, k, ErrOverflow)
		}
		result, _ = bits.Div64(hi, lo, d)
	}
	if result > math.MaxInt64 {
		return 0, fmt.Errorf("binomial(%d, %d): %w", n, k, ErrOverflow)
	}
	return int64(result), nil
}

// IthCombination returns the i-th k-subset of the naturals in colexicographic
// order as an ascending slice.
func IthCombination(k int, i int64) ([]int, error) {
	if k < 0 || i < 0 {
		return nil, fmt.Errorf("combination k=%d index=%d: %w", k, i, ErrInvalidArgument)
	}
	if k == 0 {
		if i != 0 {
			return nil, fmt.Errorf("combination k=0 index=%d: %w", i, ErrInvalidArgument)
		}
		return []int{}, nil
	}

	combo := make([]int, k)
	remaining := i
	for j := k - 1; j >= 0; j-- {
		// Largest l with C(l, j+1) <= remaining.
		l := j
		for {
			next, err := Binomial(l+1, j+1)
			if err != nil {
				return nil, err
			}
			if next > remaining {
				break
			}
			l++
		}
		c, err := Binomial(l, j+1)
		if err != nil {
			return nil, err
		}
		combo[j] = l
		remaining -= c
	}
	return combo, nil
}

// CombinationRank is the inverse of IthCombination.
func CombinationRank(combo []int) (int64, error) {
	var rank int64
	for j, v := range combo {
		if v < 0 || (j > 0 && v <= combo[j-1]) {
			return 0, fmt.Errorf("%v is not an ascending combination: %w", combo, ErrInvalidArgument)
		}
		c, err := Binomial(v, j+1)
		if err != nil {
			return 0, err
		}
		if rank > math.MaxInt64-c {
			return 0, fmt.Errorf("rank of %v: %w", combo, ErrOverflow)
		}
		rank += c
	}
	return rank, nil
}
