package lineup

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
)

var (
	ErrInvalidArgument      = combinatorics.ErrInvalidArgument
	ErrOverflow             = combinatorics.ErrOverflow
	ErrEmptyRosterSelection = roster.ErrEmptyRosterSelection
)

// Rand is the random source used to pick neighbors.
type Rand interface {
	IntN(n int) int
}

// Indexer is a bijection between [0, Size()) and the legal lineups of a roster.
type Indexer interface {
	Policy() Policy
	Size() int64
	// Lineup returns the lineup at index i. Index 0 is the canonical lineup.
	Lineup(i int64) (Lineup, error)
	// Index is the inverse of Lineup.
	Index(l Lineup) (int64, error)
	// RandomNeighbor returns the index of a lineup one small change away from i.
	RandomNeighbor(i int64, rng Rand) (int64, error)
}

// NewIndexer builds the indexer for policy over players, kept in the given order.
func NewIndexer(policy Policy, players []roster.Player) (Indexer, error) {
	if len(players) == 0 {
		return nil, ErrEmptyRosterSelection
	}
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("player %q appears twice: %w", p.ID, ErrInvalidArgument)
		}
		seen[p.ID] = struct{}{}
	}

	switch policy.Kind {
	case Standard:
		return newStandard(players)
	case AlternatingGender:
		men, women, err := splitByGender(players)
		if err != nil {
			return nil, err
		}
		return newAlternating(men, women)
	case NoConsecutiveFemales:
		men, women, err := splitByGender(players)
		if err != nil {
			return nil, err
		}
		return newNoConsecutiveFemales(men, women)
	default:
		return nil, fmt.Errorf("lineup policy %s: %w", policy, ErrInvalidArgument)
	}
}

func splitByGender(players []roster.Player) (men, women []roster.Player, err error) {
	for _, p := range players {
		switch p.Gender {
		case roster.Male:
			men = append(men, p)
		case roster.Female:
			women = append(women, p)
		default:
			return nil, nil, fmt.Errorf("player %q has no gender: %w", p.ID, ErrInvalidArgument)
		}
	}
	return men, women, nil
}

func mulChecked(values ...int64) (int64, error) {
	var acc uint64 = 1
	for _, v := range values {
		if v < 0 {
			return 0, ErrInvalidArgument
		}
		hi, lo := bits.Mul64(acc, uint64(v))
		if hi != 0 || lo > math.MaxInt64 {
			return 0, fmt.Errorf("lineup count: %w", ErrOverflow)
		}
		acc = lo
	}
	return int64(acc), nil
}

func checkIndex(i, size int64) error {
	if i < 0 || i >= size {
		return fmt.Errorf("lineup index %d outside [0, %d): %w", i, size, ErrInvalidArgument)
	}
	return nil
}

func permute(players []roster.Player, rank int64) ([]roster.Player, error) {
	perm, err := combinatorics.IthPermutation(len(players), rank)
	if err != nil {
		return nil, err
	}
	out := make([]roster.Player, len(players))
	for pos, j := range perm {
		out[pos] = players[j]
	}
	return out, nil
}

// rankOf finds the permutation rank of ordered relative to base.
func rankOf(base, ordered []roster.Player) (int64, error) {
	if len(base) != len(ordered) {
		return 0, fmt.Errorf("lineup has %d players, expected %d: %w", len(ordered), len(base), ErrInvalidArgument)
	}
	pos := make(map[string]int, len(base))
	for i, p := range base {
		pos[p.ID] = i
	}
	perm := make([]int, len(ordered))
	for i, p := range ordered {
		j, ok := pos[p.ID]
		if !ok {
			return 0, fmt.Errorf("player %q is not part of this roster: %w", p.ID, ErrInvalidArgument)
		}
		perm[i] = j
	}
	return combinatorics.PermutationRank(perm)
}

// swapNeighbor returns the rank reached by swapping two random positions.
func swapNeighbor(n int, rank int64, rng Rand) (int64, error) {
	if n < 2 {
		return rank, nil
	}
	perm, err := combinatorics.IthPermutation(n, rank)
	if err != nil {
		return 0, err
	}
	a := rng.IntN(n)
	b := rng.IntN(n - 1)
	if b >= a {
		b++
	}
	perm[a], perm[b] = perm[b], perm[a]
	return combinatorics.PermutationRank(perm)
}
