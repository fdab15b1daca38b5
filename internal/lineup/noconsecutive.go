package lineup

import (
	"fmt"

	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
)

// noConsecutiveFemalesIndexer enumerates lineups in which no two women bat
// back to back, including across the wrap from the last spot to the first.
//
// Women sit in the m+1 gaps around the men; gap g is just before the g-th man
// and gap m follows the last man. Gap sets that use gap m come first in the
// index order (C(m-1, f-1) of them, none using gap 0), followed by the C(m, f)
// sets confined to gaps 0..m-1.
type noConsecutiveFemalesIndexer struct {
	men, women []roster.Player
	menPerms   int64
	womenPerms int64
	cutoff     int64
	slots      int64
	size       int64
}

func newNoConsecutiveFemales(men, women []roster.Player) (*noConsecutiveFemalesIndexer, error) {
	m, f := len(men), len(women)
	if m == 0 || f > m {
		return nil, fmt.Errorf("cannot separate %d women with %d men: %w", f, m, ErrInvalidArgument)
	}
	menPerms, err := combinatorics.Factorial(m)
	if err != nil {
		return nil, err
	}
	womenPerms, err := combinatorics.Factorial(f)
	if err != nil {
		return nil, err
	}
	cutoff, err := combinatorics.Binomial(m-1, f-1)
	if err != nil {
		return nil, err
	}
	rest, err := combinatorics.Binomial(m, f)
	if err != nil {
		return nil, err
	}
	slots := cutoff + rest
	size, err := mulChecked(menPerms, womenPerms, slots)
	if err != nil {
		return nil, err
	}
	return &noConsecutiveFemalesIndexer{
		men:        men,
		women:      women,
		menPerms:   menPerms,
		womenPerms: womenPerms,
		cutoff:     cutoff,
		slots:      slots,
		size:       size,
	}, nil
}

func (n *noConsecutiveFemalesIndexer) Policy() Policy { return Policy{Kind: NoConsecutiveFemales} }

func (n *noConsecutiveFemalesIndexer) Size() int64 { return n.size }

func (n *noConsecutiveFemalesIndexer) decompose(i int64) (menIdx, womenIdx, comboIdx int64) {
	menIdx = i % n.menPerms
	r := i / n.menPerms
	return menIdx, r % n.womenPerms, r / n.womenPerms
}

func (n *noConsecutiveFemalesIndexer) compose(menIdx, womenIdx, comboIdx int64) int64 {
	return (comboIdx*n.womenPerms+womenIdx)*n.menPerms + menIdx
}

func (n *noConsecutiveFemalesIndexer) gaps(comboIdx int64) ([]int, error) {
	f, m := len(n.women), len(n.men)
	if comboIdx < n.cutoff {
		c, err := combinatorics.IthCombination(f-1, comboIdx)
		if err != nil {
			return nil, err
		}
		for j := range c {
			c[j]++
		}
		return append(c, m), nil
	}
	return combinatorics.IthCombination(f, comboIdx-n.cutoff)
}

func (n *noConsecutiveFemalesIndexer) gapsRank(gaps []int) (int64, error) {
	f, m := len(n.women), len(n.men)
	if f > 0 && gaps[f-1] == m {
		c := make([]int, f-1)
		for j := range c {
			c[j] = gaps[j] - 1
		}
		return combinatorics.CombinationRank(c)
	}
	r, err := combinatorics.CombinationRank(gaps)
	if err != nil {
		return 0, err
	}
	return n.cutoff + r, nil
}

func (n *noConsecutiveFemalesIndexer) legalGaps(gaps []int) bool {
	m := len(n.men)
	for j, g := range gaps {
		if g < 0 || g > m || (j > 0 && g <= gaps[j-1]) {
			return false
		}
	}
	if len(gaps) > 0 && gaps[0] == 0 && gaps[len(gaps)-1] == m {
		return false
	}
	return true
}

func (n *noConsecutiveFemalesIndexer) Lineup(i int64) (Lineup, error) {
	if err := checkIndex(i, n.size); err != nil {
		return Lineup{}, err
	}
	menIdx, womenIdx, comboIdx := n.decompose(i)
	men, err := permute(n.men, menIdx)
	if err != nil {
		return Lineup{}, err
	}
	women, err := permute(n.women, womenIdx)
	if err != nil {
		return Lineup{}, err
	}
	gaps, err := n.gaps(comboIdx)
	if err != nil {
		return Lineup{}, err
	}

	order := make([]roster.Player, 0, len(men)+len(women))
	w := 0
	for g := 0; g <= len(men); g++ {
		if w < len(gaps) && gaps[w] == g {
			order = append(order, women[w])
			w++
		}
		if g < len(men) {
			order = append(order, men[g])
		}
	}
	return Lineup{groups: [][]roster.Player{order}}, nil
}

func (n *noConsecutiveFemalesIndexer) split(l Lineup) (men, women []roster.Player, gaps []int, err error) {
	for _, p := range l.Players() {
		switch p.Gender {
		case roster.Male:
			men = append(men, p)
		case roster.Female:
			women = append(women, p)
			gaps = append(gaps, len(men))
		default:
			return nil, nil, nil, fmt.Errorf("player %q has no gender: %w", p.ID, ErrInvalidArgument)
		}
	}
	if len(men) != len(n.men) || len(women) != len(n.women) {
		return nil, nil, nil, fmt.Errorf("lineup has %d men and %d women, expected %d and %d: %w",
			len(men), len(women), len(n.men), len(n.women), ErrInvalidArgument)
	}
	if !n.legalGaps(gaps) {
		return nil, nil, nil, fmt.Errorf("lineup has consecutive women: %w", ErrInvalidArgument)
	}
	return men, women, gaps, nil
}

func (n *noConsecutiveFemalesIndexer) Index(l Lineup) (int64, error) {
	men, women, gaps, err := n.split(l)
	if err != nil {
		return 0, err
	}
	menIdx, err := rankOf(n.men, men)
	if err != nil {
		return 0, err
	}
	womenIdx, err := rankOf(n.women, women)
	if err != nil {
		return 0, err
	}
	comboIdx, err := n.gapsRank(gaps)
	if err != nil {
		return 0, err
	}
	return n.compose(menIdx, womenIdx, comboIdx), nil
}

func (n *noConsecutiveFemalesIndexer) RandomNeighbor(i int64, rng Rand) (int64, error) {
	if err := checkIndex(i, n.size); err != nil {
		return 0, err
	}
	menIdx, womenIdx, comboIdx := n.decompose(i)

	switch rng.IntN(3) {
	case 0:
		if len(n.men) > 1 {
			next, err := swapNeighbor(len(n.men), menIdx, rng)
			if err != nil {
				return 0, err
			}
			return n.compose(next, womenIdx, comboIdx), nil
		}
	case 1:
		if len(n.women) > 1 {
			next, err := swapNeighbor(len(n.women), womenIdx, rng)
			if err != nil {
				return 0, err
			}
			return n.compose(menIdx, next, comboIdx), nil
		}
	}

	// Slide one woman into an adjacent gap.
	gaps, err := n.gaps(comboIdx)
	if err != nil {
		return 0, err
	}
	var moves [][]int
	for j := range gaps {
		for _, d := range []int{-1, 1} {
			moved := append([]int(nil), gaps...)
			moved[j] += d
			if n.legalGaps(moved) {
				moves = append(moves, moved)
			}
		}
	}
	if len(moves) == 0 {
		if len(n.men) > 1 {
			next, err := swapNeighbor(len(n.men), menIdx, rng)
			if err != nil {
				return 0, err
			}
			return n.compose(next, womenIdx, comboIdx), nil
		}
		return i, nil
	}
	next, err := n.gapsRank(moves[rng.IntN(len(moves))])
	if err != nil {
		return 0, err
	}
	return n.compose(menIdx, womenIdx, next), nil
}
