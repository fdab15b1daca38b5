package lineup

import (
	"fmt"

	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
)

// alternatingIndexer enumerates lineups where men and women take turns at the
// plate. Indexes below size/2 lead with a man.
type alternatingIndexer struct {
	men, women []roster.Player
	menPerms   int64
	womenPerms int64
	half, size int64
}

func newAlternating(men, women []roster.Player) (*alternatingIndexer, error) {
	if len(men) == 0 || len(women) == 0 {
		return nil, fmt.Errorf("alternating lineups need at least one man and one woman, got %d and %d: %w",
			len(men), len(women), ErrInvalidArgument)
	}
	menPerms, err := combinatorics.Factorial(len(men))
	if err != nil {
		return nil, err
	}
	womenPerms, err := combinatorics.Factorial(len(women))
	if err != nil {
		return nil, err
	}
	half, err := mulChecked(menPerms, womenPerms)
	if err != nil {
		return nil, err
	}
	size, err := mulChecked(half, 2)
	if err != nil {
		return nil, err
	}
	return &alternatingIndexer{
		men:        men,
		women:      women,
		menPerms:   menPerms,
		womenPerms: womenPerms,
		half:       half,
		size:       size,
	}, nil
}

func (a *alternatingIndexer) Policy() Policy { return Policy{Kind: AlternatingGender} }

func (a *alternatingIndexer) Size() int64 { return a.size }

func (a *alternatingIndexer) Lineup(i int64) (Lineup, error) {
	if err := checkIndex(i, a.size); err != nil {
		return Lineup{}, err
	}
	womenFirst, menIdx, womenIdx := a.decompose(i)
	men, err := permute(a.men, menIdx)
	if err != nil {
		return Lineup{}, err
	}
	women, err := permute(a.women, womenIdx)
	if err != nil {
		return Lineup{}, err
	}
	if womenFirst {
		return Lineup{groups: [][]roster.Player{women, men}}, nil
	}
	return Lineup{groups: [][]roster.Player{men, women}}, nil
}

func (a *alternatingIndexer) decompose(i int64) (womenFirst bool, menIdx, womenIdx int64) {
	womenFirst = i >= a.half
	r := i % a.half
	return womenFirst, r % a.menPerms, r / a.menPerms
}

func (a *alternatingIndexer) compose(womenFirst bool, menIdx, womenIdx int64) int64 {
	i := womenIdx*a.menPerms + menIdx
	if womenFirst {
		i += a.half
	}
	return i
}

func (a *alternatingIndexer) Index(l Lineup) (int64, error) {
	var lead, follow []roster.Player
	if l.Alternating() {
		lead, follow = l.groups[0], l.groups[1]
	} else {
		players := l.Players()
		if len(players) == 0 {
			return 0, fmt.Errorf("empty lineup: %w", ErrInvalidArgument)
		}
		for _, p := range players {
			if p.Gender == players[0].Gender {
				lead = append(lead, p)
			} else {
				follow = append(follow, p)
			}
		}
	}
	if len(lead) == 0 || len(follow) == 0 {
		return 0, fmt.Errorf("lineup does not alternate: %w", ErrInvalidArgument)
	}

	womenFirst := lead[0].Gender == roster.Female
	men, women := lead, follow
	if womenFirst {
		men, women = follow, lead
	}
	menIdx, err := rankOf(a.men, men)
	if err != nil {
		return 0, err
	}
	womenIdx, err := rankOf(a.women, women)
	if err != nil {
		return 0, err
	}
	return a.compose(womenFirst, menIdx, womenIdx), nil
}

func (a *alternatingIndexer) RandomNeighbor(i int64, rng Rand) (int64, error) {
	if err := checkIndex(i, a.size); err != nil {
		return 0, err
	}
	womenFirst, menIdx, womenIdx := a.decompose(i)

	var err error
	switch move := rng.IntN(3); {
	case move == 0 && len(a.men) > 1:
		menIdx, err = swapNeighbor(len(a.men), menIdx, rng)
	case move == 1 && len(a.women) > 1:
		womenIdx, err = swapNeighbor(len(a.women), womenIdx, rng)
	default:
		womenFirst = !womenFirst
	}
	if err != nil {
		return 0, err
	}
	return a.compose(womenFirst, menIdx, womenIdx), nil
}
