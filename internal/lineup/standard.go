package lineup

import (
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
)

type standardIndexer struct {
	players []roster.Player
	size    int64
}

func newStandard(players []roster.Player) (*standardIndexer, error) {
	size, err := combinatorics.Factorial(len(players))
	if err != nil {
		return nil, err
	}
	base := make([]roster.Player, len(players))
	copy(base, players)
	return &standardIndexer{players: base, size: size}, nil
}

func (s *standardIndexer) Policy() Policy { return Policy{Kind: Standard} }

func (s *standardIndexer) Size() int64 { return s.size }

func (s *standardIndexer) Lineup(i int64) (Lineup, error) {
	if err := checkIndex(i, s.size); err != nil {
		return Lineup{}, err
	}
	order, err := permute(s.players, i)
	if err != nil {
		return Lineup{}, err
	}
	return Lineup{groups: [][]roster.Player{order}}, nil
}

func (s *standardIndexer) Index(l Lineup) (int64, error) {
	return rankOf(s.players, l.Players())
}

func (s *standardIndexer) RandomNeighbor(i int64, rng Rand) (int64, error) {
	if err := checkIndex(i, s.size); err != nil {
		return 0, err
	}
	return swapNeighbor(len(s.players), i, rng)
}
