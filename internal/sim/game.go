package sim

import (
	"fmt"
	"math/bits"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
)

const (
	// DefaultInnings is a regulation softball game.
	DefaultInnings = 7

	// DefaultMaxRunsPerInning ends an inning once this many runs have scored.
	DefaultMaxRunsPerInning = 100

	outsPerInning = 3
)

// Rules configure a simulated game.
type Rules struct {
	Innings          int
	MaxRunsPerInning int
}

// DefaultRules returns seven innings with the default run cap.
func DefaultRules() Rules {
	return Rules{Innings: DefaultInnings, MaxRunsPerInning: DefaultMaxRunsPerInning}
}

// Normalize fills unset fields with defaults.
func (r Rules) Normalize() Rules {
	if r.Innings <= 0 {
		r.Innings = DefaultInnings
	}
	if r.MaxRunsPerInning <= 0 {
		r.MaxRunsPerInning = DefaultMaxRunsPerInning
	}
	return r
}

// Bases is the occupancy of first, second and third as bits 0, 1 and 2.
type Bases uint8

// Advance applies an outcome to the bases and returns the runs it scores.
// Hits move every runner and the batter the same number of bases. Walks only
// push forced runners.
func (b Bases) Advance(o roster.Outcome) (Bases, int) {
	switch o {
	case roster.Single, roster.Double, roster.Triple, roster.HomeRun:
		n := o.Bases()
		moved := uint(b)<<n | 1<<(n-1)
		return Bases(moved & 7), bits.OnesCount(moved >> 3)
	case roster.Walk:
		switch {
		case b&1 == 0:
			return b | 1, 0
		case b&2 == 0:
			return b | 3, 0
		case b&4 == 0:
			return 7, 0
		default:
			return 7, 1
		}
	default:
		return b, 0
	}
}

type battingOrder struct {
	groups [][]*table
}

func (o battingOrder) at(i int) *table {
	if len(o.groups) == 2 {
		g := o.groups[i%2]
		return g[(i/2)%len(g)]
	}
	g := o.groups[0]
	return g[i%len(g)]
}

func (h *HitGenerator) resolve(l lineup.Lineup) (battingOrder, error) {
	groups := l.Groups()
	if len(groups) == 0 {
		return battingOrder{}, fmt.Errorf("empty lineup: %w", lineup.ErrInvalidArgument)
	}
	order := battingOrder{groups: make([][]*table, len(groups))}
	for g, players := range groups {
		if len(players) == 0 {
			return battingOrder{}, fmt.Errorf("empty batting group: %w", lineup.ErrInvalidArgument)
		}
		order.groups[g] = make([]*table, len(players))
		for i, p := range players {
			t, err := h.lookup(p.ID)
			if err != nil {
				return battingOrder{}, err
			}
			order.groups[g][i] = t
		}
	}
	return order, nil
}

// SimulateGame plays one game and returns the runs scored. The batting order
// carries over between innings.
func SimulateGame(l lineup.Lineup, rules Rules, gen *HitGenerator, src Source) (int, error) {
	rules = rules.Normalize()
	order, err := gen.resolve(l)
	if err != nil {
		return 0, err
	}

	total := 0
	batter := 0
	for inning := 0; inning < rules.Innings; inning++ {
		var bases Bases
		outs, runs := 0, 0
		for outs < outsPerInning && runs < rules.MaxRunsPerInning {
			outcome := order.at(batter).sample(src)
			batter++
			if outcome == roster.Out {
				outs++
				continue
			}
			var scored int
			bases, scored = bases.Advance(outcome)
			runs += scored
		}
		total += min(runs, rules.MaxRunsPerInning)
	}
	return total, nil
}
