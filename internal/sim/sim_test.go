package sim

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func uniformPlayers(n int, counts roster.Counts) []roster.Player {
	players := make([]roster.Player, n)
	for i := range players {
		players[i] = roster.Player{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i), Counts: counts}
	}
	return players
}

func TestAlwaysOutScoresNothing(t *testing.T) {
	src := rand.New(rand.NewPCG(1, 1))
	for _, size := range []int{1, 4, 10} {
		players := uniformPlayers(size, roster.Counts{Outs: 3, Sacrifices: 1})
		gen, err := NewHitGenerator(players)
		require.NoError(t, err)
		for _, innings := range []int{1, 7, 9} {
			runs, err := SimulateGame(lineup.New(players), Rules{Innings: innings}, gen, src)
			require.NoError(t, err)
			assert.Zero(t, runs)
		}
	}
}

func TestAlwaysHomeRunHitsTheInningCap(t *testing.T) {
	src := rand.New(rand.NewPCG(2, 2))
	for _, size := range []int{1, 3, 9} {
		players := uniformPlayers(size, roster.Counts{HomeRuns: 5})
		gen, err := NewHitGenerator(players)
		require.NoError(t, err)

		runs, err := SimulateGame(lineup.New(players), Rules{Innings: 9}, gen, src)
		require.NoError(t, err)
		assert.Equal(t, 9*DefaultMaxRunsPerInning, runs)

		runs, err = SimulateGame(lineup.New(players), Rules{Innings: 9, MaxRunsPerInning: 3}, gen, src)
		require.NoError(t, err)
		assert.Equal(t, 9*3, runs)
	}
}

func TestBasesAdvance(t *testing.T) {
	tests := []struct {
		name    string
		start   Bases
		outcome roster.Outcome
		want    Bases
		runs    int
	}{
		{"single empty", 0, roster.Single, 0b001, 0},
		{"single from second scores nobody", 0b010, roster.Single, 0b101, 0},
		{"single with runner on third", 0b100, roster.Single, 0b001, 1},
		{"double loaded", 0b111, roster.Double, 0b110, 2},
		{"double runner on first", 0b001, roster.Double, 0b110, 0},
		{"triple first and second", 0b011, roster.Triple, 0b100, 2},
		{"home run loaded", 0b111, roster.HomeRun, 0, 4},
		{"walk empty", 0, roster.Walk, 0b001, 0},
		{"walk runner on second only", 0b010, roster.Walk, 0b011, 0},
		{"walk runner on third only", 0b100, roster.Walk, 0b101, 0},
		{"walk first and third", 0b101, roster.Walk, 0b111, 0},
		{"walk first forces", 0b001, roster.Walk, 0b011, 0},
		{"walk loaded", 0b111, roster.Walk, 0b111, 1},
		{"out holds", 0b101, roster.Out, 0b101, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, runs := tt.start.Advance(tt.outcome)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.runs, runs)
		})
	}
}

func TestHitGeneratorFrequencies(t *testing.T) {
	p := roster.Player{ID: "a", Counts: roster.Counts{Outs: 5, Singles: 3, HomeRuns: 2}}
	gen, err := NewHitGenerator([]roster.Player{p})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, gen.Probability("a", roster.Out), 1e-12)
	assert.InDelta(t, 0.3, gen.Probability("a", roster.Single), 1e-12)
	assert.Zero(t, gen.Probability("a", roster.Double))
	assert.InDelta(t, 0.2, gen.Probability("a", roster.HomeRun), 1e-12)

	src := rand.New(rand.NewPCG(3, 3))
	counts := make(map[roster.Outcome]int)
	const draws = 200000
	for i := 0; i < draws; i++ {
		o, err := gen.Sample("a", src)
		require.NoError(t, err)
		counts[o]++
	}
	assert.InDelta(t, 0.5, float64(counts[roster.Out])/draws, 0.01)
	assert.InDelta(t, 0.3, float64(counts[roster.Single])/draws, 0.01)
	assert.InDelta(t, 0.2, float64(counts[roster.HomeRun])/draws, 0.01)
	assert.Zero(t, counts[roster.Double])
	assert.Zero(t, counts[roster.Triple])
	assert.Zero(t, counts[roster.Walk])
}

func TestHitGeneratorBoundaries(t *testing.T) {
	p := roster.Player{ID: "a", Counts: roster.Counts{Singles: 1, Walks: 1}}
	gen, err := NewHitGenerator([]roster.Player{p})
	require.NoError(t, err)

	o, err := gen.Sample("a", fixedSource(0))
	require.NoError(t, err)
	assert.Equal(t, roster.Single, o)

	o, err = gen.Sample("a", fixedSource(0.5))
	require.NoError(t, err)
	assert.Equal(t, roster.Walk, o)

	o, err = gen.Sample("a", fixedSource(1))
	require.NoError(t, err)
	assert.Equal(t, roster.Walk, o)

	_, err = gen.Sample("nobody", fixedSource(0))
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestSimulateGameIsDeterministicForSeed(t *testing.T) {
	players := uniformPlayers(9, roster.Counts{Outs: 6, Singles: 2, Doubles: 1, Walks: 1})
	gen, err := NewHitGenerator(players)
	require.NoError(t, err)
	l := lineup.New(players)

	play := func() []int {
		src := rand.New(rand.NewPCG(42, 7))
		var scores []int
		for i := 0; i < 50; i++ {
			runs, err := SimulateGame(l, DefaultRules(), gen, src)
			require.NoError(t, err)
			scores = append(scores, runs)
		}
		return scores
	}
	assert.Equal(t, play(), play())
}

func TestSimulateGameUnknownPlayer(t *testing.T) {
	players := uniformPlayers(2, roster.Counts{Outs: 1})
	gen, err := NewHitGenerator(players[:1])
	require.NoError(t, err)
	_, err = SimulateGame(lineup.New(players), DefaultRules(), gen, fixedSource(0))
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestSimulateGameAlternatingGroups(t *testing.T) {
	// The lone woman homers and every man walks, so each inning alternates
	// walk, home run until the cap is reached.
	men := []roster.Player{
		{ID: "m0", Gender: roster.Male, Counts: roster.Counts{Walks: 1}},
		{ID: "m1", Gender: roster.Male, Counts: roster.Counts{Walks: 1}},
	}
	women := []roster.Player{{ID: "f0", Gender: roster.Female, Counts: roster.Counts{HomeRuns: 1}}}
	gen, err := NewHitGenerator(append(append([]roster.Player{}, men...), women...))
	require.NoError(t, err)

	runs, err := SimulateGame(lineup.NewAlternating(men, women), Rules{Innings: 2, MaxRunsPerInning: 4}, gen, fixedSource(0.3))
	require.NoError(t, err)
	assert.Equal(t, 8, runs)
}

func TestEveryOutcomeMix(t *testing.T) {
	const plateAppearances = 4
	mixes, err := combinatorics.Distributions(plateAppearances, len(roster.Outcomes), 1)
	require.NoError(t, err)
	require.Len(t, mixes, 126)

	rules := Rules{Innings: 2, MaxRunsPerInning: 3}
	src := rand.New(rand.NewPCG(4, 4))
	for _, mix := range mixes {
		c := mix[0]
		counts := roster.Counts{Outs: c[0], Singles: c[1], Doubles: c[2], Triples: c[3], HomeRuns: c[4], Walks: c[5]}
		players := uniformPlayers(3, counts)
		gen, err := NewHitGenerator(players)
		require.NoError(t, err, "%v", c)
		for k, o := range roster.Outcomes {
			assert.InDelta(t, float64(c[k])/plateAppearances, gen.Probability("p0", o), 1e-12, "%v %s", c, o)
		}

		runs, err := SimulateGame(lineup.New(players), rules, gen, src)
		require.NoError(t, err, "%v", c)
		switch {
		case counts.Outs == 0:
			assert.Equal(t, 2*3, runs, "%v", c)
		case counts.Outs == plateAppearances:
			assert.Zero(t, runs, "%v", c)
		default:
			assert.GreaterOrEqual(t, runs, 0, "%v", c)
			assert.LessOrEqual(t, runs, 2*3, "%v", c)
		}
	}
}
