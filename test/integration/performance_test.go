package integration

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/optimizer"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/internal/sim"
	"github.com/iwvelando/lineup-optimizer/pkg/testutil"
	"go.uber.org/zap"
)

// TestOptimizationPerformance measures an adaptive search over a full
// ten-player roster. It only runs in verbose mode.
func TestOptimizationPerformance(t *testing.T) {
	if !testing.Verbose() {
		t.Skip("Skipping performance test. Run with -v to enable.")
	}

	players := append(testutil.Team("m", roster.Male, 5), testutil.Team("w", roster.Female, 5)...)
	params := optimizer.Parameters{
		Strategy:   optimizer.AdaptiveName,
		Seed:       11,
		TimeBudget: 20 * time.Second,
	}

	runner := optimizer.NewRunner(zap.NewNop(), nil)
	req := optimizer.Request{Players: players, Policy: lineup.Policy{Kind: lineup.AlternatingGender}, Params: params}

	est, err := runner.Estimate(req)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	start := time.Now()
	res, err := runner.Optimize(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	elapsed := time.Since(start)

	t.Logf("Performance metrics:")
	t.Logf("  Lineups: %d", res.CountTotal)
	t.Logf("  Games simulated: %d", res.Details.GamesSimulated)
	t.Logf("  Rounds: %d", res.Details.Rounds)
	t.Logf("  Estimated: %d ms", *est.EstimatedTotalMs)
	t.Logf("  Elapsed: %v", elapsed)

	if elapsed > 30*time.Second {
		t.Errorf("optimization took %v, beyond its 20s budget", elapsed)
	}
}

func BenchmarkSimulateGame(b *testing.B) {
	players := testutil.Team("p", "", 10)
	gen, err := sim.NewHitGenerator(players)
	if err != nil {
		b.Fatalf("NewHitGenerator() error = %v", err)
	}
	l := lineup.New(players)
	rules := sim.DefaultRules()
	src := rand.New(rand.NewPCG(1, 2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := sim.SimulateGame(l, rules, gen, src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExhaustiveFivePlayers(b *testing.B) {
	players := testutil.Team("p", "", 5)
	params := optimizer.Parameters{Strategy: optimizer.ExhaustiveName, Games: 100, Seed: 1}
	for i := 0; i < b.N; i++ {
		if _, err := optimizer.Optimize(context.Background(), players, lineup.Policy{}, nil, params, nil); err != nil {
			b.Fatal(err)
		}
	}
}
