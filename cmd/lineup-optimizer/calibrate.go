package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/progress"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/internal/sim"
	"go.uber.org/zap"
)

// calibrationAverages are the team batting averages timed by calibrate.
var calibrationAverages = []float64{0.2, 0.35, 0.5, 0.65, 0.8}

const (
	calibrationBatters          = 10
	calibrationPlateAppearances = 1000
)

// calibrationTeam is a lineup of identical hitters batting avg.
func calibrationTeam(avg float64) ([]roster.Player, error) {
	singles := int(math.Round(avg * calibrationPlateAppearances))
	players := make([]roster.Player, calibrationBatters)
	for i := range players {
		players[i] = roster.Player{
			ID:     fmt.Sprintf("calibration-%d", i),
			Counts: roster.Counts{Singles: singles, Outs: calibrationPlateAppearances - singles},
		}
		if err := players[i].Validate(); err != nil {
			return nil, err
		}
	}
	return players, nil
}

// calibrate times games single-threaded at each team average and fits a
// cost model of the given degree.
func calibrate(ctx context.Context, logger *zap.Logger, rules sim.Rules, games, degree int, averages []float64) (progress.CostModel, error) {
	if games <= 0 {
		return progress.CostModel{}, fmt.Errorf("calibration needs a positive game count, got %d", games)
	}
	rules = rules.Normalize()

	samples := make([]progress.CostSample, 0, len(averages))
	for i, avg := range averages {
		if err := ctx.Err(); err != nil {
			return progress.CostModel{}, err
		}
		players, err := calibrationTeam(avg)
		if err != nil {
			return progress.CostModel{}, err
		}
		gen, err := sim.NewHitGenerator(players)
		if err != nil {
			return progress.CostModel{}, err
		}
		l := lineup.New(players)
		src := rand.New(rand.NewPCG(uint64(i)+1, 0))

		start := time.Now()
		for g := 0; g < games; g++ {
			if _, err := sim.SimulateGame(l, rules, gen, src); err != nil {
				return progress.CostModel{}, err
			}
		}
		msPerGame := float64(time.Since(start).Nanoseconds()) / 1e6 / float64(games)
		samples = append(samples, progress.CostSample{TeamAverage: avg, MsPerGame: msPerGame})

		logger.Info("calibration sample",
			zap.String("op", "calibrate"),
			zap.Float64("teamAverage", avg),
			zap.Int("games", games),
			zap.Float64("msPerGame", msPerGame),
		)
	}

	return progress.FitCostModel(samples, degree, rules.Innings, 1)
}
