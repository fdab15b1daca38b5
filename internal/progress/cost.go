package progress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CostModel predicts the wall time of simulated games. The per-game cost at
// the reference innings and thread count is a polynomial in the team batting
// average, since better hitters see more plate appearances per game.
type CostModel struct {
	Coefficients      []float64       `json:"coefficients" yaml:"coefficients"`
	ReferenceInnings  int             `json:"referenceInnings" yaml:"referenceInnings"`
	ReferenceThreads  int             `json:"referenceThreads" yaml:"referenceThreads"`
	ThreadAdjustments map[int]float64 `json:"threadAdjustments,omitempty" yaml:"threadAdjustments,omitempty"`
}

// DefaultCostModel is a single-thread, seven-inning model.
func DefaultCostModel() CostModel {
	return CostModel{
		Coefficients:     []float64{0.0008, 0.0015, 0.006},
		ReferenceInnings: 7,
		ReferenceThreads: 1,
	}
}

// GameMs is the predicted wall time of one game in milliseconds.
func (m CostModel) GameMs(teamAverage float64, innings, threads int) float64 {
	y := 0.0
	for i, c := range m.Coefficients {
		y += c * math.Pow(teamAverage, float64(i))
	}
	if y < 0 {
		y = 0
	}
	if m.ReferenceInnings > 0 && innings > 0 {
		y *= float64(innings) / float64(m.ReferenceInnings)
	}
	if threads > 0 && m.ReferenceThreads > 0 {
		y *= float64(m.ReferenceThreads) / float64(threads)
		if adj, ok := m.ThreadAdjustments[threads]; ok && adj > 0 {
			y *= adj
		}
	}
	return y
}

// EstimateMs is the predicted wall time of games simulated games.
func (m CostModel) EstimateMs(teamAverage float64, innings, threads int, games float64) int64 {
	ms := m.GameMs(teamAverage, innings, threads) * games
	if ms >= math.MaxInt64 || math.IsNaN(ms) {
		return math.MaxInt64
	}
	return int64(math.Ceil(ms))
}

// CostSample is one timing observation at the model's reference settings.
type CostSample struct {
	TeamAverage float64
	MsPerGame   float64
}

// FitCostModel fits polynomial coefficients of the given degree by least squares.
func FitCostModel(samples []CostSample, degree, innings, threads int) (CostModel, error) {
	if degree < 0 {
		return CostModel{}, fmt.Errorf("polynomial degree %d must not be negative", degree)
	}
	if len(samples) < degree+1 {
		return CostModel{}, fmt.Errorf("need at least %d samples to fit degree %d, got %d", degree+1, degree, len(samples))
	}

	a := mat.NewDense(len(samples), degree+1, nil)
	b := mat.NewVecDense(len(samples), nil)
	for i, s := range samples {
		for j := 0; j <= degree; j++ {
			a.Set(i, j, math.Pow(s.TeamAverage, float64(j)))
		}
		b.SetVec(i, s.MsPerGame)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return CostModel{}, fmt.Errorf("failed to fit cost model: %w", err)
		}
	}

	coefficients := make([]float64, degree+1)
	for j := range coefficients {
		coefficients[j] = x.AtVec(j)
	}
	return CostModel{Coefficients: coefficients, ReferenceInnings: innings, ReferenceThreads: threads}, nil
}
