package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

const (
	annealSkew         = 1.0
	annealPrelimSample = 10
	annealCacheSize    = 4096
	// annealStream separates the walk's random stream from game streams.
	annealStream = 0x616e6e65616c
)

// annealing walks the lineup space from neighbor to neighbor, accepting a
// worse lineup while the loss stays under a cooling temperature.
type annealing struct{}

func (annealing) Name() string { return AnnealingName }

func (a annealing) Optimize(ctx context.Context, r *run) (result.Result, error) {
	r.base = result.New(r.id, r.strategy.Name(), r.indexer.Policy(), int64(r.params.Iterations))
	rng := rand.New(rand.NewPCG(r.params.Seed, annealStream))
	sign := r.params.sign()
	size := r.indexer.Size()
	cache := make(map[int64]*candidate)
	var details result.Details

	evaluate := func(index int64) (*candidate, error) {
		c, ok := cache[index]
		if !ok {
			l, err := r.indexer.Lineup(index)
			if err != nil {
				return nil, err
			}
			c = &candidate{index: index, lineup: l}
		}
		acc, err := r.simulateLineup(c.index, c.lineup, c.acc.N(), r.params.StepGames)
		details.GamesSimulated += acc.N()
		if err != nil {
			return nil, err
		}
		c.acc.Merge(acc)
		cache[index] = c
		return c, nil
	}

	maxTemp, err := a.prelim(r, rng, evaluate)
	if err != nil {
		return a.stop(r, err, nil, details)
	}

	current, err := evaluate(0)
	if err != nil {
		return a.stop(r, err, nil, details)
	}
	leader := current

	var it int
	for it = 0; it < r.params.Iterations; it++ {
		if ctx.Err() != nil || r.budgetExceeded(details.GamesSimulated) {
			details.BudgetExhausted = true
			break
		}
		temp := temperature(maxTemp, it, r.params.Iterations)

		neighborIndex := current.index
		if size > 1 {
			if neighborIndex, err = r.indexer.RandomNeighbor(current.index, rng); err != nil {
				return result.Result{}, err
			}
		}
		neighbor, err := evaluate(neighborIndex)
		if err != nil {
			return a.stop(r, err, leader, details)
		}
		if sign*(current.acc.Mean()-neighbor.acc.Mean()) < temp {
			current = neighbor
		}
		if sign*neighbor.acc.Mean() > sign*leader.acc.Mean() {
			leader = neighbor
		}
		trimCache(cache, current, leader)

		details.Rounds++
		r.recorder.RoundCompleted(r.strategy.Name())
		if _, err := r.publish(int64(it+1), toBest(leader), details); err != nil {
			return result.Result{}, err
		}
	}

	if ctx.Err() == nil {
		acc, err := r.simulateLineup(leader.index, leader.lineup, leader.acc.N(), r.params.ConfirmGames)
		details.GamesSimulated += acc.N()
		switch {
		case errors.Is(err, errTrialFailed):
			details.Degraded = true
		case err != nil:
			return result.Result{}, err
		default:
			leader = &candidate{index: leader.index, lineup: leader.lineup, acc: acc}
		}
	}
	return r.finish(int64(it), toBest(leader), details)
}

// prelim samples a few random lineups and sets the starting temperature to
// three standard deviations of their means.
func (annealing) prelim(r *run, rng *rand.Rand, evaluate func(int64) (*candidate, error)) (float64, error) {
	size := r.indexer.Size()
	n := int(min(size, annealPrelimSample))
	means := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		c, err := evaluate(rng.Int64N(size))
		if err != nil {
			return 0, err
		}
		means = append(means, c.acc.Mean())
	}
	if len(means) < 2 {
		return 1, nil
	}
	_, sd := stat.MeanStdDev(means, nil)
	if sd == 0 || math.IsNaN(sd) {
		return 1, nil
	}
	r.logger.Debug("annealing temperature set",
		zap.String("op", "optimizer.annealing"),
		zap.Float64("maxTemperature", 3*sd),
	)
	return 3 * sd, nil
}

// stop finishes a run whose walk hit a trial failure, or propagates any
// other error.
func (annealing) stop(r *run, err error, leader *candidate, details result.Details) (result.Result, error) {
	if !errors.Is(err, errTrialFailed) {
		return result.Result{}, err
	}
	details.Degraded = true
	return r.finish(details.Rounds, toBest(leader), details)
}

func (annealing) Estimate(r *run) int64 {
	prelim := min(r.indexer.Size(), annealPrelimSample)
	games := float64(prelim+int64(r.params.Iterations)+1)*float64(r.params.StepGames) + float64(r.params.ConfirmGames)
	if r.params.MaxTotalGames > 0 {
		games = min(games, float64(r.params.MaxTotalGames))
	}
	return r.gameCost(games)
}

// temperature cools exponentially from maxTemp at the first iteration to zero
// at the last. Larger skews cool faster early on.
func temperature(maxTemp float64, it, iterations int) float64 {
	if iterations <= 0 {
		return 0
	}
	remaining := 1 - float64(it)/float64(iterations)
	return maxTemp * math.Expm1(annealSkew*remaining) / math.Expm1(annealSkew)
}

// trimCache bounds the number of remembered lineups, keeping the walk's
// current and best positions.
func trimCache(cache map[int64]*candidate, keep ...*candidate) {
	if len(cache) <= annealCacheSize {
		return
	}
	pinned := make(map[int64]struct{}, len(keep))
	for _, c := range keep {
		pinned[c.index] = struct{}{}
	}
	for index := range cache {
		if len(cache) <= annealCacheSize/2 {
			break
		}
		if _, ok := pinned[index]; !ok {
			delete(cache, index)
		}
	}
}
