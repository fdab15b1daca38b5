package optimizer

import (
	"context"
	"errors"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"go.uber.org/zap"
)

// exhaustiveBatchPerThread is how many lineups each worker takes per batch.
const exhaustiveBatchPerThread = 4

// exhaustive simulates a fixed number of games for every legal lineup.
type exhaustive struct{}

func (exhaustive) Name() string { return ExhaustiveName }

func (exhaustive) Optimize(ctx context.Context, r *run) (result.Result, error) {
	var (
		leader  best
		details result.Details
		next    int64
	)
	if r.resume != nil {
		var err error
		if leader, details, err = r.resumed(); err != nil {
			return result.Result{}, err
		}
		next = r.resume.CountCompleted
	}
	sign := r.params.sign()
	size := r.indexer.Size()
	batch := int64(r.params.Threads * exhaustiveBatchPerThread)

	for next < size {
		if ctx.Err() != nil || r.budgetExceeded(details.GamesSimulated) {
			details.BudgetExhausted = true
			break
		}

		end := min(next+batch, size)
		jobs := make([]job, 0, end-next)
		for i := next; i < end; i++ {
			l, err := r.indexer.Lineup(i)
			if err != nil {
				return result.Result{}, err
			}
			jobs = append(jobs, job{index: i, lineup: l, games: r.params.Games})
		}

		slots, err := r.simulate(jobs)
		if err != nil {
			if errors.Is(err, errTrialFailed) {
				r.logger.Warn("discarding batch after repeated trial failure",
					zap.String("op", "optimizer.exhaustive"),
					zap.Int64("from", next),
					zap.Int64("to", end),
				)
				details.Degraded = true
				break
			}
			return result.Result{}, err
		}

		for k, acc := range slots {
			details.GamesSimulated += acc.N()
			if !leader.found || sign*acc.Mean() > sign*leader.score {
				leader = best{index: jobs[k].index, lineup: jobs[k].lineup, score: acc.Mean(), found: true}
			}
		}
		next = end
		details.Rounds++
		r.recorder.RoundCompleted(r.strategy.Name())

		if _, err := r.publish(next, leader, details); err != nil {
			return result.Result{}, err
		}
	}
	return r.finish(next, leader, details)
}

func (exhaustive) Estimate(r *run) int64 {
	return r.gameCost(float64(r.indexer.Size()) * float64(r.params.Games))
}
