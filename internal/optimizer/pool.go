package optimizer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errTrialFailed marks a game that failed twice. Strategies treat it as a
// degraded completion rather than a precondition failure.
var errTrialFailed = errors.New("simulation trial failed")

// job plays games consecutive games of one lineup. Game ordinals start at
// first, so the random stream of each game is independent of scheduling.
type job struct {
	index  int64
	lineup lineup.Lineup
	first  int64
	games  int
}

// gameSource derives the random stream for one game of one lineup.
func gameSource(seed uint64, index, ordinal int64) *rand.Rand {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(index))
	binary.LittleEndian.PutUint64(buf[8:], uint64(ordinal))
	_, _ = h.Write(buf[:])
	return rand.New(rand.NewPCG(seed, h.Sum64()))
}

// play runs one game, retrying once on failure or panic.
func (r *run) play(j job, ordinal int64) (float64, error) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var score float64
		score, err = r.playOnce(j.lineup, gameSource(r.params.Seed, j.index, ordinal))
		if err == nil {
			return score, nil
		}
		r.logger.Warn("simulation trial failed",
			zap.String("op", "optimizer.play"),
			zap.Int64("index", j.index),
			zap.Int64("game", ordinal),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return 0, fmt.Errorf("lineup %d game %d: %w: %w", j.index, ordinal, errTrialFailed, err)
}

func (r *run) playOnce(l lineup.Lineup, src *rand.Rand) (score float64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.trial(l, src)
}

// simulate runs jobs across the worker pool and returns one accumulator per
// job. Every job runs to completion even if another fails; the first error
// is returned after the barrier.
func (r *run) simulate(jobs []job) ([]stats.Accumulator, error) {
	slots := make([]stats.Accumulator, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.params.Threads)
	for i := range jobs {
		g.Go(func() error {
			j := jobs[i]
			for k := 0; k < j.games; k++ {
				score, err := r.play(j, j.first+int64(k))
				if err != nil {
					return err
				}
				slots[i].Add(score)
			}
			return nil
		})
	}
	err := g.Wait()

	var games int64
	for _, s := range slots {
		games += s.N()
	}
	r.recorder.GamesSimulated(r.strategy.Name(), games)
	return slots, err
}

// simulateLineup plays games games of a single lineup, split into chunks so
// every worker takes part.
func (r *run) simulateLineup(index int64, l lineup.Lineup, first int64, games int) (stats.Accumulator, error) {
	jobs := chunk(job{index: index, lineup: l, first: first, games: games}, r.params.Threads)
	slots, err := r.simulate(jobs)
	var acc stats.Accumulator
	for _, s := range slots {
		acc.Merge(s)
	}
	return acc, err
}

// chunk splits a job into at most parts jobs over consecutive ordinals.
func chunk(j job, parts int) []job {
	if parts < 1 {
		parts = 1
	}
	size := (j.games + parts - 1) / parts
	if size < 1 {
		return []job{j}
	}
	var out []job
	for start := 0; start < j.games; start += size {
		out = append(out, job{
			index:  j.index,
			lineup: j.lineup,
			first:  j.first + int64(start),
			games:  min(size, j.games-start),
		})
	}
	return out
}
