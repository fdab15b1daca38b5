package optimizer

import (
	"context"
	"errors"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/stats"
	"go.uber.org/zap"
)

// adaptiveGamesFactor is the expected games per lineup, in multiples of
// MinGames, used for estimates.
const adaptiveGamesFactor = 2

// adaptive keeps a working set of undecided lineups, adds games round by
// round, and prunes lineups a sequential test shows to be behind the leader.
type adaptive struct{}

type candidate struct {
	index  int64
	lineup lineup.Lineup
	acc    stats.Accumulator
	looks  int64
}

func (adaptive) Name() string { return AdaptiveName }

func (a adaptive) Optimize(ctx context.Context, r *run) (result.Result, error) {
	var (
		active  []*candidate
		next    int64
		details result.Details
	)
	size := r.indexer.Size()
	if r.resume != nil {
		var err error
		if _, details, err = r.resumed(); err != nil {
			return result.Result{}, err
		}
		if active, err = a.restore(r); err != nil {
			return result.Result{}, err
		}
		next = min(r.resume.CountCompleted+int64(len(active)), size)
	}

	for {
		for len(active) < r.params.MaxActive && next < size {
			l, err := r.indexer.Lineup(next)
			if err != nil {
				return result.Result{}, err
			}
			active = append(active, &candidate{index: next, lineup: l})
			next++
		}
		if next >= size && len(active) <= 1 {
			break
		}
		if ctx.Err() != nil || r.budgetExceeded(details.GamesSimulated) {
			details.BudgetExhausted = true
			break
		}

		jobs, owners := a.schedule(r, active)
		if len(jobs) > 0 {
			slots, err := r.simulate(jobs)
			if err != nil {
				if errors.Is(err, errTrialFailed) {
					r.logger.Warn("discarding round after repeated trial failure",
						zap.String("op", "optimizer.adaptive"),
						zap.Int64("round", details.Rounds+1),
						zap.Error(err),
					)
					details.Degraded = true
					break
				}
				return result.Result{}, err
			}
			for k, s := range slots {
				active[owners[k]].acc.Merge(s)
				details.GamesSimulated += s.N()
			}
		}
		details.Rounds++
		r.recorder.RoundCompleted(r.strategy.Name())

		var pruned int
		active, pruned = a.decide(r, active, &details)
		if pruned > 0 {
			r.recorder.CandidatesPruned(r.strategy.Name(), pruned)
		}
		details.ActiveCandidates = activeIndexes(active)
		details.Candidates = candidateStates(active)

		r.logger.Debug("adaptive round complete",
			zap.String("op", "optimizer.adaptive"),
			zap.Int64("round", details.Rounds),
			zap.Int("active", len(active)),
			zap.Int("pruned", pruned),
			zap.Int64("gamesSimulated", details.GamesSimulated),
		)
		if _, err := r.publish(next-int64(len(active)), toBest(leaderOf(active, 1, r.params.sign())), details); err != nil {
			return result.Result{}, err
		}
	}

	leader := leaderOf(active, 1, r.params.sign())
	if leader == nil && len(active) > 0 {
		leader = active[0]
	}
	if leader != nil && leader.acc.N() == 0 && ctx.Err() == nil && !details.Degraded {
		acc, err := r.simulateLineup(leader.index, leader.lineup, 0, r.params.ConfirmGames)
		switch {
		case errors.Is(err, errTrialFailed):
			details.Degraded = true
		case err != nil:
			return result.Result{}, err
		}
		leader.acc.Merge(acc)
		details.GamesSimulated += acc.N()
	}

	completed := next - int64(len(active))
	if !details.BudgetExhausted && !details.Degraded {
		completed = size
	}
	details.ActiveCandidates = activeIndexes(active)
	details.Candidates = candidateStates(active)
	return r.finish(completed, toBest(leader), details)
}

// restore rebuilds the working set saved in the checkpoint. Lineups without
// a saved summary start with no games.
func (adaptive) restore(r *run) ([]*candidate, error) {
	saved := make(map[int64]result.Candidate, len(r.resume.Details.Candidates))
	for _, c := range r.resume.Details.Candidates {
		saved[c.Index] = c
	}
	active := make([]*candidate, 0, len(r.resume.Details.ActiveCandidates))
	for _, i := range r.resume.Details.ActiveCandidates {
		l, err := r.indexer.Lineup(i)
		if err != nil {
			return nil, err
		}
		c := &candidate{index: i, lineup: l}
		if s, ok := saved[i]; ok {
			c.acc = stats.Restore(s.Games, s.Mean, s.M2, s.Min, s.Max)
			c.looks = s.Looks
		}
		active = append(active, c)
	}
	return active, nil
}

// schedule assigns each undecided lineup its games for the round: enough to
// reach MinGames, then GamesPerRound at a time up to MaxGamesPerLineup.
func (adaptive) schedule(r *run, active []*candidate) (jobs []job, owners []int) {
	limit := r.params.MaxGamesPerLineup
	for k, c := range active {
		games := int64(r.params.GamesPerRound)
		if n := c.acc.N(); n < int64(r.params.MinGames) {
			games = int64(r.params.MinGames) - n
		}
		if limit > 0 {
			games = min(games, limit-c.acc.N())
		}
		if games <= 0 {
			continue
		}
		jobs = append(jobs, job{index: c.index, lineup: c.lineup, first: c.acc.N(), games: int(games)})
		owners = append(owners, k)
	}
	return jobs, owners
}

// decide tests every sampled lineup against the leader and drops those shown
// not to be better. Lineups still short of MinGames are kept untested.
func (adaptive) decide(r *run, active []*candidate, details *result.Details) ([]*candidate, int) {
	minGames := int64(r.params.MinGames)
	sign := r.params.sign()
	leader := leaderOf(active, minGames, sign)
	if leader == nil {
		return active, 0
	}

	limit := r.params.MaxGamesPerLineup
	kept := make([]*candidate, 0, len(active))
	pruned := 0
	for _, c := range active {
		if c == leader || c.acc.N() < minGames {
			kept = append(kept, c)
			continue
		}
		if limit > 0 && c.acc.N() >= limit && leader.acc.N() >= limit {
			// No more games are coming; the leader has the better mean.
			details.ComparisonsAtLimit++
			pruned++
			continue
		}
		c.looks++
		test := stats.Dominance(leader.acc, c.acc, sign, r.params.Separation)
		if test.P <= stats.SpentAlpha(r.params.Alpha, c.looks) {
			pruned++
			continue
		}
		kept = append(kept, c)
	}
	return kept, pruned
}

func (adaptive) Estimate(r *run) int64 {
	games := float64(r.indexer.Size()) * float64(r.params.MinGames*adaptiveGamesFactor)
	if r.params.MaxTotalGames > 0 {
		games = min(games, float64(r.params.MaxTotalGames))
	}
	return r.gameCost(games)
}

// leaderOf returns the best mean among candidates with at least minGames
// games. The earliest candidate wins ties.
func leaderOf(active []*candidate, minGames int64, sign float64) *candidate {
	var leader *candidate
	for _, c := range active {
		if c.acc.N() < minGames {
			continue
		}
		if leader == nil || sign*c.acc.Mean() > sign*leader.acc.Mean() {
			leader = c
		}
	}
	return leader
}

func toBest(c *candidate) best {
	if c == nil {
		return best{}
	}
	return best{index: c.index, lineup: c.lineup, score: c.acc.Mean(), found: true}
}

func activeIndexes(active []*candidate) []int64 {
	out := make([]int64, len(active))
	for i, c := range active {
		out[i] = c.index
	}
	return out
}

func candidateStates(active []*candidate) []result.Candidate {
	out := make([]result.Candidate, len(active))
	for i, c := range active {
		out[i] = result.Candidate{
			Index: c.index,
			Games: c.acc.N(),
			Mean:  c.acc.Mean(),
			M2:    c.acc.M2(),
			Min:   c.acc.Min(),
			Max:   c.acc.Max(),
			Looks: c.looks,
		}
	}
	return out
}
