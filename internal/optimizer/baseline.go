package optimizer

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"go.uber.org/zap"
)

const (
	// scanPublishEvery is how many lineups the penalty scan scores between
	// progress snapshots and cancellation checks.
	scanPublishEvery = 1 << 16
	// scanNsPerBatter is the approximate cost of scoring one batter slot.
	scanNsPerBatter = 40
)

// baseline orders batters by batting average without simulating, then
// confirms the chosen lineup with a fixed number of games.
type baseline struct{}

func (baseline) Name() string { return BaselineName }

func (b baseline) Optimize(ctx context.Context, r *run) (result.Result, error) {
	var (
		chosen    best
		completed int64
		details   result.Details
		err       error
	)
	switch r.indexer.Policy().Kind {
	case lineup.Standard, lineup.AlternatingGender:
		chosen, err = sortedLineup(r)
		completed = r.indexer.Size()
	default:
		chosen, completed, details.BudgetExhausted, err = penaltyScan(ctx, r)
	}
	if err != nil {
		return result.Result{}, err
	}

	acc, err := r.simulateLineup(chosen.index, chosen.lineup, 0, r.params.ConfirmGames)
	details.GamesSimulated = acc.N()
	switch {
	case errors.Is(err, errTrialFailed):
		details.Degraded = true
	case err != nil:
		return result.Result{}, err
	}
	if acc.N() > 0 {
		chosen.score = acc.Mean()
	}
	return r.finish(completed, chosen, details)
}

func (baseline) Estimate(r *run) int64 {
	ms := r.gameCost(float64(r.params.ConfirmGames))
	if r.indexer.Policy().Kind == lineup.NoConsecutiveFemales {
		scan := float64(r.indexer.Size()) * float64(len(r.players)) * scanNsPerBatter / 1e6
		ms += int64(math.Ceil(scan))
	}
	return ms
}

func byAverage(players []roster.Player) []roster.Player {
	sorted := append([]roster.Player(nil), players...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BattingAverage() > sorted[j].BattingAverage()
	})
	return sorted
}

// sortedLineup builds the descending-average lineup directly. Alternating
// lineups sort each gender and lead with whichever gender has the best hitter.
func sortedLineup(r *run) (best, error) {
	var l lineup.Lineup
	if r.indexer.Policy().Kind == lineup.AlternatingGender {
		var men, women []roster.Player
		for _, p := range byAverage(r.players) {
			if p.Gender == roster.Female {
				women = append(women, p)
			} else {
				men = append(men, p)
			}
		}
		if len(women) > 0 && len(men) > 0 && women[0].BattingAverage() > men[0].BattingAverage() {
			l = lineup.NewAlternating(women, men)
		} else {
			l = lineup.NewAlternating(men, women)
		}
	} else {
		l = lineup.New(byAverage(r.players))
	}

	index, err := r.indexer.Index(l)
	if err != nil {
		return best{}, err
	}
	return best{index: index, lineup: l, found: true}, nil
}

// penalty sums the squared increases in batting average between consecutive
// batters. A lineup in descending order scores zero.
func penalty(l lineup.Lineup) float64 {
	players := l.Players()
	total := 0.0
	for i := 1; i < len(players); i++ {
		if d := players[i].BattingAverage() - players[i-1].BattingAverage(); d > 0 {
			total += d * d
		}
	}
	return total
}

// penaltyScan scores every legal lineup and keeps the lowest penalty. The
// first index wins ties.
func penaltyScan(ctx context.Context, r *run) (chosen best, completed int64, exhausted bool, err error) {
	lowest := math.Inf(1)
	size := r.indexer.Size()
	for i := int64(0); i < size; i++ {
		if i > 0 && i%scanPublishEvery == 0 {
			if ctx.Err() != nil || r.budgetExceeded(0) {
				r.logger.Info("penalty scan stopped early",
					zap.String("op", "optimizer.penaltyScan"),
					zap.Int64("scanned", i),
					zap.Int64("lineups", size),
				)
				return chosen, i, true, nil
			}
			if _, err := r.publish(i, chosen, result.Details{}); err != nil {
				return best{}, i, false, err
			}
		}

		l, err := r.indexer.Lineup(i)
		if err != nil {
			return best{}, i, false, err
		}
		if p := penalty(l); p < lowest {
			lowest = p
			chosen = best{index: i, lineup: l, found: true}
		}
	}
	return chosen, size, false, nil
}
