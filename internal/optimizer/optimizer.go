// Package optimizer searches lineup indexes for the batting order with the
// best expected runs, using interchangeable strategies.
package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/progress"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/internal/sim"
	"go.uber.org/zap"
)

var (
	ErrInvalidArgument      = lineup.ErrInvalidArgument
	ErrOverflow             = lineup.ErrOverflow
	ErrEmptyRosterSelection = lineup.ErrEmptyRosterSelection
)

const (
	BaselineName   = "sort-by-average"
	ExhaustiveName = "monte-carlo-exhaustive"
	AdaptiveName   = "monte-carlo-adaptive"
	AnnealingName  = "monte-carlo-annealing"
)

// Strategy is one way of choosing a lineup.
type Strategy interface {
	Name() string
	// Optimize runs to completion, publishing snapshots through the run's reporter.
	Optimize(ctx context.Context, r *run) (result.Result, error)
	// Estimate projects the wall time without simulating.
	Estimate(r *run) int64
}

var strategies = map[string]Strategy{
	BaselineName:   baseline{},
	ExhaustiveName: exhaustive{},
	AdaptiveName:   adaptive{},
	AnnealingName:  annealing{},
}

var strategyIDs = map[string]string{
	"0": BaselineName,
	"1": ExhaustiveName,
	"2": AdaptiveName,
	"3": AnnealingName,
}

// Lookup resolves a strategy by name or numeric id.
func Lookup(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = AdaptiveName
	}
	if alias, ok := strategyIDs[key]; ok {
		key = alias
	}
	s, ok := strategies[key]
	if !ok {
		return nil, fmt.Errorf("optimizer %q is not supported: %w", name, ErrInvalidArgument)
	}
	return s, nil
}

// Names lists the registered strategies.
func Names() []string {
	return []string{BaselineName, ExhaustiveName, AdaptiveName, AnnealingName}
}

// Recorder observes run activity, typically for metrics.
type Recorder interface {
	GamesSimulated(strategy string, n int64)
	RoundCompleted(strategy string)
	CandidatesPruned(strategy string, n int)
	RunFinished(strategy string, status result.Status, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) GamesSimulated(string, int64) {}
func (nopRecorder) RoundCompleted(string) {}
func (nopRecorder) CandidatesPruned(string, int) {}
func (nopRecorder) RunFinished(string, result.Status, time.Duration) {}

// trialFunc plays one game of l and returns its score.
type trialFunc func(l lineup.Lineup, src sim.Source) (float64, error)

// Runner executes optimizations.
type Runner struct {
	logger   *zap.Logger
	recorder Recorder
	newTrial func(gen *sim.HitGenerator, rules sim.Rules) trialFunc
}

// NewRunner constructs a Runner. A nil recorder disables metrics.
func NewRunner(logger *zap.Logger, recorder Recorder) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Runner{logger: logger, recorder: recorder, newTrial: simulatedTrial}
}

func simulatedTrial(gen *sim.HitGenerator, rules sim.Rules) trialFunc {
	return func(l lineup.Lineup, src sim.Source) (float64, error) {
		runs, err := sim.SimulateGame(l, rules, gen, src)
		return float64(runs), err
	}
}

// Request describes one optimization.
type Request struct {
	RunID   string
	Players []roster.Player
	Policy  lineup.Policy
	// IDs selects a subset of Players; empty means all of them.
	IDs    []string
	Params Parameters
	// Resume continues the search recorded in an earlier result of the same
	// request. Strategies that cannot resume start over.
	Resume *result.Result
}

// resumable lists the strategies that continue from a saved result.
var resumable = map[string]bool{
	ExhaustiveName: true,
	AdaptiveName:   true,
}

// run is the prepared state shared by a strategy for one optimization.
type run struct {
	id       string
	strategy Strategy
	players  []roster.Player
	indexer  lineup.Indexer
	gen      *sim.HitGenerator
	params   Parameters
	trial    trialFunc
	logger   *zap.Logger
	recorder Recorder
	reporter *progress.Reporter
	window   *progress.Window
	started  time.Time
	base     result.Result

	// resume is the checkpoint being continued. Budgets count from the
	// resumed session; elapsed time and game counts carry forward.
	resume     *result.Result
	priorMs    int64
	priorGames int64
}

func (rn *Runner) prepare(req Request, sink progress.Sink) (*run, error) {
	params := req.Params.Normalize()
	strategy, err := Lookup(params.Strategy)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	players := req.Players
	if len(req.IDs) > 0 {
		players, err = roster.SelectFrom(req.Players, req.IDs)
		if err != nil {
			return nil, err
		}
	}
	if len(players) == 0 {
		return nil, ErrEmptyRosterSelection
	}

	indexer, err := lineup.NewIndexer(req.Policy, players)
	if err != nil {
		return nil, err
	}
	gen, err := sim.NewHitGenerator(players)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.RunID)
	if id == "" {
		id = uuid.NewString()
	}
	if params.Seed == 0 {
		params.Seed = uint64(time.Now().UnixNano())
	}

	var resume *result.Result
	if req.Resume != nil && resumable[strategy.Name()] {
		if err := checkResume(*req.Resume, strategy.Name(), req.Policy, indexer); err != nil {
			return nil, err
		}
		cp := *req.Resume
		resume = &cp
	}

	r := &run{
		id:       id,
		strategy: strategy,
		players:  players,
		indexer:  indexer,
		gen:      gen,
		params:   params,
		trial:    rn.newTrial(gen, params.rules()),
		logger:   rn.logger.With(zap.String("runId", id), zap.String("optimizer", strategy.Name())),
		recorder: rn.recorder,
		reporter: progress.NewReporter(sink, params.ProgressInterval, rn.logger),
		window:   progress.NewWindow(progress.DefaultWindowSize),
		base:     result.New(id, strategy.Name(), req.Policy, indexer.Size()),
		resume:   resume,
	}
	if resume != nil {
		r.priorMs = resume.ElapsedMs
		r.priorGames = resume.Details.GamesSimulated
	}
	return r, nil
}

// checkResume rejects a checkpoint that was not produced by the same
// strategy over the same lineup space.
func checkResume(cp result.Result, strategy string, policy lineup.Policy, indexer lineup.Indexer) error {
	switch {
	case cp.Status != result.InProgress && cp.Status != result.Complete:
		return fmt.Errorf("cannot resume a %s result: %w", cp.Status, ErrInvalidArgument)
	case cp.Optimizer != strategy:
		return fmt.Errorf("cannot resume a %s result with %s: %w", cp.Optimizer, strategy, ErrInvalidArgument)
	case cp.Policy != policy.String() || cp.CountTotal != indexer.Size():
		return fmt.Errorf("resumed result covers %d %s lineups, not %d %s: %w",
			cp.CountTotal, cp.Policy, indexer.Size(), policy, ErrInvalidArgument)
	case cp.CountCompleted < 0 || cp.CountCompleted > cp.CountTotal || cp.Details.GamesSimulated < 0:
		return fmt.Errorf("resumed result has inconsistent counts: %w", ErrInvalidArgument)
	}
	if cp.BestIndex >= 0 {
		l, err := indexer.Lineup(cp.BestIndex)
		if err != nil {
			return fmt.Errorf("resumed best lineup: %w", err)
		}
		if strings.Join(l.IDs(), ",") != strings.Join(cp.LineupIDs(), ",") {
			return fmt.Errorf("resumed best lineup does not match index %d: %w", cp.BestIndex, ErrInvalidArgument)
		}
	}
	for _, i := range cp.Details.ActiveCandidates {
		if i < 0 || i >= cp.CountTotal {
			return fmt.Errorf("resumed candidate %d outside [0, %d): %w", i, cp.CountTotal, ErrInvalidArgument)
		}
	}
	return nil
}

// Optimize runs the requested strategy. Precondition failures are returned
// before any work starts; budget exhaustion completes normally.
func (rn *Runner) Optimize(ctx context.Context, req Request, sink progress.Sink) (result.Result, error) {
	r, err := rn.prepare(req, sink)
	if err != nil {
		rn.logger.Error("failed to prepare optimization",
			zap.String("op", "optimizer.Optimize"),
			zap.Error(err),
		)
		return result.Result{}, err
	}

	r.started = time.Now()
	r.logger.Info("optimization started",
		zap.String("op", "optimizer.Optimize"),
		zap.String("policy", req.Policy.String()),
		zap.Int("players", len(r.players)),
		zap.Int64("lineups", r.indexer.Size()),
		zap.Int("threads", r.params.Threads),
		zap.Uint64("seed", r.params.Seed),
		zap.Bool("resumed", r.resume != nil),
	)

	r.reporter.Start()
	final, err := r.strategy.Optimize(ctx, r)
	if err != nil {
		failed, failErr := r.latest().Fail(r.elapsedMs(), err)
		if failErr == nil {
			final = failed
		}
	}
	r.reporter.Finish(final)
	rn.recorder.RunFinished(r.strategy.Name(), final.Status, time.Since(r.started))

	fields := []zap.Field{
		zap.String("op", "optimizer.Optimize"),
		zap.String("status", string(final.Status)),
		zap.Float64("score", final.Score),
		zap.Strings("lineup", final.LineupIDs()),
		zap.Int64("gamesSimulated", final.Details.GamesSimulated),
		zap.Bool("budgetExhausted", final.Details.BudgetExhausted),
		zap.Bool("degraded", final.Details.Degraded),
		zap.Int64("elapsedMs", final.ElapsedMs),
	}
	if err != nil {
		r.logger.Error("optimization failed", append(fields, zap.Error(err))...)
		return final, err
	}
	r.logger.Info("optimization complete", fields...)
	return final, nil
}

// Estimate projects the run time of a request without simulating.
func (rn *Runner) Estimate(req Request) (result.Result, error) {
	r, err := rn.prepare(req, nil)
	if err != nil {
		return result.Result{}, err
	}
	ms := r.strategy.Estimate(r)
	if r.params.TimeBudget > 0 {
		ms = min(ms, r.params.TimeBudget.Milliseconds())
	}
	return r.base.WithEstimate(ms, ms, true)
}

// Optimize runs an optimization with a silent logger and no metrics.
func Optimize(ctx context.Context, players []roster.Player, policy lineup.Policy, ids []string, params Parameters, sink progress.Sink) (result.Result, error) {
	return NewRunner(nil, nil).Optimize(ctx, Request{Players: players, Policy: policy, IDs: ids, Params: params}, sink)
}

// Estimate projects the run time of an optimization.
func Estimate(players []roster.Player, policy lineup.Policy, ids []string, params Parameters) (result.Result, error) {
	return NewRunner(nil, nil).Estimate(Request{Players: players, Policy: policy, IDs: ids, Params: params})
}

func (r *run) elapsedMs() int64 {
	return r.priorMs + time.Since(r.started).Milliseconds()
}

func (r *run) latest() result.Result {
	latest := r.reporter.Latest()
	if latest.RunID == "" {
		return r.base
	}
	return latest
}

// budgetExceeded reports whether this session has used its game or time
// budget. games is the run's cumulative total.
func (r *run) budgetExceeded(games int64) bool {
	if r.params.MaxTotalGames > 0 && games-r.priorGames >= r.params.MaxTotalGames {
		return true
	}
	return r.params.TimeBudget > 0 && time.Since(r.started) >= r.params.TimeBudget
}

// best is a scored lineup.
type best struct {
	index  int64
	lineup lineup.Lineup
	score  float64
	found  bool
}

// publish builds an IN_PROGRESS snapshot and hands it to the reporter.
func (r *run) publish(completed int64, b best, details result.Details) (result.Result, error) {
	elapsed := r.elapsedMs()
	snap, err := r.base.WithProgress(completed, elapsed)
	if err != nil {
		return snap, err
	}
	if b.found {
		if snap, err = snap.WithBest(b.index, b.lineup, b.score); err != nil {
			return snap, err
		}
	}
	if snap, err = snap.WithDetails(details); err != nil {
		return snap, err
	}
	// Project from the recent rate once the window has one.
	r.window.Push(snap.CountCompleted, elapsed)
	p, ok := r.window.Remaining(snap.CountTotal)
	if !ok {
		p = progress.Estimate(snap.CountCompleted, snap.CountTotal, elapsed)
	}
	if snap, err = snap.WithEstimate(p.TotalMs, p.RemainingMs, p.Known); err != nil {
		return snap, err
	}
	r.reporter.Publish(snap)
	return snap, nil
}

// resumed returns the best lineup and counters recorded in the checkpoint,
// with the budget and degradation flags cleared for the new session.
func (r *run) resumed() (best, result.Details, error) {
	cp := r.resume
	details := result.Details{
		GamesSimulated:     cp.Details.GamesSimulated,
		Rounds:             cp.Details.Rounds,
		ComparisonsAtLimit: cp.Details.ComparisonsAtLimit,
	}
	if cp.BestIndex < 0 {
		return best{}, details, nil
	}
	l, err := r.indexer.Lineup(cp.BestIndex)
	if err != nil {
		return best{}, details, err
	}
	return best{index: cp.BestIndex, lineup: l, score: cp.Score, found: true}, details, nil
}

// finish builds the COMPLETE result.
func (r *run) finish(completed int64, b best, details result.Details) (result.Result, error) {
	snap, err := r.base.WithProgress(completed, r.elapsedMs())
	if err != nil {
		return snap, err
	}
	if b.found {
		if snap, err = snap.WithBest(b.index, b.lineup, b.score); err != nil {
			return snap, err
		}
	}
	if snap, err = snap.WithDetails(details); err != nil {
		return snap, err
	}
	return snap.Complete(r.elapsedMs())
}

// teamAverage is hits over at-bats across the selected players.
func teamAverage(players []roster.Player) float64 {
	var total roster.Counts
	for _, p := range players {
		total = total.Add(p.Counts)
	}
	return total.BattingAverage()
}

func (r *run) gameCost(games float64) int64 {
	return r.params.Cost.EstimateMs(teamAverage(r.players), r.params.Innings, r.params.Threads, games)
}
