// Package result defines the immutable optimization snapshot handed to
// progress sinks and stores.
package result

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
)

// ErrFrozen is returned when updating a COMPLETE or ERROR result.
var ErrFrozen = errors.New("result is frozen")

// Status is the lifecycle stage of a run.
type Status string

const (
	NotStarted Status = "NOT_STARTED"
	InProgress Status = "IN_PROGRESS"
	Complete   Status = "COMPLETE"
	Error      Status = "ERROR"
)

// Terminal reports whether no further updates are allowed.
func (s Status) Terminal() bool {
	return s == Complete || s == Error
}

// ParseStatus accepts a status name case-insensitively.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch s {
	case NotStarted, InProgress, Complete, Error:
		return s, nil
	default:
		return "", fmt.Errorf("unknown result status %q", value)
	}
}

// Batter is one lineup entry.
type Batter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Candidate is the saved score summary of an undecided lineup, enough to
// continue testing it in a resumed run.
type Candidate struct {
	Index int64   `json:"index"`
	Games int64   `json:"games"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Looks int64   `json:"looks,omitempty"`
}

// Details carries strategy-specific counters.
type Details struct {
	GamesSimulated     int64       `json:"gamesSimulated"`
	Rounds             int64       `json:"rounds,omitempty"`
	ComparisonsAtLimit int64       `json:"comparisonsAtLimit,omitempty"`
	ActiveCandidates   []int64     `json:"activeCandidates,omitempty"`
	Candidates         []Candidate `json:"candidates,omitempty"`
	BudgetExhausted    bool        `json:"budgetExhausted,omitempty"`
	Degraded           bool        `json:"degraded,omitempty"`
}

func (d Details) clone() Details {
	c := d
	if d.ActiveCandidates != nil {
		c.ActiveCandidates = append([]int64(nil), d.ActiveCandidates...)
	}
	if d.Candidates != nil {
		c.Candidates = append([]Candidate(nil), d.Candidates...)
	}
	return c
}

// Result is an immutable snapshot of a run. Update it with the With* methods,
// which return a modified copy.
type Result struct {
	RunID                string   `json:"runId"`
	Optimizer            string   `json:"optimizer"`
	Policy               string   `json:"policy"`
	Lineup               []Batter `json:"lineup"`
	BestIndex            int64    `json:"bestIndex"`
	Score                float64  `json:"score"`
	CountTotal           int64    `json:"countTotal"`
	CountCompleted       int64    `json:"countCompleted"`
	ElapsedMs            int64    `json:"elapsedMs"`
	EstimatedTotalMs     *int64   `json:"estimatedTotalMs,omitempty"`
	EstimatedRemainingMs *int64   `json:"estimatedRemainingMs,omitempty"`
	Status               Status   `json:"status"`
	Error                string   `json:"error,omitempty"`
	Details              Details  `json:"details"`
}

// New starts a NOT_STARTED result.
func New(runID, optimizer string, policy lineup.Policy, total int64) Result {
	return Result{
		RunID:      runID,
		Optimizer:  optimizer,
		Policy:     policy.String(),
		BestIndex:  -1,
		CountTotal: total,
		Status:     NotStarted,
	}
}

func (r Result) clone() Result {
	c := r
	if r.Lineup != nil {
		c.Lineup = append([]Batter(nil), r.Lineup...)
	}
	c.Details = r.Details.clone()
	if r.EstimatedTotalMs != nil {
		v := *r.EstimatedTotalMs
		c.EstimatedTotalMs = &v
	}
	if r.EstimatedRemainingMs != nil {
		v := *r.EstimatedRemainingMs
		c.EstimatedRemainingMs = &v
	}
	return c
}

func (r Result) open() error {
	if r.Status.Terminal() {
		return fmt.Errorf("result %s is %s: %w", r.RunID, r.Status, ErrFrozen)
	}
	return nil
}

// WithProgress records work done and moves the run to IN_PROGRESS.
func (r Result) WithProgress(completed, elapsedMs int64) (Result, error) {
	if err := r.open(); err != nil {
		return r, err
	}
	c := r.clone()
	c.CountCompleted = min(completed, c.CountTotal)
	c.ElapsedMs = elapsedMs
	c.Status = InProgress
	return c, nil
}

// WithBest records the current best lineup and its score.
func (r Result) WithBest(index int64, l lineup.Lineup, score float64) (Result, error) {
	if err := r.open(); err != nil {
		return r, err
	}
	c := r.clone()
	c.BestIndex = index
	c.Lineup = Batters(l)
	c.Score = score
	return c, nil
}

// WithDetails replaces the strategy counters.
func (r Result) WithDetails(d Details) (Result, error) {
	if err := r.open(); err != nil {
		return r, err
	}
	c := r.clone()
	c.Details = d.clone()
	return c, nil
}

// WithEstimate sets the projected total and remaining time. Passing known as
// false clears both.
func (r Result) WithEstimate(totalMs, remainingMs int64, known bool) (Result, error) {
	if err := r.open(); err != nil {
		return r, err
	}
	c := r.clone()
	if !known {
		c.EstimatedTotalMs, c.EstimatedRemainingMs = nil, nil
		return c, nil
	}
	c.EstimatedTotalMs = &totalMs
	c.EstimatedRemainingMs = &remainingMs
	return c, nil
}

// Complete freezes the result.
func (r Result) Complete(elapsedMs int64) (Result, error) {
	if err := r.open(); err != nil {
		return r, err
	}
	c := r.clone()
	c.ElapsedMs = elapsedMs
	c.Status = Complete
	var zero int64
	c.EstimatedRemainingMs = &zero
	total := elapsedMs
	c.EstimatedTotalMs = &total
	return c, nil
}

// Fail freezes the result with an error message.
func (r Result) Fail(elapsedMs int64, cause error) (Result, error) {
	if err := r.open(); err != nil {
		return r, err
	}
	c := r.clone()
	c.ElapsedMs = elapsedMs
	c.Status = Error
	if cause != nil {
		c.Error = cause.Error()
	}
	return c, nil
}

// Settled reports whether the run finished its whole search: COMPLETE,
// not cut short by a budget or cancellation, and not degraded. Only settled
// results answer a repeated request; others are checkpoints to resume from.
func (r Result) Settled() bool {
	return r.Status == Complete && !r.Details.BudgetExhausted && !r.Details.Degraded
}

// Percent is the share of work units completed, 0 to 100.
func (r Result) Percent() float64 {
	if r.CountTotal <= 0 {
		return 0
	}
	return 100 * float64(r.CountCompleted) / float64(r.CountTotal)
}

// LineupIDs returns the ids of the best lineup.
func (r Result) LineupIDs() []string {
	ids := make([]string, len(r.Lineup))
	for i, b := range r.Lineup {
		ids[i] = b.ID
	}
	return ids
}

// Batters converts a lineup to result entries.
func Batters(l lineup.Lineup) []Batter {
	players := l.Players()
	out := make([]Batter, len(players))
	for i, p := range players {
		out[i] = Batter{ID: p.ID, Name: p.Name}
	}
	return out
}
