// Package sim simulates softball games by drawing plate-appearance outcomes
// from per-player empirical distributions.
package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/iwvelando/lineup-optimizer/internal/roster"
)

// ErrUnknownPlayer is returned when a lineup references a player the
// generator was not built for.
var ErrUnknownPlayer = errors.New("unknown player")

// Source is a uniform random source over [0, 1).
type Source interface {
	Float64() float64
}

type table struct {
	cumulative [6]float64
}

func (t *table) sample(src Source) roster.Outcome {
	u := src.Float64()
	k := sort.Search(len(t.cumulative), func(k int) bool { return t.cumulative[k] > u })
	if k == len(t.cumulative) {
		// Guard against a source returning exactly 1.
		k = len(t.cumulative) - 1
		for k > 0 && t.cumulative[k] == t.cumulative[k-1] {
			k--
		}
	}
	return roster.Outcomes[k]
}

// HitGenerator holds one cumulative outcome table per player. It is read-only
// after construction and safe for concurrent use.
type HitGenerator struct {
	tables map[string]*table
}

// NewHitGenerator normalizes each player's counts into a cumulative table.
func NewHitGenerator(players []roster.Player) (*HitGenerator, error) {
	h := &HitGenerator{tables: make(map[string]*table, len(players))}
	for _, p := range players {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		total := 0
		for _, o := range roster.Outcomes {
			total += p.Counts.Of(o)
		}
		t := &table{}
		running := 0
		for k, o := range roster.Outcomes {
			running += p.Counts.Of(o)
			t.cumulative[k] = float64(running) / float64(total)
		}
		t.cumulative[len(t.cumulative)-1] = 1
		h.tables[p.ID] = t
	}
	return h, nil
}

func (h *HitGenerator) lookup(id string) (*table, error) {
	t, ok := h.tables[id]
	if !ok {
		return nil, fmt.Errorf("player %q: %w", id, ErrUnknownPlayer)
	}
	return t, nil
}

// Sample draws one plate-appearance outcome for the player.
func (h *HitGenerator) Sample(id string, src Source) (roster.Outcome, error) {
	t, err := h.lookup(id)
	if err != nil {
		return roster.Out, err
	}
	return t.sample(src), nil
}

// Probability returns the normalized probability of an outcome for the player.
func (h *HitGenerator) Probability(id string, o roster.Outcome) float64 {
	t, ok := h.tables[id]
	if !ok {
		return 0
	}
	k := int(o)
	if k < 0 || k >= len(t.cumulative) {
		return 0
	}
	if k == 0 {
		return t.cumulative[0]
	}
	return t.cumulative[k] - t.cumulative[k-1]
}
