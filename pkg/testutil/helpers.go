// Package testutil provides common utility functions for testing.
package testutil

import (
	"fmt"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
)

// Hitter builds a player with hits singles in ten plate appearances.
func Hitter(id string, gender roster.Gender, hits int) roster.Player {
	return roster.Player{
		ID:     id,
		Gender: gender,
		Counts: roster.Counts{Singles: hits, Outs: 10 - hits},
	}
}

// Team builds n players of the given gender whose hits step up from 1 to at
// most 9, so every player is distinguishable.
func Team(prefix string, gender roster.Gender, n int) []roster.Player {
	players := make([]roster.Player, n)
	for i := range players {
		players[i] = Hitter(fmt.Sprintf("%s%d", prefix, i+1), gender, min(i+1, 9))
	}
	return players
}

// FindBatter returns the 1-based slot of id in the result lineup, or 0 if
// the player is not in it.
func FindBatter(r result.Result, id string) int {
	for i, b := range r.Lineup {
		if b.ID == id {
			return i + 1
		}
	}
	return 0
}

// IsPermutation reports whether the result lineup holds exactly the given
// players, each once.
func IsPermutation(r result.Result, players []roster.Player) bool {
	if len(r.Lineup) != len(players) {
		return false
	}
	want := make(map[string]int, len(players))
	for _, p := range players {
		want[p.ID]++
	}
	for _, b := range r.Lineup {
		want[b.ID]--
		if want[b.ID] < 0 {
			return false
		}
	}
	return true
}
