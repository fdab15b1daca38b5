// Package lineup maps dense integer ranges onto the legal batting orders of a
// roster under a lineup policy.
package lineup

import (
	"strings"

	"github.com/iwvelando/lineup-optimizer/internal/roster"
)

// Lineup is an immutable batting order. A lineup has either one batting group,
// cycled in order, or two groups that alternate at the plate and wrap
// independently.
type Lineup struct {
	groups [][]roster.Player
}

// New builds a single-group lineup.
func New(players []roster.Player) Lineup {
	g := make([]roster.Player, len(players))
	copy(g, players)
	return Lineup{groups: [][]roster.Player{g}}
}

// NewAlternating builds a lineup where lead and follow take turns at the plate.
func NewAlternating(lead, follow []roster.Player) Lineup {
	a := make([]roster.Player, len(lead))
	copy(a, lead)
	b := make([]roster.Player, len(follow))
	copy(b, follow)
	return Lineup{groups: [][]roster.Player{a, b}}
}

// Len is the number of distinct players in the lineup.
func (l Lineup) Len() int {
	n := 0
	for _, g := range l.groups {
		n += len(g)
	}
	return n
}

// Groups returns the batting groups. Callers must not modify them.
func (l Lineup) Groups() [][]roster.Player {
	return l.groups
}

// Alternating reports whether the lineup alternates two groups.
func (l Lineup) Alternating() bool {
	return len(l.groups) == 2
}

// Batter returns the player taking the i-th plate appearance of a game.
func (l Lineup) Batter(i int) roster.Player {
	if len(l.groups) == 2 {
		g := l.groups[i%2]
		return g[(i/2)%len(g)]
	}
	g := l.groups[0]
	return g[i%len(g)]
}

// Players lists every player once. Equal-sized alternating groups are
// interleaved, otherwise the lead group is listed before the follow group.
func (l Lineup) Players() []roster.Player {
	out := make([]roster.Player, 0, l.Len())
	if len(l.groups) == 2 && len(l.groups[0]) == len(l.groups[1]) {
		for i := range l.groups[0] {
			out = append(out, l.groups[0][i], l.groups[1][i])
		}
		return out
	}
	for _, g := range l.groups {
		out = append(out, g...)
	}
	return out
}

// IDs returns player ids in Players order.
func (l Lineup) IDs() []string {
	players := l.Players()
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

// Names returns player names in Players order.
func (l Lineup) Names() []string {
	players := l.Players()
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return names
}

// Equal compares batting structure and player ids.
func (l Lineup) Equal(o Lineup) bool {
	if len(l.groups) != len(o.groups) {
		return false
	}
	for g := range l.groups {
		if len(l.groups[g]) != len(o.groups[g]) {
			return false
		}
		for i := range l.groups[g] {
			if l.groups[g][i].ID != o.groups[g][i].ID {
				return false
			}
		}
	}
	return true
}

func (l Lineup) String() string {
	return strings.Join(l.Names(), ", ")
}
