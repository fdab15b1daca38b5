package lineup

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func team(men, women int) []roster.Player {
	var players []roster.Player
	for i := 0; i < men; i++ {
		players = append(players, roster.Player{
			ID: fmt.Sprintf("m%d", i), Name: fmt.Sprintf("Man %d", i), Gender: roster.Male,
			Counts: roster.Counts{Outs: 1},
		})
	}
	for i := 0; i < women; i++ {
		players = append(players, roster.Player{
			ID: fmt.Sprintf("f%d", i), Name: fmt.Sprintf("Woman %d", i), Gender: roster.Female,
			Counts: roster.Counts{Outs: 1},
		})
	}
	return players
}

func key(l Lineup) string {
	return fmt.Sprint(l.Alternating(), l.IDs())
}

func assertBijection(t *testing.T, idx Indexer) {
	t.Helper()
	seen := make(map[string]int64, idx.Size())
	for i := int64(0); i < idx.Size(); i++ {
		l, err := idx.Lineup(i)
		require.NoError(t, err)
		back, err := idx.Index(l)
		require.NoError(t, err)
		require.Equal(t, i, back, "round trip for %v", l.IDs())
		k := key(l)
		_, dup := seen[k]
		require.False(t, dup, "index %d repeats lineup %s", i, k)
		seen[k] = i
	}
}

func TestStandardIndexer(t *testing.T) {
	players := team(3, 2)
	idx, err := NewIndexer(Policy{Kind: Standard}, players)
	require.NoError(t, err)
	assert.Equal(t, int64(120), idx.Size())

	first, err := idx.Lineup(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2", "f0", "f1"}, first.IDs())

	last, err := idx.Lineup(idx.Size() - 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f0", "m2", "m1", "m0"}, last.IDs())
	assert.False(t, first.Equal(last))
	assert.ElementsMatch(t, first.IDs(), last.IDs())

	assertBijection(t, idx)

	_, err = idx.Lineup(idx.Size())
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = idx.Lineup(-1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStandardIndexerSizeMatchesFactorial(t *testing.T) {
	want := int64(1)
	for k := 1; k <= 12; k++ {
		want *= int64(k)
		idx, err := NewIndexer(Policy{Kind: Standard}, team(k, 0))
		require.NoError(t, err)
		assert.Equal(t, want, idx.Size(), "k=%d", k)
	}

	_, err := NewIndexer(Policy{Kind: Standard}, team(21, 0))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAlternatingIndexer(t *testing.T) {
	idx, err := NewIndexer(Policy{Kind: AlternatingGender}, team(3, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(72), idx.Size())

	first, err := idx.Lineup(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "f0", "m1", "f1", "m2", "f2"}, first.IDs())

	womenLead, err := idx.Lineup(36)
	require.NoError(t, err)
	assert.Equal(t, []string{"f0", "m0", "f1", "m1", "f2", "m2"}, womenLead.IDs())

	assertBijection(t, idx)

	// Every strictly alternating ordering of the roster is reachable.
	std, err := NewIndexer(Policy{Kind: Standard}, team(3, 3))
	require.NoError(t, err)
	legal := 0
	for i := int64(0); i < std.Size(); i++ {
		l, err := std.Lineup(i)
		require.NoError(t, err)
		players := l.Players()
		ok := true
		for j := 1; j < len(players); j++ {
			if players[j].Gender == players[j-1].Gender {
				ok = false
				break
			}
		}
		if ok {
			legal++
			_, err := idx.Index(l)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, int64(legal), idx.Size())
}

func TestAlternatingIndexerUnequalGroups(t *testing.T) {
	idx, err := NewIndexer(Policy{Kind: AlternatingGender}, team(3, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(12), idx.Size())
	assertBijection(t, idx)

	l, err := idx.Lineup(0)
	require.NoError(t, err)
	assert.True(t, l.Alternating())
	assert.Equal(t, []string{"m0", "m1", "m2", "f0"}, l.IDs())

	var order []string
	for i := 0; i < 8; i++ {
		order = append(order, l.Batter(i).ID)
	}
	assert.Equal(t, []string{"m0", "f0", "m1", "f0", "m2", "f0", "m0", "f0"}, order)
}

func TestAlternatingIndexerInfeasible(t *testing.T) {
	_, err := NewIndexer(Policy{Kind: AlternatingGender}, team(4, 0))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	noGender := []roster.Player{{ID: "x", Counts: roster.Counts{Outs: 1}}}
	_, err = NewIndexer(Policy{Kind: AlternatingGender}, noGender)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNoConsecutiveFemalesIndexer(t *testing.T) {
	tests := []struct {
		men, women int
		size       int64
	}{
		// m! * f! * (C(m-1,f-1) + C(m,f))
		{4, 3, 24 * 6 * (3 + 4)},
		{3, 3, 6 * 6 * (1 + 1)},
		{3, 1, 6 * 1 * (1 + 3)},
		{3, 0, 6},
		{2, 2, 2 * 2 * (1 + 1)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dm%df", tt.men, tt.women), func(t *testing.T) {
			players := team(tt.men, tt.women)
			idx, err := NewIndexer(Policy{Kind: NoConsecutiveFemales}, players)
			require.NoError(t, err)
			assert.Equal(t, tt.size, idx.Size())
			assertBijection(t, idx)

			for i := int64(0); i < idx.Size(); i++ {
				l, err := idx.Lineup(i)
				require.NoError(t, err)
				require.False(t, hasConsecutiveWomen(l.Players()), "index %d: %v", i, l.IDs())
			}

			std, err := NewIndexer(Policy{Kind: Standard}, players)
			require.NoError(t, err)
			legal := int64(0)
			for i := int64(0); i < std.Size(); i++ {
				l, err := std.Lineup(i)
				require.NoError(t, err)
				if !hasConsecutiveWomen(l.Players()) {
					legal++
				}
			}
			assert.Equal(t, legal, idx.Size())
		})
	}
}

func hasConsecutiveWomen(players []roster.Player) bool {
	n := len(players)
	if n < 2 {
		return false
	}
	for j := 0; j < n; j++ {
		if players[j].Gender == roster.Female && players[(j+1)%n].Gender == roster.Female {
			return true
		}
	}
	return false
}

func TestNoConsecutiveFemalesRejects(t *testing.T) {
	_, err := NewIndexer(Policy{Kind: NoConsecutiveFemales}, team(2, 3))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	idx, err := NewIndexer(Policy{Kind: NoConsecutiveFemales}, team(3, 2))
	require.NoError(t, err)
	players := team(3, 2)
	bad := New([]roster.Player{players[3], players[4], players[0], players[1], players[2]})
	_, err = idx.Index(bad)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRandomNeighbor(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, kind := range []Kind{Standard, AlternatingGender, NoConsecutiveFemales} {
		idx, err := NewIndexer(Policy{Kind: kind}, team(4, 3))
		require.NoError(t, err)
		moved := 0
		for trial := 0; trial < 200; trial++ {
			i := int64(rng.IntN(int(idx.Size())))
			next, err := idx.RandomNeighbor(i, rng)
			require.NoError(t, err)
			require.GreaterOrEqual(t, next, int64(0))
			require.Less(t, next, idx.Size())
			if next != i {
				moved++
			}
		}
		assert.Greater(t, moved, 150, "policy %s rarely moves", kind)
	}

	single, err := NewIndexer(Policy{Kind: Standard}, team(1, 0))
	require.NoError(t, err)
	next, err := single.RandomNeighbor(0, rng)
	require.NoError(t, err)
	assert.Equal(t, int64(0), next)
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]Kind{
		"":                       Standard,
		"standard":               Standard,
		"0":                      Standard,
		"alternating_gender":     AlternatingGender,
		"Alternating-Gender":     AlternatingGender,
		"1":                      AlternatingGender,
		"NO_CONSECUTIVE_FEMALES": NoConsecutiveFemales,
		"2":                      NoConsecutiveFemales,
	}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Kind, in)
	}

	_, err := ParsePolicy("zigzag")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ParsePolicy("9")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewIndexerRejectsEmptyAndDuplicates(t *testing.T) {
	_, err := NewIndexer(Policy{Kind: Standard}, nil)
	assert.ErrorIs(t, err, ErrEmptyRosterSelection)

	p := team(1, 0)[0]
	_, err = NewIndexer(Policy{Kind: Standard}, []roster.Player{p, p})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
