package roster

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Roster is the ordered set of players a run may draw from.
type Roster struct {
	Players []Player
}

type rosterFile struct {
	Players []playerEntry `yaml:"players"`
}

type playerEntry struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Gender           string   `yaml:"gender"`
	Counts           Counts   `yaml:"counts"`
	PlateAppearances []string `yaml:"plateAppearances"`
}

// Load decodes a YAML roster. Unknown fields are rejected.
func Load(r io.Reader) (*Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file rosterFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("roster is empty: %w", ErrEmptyRosterSelection)
		}
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	roster := &Roster{Players: make([]Player, 0, len(file.Players))}
	seen := make(map[string]struct{}, len(file.Players))
	for i, entry := range file.Players {
		gender, err := ParseGender(entry.Gender)
		if err != nil {
			return nil, fmt.Errorf("player %d (%s): %w", i, entry.ID, err)
		}
		tally, err := TallyPlateAppearances(entry.PlateAppearances)
		if err != nil {
			return nil, fmt.Errorf("player %d (%s): %w", i, entry.ID, err)
		}
		p := Player{
			ID:     strings.TrimSpace(entry.ID),
			Name:   strings.TrimSpace(entry.Name),
			Gender: gender,
			Counts: entry.Counts.Add(tally),
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate player id %q: %w", p.ID, ErrInvalidArgument)
		}
		seen[p.ID] = struct{}{}
		roster.Players = append(roster.Players, p)
	}
	return roster, nil
}

// LoadFile reads a roster from the given filesystem.
func LoadFile(fs afero.Fs, path string) (*Roster, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Select returns the players with the given ids in the order given. With no
// ids the whole roster is returned in file order.
func (r *Roster) Select(ids []string) ([]Player, error) {
	if len(ids) == 0 {
		if len(r.Players) == 0 {
			return nil, ErrEmptyRosterSelection
		}
		out := make([]Player, len(r.Players))
		copy(out, r.Players)
		return out, nil
	}
	return SelectFrom(r.Players, ids)
}

// SelectFrom resolves ids against players.
func SelectFrom(players []Player, ids []string) ([]Player, error) {
	byID := make(map[string]Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	out := make([]Player, 0, len(ids))
	used := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown player id %q: %w", id, ErrInvalidArgument)
		}
		if _, dup := used[id]; dup {
			return nil, fmt.Errorf("player id %q selected twice: %w", id, ErrInvalidArgument)
		}
		used[id] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrEmptyRosterSelection
	}
	return out, nil
}
