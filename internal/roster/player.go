// Package roster defines players, their plate-appearance outcome counts and
// the roster files they are loaded from.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/lineup-optimizer/pkg/combinatorics"
)

var (
	// ErrInvalidArgument is returned for malformed player data. It is the same
	// sentinel the lineup indexers and optimizers return.
	ErrInvalidArgument = combinatorics.ErrInvalidArgument

	// ErrEmptyRosterSelection is returned when no players are selected.
	ErrEmptyRosterSelection = errors.New("empty roster selection")
)

// Outcome is a plate-appearance result category.
type Outcome int

const (
	Out Outcome = iota
	Single
	Double
	Triple
	HomeRun
	Walk
)

// Outcomes lists every category in table order.
var Outcomes = []Outcome{Out, Single, Double, Triple, HomeRun, Walk}

func (o Outcome) String() string {
	switch o {
	case Out:
		return "out"
	case Single:
		return "single"
	case Double:
		return "double"
	case Triple:
		return "triple"
	case HomeRun:
		return "homeRun"
	case Walk:
		return "walk"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Bases is the number of bases a hit advances every runner. Zero for outs and walks.
func (o Outcome) Bases() int {
	switch o {
	case Single:
		return 1
	case Double:
		return 2
	case Triple:
		return 3
	case HomeRun:
		return 4
	default:
		return 0
	}
}

// Gender of a player, used by the gendered lineup policies.
type Gender string

const (
	Male   Gender = "M"
	Female Gender = "F"
)

// ParseGender accepts M/F and the spelled-out forms. Empty input is allowed.
func ParseGender(value string) (Gender, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "":
		return "", nil
	case "M", "MALE":
		return Male, nil
	case "F", "FEMALE":
		return Female, nil
	default:
		return "", fmt.Errorf("gender %q: %w", value, ErrInvalidArgument)
	}
}

// Counts holds a player's plate-appearance tallies. Sacrifices are simulated
// as outs but do not count as at-bats.
type Counts struct {
	Outs       int `yaml:"outs" json:"outs"`
	Singles    int `yaml:"singles" json:"singles"`
	Doubles    int `yaml:"doubles" json:"doubles"`
	Triples    int `yaml:"triples" json:"triples"`
	HomeRuns   int `yaml:"homeRuns" json:"homeRuns"`
	Walks      int `yaml:"walks" json:"walks"`
	Sacrifices int `yaml:"sacrifices" json:"sacrifices"`
}

// Of returns the simulated weight of an outcome category.
func (c Counts) Of(o Outcome) int {
	switch o {
	case Out:
		return c.Outs + c.Sacrifices
	case Single:
		return c.Singles
	case Double:
		return c.Doubles
	case Triple:
		return c.Triples
	case HomeRun:
		return c.HomeRuns
	case Walk:
		return c.Walks
	default:
		return 0
	}
}

// Add returns the element-wise sum of two tallies.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Outs:       c.Outs + o.Outs,
		Singles:    c.Singles + o.Singles,
		Doubles:    c.Doubles + o.Doubles,
		Triples:    c.Triples + o.Triples,
		HomeRuns:   c.HomeRuns + o.HomeRuns,
		Walks:      c.Walks + o.Walks,
		Sacrifices: c.Sacrifices + o.Sacrifices,
	}
}

// Hits is singles through home runs.
func (c Counts) Hits() int {
	return c.Singles + c.Doubles + c.Triples + c.HomeRuns
}

// AtBats excludes walks and sacrifices.
func (c Counts) AtBats() int {
	return c.Hits() + c.Outs
}

// PlateAppearances counts every tallied result.
func (c Counts) PlateAppearances() int {
	return c.AtBats() + c.Walks + c.Sacrifices
}

// BattingAverage is hits per at-bat, or 0 without at-bats.
func (c Counts) BattingAverage() float64 {
	if c.AtBats() == 0 {
		return 0
	}
	return float64(c.Hits()) / float64(c.AtBats())
}

// SluggingPercentage is total bases per at-bat, or 0 without at-bats.
func (c Counts) SluggingPercentage() float64 {
	if c.AtBats() == 0 {
		return 0
	}
	bases := c.Singles + 2*c.Doubles + 3*c.Triples + 4*c.HomeRuns
	return float64(bases) / float64(c.AtBats())
}

// Validate rejects negative tallies and players with no plate appearances.
func (c Counts) Validate() error {
	for _, v := range []int{c.Outs, c.Singles, c.Doubles, c.Triples, c.HomeRuns, c.Walks, c.Sacrifices} {
		if v < 0 {
			return fmt.Errorf("negative outcome count %d: %w", v, ErrInvalidArgument)
		}
	}
	if c.PlateAppearances() == 0 {
		return fmt.Errorf("no plate appearances: %w", ErrInvalidArgument)
	}
	return nil
}

// TallyPlateAppearances converts scorebook result codes into counts.
func TallyPlateAppearances(codes []string) (Counts, error) {
	var c Counts
	for _, raw := range codes {
		switch strings.TrimSpace(raw) {
		case "1B":
			c.Singles++
		case "2B":
			c.Doubles++
		case "3B":
			c.Triples++
		case "HRi", "HRo", "HR":
			c.HomeRuns++
		case "BB":
			c.Walks++
		case "SAC":
			c.Sacrifices++
		case "Out", "DP", "TP", "E", "FC", "K", "Ʞ":
			c.Outs++
		default:
			return Counts{}, fmt.Errorf("unknown plate appearance result %q: %w", raw, ErrInvalidArgument)
		}
	}
	return c, nil
}

// Player is immutable once a run starts.
type Player struct {
	ID     string
	Name   string
	Gender Gender
	Counts Counts
}

// BattingAverage is a shortcut for p.Counts.BattingAverage().
func (p Player) BattingAverage() float64 {
	return p.Counts.BattingAverage()
}

// Validate checks identity and counts.
func (p Player) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("player %q has no id: %w", p.Name, ErrInvalidArgument)
	}
	if err := p.Counts.Validate(); err != nil {
		return fmt.Errorf("player %s: %w", p.ID, err)
	}
	return nil
}
