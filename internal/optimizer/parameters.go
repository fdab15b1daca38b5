package optimizer

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/progress"
	"github.com/iwvelando/lineup-optimizer/internal/sim"
)

const (
	defaultAlpha             = 0.001
	defaultMinGames          = 10
	defaultGamesPerRound     = 1
	defaultMaxGamesPerLineup = 100000
	defaultMaxActive         = 64
	defaultGames             = 10000
	defaultConfirmGames      = 10000
	defaultIterations        = 1000
	defaultStepGames         = 100
)

// Parameters tune a run. Zero values are replaced by defaults in Normalize.
type Parameters struct {
	Strategy         string `yaml:"strategy" mapstructure:"strategy" json:"strategy"`
	Innings          int    `yaml:"innings" mapstructure:"innings" json:"innings"`
	MaxRunsPerInning int    `yaml:"maxRunsPerInning" mapstructure:"maxRunsPerInning" json:"maxRunsPerInning"`
	Threads          int    `yaml:"threads" mapstructure:"threads" json:"threads"`
	Seed             uint64 `yaml:"seed" mapstructure:"seed" json:"seed"`
	// Lowest searches for the lowest scoring lineup instead of the highest.
	Lowest bool `yaml:"lowest" mapstructure:"lowest" json:"lowest"`

	Alpha             float64 `yaml:"alpha" mapstructure:"alpha" json:"alpha"`
	Separation        float64 `yaml:"separation" mapstructure:"separation" json:"separation"`
	MinGames          int     `yaml:"minGames" mapstructure:"minGames" json:"minGames"`
	GamesPerRound     int     `yaml:"gamesPerRound" mapstructure:"gamesPerRound" json:"gamesPerRound"`
	MaxGamesPerLineup int64   `yaml:"maxGamesPerLineup" mapstructure:"maxGamesPerLineup" json:"maxGamesPerLineup"`
	MaxActive         int     `yaml:"maxActive" mapstructure:"maxActive" json:"maxActive"`

	Games        int `yaml:"games" mapstructure:"games" json:"games"`
	ConfirmGames int `yaml:"confirmGames" mapstructure:"confirmGames" json:"confirmGames"`
	Iterations   int `yaml:"iterations" mapstructure:"iterations" json:"iterations"`
	StepGames    int `yaml:"stepGames" mapstructure:"stepGames" json:"stepGames"`

	MaxTotalGames    int64         `yaml:"maxTotalGames" mapstructure:"maxTotalGames" json:"maxTotalGames"`
	TimeBudget       time.Duration `yaml:"timeBudget" mapstructure:"timeBudget" json:"timeBudget"`
	ProgressInterval time.Duration `yaml:"progressInterval" mapstructure:"progressInterval" json:"progressInterval"`

	Cost *progress.CostModel `yaml:"cost,omitempty" mapstructure:"cost" json:"cost,omitempty"`
}

// DefaultParameters returns normalized defaults for the adaptive strategy.
func DefaultParameters() Parameters {
	return Parameters{}.Normalize()
}

// Normalize fills defaults and canonicalizes the strategy name.
func (p Parameters) Normalize() Parameters {
	p.Strategy = strings.ToLower(strings.TrimSpace(p.Strategy))
	if p.Strategy == "" {
		p.Strategy = AdaptiveName
	}
	if p.Innings <= 0 {
		p.Innings = sim.DefaultInnings
	}
	if p.MaxRunsPerInning <= 0 {
		p.MaxRunsPerInning = sim.DefaultMaxRunsPerInning
	}
	if p.Threads <= 0 {
		p.Threads = runtime.NumCPU()
	}
	if p.Alpha <= 0 {
		p.Alpha = defaultAlpha
	}
	if p.MinGames <= 0 {
		p.MinGames = defaultMinGames
	}
	if p.GamesPerRound <= 0 {
		p.GamesPerRound = defaultGamesPerRound
	}
	if p.MaxGamesPerLineup == 0 {
		p.MaxGamesPerLineup = defaultMaxGamesPerLineup
	}
	if p.MaxActive <= 0 {
		p.MaxActive = defaultMaxActive
	}
	if p.Games <= 0 {
		p.Games = defaultGames
	}
	if p.ConfirmGames <= 0 {
		p.ConfirmGames = defaultConfirmGames
	}
	if p.Iterations <= 0 {
		p.Iterations = defaultIterations
	}
	if p.StepGames <= 0 {
		p.StepGames = defaultStepGames
	}
	if p.Cost == nil {
		model := progress.DefaultCostModel()
		p.Cost = &model
	}
	return p
}

// Validate reports parameters no strategy can run with.
func (p Parameters) Validate() error {
	if _, err := Lookup(p.Strategy); err != nil {
		return err
	}
	if p.Alpha >= 1 {
		return fmt.Errorf("alpha %.4f must be below 1: %w", p.Alpha, ErrInvalidArgument)
	}
	if p.Separation < 0 {
		return fmt.Errorf("separation %.4f must not be negative: %w", p.Separation, ErrInvalidArgument)
	}
	if p.MinGames < 2 {
		return fmt.Errorf("minGames %d must be at least 2: %w", p.MinGames, ErrInvalidArgument)
	}
	if p.MaxGamesPerLineup > 0 && p.MaxGamesPerLineup < int64(p.MinGames) {
		return fmt.Errorf("maxGamesPerLineup %d is below minGames %d: %w", p.MaxGamesPerLineup, p.MinGames, ErrInvalidArgument)
	}
	if p.MaxTotalGames < 0 || p.TimeBudget < 0 {
		return fmt.Errorf("budgets must not be negative: %w", ErrInvalidArgument)
	}
	return nil
}

func (p Parameters) rules() sim.Rules {
	return sim.Rules{Innings: p.Innings, MaxRunsPerInning: p.MaxRunsPerInning}
}

// sign orients scores so larger is always better.
func (p Parameters) sign() float64 {
	if p.Lowest {
		return -1
	}
	return 1
}
