// Package config defines the data structures related to configuration and
// includes functions for loading and checking the config.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/iwvelando/lineup-optimizer/internal/lineup"
	"github.com/iwvelando/lineup-optimizer/internal/optimizer"
	"github.com/iwvelando/lineup-optimizer/internal/roster"
	"github.com/iwvelando/lineup-optimizer/internal/store"
	"github.com/iwvelando/lineup-optimizer/pkg/constants"
	"github.com/iwvelando/lineup-optimizer/pkg/validation"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// exhaustiveWarnGames is the simulated game count above which an exhaustive
// run is flagged as impractical.
const exhaustiveWarnGames = 1e9

// minPlateAppearances is the sample size below which a player's hitting
// distribution is flagged as unreliable.
const minPlateAppearances = 10

// Configuration holds all configuration for lineup-optimizer.
type Configuration struct {
	Roster    string               `yaml:"roster" mapstructure:"roster"`
	Policy    string               `yaml:"policy" mapstructure:"policy"`
	Players   []string             `yaml:"players,omitempty" mapstructure:"players"`
	Optimizer optimizer.Parameters `yaml:"optimizer" mapstructure:"optimizer"`
	Store     StoreConfig          `yaml:"store,omitempty" mapstructure:"store"`
	Logging   LoggingConfig        `yaml:"logging,omitempty" mapstructure:"logging"`
	Output    OutputConfig         `yaml:"output,omitempty" mapstructure:"output"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// StoreConfig selects where results are persisted. Either, both or neither
// backend may be set.
type StoreConfig struct {
	Directory       string `yaml:"directory,omitempty" mapstructure:"directory"`
	Bucket          string `yaml:"bucket,omitempty" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	CredentialsFile string `yaml:"credentialsFile,omitempty" mapstructure:"credentialsFile"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed with LINEUP override
// file values, e.g. LINEUP_OPTIMIZER_THREADS.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	configuration.Normalize()
	return &configuration, nil
}

// setDefaults registers every overridable key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("roster", constants.DefaultRosterFile)
	v.SetDefault("policy", lineup.Standard.String())
	v.SetDefault("optimizer.strategy", optimizer.AdaptiveName)
	v.SetDefault("optimizer.innings", 0)
	v.SetDefault("optimizer.threads", 0)
	v.SetDefault("optimizer.seed", 0)
	v.SetDefault("optimizer.lowest", false)
	v.SetDefault("optimizer.alpha", 0)
	v.SetDefault("optimizer.maxTotalGames", 0)
	v.SetDefault("optimizer.timeBudget", "0s")
	v.SetDefault("optimizer.progressInterval", "0s")
	v.SetDefault("store.directory", "")
	v.SetDefault("store.bucket", "")
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("output.format", constants.OutputFormatPretty)
}

// Normalize applies defaults and canonical values.
func (c *Configuration) Normalize() {
	c.Roster = strings.TrimSpace(c.Roster)
	if c.Roster == "" {
		c.Roster = constants.DefaultRosterFile
	}
	if strings.TrimSpace(c.Policy) == "" {
		c.Policy = lineup.Standard.String()
	}
	if c.Output.Format == "" {
		c.Output.Format = constants.OutputFormatPretty
	}
	c.Optimizer = c.Optimizer.Normalize()
}

// LineupPolicy parses the configured policy.
func (c *Configuration) LineupPolicy() (lineup.Policy, error) {
	return lineup.ParsePolicy(c.Policy)
}

// Validate reports configuration errors that prevent a run.
func (c *Configuration) Validate() error {
	if _, err := c.LineupPolicy(); err != nil {
		return err
	}
	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		return err
	}
	if err := c.Optimizer.Validate(); err != nil {
		return err
	}
	if c.Store.CredentialsFile != "" && c.Store.Bucket == "" {
		return fmt.Errorf("store.credentialsFile is set but store.bucket is empty")
	}
	return nil
}

// ValidateConfiguration returns warnings about settings that will run but
// probably not as intended.
func (c *Configuration) ValidateConfiguration(players []roster.Player) []string {
	var warnings []string
	p := c.Optimizer

	noBudget := p.MaxTotalGames == 0 && p.TimeBudget == 0
	if p.Strategy == optimizer.AdaptiveName && noBudget && p.MaxGamesPerLineup < 0 {
		warnings = append(warnings, "adaptive optimizer has no game limit and no budget; nearly tied lineups may never be decided")
	}

	policy, err := c.LineupPolicy()
	if err != nil || len(players) == 0 {
		return warnings
	}
	indexer, err := lineup.NewIndexer(policy, players)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("roster cannot form %s lineups: %v", policy, err))
		return warnings
	}
	if p.Strategy == optimizer.ExhaustiveName && noBudget {
		if games := float64(indexer.Size()) * float64(p.Games); games > exhaustiveWarnGames {
			warnings = append(warnings, fmt.Sprintf("exhaustive search of %d lineups needs %.3g games; consider monte-carlo-adaptive or a budget",
				indexer.Size(), games))
		}
	}
	for _, pl := range players {
		if pa := pl.Counts.PlateAppearances(); pa < minPlateAppearances {
			warnings = append(warnings, fmt.Sprintf("player %s has only %d plate appearances; simulated outcomes will be noisy", pl.ID, pa))
		}
	}
	return warnings
}

// LoadRoster reads the roster file and applies the player selection.
func (c *Configuration) LoadRoster(fs afero.Fs) ([]roster.Player, error) {
	r, err := roster.LoadFile(fs, c.Roster)
	if err != nil {
		return nil, err
	}
	if len(c.Players) == 0 {
		return r.Players, nil
	}
	return r.Select(c.Players)
}

// Open builds the configured stores. The returned close function releases
// any cloud clients; it is never nil.
func (s StoreConfig) Open(ctx context.Context, fs afero.Fs) (store.Store, func() error, error) {
	var (
		stores  store.Multi
		closers []func() error
	)
	if s.Directory != "" {
		fileStore, err := store.NewFileStore(fs, s.Directory)
		if err != nil {
			return nil, func() error { return nil }, err
		}
		stores = append(stores, fileStore)
	}
	if s.Bucket != "" {
		gcs, err := store.NewGCSStore(ctx, s.Bucket, s.Prefix, s.CredentialsFile)
		if err != nil {
			return nil, func() error { return nil }, err
		}
		stores = append(stores, gcs)
		closers = append(closers, gcs.Close)
	}
	closeAll := func() error {
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		return err
	}
	if len(stores) == 0 {
		return nil, closeAll, nil
	}
	return stores, closeAll, nil
}
