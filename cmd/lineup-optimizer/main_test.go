package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/config"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/sim"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		override  string
		expectErr bool
	}{
		{name: "defaults", cfg: config.LoggingConfig{}},
		{name: "console debug", cfg: config.LoggingConfig{Level: "debug", Format: "console"}},
		{name: "override wins", cfg: config.LoggingConfig{Level: "bogus"}, override: "warn"},
		{name: "bad level", cfg: config.LoggingConfig{Level: "loud"}, expectErr: true},
		{name: "bad format", cfg: config.LoggingConfig{Format: "xml"}, expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initializeLogger(tt.cfg, tt.override)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("initializeLogger() error = %v", err)
			}
			_ = logger.Sync()
		})
	}
}

func TestInitializeLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "optimizer.log")
	logger, err := initializeLogger(config.LoggingConfig{OutputFile: path}, "")
	if err != nil {
		t.Fatalf("initializeLogger() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestCalibrate(t *testing.T) {
	model, err := calibrate(context.Background(), zap.NewNop(), sim.Rules{Innings: 3}, 50, 1, []float64{0.2, 0.5, 0.8})
	if err != nil {
		t.Fatalf("calibrate() error = %v", err)
	}
	if len(model.Coefficients) != 2 {
		t.Fatalf("expected 2 coefficients, got %d", len(model.Coefficients))
	}
	if model.ReferenceInnings != 3 || model.ReferenceThreads != 1 {
		t.Fatalf("unexpected reference settings %+v", model)
	}

	if _, err := calibrate(context.Background(), zap.NewNop(), sim.Rules{}, 0, 1, []float64{0.2, 0.5}); err == nil {
		t.Fatal("expected error for zero games")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := calibrate(ctx, zap.NewNop(), sim.Rules{}, 10, 1, []float64{0.2, 0.5}); err == nil {
		t.Fatal("expected error for cancelled calibration")
	}
}

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(rosterPath, []byte(`players:
  - {id: ann, gender: F, counts: {singles: 6, outs: 4}}
  - {id: bob, gender: M, counts: {singles: 2, outs: 8}}
  - {id: cam, gender: M, counts: {homeRuns: 3, outs: 7}}
`), 0600); err != nil {
		t.Fatalf("failed to write roster: %v", err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("roster: "+rosterPath+`
optimizer:
  strategy: monte-carlo-exhaustive
  games: 20
  threads: 1
  seed: 3
logging:
  level: error
store:
  directory: `+filepath.Join(dir, "results")+"\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out.String()
}

func TestOptimizeCommand(t *testing.T) {
	configPath := writeProject(t)

	out := execute(t, "optimize", "--config", configPath, "--output-format", "json", "--players", "ann,cam")
	var res result.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Status != result.Complete {
		t.Fatalf("expected COMPLETE, got %s", res.Status)
	}
	if len(res.Lineup) != 2 || res.CountTotal != 2 {
		t.Fatalf("expected two-player search, got %+v", res)
	}

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(configPath), "results"))
	if err != nil {
		t.Fatalf("failed to read result directory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stored result, got %d", len(entries))
	}

	out = execute(t, "optimize", "--config", configPath, "--output-format", "csv", "--optimizer", "0")
	if !strings.HasPrefix(out, `"slot","id","name","score"`) {
		t.Fatalf("expected csv output, got %q", out)
	}
}

func TestEstimateCommand(t *testing.T) {
	configPath := writeProject(t)

	out := execute(t, "estimate", "--config", configPath, "--output-format", "json", "--time-budget", "1ms")
	var res result.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Status != result.NotStarted || res.EstimatedTotalMs == nil {
		t.Fatalf("expected an estimate, got %+v", res)
	}
	if *res.EstimatedTotalMs > time.Millisecond.Milliseconds() {
		t.Fatalf("expected the estimate capped by the budget, got %d", *res.EstimatedTotalMs)
	}
}

func TestCommandRejectsBadConfig(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"optimize", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing configuration")
	}

	cmd = newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"optimize", "--config", writeProject(t), "--output-format", "xml"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unsupported output format")
	}
}

func TestCalibrateCommand(t *testing.T) {
	out := execute(t, "calibrate", "--games", "20", "--degree", "1", "--innings", "2", "--log-level", "error")
	var doc struct {
		Optimizer struct {
			Cost struct {
				Coefficients     []float64 `yaml:"coefficients"`
				ReferenceInnings int       `yaml:"referenceInnings"`
			} `yaml:"cost"`
		} `yaml:"optimizer"`
	}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if len(doc.Optimizer.Cost.Coefficients) != 2 || doc.Optimizer.Cost.ReferenceInnings != 2 {
		t.Fatalf("unexpected calibration output %s", out)
	}
}

func TestOptimizeCommandResumes(t *testing.T) {
	configPath := writeProject(t)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	budgeted := strings.Replace(string(data), "  seed: 3\n", "  seed: 3\n  maxTotalGames: 80\n", 1)
	if err := os.WriteFile(configPath, []byte(budgeted), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	decode := func(out string) result.Result {
		var res result.Result
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		return res
	}

	first := decode(execute(t, "optimize", "--config", configPath, "--output-format", "json"))
	if !first.Details.BudgetExhausted || first.CountCompleted != 4 {
		t.Fatalf("expected the budget to stop after one batch, got %+v", first)
	}

	resumed := decode(execute(t, "optimize", "--config", configPath, "--output-format", "json", "--resume"))
	if !resumed.Settled() || resumed.CountCompleted != 6 {
		t.Fatalf("expected the resumed run to finish, got %+v", resumed)
	}
	if resumed.Details.GamesSimulated != 120 {
		t.Fatalf("expected 120 games across both runs, got %d", resumed.Details.GamesSimulated)
	}

	stored := decode(execute(t, "optimize", "--config", configPath, "--output-format", "json", "--resume"))
	if stored.RunID != resumed.RunID {
		t.Fatalf("expected the stored run %s, got %s", resumed.RunID, stored.RunID)
	}
}
