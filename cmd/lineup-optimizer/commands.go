package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/lineup-optimizer/internal/config"
	"github.com/iwvelando/lineup-optimizer/internal/metrics"
	"github.com/iwvelando/lineup-optimizer/internal/optimizer"
	"github.com/iwvelando/lineup-optimizer/internal/result"
	"github.com/iwvelando/lineup-optimizer/internal/server"
	"github.com/iwvelando/lineup-optimizer/internal/sim"
	"github.com/iwvelando/lineup-optimizer/internal/store"
	"github.com/iwvelando/lineup-optimizer/pkg/constants"
	"github.com/iwvelando/lineup-optimizer/pkg/output"
	"github.com/iwvelando/lineup-optimizer/pkg/validation"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// shutdownTimeout bounds how long serve waits for in-flight runs.
const shutdownTimeout = 30 * time.Second

// cliFlags are shared by the commands. Overrides apply only when set.
type cliFlags struct {
	configLocation string
	outputFormat   string
	logLevel       string

	strategy   string
	policy     string
	players    []string
	threads    int
	seed       uint64
	timeBudget time.Duration
	lowest     bool
	resume     bool

	serverConfig string

	calibrationGames  int
	calibrationDegree int
	innings           int
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "lineup-optimizer",
		Short:         "Find the softball batting order that scores the most runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&flags.configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	root.PersistentFlags().StringVar(&flags.outputFormat, "output-format", "", "type of output override: pretty, csv, json")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search for the best lineup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimize(cmd, flags, false)
		},
	}
	estimateCmd := &cobra.Command{
		Use:   "estimate",
		Short: "Project how long an optimization would take without running it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimize(cmd, flags, true)
		},
	}
	for _, c := range []*cobra.Command{optimizeCmd, estimateCmd} {
		c.Flags().StringVar(&flags.strategy, "optimizer", "", "optimizer name or id override")
		c.Flags().StringVar(&flags.policy, "policy", "", "lineup policy override")
		c.Flags().StringSliceVar(&flags.players, "players", nil, "comma-separated player ids to include")
		c.Flags().IntVar(&flags.threads, "threads", 0, "simulation threads override")
		c.Flags().Uint64Var(&flags.seed, "seed", 0, "random seed override")
		c.Flags().DurationVar(&flags.timeBudget, "time-budget", 0, "wall time budget override, e.g. 10m")
		c.Flags().BoolVar(&flags.lowest, "lowest", false, "search for the lowest scoring lineup")
	}
	optimizeCmd.Flags().BoolVar(&flags.resume, "resume", false, "continue a partial result saved in the store, or print a finished one")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the optimization API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	serveCmd.Flags().StringVar(&flags.serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")

	calibrateCmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Time simulated games and print a cost model for run estimates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalibrate(cmd, flags)
		},
	}
	calibrateCmd.Flags().IntVar(&flags.calibrationGames, "games", constants.DefaultCalibrationGames, "games timed per sample")
	calibrateCmd.Flags().IntVar(&flags.calibrationDegree, "degree", constants.DefaultCalibrationDegree, "polynomial degree of the fitted model")
	calibrateCmd.Flags().IntVar(&flags.innings, "innings", sim.DefaultInnings, "innings per game")

	root.AddCommand(optimizeCmd, estimateCmd, serveCmd, calibrateCmd)
	return root
}

// applyOverrides copies flags the user set onto the configuration.
func applyOverrides(cmd *cobra.Command, flags *cliFlags, conf *config.Configuration) {
	changed := cmd.Flags().Changed
	if changed("optimizer") {
		conf.Optimizer.Strategy = flags.strategy
	}
	if changed("policy") {
		conf.Policy = flags.policy
	}
	if changed("players") {
		conf.Players = flags.players
	}
	if changed("threads") {
		conf.Optimizer.Threads = flags.threads
	}
	if changed("seed") {
		conf.Optimizer.Seed = flags.seed
	}
	if changed("time-budget") {
		conf.Optimizer.TimeBudget = flags.timeBudget
	}
	if changed("lowest") {
		conf.Optimizer.Lowest = flags.lowest
	}
	if flags.outputFormat != "" {
		conf.Output.Format = flags.outputFormat
	}
	conf.Normalize()
}

func runOptimize(cmd *cobra.Command, flags *cliFlags, estimateOnly bool) error {
	conf, err := config.LoadConfiguration(flags.configLocation)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", flags.configLocation, err)
		return err
	}
	applyOverrides(cmd, flags, conf)

	logger, err := initializeLogger(conf.Logging, flags.logLevel)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := conf.Validate(); err != nil {
		logger.Error("invalid configuration", zap.String("op", "main"), zap.Error(err))
		return err
	}
	policy, err := conf.LineupPolicy()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	players, err := conf.LoadRoster(fs)
	if err != nil {
		logger.Error("failed to load roster",
			zap.String("op", "main"),
			zap.String("roster", conf.Roster),
			zap.Error(err),
		)
		return err
	}

	for _, warning := range conf.ValidateConfiguration(players) {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	req := optimizer.Request{Players: players, Policy: policy, Params: conf.Optimizer}
	runner := optimizer.NewRunner(logger, nil)

	if estimateOnly {
		est, err := runner.Estimate(req)
		if err != nil {
			logger.Error("failed to estimate optimization", zap.String("op", "main"), zap.Error(err))
			return err
		}
		return writeResult(cmd.OutOrStdout(), conf.Output.Format, est)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := conf.Store.Open(ctx, fs)
	if err != nil {
		logger.Error("failed to open result store", zap.String("op", "main"), zap.Error(err))
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close result store", zap.String("op", "main"), zap.Error(err))
		}
	}()

	var persist func(result.Result)
	if st != nil {
		key, err := store.Key(players, policy, nil, conf.Optimizer)
		if err != nil {
			return err
		}
		persist = store.Sink(context.WithoutCancel(ctx), st, key, logger)

		if flags.resume {
			saved, err := st.Load(ctx, key)
			switch {
			case err == nil && saved.Settled():
				logger.Info("using stored result",
					zap.String("op", "main"),
					zap.String("runId", saved.RunID),
					zap.String("key", key),
				)
				return writeResult(cmd.OutOrStdout(), conf.Output.Format, saved)
			case err == nil && saved.Status == result.Complete:
				logger.Info("resuming stored result",
					zap.String("op", "main"),
					zap.String("runId", saved.RunID),
					zap.Int64("completed", saved.CountCompleted),
					zap.Int64("total", saved.CountTotal),
				)
				req.Resume = &saved
			case err != nil && !errors.Is(err, store.ErrNotFound):
				logger.Warn("failed to read stored result", zap.String("op", "main"), zap.Error(err))
			}
		}
	}

	sink := func(r result.Result) {
		logger.Debug("progress",
			zap.String("op", "main"),
			zap.String("status", string(r.Status)),
			zap.Float64("percent", r.Percent()),
			zap.Strings("lineup", r.LineupIDs()),
			zap.Float64("score", r.Score),
		)
		if persist != nil && r.Status == result.Complete {
			persist(r)
		}
	}

	final, err := runner.Optimize(ctx, req, sink)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), conf.Output.Format, final)
}

func writeResult(w io.Writer, format string, r result.Result) error {
	if err := validation.ValidateOutputFormat(format); err != nil {
		return err
	}
	switch format {
	case constants.OutputFormatCSV:
		output.CsvFormat(w, r)
	case constants.OutputFormatJSON:
		return output.JSONFormat(w, r)
	default:
		output.PrettyFormat(w, r)
	}
	return nil
}

func runServe(cmd *cobra.Command, flags *cliFlags) error {
	cfg, err := server.LoadConfig(flags.serverConfig)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", flags.serverConfig, err)
		return err
	}

	logger, err := initializeLogger(cfg.Logging, flags.logLevel)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := cfg.Store.Open(ctx, afero.NewOsFs())
	if err != nil {
		logger.Error("failed to open result store", zap.String("op", "main"), zap.Error(err))
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close result store", zap.String("op", "main"), zap.Error(err))
		}
	}()

	handler := server.NewHandler(logger, server.Options{
		MaxUploadSize:     cfg.UploadSizeBytes(),
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		Version:           version,
		Store:             st,
		Metrics:           metrics.NewRecorder(),
		CheckOrigin:       cfg.CheckOrigin(),
	})
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("op", "main"),
			zap.String("address", cfg.Address),
			zap.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.String("op", "main"), zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.String("op", "main"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.String("op", "main"), zap.Error(err))
	}
	return handler.Shutdown(shutdownCtx)
}

func runCalibrate(cmd *cobra.Command, flags *cliFlags) error {
	logger, err := initializeLogger(config.LoggingConfig{Format: "console"}, flags.logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules := sim.Rules{Innings: flags.innings}
	model, err := calibrate(ctx, logger, rules, flags.calibrationGames, flags.calibrationDegree, calibrationAverages)
	if err != nil {
		logger.Error("calibration failed", zap.String("op", "calibrate"), zap.Error(err))
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(map[string]any{"optimizer": map[string]any{"cost": model}})
}
