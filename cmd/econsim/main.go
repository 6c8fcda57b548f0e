// Command econsim runs tiered desire allocation cycles over a population of
// pops and records the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/api"
	"github.com/talgya/mini-economy/internal/catalog"
	"github.com/talgya/mini-economy/internal/config"
	"github.com/talgya/mini-economy/internal/engine"
	"github.com/talgya/mini-economy/internal/persistence"
	"github.com/talgya/mini-economy/internal/phi"
)

const (
	Version = "0.1.0"
	appName = "econsim"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Tiered desire allocation simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/econsim.yaml", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	var (
		cycles uint64
		seed   int64
	)
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run allocation cycles until done or interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("cycles") {
				cfg.Cycles = cycles
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}
			return run(cmd.Context(), cfg)
		},
	}
	runCmd.Flags().Uint64Var(&cycles, "cycles", 0, "Cycles to run (0 = until interrupted)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Supply noise seed")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and catalog without running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cat, pops, err := build(cfg)
			if err != nil {
				return err
			}
			var members float64
			var desires int
			for _, p := range pops {
				members += p.Size
				desires += len(p.Desires.All())
			}
			fmt.Printf("catalog %s: %d products, %d wants (digest %.12s)\n",
				cfg.Catalog, len(cat.ProductIDs()), len(cat.WantIDs()), cat.Digest)
			fmt.Printf("%d pops, %s members, %d desires\n",
				len(pops), humanize.CommafWithDigits(members, 0), desires)
			return nil
		},
	}

	cmd.AddCommand(runCmd, validateCmd, &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})
	return cmd
}

func setupLogging(level string) {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func build(cfg config.Config) (*catalog.Catalog, []*agents.Pop, error) {
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	pops, err := cfg.BuildPops(cat)
	if err != nil {
		return nil, nil, fmt.Errorf("build pops: %w", err)
	}
	return cat, pops, nil
}

func run(parent context.Context, cfg config.Config) error {
	slog.Info("econsim starting",
		"version", Version,
		"tier_ratio", fmt.Sprintf("%.5f", phi.TierRatio),
		"seed", cfg.Seed,
		"parallelism", cfg.Parallelism,
	)

	cat, pops, err := build(cfg)
	if err != nil {
		return err
	}
	slog.Info("catalog loaded", "path", cfg.Catalog, "products", len(cat.ProductIDs()), "wants", len(cat.WantIDs()))

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	var startCycle uint64
	if cfg.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		db, err = persistence.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		digest, err := db.GetMeta("catalog_digest")
		if err != nil {
			return fmt.Errorf("read meta: %w", err)
		}
		if digest != "" && digest != cat.Digest {
			slog.Warn("catalog changed since last run; desires no longer defined are dropped")
		}
		restored, err := db.RestorePops(parent, pops)
		if err != nil {
			return fmt.Errorf("restore pops: %w", err)
		}
		if startCycle, err = db.LastCycle(); err != nil {
			return fmt.Errorf("read last cycle: %w", err)
		}
		slog.Info("database opened", "path", cfg.Database, "restored_pops", restored, "last_cycle", startCycle)
	}

	// ── Simulation ────────────────────────────────────────────────────
	supply := engine.NewSupply(cat, cfg.Seed)
	supply.Spread = cfg.SupplySpread

	sim := engine.NewSimulation(cat, pops, supply)
	sim.Parallelism = cfg.Parallelism
	sim.CyclesPerSeason = cfg.CyclesPerSeason

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sim.Metrics = engine.NewMetrics(reg)
	sim.Restore(startCycle)
	if db != nil {
		sim.Recorder = db
	}

	eng := engine.NewEngine()
	eng.Cycle = startCycle
	eng.Interval = cfg.CycleInterval
	sim.Attach(eng)

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	engineCtx, engineDone := context.WithCancel(gctx)
	if cfg.MetricsAddr != "" {
		srv := &api.Server{Sim: sim, Gatherer: reg, Addr: cfg.MetricsAddr}
		if db != nil {
			srv.Reports = db
		}
		g.Go(func() error { return srv.Run(engineCtx) })
	}
	g.Go(func() error {
		defer engineDone()
		return eng.Run(engineCtx, cfg.Cycles)
	})
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if db != nil {
		slog.Info("final save...")
		if err := db.SaveState(context.Background(), sim); err != nil {
			return errors.Join(runErr, fmt.Errorf("final save: %w", err))
		}
	}
	if runErr != nil {
		return runErr
	}

	stats := sim.Snapshot(0).Stats
	fmt.Printf("Stopped after cycle %d (%s): %d pops, avg health %.3f, value %s.\n",
		sim.LastCycle, engine.CycleTime(sim.LastCycle, sim.CyclesPerSeason),
		stats.Pops, stats.AvgHealth, humanize.CommafWithDigits(stats.TotalValue, 2))
	return nil
}
