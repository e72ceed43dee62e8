package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autocorp/engine/internal/company"
	"github.com/autocorp/engine/internal/config"
	"github.com/autocorp/engine/internal/cycle"
	"github.com/autocorp/engine/internal/decision"
	"github.com/autocorp/engine/internal/gateway"
	"github.com/autocorp/engine/internal/health"
	"github.com/autocorp/engine/internal/httpapi"
	"github.com/autocorp/engine/internal/ledger"
	"github.com/autocorp/engine/internal/lifecycle"
	"github.com/autocorp/engine/internal/metrics"
	"github.com/autocorp/engine/internal/retry"
	"github.com/autocorp/engine/internal/workforce"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("unlimited_mode", cfg.UnlimitedMode).
		Dur("cycle_interval", cfg.CycleInterval).
		Msg("starting orchestration engine")

	state := company.NewState(logger)
	if err := bootstrap(state, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap company state")
	}

	m := metrics.New()
	attritionRoles := cfg.IdleAttritionRoleList()

	gw := gateway.New(cfg.DecisionAPIKey, cfg.DecisionKeyFile, cfg.CallTimeout, logger,
		gateway.WithEndpoint(cfg.DecisionEndpoint),
		gateway.WithPacingDelay(cfg.PacingDelay),
		gateway.WithRetryConfig(retry.DefaultConfig()),
		gateway.WithObserver(m),
	)

	lc := lifecycle.NewManager(state, gw, lifecycle.Config{
		HoursPerCycle:          cfg.HoursPerCycleEffective(),
		BacklogBatch:           cfg.BacklogBatchEffective(),
		ServiceEffortThreshold: cfg.ServiceEffortThreshold,
		AttritionRoles:         attritionRoles,
		Unlimited:              cfg.UnlimitedMode,
	}, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	wf := workforce.NewManager(state, lc, workforce.Config{
		MinPerLocation:   cfg.MinPerLocation,
		MinPerRole:       cfg.MinPerRole,
		CoreRoles:        []string{company.RoleCEO, company.RoleIdeation, company.RoleValidator},
		AttritionRoles:   attritionRoles,
		IdleDismissAfter: cfg.IdleDismissAfter,
		DefaultModel:     cfg.DefaultModel,
		Unlimited:        cfg.UnlimitedMode,
		Observer:         m,
	}, rng, logger)

	settler := ledger.NewSettler(state, cfg.UnlimitedMode, logger)
	executor := decision.NewExecutor(state, attritionRoles, logger)

	driver := cycle.NewDriver(state, gw, lc, wf, settler, executor, cycle.Config{
		MaxWorkersPerCycle: cfg.MaxWorkersEffective(),
		Concurrency:        cfg.DecisionConcurrency,
		DefaultModel:       cfg.DefaultModel,
	}, rng, m, logger)

	checker := health.NewChecker(logger)
	checker.Register("snapshot_dir", func(context.Context) health.Status {
		if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("decision_key", func(context.Context) health.Status {
		if cfg.DecisionAPIKey != "" {
			return health.StatusOK
		}
		if _, err := os.Stat(cfg.DecisionKeyFile); err == nil {
			return health.StatusOK
		}
		// The engine still cycles without a key; every decision falls
		// back to recorded failures.
		return health.StatusDegraded
	})

	server := httpapi.NewServer(httpapi.Config{
		ListenAddr:  cfg.ListenAddr,
		APIKey:      cfg.APIAuthKey,
		SnapshotDir: cfg.SnapshotDir,
	}, state, driver, checker, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// The cycle loop. With a zero interval cycles run only on demand
	// through POST /api/v1/cycles.
	go func() {
		if cfg.CycleInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.CycleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := driver.RunCycle(ctx); err != nil {
					logger.Warn().Err(err).Msg("cycle aborted")
				}
				m.SetWorkers(len(state.WorkersCopy()))
			}
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server stopped")
	}
	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("server shutdown failed")
	}
	if err := state.Snapshot().Save(cfg.SnapshotDir); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	} else {
		logger.Info().Str("dir", cfg.SnapshotDir).Msg("state snapshot saved")
	}
}

// bootstrap restores a previous snapshot when one exists, else builds the
// initial company from the settings file or the built-in defaults.
func bootstrap(state *company.State, cfg *config.Config, logger zerolog.Logger) error {
	if _, err := os.Stat(filepath.Join(cfg.SnapshotDir, "ledger.json")); err == nil {
		snap, migrated, err := company.LoadSnapshot(cfg.SnapshotDir)
		if err != nil {
			return err
		}
		state.Restore(snap)
		for _, desc := range migrated {
			state.AppendEvent("Migrated legacy task %q to the structured format", desc)
		}
		logger.Info().Int("cycle", snap.Cycle).Str("dir", cfg.SnapshotDir).Msg("state restored from snapshot")
		return nil
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return err
	}
	if settings == nil {
		settings = config.DefaultSettings(cfg.DefaultModel)
	}

	for _, l := range settings.Locations {
		state.AddLocation(l.Name, l.Description, l.Inventory)
	}
	for _, w := range settings.Workers {
		model := w.Model
		if model == "" {
			model = cfg.DefaultModel
		}
		if _, err := state.CreateWorker(w.Name, w.Role, model, w.Location, w.Objective); err != nil {
			return err
		}
	}
	for _, desc := range settings.Backlog {
		state.AddTask(desc)
	}
	if !cfg.UnlimitedMode {
		state.Ledger.Balance = 100
	}
	logger.Info().Str("company", settings.Company).
		Int("locations", len(settings.Locations)).
		Int("workers", len(settings.Workers)).
		Msg("company bootstrapped")
	return nil
}
