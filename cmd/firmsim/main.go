// Command firmsim runs the adaptive-firm economy simulation.
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
	"time"

	"github.com/talgya/firmsim/internal/actor"
	"github.com/talgya/firmsim/internal/api"
	"github.com/talgya/firmsim/internal/config"
	"github.com/talgya/firmsim/internal/engine"
	"github.com/talgya/firmsim/internal/persistence"
)

func main() {
	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("FIRMSIM_LOG"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("firmsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Configuration ─────────────────────────────────────────────────
	cfg := config.Default()
	if path := os.Getenv("FIRMSIM_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = loaded
		slog.Info("config loaded", "path", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Economy ───────────────────────────────────────────────────────
	// Not bound to ctx: the system outlives the signal for the final layoffs.
	sys := actor.NewSystem(actor.WithInboxSize(cfg.Actors.InboxSize))
	defer sys.Shutdown()

	sim, err := engine.Build(cfg, sys)
	if err != nil {
		return err
	}

	var startDay uint64
	if db.HasState() {
		if startDay, err = db.RestoreSimulation(sim); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}

	eng := engine.NewEngine()
	eng.Day = startDay
	eng.Interval = cfg.TickInterval
	eng.MaxDays = cfg.Days
	eng.OnDay = func(ctx context.Context, day uint64) error {
		if err := sim.TickDay(ctx, day); err != nil {
			return err
		}
		// Auto-save daily.
		if err := db.SaveSimulation(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
		return nil
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if cfg.APIPort > 0 {
		adminKey := os.Getenv("FIRMSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("FIRMSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer = &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.APIPort,
			AdminKey: adminKey,
		}
		apiServer.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	}

	// ── Start ─────────────────────────────────────────────────────────
	fmt.Printf("\n%d firms and %d workers open for business.\n", len(sim.Firms), len(sim.Workers))
	if startDay > 0 {
		fmt.Printf("Resuming after day %d (%s)\n", startDay, engine.SimTime(startDay))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	runErr := eng.Run(ctx)

	// ── Shutdown ──────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}

	slog.Info("final save...")
	if err := db.SaveSimulation(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	// Lay off after saving so the checkpoint keeps the day's records.
	if err := sim.Shutdown(shutdownCtx); err != nil && !errors.Is(err, actor.ErrStopped) {
		slog.Warn("layoffs incomplete", "error", err)
	}

	fmt.Println("Simulation stopped. Firm state saved.")
	return runErr
}
