// Command gardener runs the autonomous planet steward. It observes a running
// planetsim over HTTP, triages planet health, and reseeds life through the
// admin intervention API when the biosphere is failing.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/planetsim/internal/gardener"
)

const readyTimeout = 5 * time.Minute

type settings struct {
	apiURL   string
	adminKey string
	memory   string
	interval time.Duration
}

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	}

	cfg, err := settingsFromEnv()
	if err != nil {
		slog.Error("invalid gardener settings", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("gardener stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("gardener stopped")
}

func settingsFromEnv() (settings, error) {
	s := settings{
		apiURL:   os.Getenv("PLANETSIM_API_URL"),
		adminKey: os.Getenv("PLANETSIM_ADMIN_KEY"),
		memory:   os.Getenv("GARDENER_MEMORY"),
		interval: 300 * time.Second,
	}
	if s.apiURL == "" {
		s.apiURL = "http://localhost:8080"
	}
	if s.memory == "" {
		s.memory = "gardener_memory.json"
	}
	if s.adminKey == "" {
		return s, errors.New("PLANETSIM_ADMIN_KEY is required")
	}
	if v := os.Getenv("GARDENER_INTERVAL"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return s, errors.New("GARDENER_INTERVAL must be a positive number of seconds")
		}
		s.interval = time.Duration(sec) * time.Second
	}
	return s, nil
}

func run(ctx context.Context, cfg settings) error {
	client := gardener.NewClient(cfg.apiURL, cfg.adminKey)
	mem, err := gardener.LoadMemory(cfg.memory)
	if err != nil {
		slog.Warn("starting with empty memory", "error", err)
	}
	slog.Info("planet gardener starting", "api_url", cfg.apiURL, "interval", cfg.interval, "memory", cfg.memory)

	if err := waitReady(ctx, client); err != nil {
		return err
	}

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()
	for {
		cycle(ctx, client, mem)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle runs observe, triage, decide and act once and records the outcome.
func cycle(ctx context.Context, client *gardener.Client, mem *gardener.CycleMemory) {
	snap, err := client.Observe(ctx)
	if err != nil {
		slog.Error("observation failed", "error", err)
		return
	}
	health := gardener.Triage(snap, mem)
	decision := gardener.Decide(snap, health, mem)
	slog.Info("planet triaged",
		"year", snap.Status.Year,
		"life_share", health.LifeShare,
		"biomass_trend", health.BiomassTrend,
		"oxygen", health.Oxygen,
		"crisis", health.CrisisLevel,
		"action", decision.Action,
	)

	rec := gardener.CycleRecord{
		Tick:        snap.Status.Tick,
		Year:        snap.Status.Year,
		Action:      decision.Action,
		LifeShare:   health.LifeShare,
		MeanBiomass: health.MeanBiomass,
		CrisisLevel: health.CrisisLevel,
		Rationale:   decision.Rationale,
	}
	if iv := decision.Intervention; iv != nil {
		result, err := client.Act(ctx, iv)
		if err != nil {
			slog.Error("intervention failed", "error", err)
			rec.Action = gardener.ActionNone
		} else {
			rec.Life, rec.X, rec.Y = iv.Life, iv.X, iv.Y
			slog.Info("intervention applied", "type", iv.Type, "life", iv.Life, "x", iv.X, "y", iv.Y, "cells", result.Cells)
		}
	}

	mem.Record(rec)
	if err := mem.Save(); err != nil {
		slog.Warn("memory not saved", "error", err)
	}
}

// waitReady polls the API with doubling backoff until it answers or
// readyTimeout passes.
func waitReady(ctx context.Context, client *gardener.Client) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	backoff := 2 * time.Second
	for !client.Ready(ctx) {
		slog.Info("planetsim not ready", "retry_in", backoff)
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.New("planetsim API did not become ready")
			}
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
	return nil
}
