// Command planetsim runs the planetary evolution simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/talgya/planetsim/internal/api"
	"github.com/talgya/planetsim/internal/config"
	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/persistence"
	"github.com/talgya/planetsim/internal/world"
)

const metaConfig = "config"

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults to the Earth preset)")
	dbPath := flag.String("db", "", "checkpoint database, overrides run.db_path")
	ticks := flag.Uint64("ticks", 0, "stop after this many ticks, overrides run.ticks")
	apiPort := flag.Int("api", -1, "HTTP API port, overrides run.api_port (0 disables)")
	seed := flag.Int64("seed", 0, "world seed, overrides world.seed")
	fresh := flag.Bool("fresh", false, "ignore any saved checkpoint and generate a new planet")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dbPath != "" {
		cfg.Run.DBPath = *dbPath
	}
	if *ticks != 0 {
		cfg.Run.Ticks = *ticks
	}
	if *apiPort >= 0 {
		cfg.Run.APIPort = *apiPort
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(os.Stdout, cfg.Run.SlogLevel()))
	slog.Info("planetsim starting", "config", *configPath, "db", cfg.Run.DBPath)

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Run.DBPath != "" {
		if dir := filepath.Dir(cfg.Run.DBPath); dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		var err error
		db, err = persistence.Open(cfg.Run.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Run.DBPath)
	}

	// ── Load or Generate Planet ──────────────────────────────────────
	sim, err := loadOrGenerate(cfg, db, *fresh)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}
	sim.World.Workers = workerCount(cfg.Run.Workers)
	if db != nil {
		recordConfig(db, cfg)
	}

	eng := engine.NewEngine(sim)
	eng.DT = cfg.Run.DeltaTime
	eng.Interval = cfg.Run.Interval()
	eng.MaxTicks = cfg.Run.Ticks
	eng.ReportEvery = cfg.Run.ReportEvery
	eng.CheckpointEvery = cfg.Run.CheckpointEvery
	eng.OnReport = func(uint64) {
		sim.Report()
		logMemory()
	}
	if db != nil {
		eng.OnCheckpoint = func(uint64) {
			if err := db.SaveCheckpoint(sim.Checkpoint()); err != nil {
				slog.Error("checkpoint save failed", "error", err)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Run.APIPort > 0 {
		adminKey := os.Getenv("PLANETSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("PLANETSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		srv := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Port:     cfg.Run.APIPort,
			AdminKey: adminKey,
			RelayKey: os.Getenv("PLANETSIM_RELAY_KEY"),
			Origins:  cfg.Run.CORSOrigins,
		}
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server error", "error", err)
			}
		}()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Run.APIPort)
	}

	// ── Start ─────────────────────────────────────────────────────────
	st := sim.Status()
	fmt.Printf("\nPlanet %d is alive: %s cells, year %s, %d civilizations.\n",
		st.Seed, humanize.Comma(int64(st.Width*st.Height)), humanize.Ftoa(st.Year), st.Stats.Civilizations)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	sim.Report()
	if db != nil {
		slog.Info("final save...")
		if err := db.SaveCheckpoint(sim.Checkpoint()); err != nil {
			slog.Error("final save failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("Simulation stopped. Planet state saved.")
		return
	}
	fmt.Println("Simulation stopped.")
}

// recordConfig stores the effective configuration in the database and notes
// when it differs from the one recorded by the previous run.
func recordConfig(db *persistence.DB, cfg *config.Config) {
	data, err := config.Encode(cfg)
	if err != nil {
		slog.Warn("config not recorded", "error", err)
		return
	}
	prev, err := db.GetMeta(metaConfig)
	switch {
	case errors.Is(err, persistence.ErrNoMeta):
	case err != nil:
		slog.Warn("stored config unreadable", "error", err)
	case prev != string(data):
		slog.Info("configuration changed since the last run")
	}
	if err := db.SaveMeta(metaConfig, string(data)); err != nil {
		slog.Warn("config not recorded", "error", err)
	}
}

// newLogger writes text to terminals and JSON lines everywhere else.
func newLogger(out *os.File, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// loadOrGenerate resumes from the stored checkpoint when there is one.
func loadOrGenerate(cfg *config.Config, db *persistence.DB, fresh bool) (*engine.Simulation, error) {
	if db != nil && !fresh {
		cp, err := db.LoadCheckpoint()
		switch {
		case err == nil:
			sim, err := engine.FromCheckpoint(cp, cfg.Simulation)
			if err != nil {
				return nil, fmt.Errorf("restore checkpoint %s: %w", cp.ID, err)
			}
			slog.Info("planet restored",
				"checkpoint", cp.ID,
				"year", cp.Year,
				"tick", cp.Tick,
				"saved", humanize.Time(cp.Created),
			)
			if recent, err := db.RecentEvents(3); err == nil {
				for _, e := range recent {
					slog.Info("before the pause", "year", e.Year, "category", e.Category, "event", e.Description)
				}
			}
			return sim, nil
		case errors.Is(err, persistence.ErrNoCheckpoint):
			slog.Info("no saved state found, generating new planet...")
		default:
			return nil, err
		}
	}

	w, err := world.Generate(cfg.World)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	slog.Info("planet generated",
		"seed", w.Options.Seed,
		"size", fmt.Sprintf("%dx%d", w.Width, w.Height),
		"water_level", w.WaterLevel,
	)
	sim := engine.NewSimulation(w, cfg.Simulation)
	if db != nil {
		if err := db.SaveCheckpoint(sim.Checkpoint()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	return sim, nil
}

// workerCount resolves 0 to the number of logical CPUs.
func workerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		n = runtime.NumCPU()
	}
	return n
}

func logMemory() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	slog.Info("memory",
		"heap", humanize.Bytes(ms.HeapAlloc),
		"system_used", humanize.Bytes(vm.Used),
		"system_total", humanize.Bytes(vm.Total),
	)
}
