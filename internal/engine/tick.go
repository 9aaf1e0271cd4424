// Package engine provides the tick-based simulation loop and the orchestrator
// that runs every planet simulator in a fixed order.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Engine drives the simulation forward.
type Engine struct {
	Sim *Simulation

	DT       float64       // simulated years per tick
	Interval time.Duration // base tick interval; 0 runs as fast as possible
	MaxTicks uint64        // stop after this many ticks; 0 runs until stopped

	ReportEvery     uint64 // ticks between OnReport calls; 0 disables
	CheckpointEvery uint64 // ticks between OnCheckpoint calls; 0 disables

	// Callbacks, populated during setup.
	OnTick       func(tick uint64)
	OnReport     func(tick uint64)
	OnCheckpoint func(tick uint64)

	mu      sync.Mutex
	speed   float64 // 1.0 = base interval, 0 = paused
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine for sim with default settings.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Sim:      sim,
		DT:       1,
		Interval: 0,
		speed:    1,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// MaxSpeed caps the speed multiplier.
const MaxSpeed = 1000.0

// SetSpeed changes the speed multiplier, clamped to [0, MaxSpeed]. 0 pauses
// the loop.
func (e *Engine) SetSpeed(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	v = min(v, MaxSpeed)
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("speed changed", "speed", v)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until Stop is called, ctx is done or
// MaxTicks ticks have run.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("simulation engine started", "tick", e.Sim.CurrentTick(), "dt", e.DT, "speed", e.Speed())
	var done uint64
	for e.MaxTicks == 0 || done < e.MaxTicks {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick(), "reason", ctx.Err())
			return
		case <-stop:
			slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick())
			return
		default:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()
		done++

		if e.Interval > 0 {
			elapsed := time.Since(start)
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed < target {
				time.Sleep(target - elapsed)
			}
		}
	}
	slog.Info("simulation engine finished", "tick", e.Sim.CurrentTick(), "ticks", done)
}

// Stop halts the simulation loop after the current tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// step advances the simulation by one tick and fires the periodic callbacks.
func (e *Engine) step() {
	e.Sim.Tick(e.DT)
	tick := e.Sim.CurrentTick()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if e.ReportEvery > 0 && tick%e.ReportEvery == 0 && e.OnReport != nil {
		e.OnReport(tick)
	}
	if e.CheckpointEvery > 0 && tick%e.CheckpointEvery == 0 && e.OnCheckpoint != nil {
		e.OnCheckpoint(tick)
	}
}
