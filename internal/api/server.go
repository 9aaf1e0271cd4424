// Package api serves the planet over HTTP: public read endpoints, a
// websocket event stream, and token-gated admin controls.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/talgya/planetsim/internal/disaster"
	"github.com/talgya/planetsim/internal/engine"
	"github.com/talgya/planetsim/internal/persistence"
	"github.com/talgya/planetsim/internal/world"
)

// Server serves the planet state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // nil disables /snapshot
	Port     int
	AdminKey string   // bearer token for POST endpoints; empty disables them
	RelayKey string   // bearer token for /stream; empty disables it
	Origins  []string // CORS origins allowed besides local dev servers

	streams atomic.Int32
}

// Handler builds the routed handler, CORS included. Reads are public;
// anything that changes the planet needs the admin token.
func (s *Server) Handler() http.Handler {
	limiter := NewRateLimiter(60, time.Minute)
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return requireToken(s.AdminKey, "PLANETSIM_ADMIN_KEY", h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/cell", s.handleCell)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/civilizations", s.handleCivilizations)
	mux.HandleFunc("GET /api/v1/storms", s.handleStorms)
	mux.HandleFunc("GET /api/v1/disasters", s.handleDisasters)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/speed", s.handleSpeed)
	mux.HandleFunc("GET /api/v1/stream", requireToken(s.RelayKey, "PLANETSIM_RELAY_KEY", s.handleStream))

	mux.HandleFunc("POST /api/v1/speed", admin(s.handleSetSpeed))
	mux.HandleFunc("POST /api/v1/snapshot", admin(s.handleSnapshot))
	mux.HandleFunc("POST /api/v1/intervention", admin(RateLimitMiddleware(limiter, s.handleIntervention)))

	return withCORS(s.Origins, mux)
}

// ListenAndServe serves the API on Port until ctx is cancelled, then drains
// open requests for up to five seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hs := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", hs.Addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdown)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		engine.Status
		Speed   float64 `json:"speed"`
		Running bool    `json:"running"`
	}{Status: s.Sim.Status()}
	if s.Eng != nil {
		status.Speed = s.Eng.Speed()
		status.Running = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Status().Stats)
}

func (s *Server) handleCell(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil {
		http.Error(w, "x and y must be integers", http.StatusBadRequest)
		return
	}
	report, err := s.Sim.Cell(x, y)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

// mapLayers extract one value per cell for GET /api/v1/map.
var mapLayers = map[string]func(c *world.Cell) any{
	"elevation":   func(c *world.Cell) any { return round3(c.Elevation()) },
	"temperature": func(c *world.Cell) any { return round3(c.Temperature()) },
	"rainfall":    func(c *world.Cell) any { return round3(c.Rainfall()) },
	"biomass":     func(c *world.Cell) any { return round3(c.Biomass()) },
	"ice":         func(c *world.Cell) any { return round3(c.IceThickness()) },
	"land":        func(c *world.Cell) any { return c.IsLand() },
	"biome":       func(c *world.Cell) any { return c.Biome.Type.String() },
	"life":        func(c *world.Cell) any { return c.Life.String() },
}

// handleMap returns a whole layer in row-major order (index = y*width + x).
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	layer := r.URL.Query().Get("layer")
	if layer == "" {
		layer = "elevation"
	}
	extract, ok := mapLayers[layer]
	if !ok {
		http.Error(w, "unknown layer "+strconv.Quote(layer), http.StatusBadRequest)
		return
	}

	var resp struct {
		Layer  string `json:"layer"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Values []any  `json:"values"`
	}
	resp.Layer = layer
	s.Sim.View(func(sim *engine.Simulation) {
		wd := sim.World
		resp.Width, resp.Height = wd.Width, wd.Height
		resp.Values = make([]any, wd.Len())
		for i := range resp.Values {
			resp.Values[i] = extract(wd.Cell(i))
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handleCivilizations(w http.ResponseWriter, r *http.Request) {
	type civSummary struct {
		ID              uint64  `json:"id"`
		Name            string  `json:"name"`
		CenterX         int     `json:"center_x"`
		CenterY         int     `json:"center_y"`
		Population      int64   `json:"population"`
		Tech            float64 `json:"tech"`
		Stage           string  `json:"stage"`
		Aggression      float64 `json:"aggression"`
		EcoFriendliness float64 `json:"eco_friendliness"`
		Founded         float64 `json:"founded"`
		Cells           int     `json:"cells"`
	}

	var result []civSummary
	s.Sim.View(func(sim *engine.Simulation) {
		for _, c := range sim.Civilizations.Active() {
			result = append(result, civSummary{
				ID:              c.ID,
				Name:            c.Name,
				CenterX:         c.CenterX,
				CenterY:         c.CenterY,
				Population:      c.Population,
				Tech:            c.Tech,
				Stage:           c.Stage.String(),
				Aggression:      c.Aggression,
				EcoFriendliness: c.EcoFriendliness,
				Founded:         c.Founded,
				Cells:           c.Size(),
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleStorms(w http.ResponseWriter, r *http.Request) {
	type stormSummary struct {
		ID        string  `json:"id"`
		Kind      string  `json:"kind"`
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
		Intensity float64 `json:"intensity"`
		Radius    float64 `json:"radius"`
		Age       float64 `json:"age"`
	}

	var result []stormSummary
	s.Sim.View(func(sim *engine.Simulation) {
		for _, st := range sim.Weather.Storms() {
			result = append(result, stormSummary{
				ID:        st.ID.String(),
				Kind:      st.Kind.String(),
				X:         st.X,
				Y:         st.Y,
				Intensity: st.Intensity,
				Radius:    st.Radius,
				Age:       st.Age,
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleDisasters(w http.ResponseWriter, r *http.Request) {
	type disasterSummary struct {
		ID        string  `json:"id"`
		Kind      string  `json:"kind"`
		X         int     `json:"x"`
		Y         int     `json:"y"`
		Intensity float64 `json:"intensity"`
		Age       float64 `json:"age"`
	}

	var result []disasterSummary
	s.Sim.View(func(sim *engine.Simulation) {
		for _, e := range sim.Disasters.Events() {
			result = append(result, disasterSummary{
				ID:        e.ID.String(),
				Kind:      e.Kind.String(),
				X:         e.X,
				Y:         e.Y,
				Intensity: e.Intensity,
				Age:       e.Age,
			})
		}
	})
	writeJSON(w, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Sim.View(func(sim *engine.Simulation) {
		for _, e := range sim.Events {
			if category == "" || e.Category == category {
				events = append(events, e)
			}
		}
	})

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > engine.MaxSpeed {
		http.Error(w, fmt.Sprintf("speed must be within 0-%g", engine.MaxSpeed), http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	s.handleSpeed(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	cp := s.Sim.Checkpoint()
	if err := s.DB.SaveCheckpoint(cp); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"id":      cp.ID.String(),
		"tick":    cp.Tick,
		"year":    cp.Year,
		"message": "snapshot saved",
	})
}

type interventionRequest struct {
	Type      string  `json:"type"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Radius    int     `json:"radius,omitempty"`
	Life      string  `json:"life,omitempty"`
	Resource  string  `json:"resource,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
	Disaster  string  `json:"disaster,omitempty"`
	Magnitude float64 `json:"magnitude,omitempty"`
}

func (s *Server) handleIntervention(w http.ResponseWriter, r *http.Request) {

	var req interventionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case "seed_life":
		life, ok := world.LifeFormByName(req.Life)
		if !ok {
			http.Error(w, "unknown life-form "+strconv.Quote(req.Life), http.StatusBadRequest)
			return
		}
		n, err := s.Sim.SeedLife(req.X, req.Y, req.Radius, life)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "cells": n})

	case "place_resource":
		res, ok := world.ResourceByName(req.Resource)
		if !ok {
			http.Error(w, "unknown resource "+strconv.Quote(req.Resource), http.StatusBadRequest)
			return
		}
		if req.Amount <= 0 {
			http.Error(w, "amount must be positive", http.StatusBadRequest)
			return
		}
		d, err := s.Sim.PlaceResource(req.X, req.Y, res, req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "deposit": d})

	case "trigger_disaster":
		kind, ok := disaster.KindByName(req.Disaster)
		if !ok {
			http.Error(w, "unknown disaster "+strconv.Quote(req.Disaster), http.StatusBadRequest)
			return
		}
		if err := s.Sim.TriggerDisaster(kind, req.X, req.Y, req.Magnitude); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "details": kind.String() + " triggered"})

	case "found_civilization":
		c, err := s.Sim.FoundCivilizationAt(req.X, req.Y)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "id": c.ID, "name": c.Name})

	case "solar_storm":
		s.Sim.TriggerSolarStorm()
		writeJSON(w, map[string]any{"success": true, "details": "solar storm started"})

	case "reversal":
		s.Sim.TriggerReversal()
		writeJSON(w, map[string]any{"success": true, "details": "magnetic reversal started"})

	default:
		http.Error(w, "unknown intervention type "+strconv.Quote(req.Type), http.StatusBadRequest)
	}
}

// writeError maps simulation errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrOutOfBounds), errors.Is(err, engine.ErrUnknownKind):
		code = http.StatusBadRequest
	case errors.Is(err, engine.ErrOccupied):
		code = http.StatusConflict
	case errors.Is(err, engine.ErrNotLand), errors.Is(err, engine.ErrNotWater), errors.Is(err, engine.ErrUninhabitable):
		code = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), code)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
