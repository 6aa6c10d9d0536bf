// Package api provides the HTTP API for observing the economy.
// GET endpoints are public and read-only.
// POST endpoints require a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/talgya/firmsim/internal/engine"
	"github.com/talgya/firmsim/internal/learn"
	"github.com/talgya/firmsim/internal/market"
	"github.com/talgya/firmsim/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	srv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	snapshotLimiter := NewRateLimiter(6, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/firms", s.handleFirms)
	mux.HandleFunc("/api/v1/firm/", s.handleFirmDetail)
	mux.HandleFunc("/api/v1/workers", s.handleWorkers)
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(RateLimitMiddleware(snapshotLimiter, s.handleSnapshot)))
	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no FIRMSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	day := s.Sim.LastDay()
	status := map[string]any{
		"name":     "firmsim",
		"day":      day,
		"sim_time": engine.SimTime(day),
		"firms":    len(s.Sim.Firms),
		"workers":  len(s.Sim.Workers),
		"stats":    s.Sim.Stats(),
	}
	if s.Eng != nil {
		status["running"] = s.Eng.Running()
	}
	writeJSON(w, status)
}

func (s *Server) handleFirms(w http.ResponseWriter, r *http.Request) {
	reports := s.Sim.Reports()
	if len(reports) == 0 {
		// No day has run yet; report the current records.
		for _, f := range s.Sim.Firms {
			reports = append(reports, engine.FirmReport{
				ID:        f.ID(),
				Kind:      f.Kind(),
				Headcount: f.Headcount(),
				State:     f.Snapshot(),
			})
		}
	}
	writeJSON(w, reports)
}

func (s *Server) handleFirmDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/firm/")
	f, ok := s.Sim.Firm(id)
	if !ok {
		http.Error(w, "firm not found", http.StatusNotFound)
		return
	}

	workers := make([]string, 0, f.Headcount())
	for _, wk := range f.Workers() {
		workers = append(workers, wk.ID())
	}
	var policy []learn.Entry
	if p, ok := s.Sim.Policies[id]; ok {
		policy = p.Table()
	}

	writeJSON(w, map[string]any{
		"id":            f.ID(),
		"kind":          f.Kind(),
		"params":        f.Params(),
		"state":         f.Snapshot(),
		"capacity":      f.ProductionCapacity(),
		"labor":         f.Labor(),
		"workers":       workers,
		"policy":        policy,
		"uses_material": f.UsesMaterials(),
	})
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out := make([]market.WorkerStatus, 0, len(s.Sim.Workers))
	for _, wk := range s.Sim.Workers {
		st, err := wk.Status(ctx)
		if err != nil {
			http.Error(w, "worker status unavailable", http.StatusServiceUnavailable)
			return
		}
		out = append(out, st)
	}
	writeJSON(w, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveSimulation(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"day":     s.Sim.LastDay(),
		"message": "snapshot saved",
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
