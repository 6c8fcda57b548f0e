// Package api serves a read-only view of the running economy over HTTP:
// cycle status, pop reports, recent events and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/engine"
)

// ReportStore reads stored cycle reports.
type ReportStore interface {
	RecentReports(ctx context.Context, pop agents.PopID, limit int) ([]agents.CycleReport, error)
}

// Server serves the economy state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Reports  ReportStore         // nil disables the history endpoint
	Gatherer prometheus.Gatherer // nil disables /metrics
	Addr     string

	// Requests per minute per client on the history endpoint.
	HistoryRate int
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	rate := s.HistoryRate
	if rate <= 0 {
		rate = 60
	}
	historyLimiter := NewRateLimiter(rate, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/pops", s.handlePops)
	mux.HandleFunc("GET /api/v1/pop/{id}", s.handlePop)
	mux.HandleFunc("GET /api/v1/pop/{id}/history", RateLimitMiddleware(historyLimiter, s.handleHistory))
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "metrics", s.Gatherer != nil, "history", s.Reports != nil)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot(0)
	status := map[string]any{
		"name":              "mini-economy",
		"cycle":             snap.Cycle,
		"time":              snap.Time,
		"season":            snap.Season,
		"pops":              snap.Stats.Pops,
		"members":           snap.Stats.Members,
		"avg_health":        snap.Stats.AvgHealth,
		"total_value":       snap.Stats.TotalValue,
		"supplied":          snap.Stats.Supplied,
		"products_residual": snap.Stats.ProductsResidual,
		"wants_residual":    snap.Stats.WantsResidual,
		"catalog_digest":    s.Sim.Catalog.Digest,
	}
	writeJSON(w, status)
}

func (s *Server) handlePops(w http.ResponseWriter, r *http.Request) {
	type popSummary struct {
		ID       agents.PopID `json:"id"`
		Name     string       `json:"name"`
		FullTier int          `json:"full_tier"`
		Health   float64      `json:"health"`
		Value    float64      `json:"value"`
		Residual float64      `json:"residual"`
	}
	snap := s.Sim.Snapshot(0)
	out := make([]popSummary, 0, len(snap.Reports))
	for _, rep := range snap.Reports {
		out = append(out, popSummary{
			ID:       rep.Pop,
			Name:     rep.PopName,
			FullTier: rep.FullTier,
			Health:   rep.Health,
			Value:    rep.Value,
			Residual: rep.Residual.ProductTotal() + rep.Residual.WantTotal(),
		})
	}
	writeJSON(w, out)
}

func popID(r *http.Request) (agents.PopID, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return agents.PopID(id), true
}

func (s *Server) handlePop(w http.ResponseWriter, r *http.Request) {
	id, ok := popID(r)
	if !ok {
		http.Error(w, "invalid pop id", http.StatusBadRequest)
		return
	}
	for _, rep := range s.Sim.Snapshot(0).Reports {
		if rep.Pop == id {
			writeJSON(w, rep)
			return
		}
	}
	http.Error(w, "pop not found", http.StatusNotFound)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Reports == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	id, ok := popID(r)
	if !ok {
		http.Error(w, "invalid pop id", http.StatusBadRequest)
		return
	}
	reports, err := s.Reports.RecentReports(r.Context(), id, queryLimit(r, 20, 200))
	if err != nil {
		slog.Error("history query failed", "pop", id, "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reports)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.Sim.Snapshot(queryLimit(r, 50, 500)).Events
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if strings.EqualFold(e.Category, category) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func queryLimit(r *http.Request, def, max int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
