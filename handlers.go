package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	scalargo "github.com/bdpiprava/scalar-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"offer-hunter/pkg/api"
	"offer-hunter/pkg/cache"
	"offer-hunter/pkg/models"
)

type offerService interface {
	Current(ctx context.Context) models.AggregatedResult
	History(limit int) ([]cache.HistoryEntry, error)
}

type server struct {
	offers       offerService
	query        string
	historyLimit int
	docsDir      string
	metrics      http.Handler
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.MethodNotAllowed)

	r.Get("/", s.pageHandler)
	r.Get("/api/offers", s.offersHandler)
	r.Get("/api/offers/history", s.historyHandler)
	r.Get("/docs", s.docsHandler)
	r.Get("/healthz", healthHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// offersHandler always answers 200; source failures are part of the body.
func (s *server) offersHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.offers.Current(r.Context()))
}

func (s *server) historyHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.WriteBadRequest(w, fmt.Sprintf("Invalid limit: %q. Must be a positive integer.", raw), r.URL.Path)
			return
		}
		limit = min(n, s.historyLimit)
	}

	entries, err := s.offers.History(limit)
	if err != nil {
		api.WriteInternalServerError(w, fmt.Errorf("failed to read history: %w", err), r.URL.Path)
		return
	}
	api.WriteJSON(w, http.StatusOK, entries)
}

func (s *server) docsHandler(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir(s.docsDir),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Offer Hunter API"),
		),
	)
	if err != nil {
		api.WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
