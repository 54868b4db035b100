// Package api provides the HTTP surface for serve mode: the rendered
// HTML report plus a small JSON API over the latest monitoring run.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
)

// Service holds the latest report for the HTTP handlers. Writes come
// from the refresh loop; reads come from request goroutines.
type Service struct {
	cfg *config.Settings

	mu     sync.RWMutex
	latest *models.Report
}

// NewService creates a Service with no report yet; endpoints answer 503
// until the first run completes.
func NewService(cfg *config.Settings) *Service {
	return &Service{cfg: cfg}
}

// SetReport publishes a finished run to the handlers.
func (s *Service) SetReport(r *models.Report) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
}

// Latest returns the most recent report, or nil before the first run.
func (s *Service) Latest() *models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Router builds the chi router with the standard middleware stack.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.Health)
	r.Get("/", s.ReportHTML)
	r.Get("/report", s.ReportHTML)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", s.ReportJSON)
		r.Get("/devices", s.Devices)
		r.Get("/devices/{device}", s.Device)
		r.Get("/breaches", s.Breaches)
	})

	return r
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
