package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/disktools/diskwatch/internal/report"
)

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status  string     `json:"status"`
	Version string     `json:"version"`
	LastRun *time.Time `json:"last_run,omitempty"`
	Devices int        `json:"devices"`
}

// Health handles GET /health. The service is degraded until the first
// monitoring run has published a report.
func (s *Service) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
	}

	if latest := s.Latest(); latest != nil {
		at := latest.GeneratedAt
		resp.LastRun = &at
		resp.Devices = len(latest.Devices)
	} else {
		resp.Status = "degraded"
	}

	if resp.Status == "degraded" {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReportHTML handles GET /report, serving the rendered HTML report.
func (s *Service) ReportHTML(w http.ResponseWriter, _ *http.Request) {
	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusServiceUnavailable, "No report available yet")
		return
	}

	html, err := report.Render(latest, s.cfg.Version)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render report")
		writeError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(html); err != nil {
		log.Error().Err(err).Msg("Failed to write report response")
	}
}

// ReportJSON handles GET /api/v1/report.
func (s *Service) ReportJSON(w http.ResponseWriter, _ *http.Request) {
	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusServiceUnavailable, "No report available yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

// Devices handles GET /api/v1/devices.
func (s *Service) Devices(w http.ResponseWriter, _ *http.Request) {
	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusServiceUnavailable, "No report available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": latest.Devices,
		"count":   len(latest.Devices),
	})
}

// Device handles GET /api/v1/devices/{device}. The path value is the
// device name without the /dev/ prefix, or a drive id.
func (s *Service) Device(w http.ResponseWriter, r *http.Request) {
	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusServiceUnavailable, "No report available yet")
		return
	}

	name := chi.URLParam(r, "device")
	for i := range latest.Devices {
		d := &latest.Devices[i]
		if d.Identifier() == name || strings.TrimPrefix(d.Device, "/dev/") == name {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Device not found: "+name)
}

// Breaches handles GET /api/v1/breaches.
func (s *Service) Breaches(w http.ResponseWriter, _ *http.Request) {
	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusServiceUnavailable, "No report available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"breaches": latest.Breaches,
		"count":    len(latest.Breaches),
		"critical": len(latest.Criticals()),
	})
}
