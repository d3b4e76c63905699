// Package api provides the scanner's HTTP endpoints: scan requests,
// Prometheus metrics, and a health check.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/uptrace/bunrouter"

	"zcash-view-scanner/internal/observability"
	"zcash-view-scanner/internal/scan"
)

const (
	// scanPath is the HTTP path for submitting scan requests
	scanPath = "/scan"
	// metricsPath is the HTTP path for Prometheus metrics endpoint
	metricsPath = "/metrics"
	// healthPath is the HTTP path for health check endpoint
	healthPath = "/health"
)

type (
	// Opts contains configuration options for creating a new router.
	Opts struct {
		Orchestrator *scan.Orchestrator
		Logg         *slog.Logger
	}

	errorResponse struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}

	scanResponse struct {
		Success bool `json:"success"`
		*scan.Result
	}
)

// New creates a new HTTP router with all API endpoints registered.
func New(o Opts) *bunrouter.Router {
	router := bunrouter.New()
	started := time.Now()

	router.POST(scanPath, scanHandler(o.Orchestrator, o.Logg))
	router.GET(metricsPath, metricsHandler())
	router.GET(healthPath, healthHandler(started))

	return router
}

// scanHandler validates and runs one scan request. Validation failures map
// to 400 with a reason; per-block failures are reported inside a 200 body.
func scanHandler(orc *scan.Orchestrator, logg *slog.Logger) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		var sr scan.Request
		if err := json.NewDecoder(req.Body).Decode(&sr); err != nil {
			return writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		}

		res, err := orc.Scan(req.Context(), sr)
		if err != nil {
			var verr *scan.ValidationError
			if errors.As(err, &verr) {
				return writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Reason})
			}
			logg.Error("scan failed", "error", err)
			return writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}

		return writeJSON(w, http.StatusOK, scanResponse{Success: true, Result: res})
	}
}

// metricsHandler returns a handler that serves Prometheus metrics.
func metricsHandler() bunrouter.HandlerFunc {
	h := observability.Handler()
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		h.ServeHTTP(w, req.Request)
		return nil
	}
}

// healthHandler returns a handler for health checks.
func healthHandler(started time.Time) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, _ bunrouter.Request) error {
		return writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
