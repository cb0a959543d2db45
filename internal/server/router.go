package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-intel/common/middleware"
	"github.com/telhawk-systems/telhawk-intel/internal/handlers"
)

// NewRouter wires HTTP routes for the engine's operational listener.
func NewRouter(h *handlers.ProcessorHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/route", h.Route)
	mux.HandleFunc("/api/v1/stats", h.Stats)
	mux.HandleFunc("/api/v1/dlq", h.Rejected)
	mux.HandleFunc("/api/v1/sources", h.Sources)
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.Handle("/metrics", promhttp.Handler())
	return middleware.RequestID(middleware.AccessLog(logger)(mux))
}
