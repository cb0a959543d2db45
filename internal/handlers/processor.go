package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/telhawk-systems/telhawk-intel/common/httputil"
	"github.com/telhawk-systems/telhawk-intel/internal/dlq"
	"github.com/telhawk-systems/telhawk-intel/internal/model"
	"github.com/telhawk-systems/telhawk-intel/internal/pipeline"
	"github.com/telhawk-systems/telhawk-intel/internal/service"
	"github.com/telhawk-systems/telhawk-intel/internal/source"
	"github.com/telhawk-systems/telhawk-intel/internal/sourcestats"
)

const maxBatchBytes = 32 << 20

// Checker reports whether a dependency is ready to accept work.
type Checker func(ctx context.Context) error

// DLQ is the read side of the dead-letter queue.
type DLQ interface {
	List(ctx context.Context, limit int) ([]dlq.RejectedBatch, error)
	Stats() map[string]any
}

// SourceStats is the read side of per-source intake statistics.
type SourceStats interface {
	Get(ctx context.Context, source string) (*sourcestats.Stats, error)
	ListActive(ctx context.Context, since time.Duration) ([]string, error)
}

// ProcessorHandler serves health, stats and dry-run routing endpoints.
type ProcessorHandler struct {
	processor *service.Processor
	dryRun    *pipeline.Pipeline
	dlq       DLQ
	sources   SourceStats
	checks    map[string]Checker
}

// NewProcessorHandler constructs a new handler. dryRun should be a pipeline
// without a sink; dlqReader and checks may be nil.
func NewProcessorHandler(p *service.Processor, dryRun *pipeline.Pipeline, dlqReader DLQ, checks map[string]Checker) *ProcessorHandler {
	return &ProcessorHandler{processor: p, dryRun: dryRun, dlq: dlqReader, checks: checks}
}

// WithSources enables the source statistics endpoint.
func (h *ProcessorHandler) WithSources(s SourceStats) *ProcessorHandler {
	h.sources = s
	return h
}

// RouteResponse lists the points a batch would produce.
type RouteResponse struct {
	Records int            `json:"records"`
	Points  []*model.Point `json:"points"`
}

// Route handles POST /api/v1/route: routes a batch without writing it.
func (h *ProcessorHandler) Route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	if h.dryRun == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "not_configured", "routing is not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	batch, err := source.DecodeBatch(body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "malformed_batch", err.Error())
		return
	}

	points, err := h.dryRun.Route(r.Context(), batch)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "routing_failed", err.Error())
		return
	}
	if points == nil {
		points = []*model.Point{}
	}
	httputil.WriteJSON(w, http.StatusOK, RouteResponse{Records: len(batch), Points: points})
}

// StatsResponse combines processor and dead-letter counters.
type StatsResponse struct {
	Processor service.Stats  `json:"processor"`
	DLQ       map[string]any `json:"dlq,omitempty"`
}

// Stats handles GET /api/v1/stats.
func (h *ProcessorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	resp := StatsResponse{Processor: h.processor.Health()}
	if h.dlq != nil {
		resp.DLQ = h.dlq.Stats()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Rejected handles GET /api/v1/dlq?limit=N.
func (h *ProcessorHandler) Rejected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if h.dlq == nil {
		httputil.WriteError(w, http.StatusNotFound, "dlq_disabled", "dead letter queue is not enabled")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.dlq.List(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "dlq_unavailable", err.Error())
		return
	}
	if entries == nil {
		entries = []dlq.RejectedBatch{}
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// Sources handles GET /api/v1/sources. With ?source=NAME it returns that
// source's counters, otherwise the sources seen within ?since (default 24h).
func (h *ProcessorHandler) Sources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if h.sources == nil {
		httputil.WriteError(w, http.StatusNotFound, "source_stats_disabled", "source statistics are not enabled")
		return
	}

	q := r.URL.Query()
	if name := q.Get("source"); name != "" {
		stats, err := h.sources.Get(r.Context(), name)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "source_stats_unavailable", err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, stats)
		return
	}

	since := 24 * time.Hour
	if raw := q.Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_since", "since must be a positive duration such as 1h")
			return
		}
		since = d
	}

	active, err := h.sources.ListActive(r.Context(), since)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "source_stats_unavailable", err.Error())
		return
	}
	if active == nil {
		active = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sources": active})
}

// Health handles GET /healthz.
func (h *ProcessorHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.processor.Health())
}

// Ready handles GET /readyz by running every dependency check.
func (h *ProcessorHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": results})
}
