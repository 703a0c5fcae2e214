// Package api exposes notegen over HTTP: health, processing statistics,
// recent operations, prometheus metrics and a single-item trigger.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/notegen/core"
	"github.com/poiesic/notegen/ledger"
	"github.com/poiesic/notegen/operation"
	"github.com/poiesic/notegen/queue"
	"github.com/poiesic/notegen/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsSource provides ledger statistics.
type StatsSource interface {
	Summary() ledger.Summary
	Stats() []core.ProcessingStatsSample
}

// OperationSource provides operation history and metrics.
type OperationSource interface {
	Recent(n int) []core.OperationStatus
	Status(id string) (core.OperationStatus, bool)
	Metrics() map[core.OperationType]operation.MetricEntry
}

// Trigger queues processing for one item.
type Trigger interface {
	TriggerItem(ctx context.Context, id string, force bool) error
}

// Deps are the collaborators the handlers use.
type Deps struct {
	Ready      func() bool
	Stats      StatsSource
	Operations OperationSource
	Trigger    Trigger
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

const defaultRecent = 50

type handlers struct {
	Deps
	logger *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	h := &handlers{Deps: d, logger: d.Logger}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "api")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", h.health)
	r.Get("/stats", h.stats)
	r.Route("/operations", func(r chi.Router) {
		r.Get("/", h.operations)
		r.Get("/{id}", h.operation)
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	// item IDs are paths, so the trigger takes the rest of the URL
	r.Post("/items/*", h.process)
	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil && !h.Ready() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	Summary ledger.Summary                               `json:"summary"`
	Samples []core.ProcessingStatsSample                 `json:"samples"`
	Metrics map[core.OperationType]operation.MetricEntry `json:"metrics,omitempty"`
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	if h.Stats == nil {
		respondError(w, http.StatusServiceUnavailable, "statistics unavailable")
		return
	}
	resp := statsResponse{Summary: h.Stats.Summary(), Samples: h.Stats.Stats()}
	if resp.Samples == nil {
		resp.Samples = []core.ProcessingStatsSample{}
	}
	if h.Operations != nil {
		resp.Metrics = h.Operations.Metrics()
	}
	respondJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	ID         string             `json:"id"`
	Type       core.OperationType `json:"type"`
	TargetID   string             `json:"targetId"`
	State      string             `json:"state"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
	Error      string             `json:"error,omitempty"`
	RetryOf    string             `json:"retryOf,omitempty"`
}

func toStatusResponse(s core.OperationStatus) statusResponse {
	resp := statusResponse{
		ID:        s.ID,
		Type:      s.Type,
		TargetID:  s.TargetID,
		State:     s.State.String(),
		StartedAt: s.StartedAt,
		Error:     s.Error,
		RetryOf:   s.RetryOf,
	}
	if !s.FinishedAt.IsZero() {
		finished := s.FinishedAt
		resp.FinishedAt = &finished
	}
	return resp
}

func (h *handlers) operations(w http.ResponseWriter, r *http.Request) {
	if h.Operations == nil {
		respondError(w, http.StatusServiceUnavailable, "operations unavailable")
		return
	}
	limit := defaultRecent
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	statuses := h.Operations.Recent(limit)
	out := make([]statusResponse, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, toStatusResponse(s))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *handlers) operation(w http.ResponseWriter, r *http.Request) {
	if h.Operations == nil {
		respondError(w, http.StatusServiceUnavailable, "operations unavailable")
		return
	}
	status, ok := h.Operations.Status(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "operation not found")
		return
	}
	respondJSON(w, http.StatusOK, toStatusResponse(status))
}

func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	if h.Trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "processing unavailable")
		return
	}
	id := chi.URLParam(r, "*")
	const suffix = "/process"
	if len(id) <= len(suffix) || id[len(id)-len(suffix):] != suffix {
		respondError(w, http.StatusNotFound, "expected /items/{id}/process")
		return
	}
	id = id[:len(id)-len(suffix)]
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	err := h.Trigger.TriggerItem(r.Context(), id, force)
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "item": id})
	case errors.Is(err, ledger.ErrUpToDate):
		respondJSON(w, http.StatusOK, map[string]string{"status": "up_to_date", "item": id})
	case errors.Is(err, queue.ErrDuplicate):
		respondError(w, http.StatusConflict, "item is already queued")
	case errors.Is(err, vault.ErrNotFound):
		respondError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, vault.ErrInvalidPath):
		respondError(w, http.StatusBadRequest, "invalid item id")
	case errors.Is(err, queue.ErrDraining), errors.Is(err, queue.ErrReleased):
		respondError(w, http.StatusServiceUnavailable, "processing is shutting down")
	default:
		h.logger.Error("trigger failed", "item", id, "err", err)
		respondError(w, http.StatusInternalServerError, "trigger failed")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(start),
				"requestId", chimw.GetReqID(r.Context()))
		})
	}
}

// Serve runs the handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
