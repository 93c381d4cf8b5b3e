package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/previewline/internal/config"
	"github.com/gyaneshwarpardhi/previewline/internal/event"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/preview"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	mgr    *preview.Manager
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes. loader may be nil,
// in which case reload answers 501.
func New(mgr *preview.Manager, loader *config.Loader) http.Handler {
	h := &Handler{mgr: mgr, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.ingestBatch)
	h.mux.HandleFunc("POST /v1/recompute", h.recompute)
	h.mux.HandleFunc("GET /v1/nodes/{id}/requirement", h.requirement)
	h.mux.HandleFunc("GET /v1/instances", h.listInstances)
	h.mux.HandleFunc("POST /v1/flow/reload", h.reloadFlow)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// Apply validates cfg, rebuilds the canvas from its flow document and
// recomputes every node against it.
func Apply(ctx context.Context, mgr *preview.Manager, cfg *config.Config) (preview.BatchResult, error) {
	if err := config.Validate(cfg); err != nil {
		return preview.BatchResult{}, err
	}
	g, err := flow.Build(cfg)
	if err != nil {
		return preview.BatchResult{}, fmt.Errorf("build flow: %w", err)
	}
	mgr.SetConfig(cfg)
	mgr.SetCanvas(ctx, g)
	return mgr.Recompute(ctx, flow.State(cfg.Engine.DefaultState)), nil
}

// POST /v1/events: route one editor trigger synchronously.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	stamp(&ev, time.Now())

	res, err := h.mgr.Handle(r.Context(), ev)
	if err != nil {
		writeEventError(w, http.StatusBadRequest, err, ev)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/events/batch: route up to 100 triggers in order.
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var events []event.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(events), maxBatchSize))
		return
	}

	now := time.Now()
	out := make([]batchItem, 0, len(events))
	rejected := 0
	for _, ev := range events {
		stamp(&ev, now)
		res, err := h.mgr.Handle(r.Context(), ev)
		item := batchItem{EventID: ev.ID}
		if err != nil {
			item.Error = err.Error()
			rejected++
		} else {
			item.Result = &res
		}
		out = append(out, item)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":   uuid.NewString(),
		"total":    len(events),
		"rejected": rejected,
		"items":    out,
	})
}

type batchItem struct {
	EventID string               `json:"event_id"`
	Result  *preview.BatchResult `json:"result,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// POST /v1/recompute?state=...: process every node on the canvas.
func (h *Handler) recompute(w http.ResponseWriter, r *http.Request) {
	res := h.mgr.Recompute(r.Context(), flow.State(r.URL.Query().Get("state")))
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/nodes/{id}/requirement: dry-run verdict for one node.
func (h *Handler) requirement(w http.ResponseWriter, r *http.Request) {
	v := h.mgr.Check(r.PathValue("id"), flow.State(r.URL.Query().Get("state")))
	writeJSON(w, http.StatusOK, v)
}

// GET /v1/instances?node=...: registered preview instances.
func (h *Handler) listInstances(w http.ResponseWriter, r *http.Request) {
	var list []preview.Instance
	if id := r.URL.Query().Get("node"); id != "" {
		list = h.mgr.Registry().ForNode(id)
	} else {
		list = h.mgr.Registry().All()
	}
	if list == nil {
		list = []preview.Instance{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(list),
		"instances": list,
	})
}

// POST /v1/flow/reload: re-read the flow document from disk.
func (h *Handler) reloadFlow(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotImplemented, "no config file loaded")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res, err := Apply(r.Context(), h.mgr, cfg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"nodes":    len(cfg.Nodes),
		"failed":   len(res.Failed()),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 until the layout engine reports ready.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if !h.mgr.IsLayoutEngineReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "layout_not_ready",
			"instances": h.mgr.Registry().Len(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"instances": h.mgr.Registry().Len(),
	})
}

func stamp(ev *event.Event, now time.Time) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
