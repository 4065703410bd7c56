package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearline-systems/clearline-engine/common/logging"
	"github.com/clearline-systems/clearline-engine/engine/internal/model"
	"github.com/clearline-systems/clearline-engine/engine/internal/ratelimit"
	"github.com/clearline-systems/clearline-engine/engine/internal/repository"
	"github.com/clearline-systems/clearline-engine/engine/internal/schema"
	"github.com/clearline-systems/clearline-engine/engine/internal/service"
)

// maxBatchBody bounds a single submission. Batches are bounded by contract;
// anything larger is a producer bug, not a bigger batch.
const maxBatchBody = 32 << 20

type Handler struct {
	service   *service.Service
	registry  *schema.Registry
	repo      repository.Repository
	limiter   ratelimit.RateLimiter
	logger    *logging.Logger
	startedAt time.Time
}

func New(svc *service.Service, registry *schema.Registry, repo repository.Repository, limiter ratelimit.RateLimiter, logger *logging.Logger) *Handler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	return &Handler{
		service:   svc,
		registry:  registry,
		repo:      repo,
		limiter:   limiter,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// SubmitBatch handles POST /api/v1/batches.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var envelope model.BatchEnvelope
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBody)
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.limiter.Allow(envelope.SourceID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded for source")
		return
	}

	result, err := h.service.ProcessBatch(r.Context(), &envelope)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrMalformedEnvelope):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, schema.ErrUnknownSchema):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, service.ErrDuplicateBatch):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "batch processing failed",
				logging.BatchID(envelope.BatchID), logging.Error(err))
			writeError(w, http.StatusInternalServerError, "batch processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetBatchResult handles GET /api/v1/batches/{batchID}.
func (h *Handler) GetBatchResult(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusNotImplemented, "result store not configured")
		return
	}
	batchID := chi.URLParam(r, "batchID")
	result, err := h.repo.GetBatchResult(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, repository.ErrResultNotFound) {
			writeError(w, http.StatusNotFound, "batch result not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to load batch result",
			logging.BatchID(batchID), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load batch result")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListBatchResults handles GET /api/v1/batches.
func (h *Handler) ListBatchResults(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusNotImplemented, "result store not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	results, err := h.repo.ListBatchResults(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list batch results", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list batch results")
		return
	}
	if results == nil {
		results = []*model.BatchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ListSchemas handles GET /api/v1/schemas.
func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	kinds := h.registry.Kinds()
	out := make([]map[string]any, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, map[string]any{
			"kind":     kind,
			"versions": h.registry.Versions(kind),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": out})
}

// GetSchema handles GET /api/v1/schemas/{kind}, with an optional ?version=N.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid version")
			return
		}
		version = n
	}
	def, err := h.registry.Resolve(kind, version)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz. The engine is ready once at least one schema
// is loaded, since without schemas every batch would be rejected.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if len(h.registry.Kinds()) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no schemas loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"schema_kinds":   len(h.registry.Kinds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
