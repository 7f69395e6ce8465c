package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"student-deals-admin-api/internal/cache"
	"student-deals-admin-api/internal/features"
	"student-deals-admin-api/internal/models"
	"student-deals-admin-api/internal/service"
	"student-deals-admin-api/internal/validation"
)

// Handler provides HTTP handlers for the admin API.
type Handler struct {
	service    *service.Service
	statsCache *cache.StatsCache
	flags      *features.Manager
}

// Options holds optional collaborators for a handler.
type Options struct {
	// StatsCache, when set, serves dashboard reads from cache before
	// recomputing. Gated by the cache_enabled feature flag when Flags is set.
	StatsCache *cache.StatsCache
	Flags      *features.Manager
}

// NewHandler creates a new handler instance without caching.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, Options{})
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts Options) *Handler {
	return &Handler{
		service:    svc,
		statsCache: opts.StatsCache,
		flags:      opts.Flags,
	}
}

// GetDashboardStats handles GET /admin/stats
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	useCache := h.statsCache != nil &&
		(h.flags == nil || h.flags.IsEnabled(features.FeatureCacheEnabled))

	if useCache {
		if stats, ok := h.statsCache.Get(ctx); ok {
			h.respondSuccess(w, http.StatusOK, stats)
			return
		}
	}

	stats, err := h.service.ComputeDashboardStats(ctx)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if useCache {
		// A failed cache write only costs the next request a recomputation.
		_ = h.statsCache.Set(ctx, stats)
	}

	h.respondSuccess(w, http.StatusOK, stats)
}

// GetStudentAdminStats handles GET /admin/students/{student_id}/stats
func (h *Handler) GetStudentAdminStats(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "student_id")

	result, err := h.service.GetStudentAdminStats(r.Context(), studentID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondSuccess(w, http.StatusOK, result)
}

// respondServiceError maps service errors onto the uniform error envelope.
// Everything not recognized is a 500 with the service's opaque message; no
// partial data and no stack traces ever reach the caller.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var vErr *validation.ValidationError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrStudentNotFound):
		status = http.StatusNotFound
	}

	h.respondJSON(w, status, models.ErrorResponse{Success: false, Error: err.Error()})
}

// respondSuccess sends a success envelope with the given status code.
func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	h.respondJSON(w, status, models.SuccessResponse{Success: true, Data: data})
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
