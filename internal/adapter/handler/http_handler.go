package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	slogctx "github.com/veqryn/slog-context"

	"github.com/rl1809/velocity/internal/core/domain"
	"github.com/rl1809/velocity/internal/core/service"
	"github.com/rl1809/velocity/internal/port"
)

type HTTPHandler struct {
	owners port.OwnerRepository
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(owners port.OwnerRepository) *HTTPHandler {
	return &HTTPHandler{owners: owners}
}

// Routes mounts the owner API on a chi router.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Route("/owner", func(r chi.Router) {
		r.Put("/", h.UpsertOwner)
		r.Get("/", h.GetOwners)
		r.Get("/{id}", h.GetOwnerByID)
	})

	return r
}

// UpsertOwner handles PUT /owner.
func (h *HTTPHandler) UpsertOwner(w http.ResponseWriter, r *http.Request) {
	var owner domain.Owner
	if err := json.NewDecoder(r.Body).Decode(&owner); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	if err := validateOwner(owner); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	stored, err := h.owners.UpsertOwner(r.Context(), owner)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: errorMessage(err)})
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

// GetOwnerByID handles GET /owner/{id}. A missing owner is a 200 with a null body.
func (h *HTTPHandler) GetOwnerByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	owner, ok := h.owners.GetOwnerByID(r.Context(), id)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	writeJSON(w, http.StatusOK, owner)
}

// GetOwners handles GET /owner with an optional companyId query parameter.
func (h *HTTPHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	companyID := uuid.Nil
	if raw := r.URL.Query().Get("companyId"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid companyId"})
			return
		}
		companyID = parsed
	}

	if companyID == uuid.Nil {
		writeJSON(w, http.StatusOK, h.owners.GetAllOwners(r.Context()))
		return
	}

	writeJSON(w, http.StatusOK, h.owners.GetOwnersByCompany(r.Context(), companyID))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorMessage keeps the overflow message stable regardless of how the ledger
// wrapped it.
func errorMessage(err error) string {
	if errors.Is(err, service.ErrPercentageOverflow) {
		return service.PercentageOverflowMsg
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := slogctx.Append(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		slogctx.Info(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}
