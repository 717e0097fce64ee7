// Package handler exposes the approval engine as a JSON HTTP API.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
	"github.com/atlasops/be-ops-approvals/internal/logger"
	"github.com/atlasops/be-ops-approvals/internal/middleware"
	"github.com/atlasops/be-ops-approvals/internal/service"
)

// HTTPHandler handles HTTP requests for the approval API.
type HTTPHandler struct {
	service       *service.ApprovalService
	validate      *validator.Validate
	log           *logger.Logger
	defaultLevels int
}

// NewHTTPHandler creates a new HTTP handler. defaultLevels applies when a
// submission does not name a level count.
func NewHTTPHandler(svc *service.ApprovalService, log *logger.Logger, defaultLevels int) *HTTPHandler {
	return &HTTPHandler{
		service:       svc,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		log:           log,
		defaultLevels: defaultLevels,
	}
}

// Register mounts the approval routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/approvals/pending", h.ListPending)
	mux.HandleFunc("POST /api/v1/approvals/{id}/process", h.ProcessApproval)
	mux.HandleFunc("GET /api/v1/approvals/history", h.History)
	mux.HandleFunc("GET /api/v1/approvals/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/approvals/submit", h.Submit)
}

// ── Request shapes ────────────────────────────────────────────────────────────

// SubmitRequest starts an approval cycle for an entity. RequiredLevels is
// optional; the configured default applies when it is absent.
type SubmitRequest struct {
	EntityType     string `json:"entity_type" validate:"required,oneof=task project task_transfer"`
	EntityID       string `json:"entity_id" validate:"required"`
	RequiredLevels *int   `json:"required_levels" validate:"omitempty,gte=0,lte=10"`
}

// ProcessRequest carries an approver's decision on a record.
type ProcessRequest struct {
	Action     string `json:"action" validate:"required,oneof=approve reject delegate"`
	Comments   string `json:"comments"`
	DelegateTo string `json:"delegate_to" validate:"required_if=Action delegate"`
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// ListPending returns the caller's pending approval queue.
func (h *HTTPHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFrom(r.Context())

	pending, err := h.service.ListPending(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if pending == nil {
		pending = []*domain.PendingApproval{}
	}

	h.respondData(w, http.StatusOK, pending)
}

// ProcessApproval applies approve / reject / delegate to an approval record.
func (h *HTTPHandler) ProcessApproval(w http.ResponseWriter, r *http.Request) {
	recordID := r.PathValue("id")
	userID := middleware.UserIDFrom(r.Context())

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", err.Error()))
		return
	}

	action, err := domain.ParseAction(req.Action)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.service.Decide(r.Context(), recordID, userID, action, req.Comments, req.DelegateTo); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondMessage(w, http.StatusOK, "decision recorded")
}

// History returns all approval cycles for an entity, newest first.
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	entityType, err := domain.ParseEntityType(r.URL.Query().Get("entity_type"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	entityID := r.URL.Query().Get("entity_id")
	if entityID == "" {
		h.respondError(w, r, errors.InvalidInput("entity_id", "is required"))
		return
	}

	history, err := h.service.History(r.Context(), entityType, entityID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if history == nil {
		history = []*domain.WorkflowInstance{}
	}

	h.respondData(w, http.StatusOK, history)
}

// Stats returns the caller's aggregate approval counts.
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFrom(r.Context())

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondData(w, http.StatusOK, stats)
}

// Submit starts a new approval workflow for an entity.
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFrom(r.Context())

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, r, errors.InvalidInput("body", err.Error()))
		return
	}

	entityType, err := domain.ParseEntityType(req.EntityType)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	levels := h.defaultLevels
	if req.RequiredLevels != nil {
		levels = *req.RequiredLevels
	}

	wf, err := h.service.Submit(r.Context(), entityType, req.EntityID, userID, levels)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondData(w, http.StatusCreated, wf)
}

// ── Response helpers ──────────────────────────────────────────────────────────

func (h *HTTPHandler) respondData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func (h *HTTPHandler) respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": message,
	})
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).
			Str("request_id", middleware.RequestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	message := err.Error()
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		// Internal causes stay out of responses.
		message = appErr.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
