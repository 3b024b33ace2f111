// Package handler exposes operator endpoints for event administration.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/event"
	"gatepass/internal/platform/middleware"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
)

// Handler handles admin event endpoints.
type Handler struct {
	logger *slog.Logger
	events *event.Service
}

// New creates the event admin handler.
func New(events *event.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, events: events}
}

// Register mounts the admin event routes. The caller wraps the router in
// RequireAdminToken.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/events", h.handleCreate)
	r.Get("/admin/events/{eventID}", h.handleGet)
	r.Post("/admin/events/{eventID}/close", h.handleClose)
}

type createEventRequest struct {
	Name               string     `json:"name"`
	Mode               string     `json:"mode"`
	Capacity           int        `json:"capacity"`
	RequiredFields     []string   `json:"required_fields"`
	QualificationStart *time.Time `json:"qualification_start,omitempty"`
	QualificationEnd   *time.Time `json:"qualification_end,omitempty"`
}

type eventResponse struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Mode                  string     `json:"mode"`
	RequiresQualification bool       `json:"requires_qualification"`
	RegistrationClosedAt  *time.Time `json:"registration_closed_at,omitempty"`
	QualificationStart    *time.Time `json:"qualification_start,omitempty"`
	QualificationEnd      *time.Time `json:"qualification_end,omitempty"`
	Capacity              int        `json:"capacity"`
	RequiredFields        []string   `json:"required_fields"`
}

func toEventResponse(e *event.Event) eventResponse {
	return eventResponse{
		ID:                    e.ID.String(),
		Name:                  e.Name,
		Mode:                  e.Mode.String(),
		RequiresQualification: e.RequiresQualification,
		RegistrationClosedAt:  e.RegistrationClosedAt,
		QualificationStart:    e.QualificationStart,
		QualificationEnd:      e.QualificationEnd,
		Capacity:              e.Capacity,
		RequiredFields:        e.RequiredFields,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	e, err := h.events.Create(ctx, event.CreateParams{
		Name:               req.Name,
		Mode:               req.Mode,
		Capacity:           req.Capacity,
		RequiredFields:     req.RequiredFields,
		QualificationStart: req.QualificationStart,
		QualificationEnd:   req.QualificationEnd,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "event creation rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toEventResponse(e))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.events.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toEventResponse(e))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	e, err := h.events.Close(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "event close rejected",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", id.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toEventResponse(e))
}
