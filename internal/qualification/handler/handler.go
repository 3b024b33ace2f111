// Package handler exposes qualification resolution and qualified-list
// administration over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/platform/middleware"
	"gatepass/internal/qualification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
)

// Handler handles qualification endpoints.
type Handler struct {
	logger  *slog.Logger
	service *qualification.Service
}

// New creates the qualification handler.
func New(service *qualification.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// RegisterPublic mounts the registrant-facing resolution route.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/events/{eventID}/qualification", h.handleResolve)
}

// RegisterAdmin mounts the qualified-list management routes. The caller wraps
// the router in RequireAdminToken.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/events/{eventID}/qualified", h.handleImport)
	r.Get("/admin/events/{eventID}/qualified", h.handleList)
	r.Delete("/admin/events/{eventID}/qualified/{registrantID}", h.handleDelete)
}

type resolveRequest struct {
	Email         string `json:"email,omitempty"`
	DistributorID string `json:"distributor_id,omitempty"`
}

// profileResponse never carries the raw address for a masked profile; the
// email field holds whatever Profile.PublicEmail allows.
type profileResponse struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Email               string `json:"email"`
	EmailMasked         bool   `json:"email_masked"`
	DistributorID       string `json:"distributor_id,omitempty"`
	GuestAllowance      int    `json:"guest_allowance"`
	VerifiedByDirectory bool   `json:"verified_by_directory"`
}

func toProfileResponse(p *qualification.Profile) profileResponse {
	return profileResponse{
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		Email:               p.PublicEmail(),
		EmailMasked:         p.EmailMasked,
		DistributorID:       p.DistributorID,
		GuestAllowance:      p.GuestAllowance,
		VerifiedByDirectory: p.VerifiedByDirectory,
	}
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	profile, err := h.service.Resolve(ctx, eventID, qualification.IdentityClaim{
		Email:         req.Email,
		DistributorID: req.DistributorID,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "qualification resolution rejected",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

type importRequest struct {
	Entries []importEntry `json:"entries"`
}

type importEntry struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	DistributorID  string `json:"distributor_id,omitempty"`
	GuestAllowance int    `json:"guest_allowance,omitempty"`
}

type importResponse struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	entries := make([]qualification.ImportEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, qualification.ImportEntry{
			FirstName:      e.FirstName,
			LastName:       e.LastName,
			Email:          e.Email,
			DistributorID:  e.DistributorID,
			GuestAllowance: e.GuestAllowance,
		})
	}

	result, err := h.service.Import(ctx, eventID, entries)
	if err != nil {
		h.logger.WarnContext(ctx, "qualified list import rejected",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, importResponse{
		Imported: result.Imported,
		Skipped:  result.Skipped,
	})
}

type qualifiedResponse struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	DistributorID  string    `json:"distributor_id,omitempty"`
	GuestAllowance int       `json:"guest_allowance"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.service.List(ctx, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]qualifiedResponse, 0, len(list))
	for _, q := range list {
		out = append(out, qualifiedResponse{
			ID:             q.ID.String(),
			FirstName:      q.FirstName,
			LastName:       q.LastName,
			Email:          q.Email,
			DistributorID:  q.DistributorID,
			GuestAllowance: q.GuestAllowance,
			CreatedAt:      q.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"qualified": out})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRegistrantID(chi.URLParam(r, "registrantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Remove(ctx, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
