// Package handler exposes redirect token issuance and consumption over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/platform/middleware"
	"gatepass/internal/qualification"
	"gatepass/internal/redirecttoken"
	"gatepass/internal/verification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
)

// Handler handles redirect token endpoints. Issuance is gated on a completed
// code validation in the same request, so the token can never outrun
// verification.
type Handler struct {
	logger       *slog.Logger
	verification *verification.Service
	tokens       *redirecttoken.Service
}

// New creates the redirect token handler.
func New(v *verification.Service, t *redirecttoken.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, verification: v, tokens: t}
}

// Register mounts the public token routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{eventID}/redirect-tokens", h.handleIssue)
	r.Post("/redirect-tokens/consume", h.handleConsume)
}

type issueRequest struct {
	Email        string `json:"email,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	Code         string `json:"code"`
}

type issueResponse struct {
	Token string `json:"token"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	profile, err := h.verification.Validate(ctx, eventID,
		verification.IdentityRef{Email: req.Email, SessionToken: req.SessionToken}, req.Code)
	if err != nil {
		h.logger.InfoContext(ctx, "redirect token issuance refused",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	token, err := h.tokens.Issue(ctx, eventID, *profile)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, issueResponse{Token: token})
}

type consumeRequest struct {
	Token   string `json:"token"`
	EventID string `json:"event_id"`
	Email   string `json:"email"`
}

type consumeResponse struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Email               string `json:"email"`
	DistributorID       string `json:"distributor_id,omitempty"`
	GuestAllowance      int    `json:"guest_allowance"`
	VerifiedByDirectory bool   `json:"verified_by_directory"`
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req consumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	eventID, err := domain.ParseEventID(req.EventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	profile, err := h.tokens.Consume(ctx, req.Token, eventID, req.Email)
	if err != nil {
		h.logger.InfoContext(ctx, "redirect token rejected",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toConsumeResponse(profile))
}

func toConsumeResponse(p *qualification.Profile) consumeResponse {
	return consumeResponse{
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		Email:               p.Email,
		DistributorID:       p.DistributorID,
		GuestAllowance:      p.GuestAllowance,
		VerifiedByDirectory: p.VerifiedByDirectory,
	}
}
