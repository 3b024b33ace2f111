// Package handler exposes code issuance and validation over HTTP.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/platform/middleware"
	"gatepass/internal/qualification"
	"gatepass/internal/verification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
)

// Handler handles verification endpoints. Issuance resolves qualification
// first so a code can never reach an ineligible identity.
type Handler struct {
	logger        *slog.Logger
	qualification *qualification.Service
	verification  *verification.Service
}

// New creates the verification handler.
func New(q *qualification.Service, v *verification.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, qualification: q, verification: v}
}

// Register mounts the public verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{eventID}/verification/codes", h.handleIssue)
	r.Post("/events/{eventID}/verification/validate", h.handleValidate)
}

type issueRequest struct {
	Email         string `json:"email,omitempty"`
	DistributorID string `json:"distributor_id,omitempty"`
}

type issueResponse struct {
	MaskedEmail  string    `json:"masked_email,omitempty"`
	EmailMasked  bool      `json:"email_masked"`
	SessionToken string    `json:"session_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
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

	claim := qualification.IdentityClaim{Email: req.Email, DistributorID: req.DistributorID}
	profile, err := h.qualification.Resolve(ctx, eventID, claim)
	if err != nil {
		h.logger.InfoContext(ctx, "code issuance refused",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.verification.Issue(ctx, verification.IssueParams{
		EventID: eventID,
		Key:     claim.Key(),
		Profile: *profile,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, issueResponse{
		MaskedEmail:  result.MaskedEmail,
		EmailMasked:  result.EmailMasked,
		SessionToken: result.SessionToken,
		ExpiresAt:    result.ExpiresAt,
	})
}

type validateRequest struct {
	Email        string `json:"email,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	Code         string `json:"code"`
}

type validateResponse struct {
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	Email               string `json:"email"`
	DistributorID       string `json:"distributor_id,omitempty"`
	GuestAllowance      int    `json:"guest_allowance"`
	VerifiedByDirectory bool   `json:"verified_by_directory"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	profile, err := h.verification.Validate(ctx, eventID,
		verification.IdentityRef{Email: req.Email, SessionToken: req.SessionToken}, req.Code)
	if err != nil {
		h.logger.InfoContext(ctx, "code validation failed",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	// Validation proves control of the address, so the response may carry the
	// true email even when issuance masked it.
	httputil.WriteJSON(w, http.StatusOK, validateResponse{
		FirstName:           profile.FirstName,
		LastName:            profile.LastName,
		Email:               profile.Email,
		DistributorID:       profile.DistributorID,
		GuestAllowance:      profile.GuestAllowance,
		VerifiedByDirectory: profile.VerifiedByDirectory,
	})
}
