// Package handler exposes registration submission and the operator lifecycle
// endpoints.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/platform/middleware"
	"gatepass/internal/qualification"
	"gatepass/internal/redirecttoken"
	"gatepass/internal/registration"
	"gatepass/internal/verification"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
)

// Handler handles registration endpoints. Direct submissions authenticate
// with either a fresh code or a redirect token; the flow endpoints are the
// friendlier path for browsers.
type Handler struct {
	logger        *slog.Logger
	registrations *registration.Service
	verification  *verification.Service
	tokens        *redirecttoken.Service
}

// New creates the registration handler.
func New(r *registration.Service, v *verification.Service, t *redirecttoken.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, registrations: r, verification: v, tokens: t}
}

// RegisterPublic mounts the registrant-facing routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/events/{eventID}/registrations", h.handleSubmit)
}

// RegisterAdmin mounts the operator lifecycle routes. The caller wraps the
// router in RequireAdminToken.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/events/{eventID}/registrations/existing", h.handleFetchExisting)
	r.Post("/admin/registrations/{registrationID}/transfer", h.handleTransfer)
	r.Delete("/admin/registrations/{registrationID}", h.handleCancel)
	r.Post("/admin/registrations/{registrationID}/checkin", h.handleCheckIn)
	r.Post("/admin/registrations/{registrationID}/not-coming", h.handleNotComing)
}

type attendeePayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type submitRequest struct {
	// Exactly one verification proof for verified modes: a code with the
	// identity it was issued to, or a redirect token.
	Email         string `json:"email,omitempty"`
	SessionToken  string `json:"session_token,omitempty"`
	Code          string `json:"code,omitempty"`
	RedirectToken string `json:"redirect_token,omitempty"`

	Fields     map[string]string `json:"fields"`
	Language   string            `json:"language,omitempty"`
	Companions int               `json:"companions,omitempty"`
	Attendees  []attendeePayload `json:"attendees,omitempty"`
}

type registrationResponse struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	DistributorID  string     `json:"distributor_id,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Status         string     `json:"status"`
	SwagStatus     string     `json:"swag_status"`
	Language       string     `json:"language,omitempty"`
	Companions     int        `json:"companions,omitempty"`
	RegisteredAt   time.Time  `json:"registered_at"`
	LastModified   time.Time  `json:"last_modified"`
	CheckedInAt    *time.Time `json:"checked_in_at,omitempty"`
	BadgePrintedAt *time.Time `json:"badge_printed_at,omitempty"`
}

type submitResponse struct {
	Registration registrationResponse   `json:"registration"`
	WasUpdated   bool                   `json:"was_updated"`
	Created      []registrationResponse `json:"created,omitempty"`
}

func toRegistrationResponse(r *registration.Registration) registrationResponse {
	return registrationResponse{
		ID:             r.ID.String(),
		EventID:        r.EventID.String(),
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Email:          r.Email,
		DistributorID:  r.DistributorID,
		Phone:          r.Phone,
		Status:         r.Status.String(),
		SwagStatus:     string(r.SwagStatus),
		Language:       r.Language,
		Companions:     r.Companions,
		RegisteredAt:   r.RegisteredAt,
		LastModified:   r.LastModified,
		CheckedInAt:    r.CheckedInAt,
		BadgePrintedAt: r.BadgePrintedAt,
	}
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var verified *qualification.Profile
	switch {
	case req.RedirectToken != "":
		verified, err = h.tokens.Consume(ctx, req.RedirectToken, eventID, req.Email)
	case req.Code != "":
		verified, err = h.verification.Validate(ctx, eventID,
			verification.IdentityRef{Email: req.Email, SessionToken: req.SessionToken}, req.Code)
	}
	if err != nil {
		h.logger.InfoContext(ctx, "submission verification failed",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	attendees := make([]registration.Attendee, 0, len(req.Attendees))
	for _, a := range req.Attendees {
		attendees = append(attendees, registration.Attendee{
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Email:     a.Email,
		})
	}

	result, err := h.registrations.Submit(ctx, registration.SubmitParams{
		EventID:    eventID,
		Verified:   verified,
		Fields:     req.Fields,
		Language:   req.Language,
		Companions: req.Companions,
		Attendees:  attendees,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "submission rejected",
			"request_id", middleware.GetRequestID(ctx),
			"event_id", eventID.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := submitResponse{
		Registration: toRegistrationResponse(result.Registration),
		WasUpdated:   result.WasUpdated,
	}
	for _, c := range result.Created {
		resp.Created = append(resp.Created, toRegistrationResponse(c))
	}

	status := http.StatusCreated
	if result.WasUpdated {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, resp)
}

// handleFetchExisting is operator-only: the full row comes back for any
// matching identity, so it must never answer an unverified guess. Registrants
// get their own data through flow prefill, after verification.
func (h *Handler) handleFetchExisting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim := qualification.IdentityClaim{
		Email:         r.URL.Query().Get("email"),
		DistributorID: r.URL.Query().Get("distributor_id"),
	}
	existing, err := h.registrations.FetchExisting(ctx, eventID, claim)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(existing))
}

type transferRequest struct {
	TargetEventID string `json:"target_event_id"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	targetID, err := domain.ParseEventID(req.TargetEventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	moved, err := h.registrations.Transfer(ctx, id, targetID)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer rejected",
			"request_id", middleware.GetRequestID(ctx),
			"registration_id", id.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(moved))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.registrations.Cancel(ctx, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	checked, err := h.registrations.CheckIn(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(checked))
}

func (h *Handler) handleNotComing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	declined, err := h.registrations.MarkNotComing(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRegistrationResponse(declined))
}
