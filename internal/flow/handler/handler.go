// Package handler exposes the flow state machine over HTTP. Every response
// carries the session view, so the client always renders whatever step the
// server says comes next.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatepass/internal/flow"
	"gatepass/internal/platform/middleware"
	"gatepass/internal/qualification"
	"gatepass/internal/registration"
	"gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/httputil"
	"gatepass/pkg/requestcontext"
)

// Handler handles flow endpoints.
type Handler struct {
	logger  *slog.Logger
	service *flow.Service
	signer  *flow.LinkSigner
}

// New creates the flow handler.
func New(service *flow.Service, signer *flow.LinkSigner, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service, signer: signer}
}

// RegisterPublic mounts the registrant-facing flow routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/events/{eventID}/flow", h.handleStart)
	r.Get("/flow/{flowID}", h.handleGet)
	r.Post("/flow/{flowID}/email", h.handleEmail)
	r.Post("/flow/{flowID}/code", h.handleCode)
	r.Post("/flow/{flowID}/redirect", h.handleRedirect)
	r.Post("/flow/{flowID}/submit", h.handleSubmit)
	r.Post("/flow/{flowID}/reset", h.handleReset)
}

// RegisterAdmin mounts the invite-link minting route. The caller wraps the
// router in RequireAdminToken.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/events/{eventID}/invite-links", h.handleMintLink)
}

// sessionResponse is the client's whole view of a flow. The unverified masked
// path never sees more than MaskedEmail.
type sessionResponse struct {
	ID             string            `json:"id"`
	State          string            `json:"state"`
	Mode           string            `json:"mode"`
	MaskedEmail    string            `json:"masked_email,omitempty"`
	EmailMasked    bool              `json:"email_masked,omitempty"`
	Email          string            `json:"email,omitempty"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	PendingFields  map[string]string `json:"pending_fields,omitempty"`
	RegistrationID string            `json:"registration_id,omitempty"`
	WasUpdated     bool              `json:"was_updated,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

func toSessionResponse(s *flow.Session) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID.String(),
		State:          string(s.State),
		Mode:           s.Mode.String(),
		MaskedEmail:    s.MaskedEmail,
		EmailMasked:    s.EmailMasked,
		PendingFields:  s.PendingFields,
		RegistrationID: s.RegistrationID,
		WasUpdated:     s.WasUpdated,
		Reason:         s.Reason,
	}
	if s.Verified && s.Profile != nil {
		resp.Email = s.Profile.Email
		resp.FirstName = s.Profile.FirstName
		resp.LastName = s.Profile.LastName
	}
	return resp
}

type startRequest struct {
	SignedLink string `json:"signed_link,omitempty"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req startRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	sess, err := h.service.Start(ctx, eventID, req.SignedLink)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

type emailRequest struct {
	Email         string `json:"email,omitempty"`
	DistributorID string `json:"distributor_id,omitempty"`
}

func (h *Handler) handleEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sess, err := h.service.SubmitEmail(ctx, id, qualification.IdentityClaim{
		Email:         req.Email,
		DistributorID: req.DistributorID,
	})
	if err != nil {
		h.logger.InfoContext(ctx, "flow email step rejected",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", id.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sess, err := h.service.VerifyCode(ctx, id, req.Code)
	if err != nil {
		h.logger.InfoContext(ctx, "flow code step rejected",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", id.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

type redirectRequest struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (h *Handler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req redirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	sess, err := h.service.ConsumeRedirect(ctx, id, req.Token, req.Email)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

type submitRequest struct {
	Fields     map[string]string `json:"fields"`
	Language   string            `json:"language,omitempty"`
	Companions int               `json:"companions,omitempty"`
	Attendees  []struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	} `json:"attendees,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	input := flow.FormInput{
		Fields:     req.Fields,
		Language:   req.Language,
		Companions: req.Companions,
	}
	for _, a := range req.Attendees {
		input.Attendees = append(input.Attendees, registration.Attendee{
			FirstName: a.FirstName,
			LastName:  a.LastName,
			Email:     a.Email,
		})
	}

	sess, err := h.service.Submit(ctx, id, input)
	if err != nil {
		h.logger.InfoContext(ctx, "flow submit rejected",
			"request_id", middleware.GetRequestID(ctx),
			"flow_id", id.String(),
			"code", string(dErrors.CodeOf(err)),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseFlowID(chi.URLParam(r, "flowID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := h.service.Reset(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(sess))
}

type mintLinkRequest struct {
	Email string `json:"email"`
}

type mintLinkResponse struct {
	Link string `json:"link"`
}

func (h *Handler) handleMintLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req mintLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Email == "" {
		httputil.WriteError(w, dErrors.WithFields(dErrors.CodeValidation, "email is required", []string{"email"}))
		return
	}

	link, err := h.signer.Sign(eventID, req.Email, requestcontext.Now(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, mintLinkResponse{Link: link})
}
