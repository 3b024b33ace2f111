// Package httpapi assembles the public and operator HTTP surfaces. It owns
// the middleware chain and route layout; all behavior lives in the per-domain
// handlers.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventhandler "gatepass/internal/event/handler"
	flowhandler "gatepass/internal/flow/handler"
	"gatepass/internal/platform/middleware"
	qualificationhandler "gatepass/internal/qualification/handler"
	redirecthandler "gatepass/internal/redirecttoken/handler"
	registrationhandler "gatepass/internal/registration/handler"
	verificationhandler "gatepass/internal/verification/handler"
)

// Handlers bundles every mounted handler.
type Handlers struct {
	Events         *eventhandler.Handler
	Qualification  *qualificationhandler.Handler
	Verification   *verificationhandler.Handler
	RedirectTokens *redirecthandler.Handler
	Registrations  *registrationhandler.Handler
	Flows          *flowhandler.Handler
}

// Options tunes the router.
type Options struct {
	AdminToken     string
	RequestTimeout time.Duration
}

// NewRouter builds the full route tree. Admin routes sit behind the shared
// operator token; everything else is registrant-facing.
func NewRouter(h Handlers, opts Options, logger *slog.Logger) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Device)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		pub.Use(middleware.ContentTypeJSON)
		h.Qualification.RegisterPublic(pub)
		h.Verification.Register(pub)
		h.RedirectTokens.Register(pub)
		h.Registrations.RegisterPublic(pub)
		h.Flows.RegisterPublic(pub)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.ContentTypeJSON)
		admin.Use(middleware.RequireAdminToken(opts.AdminToken, logger))
		h.Events.Register(admin)
		h.Qualification.RegisterAdmin(admin)
		h.Registrations.RegisterAdmin(admin)
		h.Flows.RegisterAdmin(admin)
	})

	return r
}
