// Package api exposes the registration platform over HTTP: session
// authentication, the public registration flow, the participant
// cabinet, admin review tooling and the developer endpoints.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	oamw "github.com/go-openapi/runtime/middleware"

	"github.com/openconf/regdesk/config"
	"github.com/openconf/regdesk/mail"
	"github.com/openconf/regdesk/objstore"
	"github.com/openconf/regdesk/session"
	"github.com/openconf/regdesk/storage"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	repo     storage.Repository
	sessions *session.Manager
	objects  objstore.Store
	mailer   mail.Sender
	cfg      *config.Config
	audit    *auditLogger
	metrics  *metricsCollector
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithMailer sets the transactional mail sender. Defaults to a no-op.
func WithMailer(sender mail.Sender) Option {
	return func(a *API) {
		a.mailer = sender
	}
}

// New creates a new API instance.
func New(repo storage.Repository, objects objstore.Store, cfg *config.Config, opts ...Option) *API {
	a := &API{
		repo:     repo,
		sessions: session.NewManager(repo),
		objects:  objects,
		mailer:   mail.Noop{},
		cfg:      cfg,
		metrics:  newMetricsCollector(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.audit.metrics = a.metrics
	return a
}

// Router returns a chi.Router with all API routes mounted. The caller
// mounts it under /api.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.corsMiddleware)
	r.Use(a.metrics.middleware)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", oamw.SwaggerUI(oamw.SwaggerUIOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/docs",
	}, nil))

	r.Handle("/redoc*", oamw.Redoc(oamw.RedocOpts{
		SpecURL: "/api/openapi.yaml",
		Path:    "api/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)
	r.Get("/auth/me", a.Me)

	r.Post("/registration", a.Register)
	r.Get("/registration-count", a.RegistrationCount)
	r.Get("/news", a.PublicNews)

	r.Route("/participant", func(r chi.Router) {
		r.Use(a.requireRole(roleParticipant))
		r.Get("/overview", a.ParticipantOverview)
		r.Post("/receipt", a.UploadReceipt)
		r.Post("/submissions", a.UploadSubmission)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.requireRole(roleAdmin))
		r.Get("/registrations", a.ListRegistrations)
		r.Post("/payments/confirm", a.ConfirmPayment)
		r.Post("/payments/reject", a.RejectPayment)
		r.Get("/submissions", a.ListSubmissions)
		r.Get("/news", a.ListNewsAdmin)
		r.Post("/news", a.CreateNews)
		r.Put("/news", a.UpdateNews)
		r.Delete("/news", a.DeleteNews)
	})

	r.Route("/dev", func(r chi.Router) {
		r.Use(a.requireDeveloper)
		r.Post("/create-user", a.CreateUser)
		r.Post("/impersonate", a.Impersonate)
		r.Get("/summary", a.DevSummary)
	})

	r.With(a.requireAuth).Get("/files", a.DownloadFile)

	return r
}
