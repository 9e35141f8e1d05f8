package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/barberia-elite/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/barberia-elite/internal/http/middleware"
	"github.com/wolfman30/barberia-elite/internal/leads"
	"github.com/wolfman30/barberia-elite/internal/webui"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	HealthHandler  *handlers.HealthHandler
	FormsHandler   *handlers.FormsHandler
	LeadsHandler   *leads.Handler
	WebUIHandler   *webui.Handler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	// SubmissionLimiter throttles POST /api/submissions per client. Optional.
	SubmissionLimiter *httpmiddleware.RateLimiter
	// AdminAuthSecret signs the tokens that read stored leads. Lead reads are
	// not routed without it.
	AdminAuthSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.WebUIHandler != nil {
		r.Get("/ws/forms", cfg.WebUIHandler.HandleWebSocket)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Compress(5))

		if cfg.FormsHandler != nil {
			api.Get("/forms", cfg.FormsHandler.List)
			api.Post("/forms/{form}/validate", cfg.FormsHandler.ValidateField)
		}

		if cfg.LeadsHandler == nil {
			return
		}
		submit := api.With()
		if cfg.SubmissionLimiter != nil {
			submit = api.With(httpmiddleware.RateLimit(cfg.SubmissionLimiter))
		}
		submit.Post("/submissions/{form}", cfg.LeadsHandler.CreateSubmission)

		if cfg.AdminAuthSecret != "" {
			api.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret, cfg.Logger))
				admin.Get("/submissions", cfg.LeadsHandler.ListLeads)
				admin.Get("/leads/{id}", cfg.LeadsHandler.GetLead)
			})
		}
	})

	return r
}
