package router

import (
	"net/http"

	_ "github.com/alaraf/fleet-finance/docs" // Import generated swagger docs
	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/http/handler"
	"github.com/alaraf/fleet-finance/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Handlers bundles every HTTP handler the router mounts
type Handlers struct {
	Health      *handler.HealthHandler
	Payment     *handler.PaymentHandler
	Delinquency *handler.DelinquencyHandler
	Invoice     *handler.InvoiceHandler
	Fleet       *handler.FleetHandler
	Job         *handler.JobHandler
}

type Router struct {
	cfg                     *config.Config
	logger                  *zap.Logger
	authMiddleware          *auth.Middleware
	companyFilterMiddleware *middleware.CompanyFilterMiddleware
	rateLimiter             *middleware.RateLimiter
	handlers                Handlers
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	authMiddleware *auth.Middleware,
	companyFilterMiddleware *middleware.CompanyFilterMiddleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	return &Router{
		cfg:                     cfg,
		logger:                  logger,
		authMiddleware:          authMiddleware,
		companyFilterMiddleware: companyFilterMiddleware,
		rateLimiter:             rateLimiter,
		handlers:                handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health checks (liveness, database, readiness)
	r.Get("/health", rt.handlers.Health.Live)
	r.Get("/health/db", rt.handlers.Health.Database)
	r.Get("/health/ready", rt.handlers.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.companyFilterMiddleware.Filter)
		r.Use(rt.rateLimiter.LimitByCaller)

		// Payments
		r.Route("/payments", func(r chi.Router) {
			r.Post("/validate", rt.handlers.Payment.Validate)
			r.With(rt.authMiddleware.RequireWriter).Post("/", rt.handlers.Payment.Record)
		})

		// Delinquency
		r.Get("/delinquency", rt.handlers.Delinquency.List)
		r.Get("/penalties/preview", rt.handlers.Delinquency.PreviewPenalty)

		// Contracts
		r.Route("/contracts/{id}", func(r chi.Router) {
			r.Get("/delinquency", rt.handlers.Delinquency.GetContractAssessment)
			r.Get("/invoices/missing", rt.handlers.Invoice.Missing)
			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireWriter)
				r.Post("/invoices/generate", rt.handlers.Invoice.Generate)
				r.Post("/invoices/reconcile", rt.handlers.Invoice.Reconcile)
			})
		})

		// Fleet
		r.With(rt.authMiddleware.RequireWriter).Post("/fleet/sync", rt.handlers.Fleet.Sync)

		// Jobs (admin only)
		r.Route("/jobs", func(r chi.Router) {
			r.Use(rt.authMiddleware.RequireAdmin)
			r.Get("/", rt.handlers.Job.List)
			r.Get("/runs", rt.handlers.Job.ListRuns)
			r.Post("/{name}/run", rt.handlers.Job.Run)
		})
	})

	return r
}
