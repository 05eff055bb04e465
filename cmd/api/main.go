package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alaraf/fleet-finance/docs"
	"github.com/alaraf/fleet-finance/internal/app"
	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/http/handler"
	"github.com/alaraf/fleet-finance/internal/http/middleware"
	"github.com/alaraf/fleet-finance/internal/http/router"
	"github.com/alaraf/fleet-finance/internal/jobs"
	"github.com/alaraf/fleet-finance/internal/logger"
	"go.uber.org/zap"
)

// @title Fleet Finance API
// @version 1.0
// @description Contract billing, payments, delinquency and fleet occupancy for vehicle rental companies

// @contact.name API Support

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("SWAGGER_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In development secrets come from the environment, elsewhere from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	a, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	companyFilterMiddleware := middleware.NewCompanyFilterMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	checks := map[string]handler.Pinger{}
	if a.Warehouse != nil {
		checks["datawarehouse"] = a.Warehouse
	}
	if a.Redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}

	rt := router.NewRouter(cfg, log, authMiddleware, companyFilterMiddleware, rateLimiter, router.Handlers{
		Health:      handler.NewHealthHandler(a.DB, checks, log),
		Payment:     handler.NewPaymentHandler(a.Services.Payment, log),
		Delinquency: handler.NewDelinquencyHandler(a.Services.Delinquency, log),
		Invoice:     handler.NewInvoiceHandler(a.Services.Cadence, a.Services.Reconciliation, log),
		Fleet:       handler.NewFleetHandler(a.Services.Occupancy, log),
		Job:         handler.NewJobHandler(a.Runner, a.Repositories.JobRuns, log),
	})

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(log)
		if err := a.Runner.Schedule(scheduler); err != nil {
			return fmt.Errorf("failed to schedule jobs: %w", err)
		}
		scheduler.Start()
		log.Info("Scheduler started",
			zap.Strings("jobs", scheduler.GetJobNames()),
			zap.Duration("timeout", cfg.Jobs.TimeoutDuration()),
		)
	} else {
		log.Info("Background jobs disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           rt.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeoutDuration(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Let a running job finish before the database goes away
		if scheduler != nil {
			<-scheduler.Stop().Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
