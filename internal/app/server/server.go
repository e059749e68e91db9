package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"

	"paycalc/internal/domain/audit"
	"paycalc/internal/domain/auth"
	"paycalc/internal/domain/payroll"
	"paycalc/internal/platform/config"
	"paycalc/internal/platform/crypto"
	"paycalc/internal/platform/db"
	"paycalc/internal/platform/jobs"
	"paycalc/internal/platform/metrics"
	"paycalc/internal/platform/querier"
	audithandler "paycalc/internal/transport/http/handlers/audit"
	employeeshandler "paycalc/internal/transport/http/handlers/employees"
	formulashandler "paycalc/internal/transport/http/handlers/formulas"
	payrollhandler "paycalc/internal/transport/http/handlers/payroll"
	salaryhandler "paycalc/internal/transport/http/handlers/salary"
	taxhandler "paycalc/internal/transport/http/handlers/tax"
	"paycalc/internal/transport/http/middleware"
)

const detailsKeyPurpose = "payroll-entry-details"

type App struct {
	Config  config.Config
	DB      querier.DB
	Router  http.Handler
	Payroll *payroll.Service
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// New opens the database and builds the router. The job worker is not
// started; Run does that.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, err
	}
	detailsSealer, err := sealer.Derive(detailsKeyPurpose)
	if err != nil {
		return nil, err
	}

	store, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	collector := metrics.New()
	svc := payroll.NewService(payroll.NewStore(store), payroll.ServiceOptions{
		Workers:             cfg.PayrollWorkers,
		StrictMissingAmount: cfg.StrictMissingAmount,
		ApplyBracketTax:     cfg.BracketTaxEnabled,
		TaxLabel:            cfg.TaxLabel,
		Logger:              logger,
	})
	svc.Crypto = detailsSealer
	svc.Audit = audit.New(store)
	svc.Metrics = collector

	if cfg.RunSeed {
		if err := db.Seed(ctx, svc); err != nil {
			store.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app := &App{
		Config:  cfg,
		DB:      store,
		Payroll: svc,
		Jobs:    jobs.New(store, cfg.JobQueueSize, logger),
		Metrics: collector,
		Logger:  logger,
	}
	app.Router = app.routes()
	return app, nil
}

func (a *App) Close() {
	a.DB.Close()
}

func (a *App) routes() http.Handler {
	cfg := a.Config
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Logger, a.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProd()))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
		}).Handler)
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, a.Metrics.Snapshot())
		})
	}

	var guard func(http.Handler) http.Handler
	router.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled() {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireRole())
			guard = middleware.RequireRole(auth.RoleAdmin, auth.RolePayrollManager)
		}
		if cfg.RateLimitPerMinute > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		}

		formulashandler.NewHandler().RegisterRoutes(r)
		salaryhandler.NewHandler(a.Payroll, guard).RegisterRoutes(r)
		taxhandler.NewHandler(a.Payroll, guard).RegisterRoutes(r)
		employeeshandler.NewHandler(a.Payroll, guard).RegisterRoutes(r)
		payrollhandler.NewHandler(a.Payroll, a.Jobs, a.Metrics, guard).RegisterRoutes(r)
		audithandler.NewHandler(audit.New(a.DB)).RegisterRoutes(r)
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests and
// stops the job worker. Requests get SHUTDOWN_TIMEOUT to finish.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	jobsCtx, stopJobs := context.WithCancel(context.WithoutCancel(ctx))
	app.Jobs.Start(jobsCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("payroll server listening", "addr", cfg.Addr, "driver", cfg.DatabaseDriver, "auth", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stopJobs()
		app.Jobs.Wait()
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Warn("http shutdown incomplete", "err", err)
	}
	stopJobs()
	app.Jobs.Wait()
	return nil
}
