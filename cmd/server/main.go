// modelchat - chat server relaying messages to LLM and image backends.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/modelchat/internal/api"
	"github.com/ashureev/modelchat/internal/cache"
	"github.com/ashureev/modelchat/internal/chatlog"
	"github.com/ashureev/modelchat/internal/config"
	"github.com/ashureev/modelchat/internal/health"
	"github.com/ashureev/modelchat/internal/identity"
	"github.com/ashureev/modelchat/internal/logger"
	"github.com/ashureev/modelchat/internal/middleware"
	"github.com/ashureev/modelchat/internal/observe"
	"github.com/ashureev/modelchat/internal/resilience"
	"github.com/ashureev/modelchat/internal/retention"
	"github.com/ashureev/modelchat/internal/router"
	"github.com/ashureev/modelchat/internal/store"
	"github.com/ashureev/modelchat/web"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "version", version)

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("Failed to flush telemetry", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	backends, probes, err := buildBackends(ctx, cfg.Providers)
	if err != nil {
		return err
	}

	promptCache, err := cache.New(cfg.Cache.MaxMB<<20, cfg.Cache.PromptTTL)
	if err != nil {
		return fmt.Errorf("create prompt cache: %w", err)
	}
	defer promptCache.Close()

	locale, _ := router.ParseLocale(cfg.Router.DefaultLocale)
	rt, err := router.New(cfg.Router.Models, backends, router.Options{
		DefaultModel:   cfg.Router.DefaultModel,
		FallbackModels: cfg.Router.FallbackModels,
		HistoryWindow:  cfg.Router.FallbackHistoryWindow,
		CallTimeout:    cfg.Router.CallTimeout,
		Temperature:    cfg.Router.Temperature,
		MaxTokens:      cfg.Router.MaxTokens,
		ImageModel:     cfg.Router.ImageModel,
		DefaultLocale:  locale,
		Cache:          promptCache,
		Metrics:        metrics,
		Breaker:        resilience.BreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	slog.Info("Router ready", "models", len(rt.Models()), "default_model", rt.DefaultModel())

	transcript, err := chatlog.New(chatlog.Config{
		Enabled:   cfg.Transcript.Enabled,
		Dir:       cfg.Transcript.Dir,
		QueueSize: cfg.Transcript.QueueSize,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("initialize transcript logger: %w", err)
	}
	defer func() {
		if closeErr := transcript.Close(); closeErr != nil {
			slog.Warn("Failed to close transcript logger", "error", closeErr)
		}
	}()

	limiter := middleware.NewUserLimiter(cfg.Limits.RequestsPerSecond, cfg.Limits.Burst, 30*time.Minute)
	handler := api.NewHandler(api.Deps{
		Repo:           repo,
		Router:         rt,
		Transcript:     transcript,
		Metrics:        metrics,
		MaxBodyBytes:   cfg.Limits.MaxRequestBodyBytes,
		AllowedOrigins: cfg.AllowedOrigins(),
		Limiter:        limiter,
	})

	probeClient := &http.Client{Timeout: 3 * time.Second}
	checks := map[string]health.Check{"database": repo.Ping}
	for _, t := range probes {
		checks[t.name] = probe(probeClient, t.url)
	}
	healthHandler := health.NewHandler(5*time.Second, checks)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(observe.Middleware(metrics))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	// Public routes.
	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, identity.Options{
			TrustProxyHeaders: cfg.Auth.TrustProxyHeaders,
			AllowAnonymous:    cfg.Auth.AllowAnonymous,
			SecureCookie:      !cfg.IsDevelopment(),
		}))
		handler.RegisterRoutes(r)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WriteTimeout stays 0: model calls and websockets outlive any fixed
	// write deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return retention.NewWorker(repo, cfg.Retention.Interval, cfg.Retention.MaxAge).Run(gctx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					slog.Debug("Evicted idle rate limiters", "count", n)
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		handler.Sockets().CloseAll("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
