// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cache"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/config"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/handler"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/handler/api"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/logging"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/metrics"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/middleware"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/scheduler"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

const (
	sharedCacheTTL  = time.Hour
	requestTimeout  = 30 * time.Second
	sitemapTimeout  = 50 * time.Second
	shutdownTimeout = 30 * time.Second
	publicMaxAge    = 5 * time.Minute
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "tbi - content API for The Best Italy\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_CMS_URL                 Directus base URL (required)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_CMS_TOKEN               Directus static token\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_SERVER_PORT             Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_ENV                     Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_REDIS_URL               Redis URL for the shared cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_DESTINATION_CACHE_SIZE  LRU size for destination-scoped queries (default: 0)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  TBI_ADMIN_TOKEN             Bearer token for the cache endpoints (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := &version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(info.Banner("tbi"))
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info *version.Info) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel), m)
	slog.SetDefault(logger)
	slog.Info("starting", "version", info.String(), "env", cfg.Env)

	backend, err := cache.NewCache(cache.Config{
		RedisURL:         cfg.RedisURL,
		Prefix:           cfg.CachePrefix,
		DefaultTTL:       sharedCacheTTL,
		MaxSize:          cfg.CacheMaxSize,
		FallbackToMemory: cfg.IsDevelopment(),
	}, logger.With("component", logging.CategoryCache))
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	cacheManager := cache.NewManager(cache.ManagerOptions{
		Namespace:  cfg.CachePrefix,
		Backend:    backend,
		ScopedSize: cfg.DestinationCacheSize,
		Logger:     logger.With("component", logging.CategoryCache),
	})
	defer func() {
		if err := cacheManager.Close(); err != nil {
			slog.Error("error closing cache", "error", err)
		}
	}()

	client, err := cms.New(cms.Options{
		BaseURL:          cfg.CMSURL,
		Token:            cfg.CMSToken,
		Timeout:          cfg.CMSTimeout,
		MaxConcurrent:    cfg.CMSMaxConcurrent,
		MaxResponseBytes: cfg.CMSMaxResponseBytes,
		MaxQueryBytes:    cfg.CMSMaxQueryBytes,
		Logger:           logger.With("component", logging.CategoryCMS),
		Metrics:          m,
	})
	if err != nil {
		return fmt.Errorf("creating cms client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("error closing cms client", "error", err)
		}
	}()

	svc := content.NewService(content.Options{
		Fetcher:          client,
		Cache:            cacheManager,
		FallbackLanguage: cfg.FallbackLanguage,
		SanitizeHTML:     cfg.SanitizeHTML,
		Pager: content.PagerOptions{
			PageSize:  cfg.SitemapPageSize,
			PageDelay: cfg.SitemapPageDelay,
			Retries:   cfg.SitemapRetries,
			Backoff:   cfg.SitemapRetryBackoff,
		},
		Logger:  logger.With("component", logging.CategoryContent),
		Metrics: m,
	})

	// Background jobs
	sched := scheduler.New(logger.With("component", logging.CategoryScheduler))
	if err := sched.Add(scheduler.JobRecycleClient, "Replace the CMS client once it is too old",
		scheduler.RecycleSchedule, scheduler.RecycleClient(client, cfg.CMSClientMaxAge, logger)); err != nil {
		return fmt.Errorf("scheduling client recycling: %w", err)
	}
	if err := sched.Add(scheduler.JobWarmSitemap, "Rebuild the sitemap of the warm-up languages",
		scheduler.WarmSchedule, scheduler.WarmSitemap(svc, cfg.WarmLanguages, logger)); err != nil {
		return fmt.Errorf("scheduling sitemap warm-up: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		if err := sched.TriggerNow(context.Background(), scheduler.JobWarmSitemap); err != nil {
			slog.Warn("initial sitemap warm-up failed", "error", err)
		}
	}()

	healthHandler := handler.NewHealthHandler(client, cacheManager, cfg.AdminToken, info)
	apiHandler := api.NewHandler(api.Config{
		Content:          svc,
		Cache:            cacheManager,
		AdminToken:       cfg.AdminToken,
		FallbackLanguage: cfg.FallbackLanguage,
		Languages:        cfg.WarmLanguages,
		MaxAge:           publicMaxAge,
		Logger:           logger.With("component", logging.CategoryHTTP),
	})

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.StripTrailingSlash)

	// Health check endpoints (no rate limit, no timeout)
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		if cfg.APIRateLimit > 0 {
			r.Use(middleware.NewGlobalRateLimiter(cfg.APIRateLimit, cfg.APIRateBurst).Middleware())
		}
		r.Use(middleware.TimeoutPolicy{
			Default: requestTimeout,
			Routes:  map[string]time.Duration{"/api/v1/sitemap": sitemapTimeout},
			OnTimeout: func(r *http.Request, budget time.Duration) {
				logger.Warn("request timed out", "path", r.URL.Path, "budget", budget)
			},
		}.Middleware())
		r.Mount("/api/v1", apiHandler.Routes())
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteAPIError(w, http.StatusNotFound, "not_found", "Not found", nil)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env,
			"cache", string(cacheManager.Backend()), "admin", cfg.AdminEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
