// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the public REST API over the content service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cache"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/middleware"
)

// Content is the part of content.Service the API serves.
type Content interface {
	Destinations(ctx context.Context, o content.DestinationOptions) ([]content.Destination, error)
	Destination(ctx context.Context, o content.DestinationOptions) (*content.Resolved[content.Destination], error)
	Articles(ctx context.Context, o content.ArticleOptions) (content.ArticleList, error)
	Article(ctx context.Context, o content.ArticleOptions) (*content.Resolved[content.Article], error)
	Companies(ctx context.Context, o content.CompanyOptions) ([]content.Company, error)
	Company(ctx context.Context, o content.CompanyOptions) (*content.Resolved[content.Company], error)
	Sitemap(ctx context.Context, lang string) (*content.Sitemap, error)
	AllSlugs(ctx context.Context, entity content.Entity, lang string) ([]content.SlugEntry, error)
	Invalidate(ctx context.Context, entity content.Entity, lang string) error
}

// Config holds the dependencies of the API handlers.
type Config struct {
	Content Content
	Cache   *cache.Manager // optional, backs /cache/stats

	// AdminToken guards the /cache routes. Empty disables them.
	AdminToken string

	FallbackLanguage string
	// Languages are matched against Accept-Language.
	Languages []string

	// MaxAge is the Cache-Control max-age of public responses (0 disables).
	MaxAge time.Duration

	Logger *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	content    Content
	cache      *cache.Manager
	adminToken string
	fallback   string
	languages  []string
	maxAge     time.Duration
	validate   *queryValidator
	logger     *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		content:    cfg.Content,
		cache:      cfg.Cache,
		adminToken: cfg.AdminToken,
		fallback:   cfg.FallbackLanguage,
		languages:  cfg.Languages,
		maxAge:     cfg.MaxAge,
		validate:   newQueryValidator(),
		logger:     logger,
	}
}

// Routes returns the /api/v1 router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.Language(h.fallback, h.languages))
		if h.maxAge > 0 {
			r.Use(middleware.PublicCache(h.maxAge))
		}

		r.Get("/", h.Status)

		r.Get("/destinations", h.ListDestinations)
		r.Get("/destinations/{slug}", h.GetDestination)

		r.Get("/articles", h.ListArticles)
		r.Get("/articles/{slug}", h.GetArticle)

		r.Get("/companies", h.ListCompanies)
		r.Get("/companies/uuid/{uuid}", h.GetCompanyByUUID)
		r.Get("/companies/{slug}", h.GetCompany)

		r.Get("/sitemap", h.GetSitemap)
		r.Get("/sitemap/{entity}", h.ListSlugs)
	})

	r.Route("/cache", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.AdminToken(h.adminToken))
		r.Post("/purge", h.PurgeCache)
		r.Get("/stats", h.CacheStats)
	})

	return r
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta describes the language a response is served in and, for lists,
// pagination.
type Meta struct {
	Lang          string `json:"lang,omitempty"`
	RequestedLang string `json:"requested_lang,omitempty"`
	Fallback      *bool  `json:"fallback,omitempty"`
	Total         *int   `json:"total,omitempty"`
	Count         *int   `json:"count,omitempty"`
	Limit         *int   `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	middleware.WriteAPIError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusNotFound, "not_found", message, nil)
}

// writeContentError maps a content service error onto a response.
// Overload and an open breaker are 503 with Retry-After; anything else that
// reached the CMS is a 502.
func (h *Handler) writeContentError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, content.ErrMissingLookup):
		WriteBadRequest(w, err.Error(), nil)
	case errors.Is(err, cms.ErrTooManyRequests), errors.Is(err, cms.ErrUnavailable):
		w.Header().Set("Retry-After", "1")
		middleware.WriteAPIError(w, http.StatusServiceUnavailable, "unavailable", "Content service is busy, retry shortly", nil)
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to write
		h.logger.Debug("request canceled", "path", r.URL.Path)
	case errors.Is(err, context.DeadlineExceeded):
		middleware.WriteAPIError(w, http.StatusGatewayTimeout, "timeout", "Content service timed out", nil)
	default:
		h.logger.Error("failed to load content", "what", what, "path", r.URL.Path, "error", err)
		middleware.WriteAPIError(w, http.StatusBadGateway, "upstream_error", "Failed to load "+what, nil)
	}
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Language string `json:"lang"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, StatusResponse{
		Status:   "ok",
		Version:  "v1",
		Language: middleware.GetLanguage(r),
	}, nil)
}

// lang returns the request language resolved by the Language middleware.
func (h *Handler) lang(r *http.Request) string {
	if lang := middleware.GetLanguage(r); lang != "" {
		return lang
	}
	return h.fallback
}

// resolvedMeta builds the meta block of a single item.
func resolvedMeta(lang, requested string, fallback bool) *Meta {
	return &Meta{Lang: lang, RequestedLang: requested, Fallback: &fallback}
}

// listMeta builds the meta block of a list page.
func listMeta(lang string, count int, limit *int, offset int) *Meta {
	return &Meta{Lang: lang, Count: &count, Limit: limit, Offset: offset}
}
