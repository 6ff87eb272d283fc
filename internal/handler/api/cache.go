// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cache"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/middleware"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/util"
)

// PurgeResponse reports what a purge removed.
type PurgeResponse struct {
	Entity string `json:"entity"`
	Lang   string `json:"lang"`
}

// PurgeCache handles POST /api/v1/cache/purge.
// entity and lang are read from the query string or a form body; omitting
// them widens the purge to every entity or language.
func (h *Handler) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteBadRequest(w, "Invalid form body", nil)
		return
	}

	q := newQueryReader(r.Form)
	p := purgeParams{Entity: q.enum("entity"), Lang: q.string("lang")}
	if !h.valid(w, q, p) {
		return
	}
	if p.Lang != "" {
		// bcp47 accepted it, so this only normalizes case
		if code, err := util.ParseLanguage(p.Lang); err == nil {
			p.Lang = code
		}
	}

	if err := h.content.Invalidate(r.Context(), content.Entity(p.Entity), p.Lang); err != nil {
		h.logger.Error("failed to purge cache", "entity", p.Entity, "lang", p.Lang, "error", err)
		middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to purge cache", nil)
		return
	}

	h.logger.Info("cache purged via API", "entity", p.Entity, "lang", p.Lang)
	WriteSuccess(w, PurgeResponse{Entity: p.Entity, Lang: p.Lang}, nil)
}

// CacheStatsResponse is the body of GET /api/v1/cache/stats.
type CacheStatsResponse struct {
	Enabled   bool              `json:"enabled"`
	Backend   cache.Backend     `json:"backend,omitempty"`
	Namespace string            `json:"namespace,omitempty"`
	Tiers     []cache.TierStats `json:"tiers"`
	Total     cache.Stats       `json:"total"`
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	if h.cache == nil {
		WriteSuccess(w, CacheStatsResponse{Tiers: []cache.TierStats{}}, nil)
		return
	}

	WriteSuccess(w, CacheStatsResponse{
		Enabled:   true,
		Backend:   h.cache.Backend(),
		Namespace: h.cache.Namespace(),
		Tiers:     orEmpty(h.cache.AllStats()),
		Total:     h.cache.TotalStats(),
	}, nil)
}
