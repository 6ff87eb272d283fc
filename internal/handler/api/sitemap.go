// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
)

// GetSitemap handles GET /api/v1/sitemap.
// Returns the slugs of every translated destination, article and company.
func (h *Handler) GetSitemap(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r)

	sm, err := h.content.Sitemap(r.Context(), lang)
	if err != nil {
		h.writeContentError(w, r, "sitemap", err)
		return
	}

	WriteSuccess(w, sm, &Meta{Lang: lang})
}

// ListSlugs handles GET /api/v1/sitemap/{entity}.
// Unlike GetSitemap it pages through the whole collection and is not cached.
func (h *Handler) ListSlugs(w http.ResponseWriter, r *http.Request) {
	entity, err := content.ParseEntity(chi.URLParam(r, "entity"))
	if err != nil {
		WriteNotFound(w, "Unknown entity")
		return
	}

	lang := h.lang(r)
	slugs, err := h.content.AllSlugs(r.Context(), entity, lang)
	if err != nil {
		h.writeContentError(w, r, string(entity)+" slugs", err)
		return
	}

	WriteSuccess(w, orEmpty(slugs), listMeta(lang, len(slugs), nil, 0))
}
