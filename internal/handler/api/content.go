// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"maps"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/util"
)

// valid writes a 400 and returns false when q collected parse errors or
// params fails validation.
func (h *Handler) valid(w http.ResponseWriter, q *queryReader, params any) bool {
	details := h.validate.Struct(params)
	if len(q.errs) > 0 {
		if details == nil {
			details = make(map[string]string, len(q.errs))
		}
		maps.Copy(details, q.errs)
	}
	if len(details) == 0 {
		return true
	}
	WriteBadRequest(w, "Invalid query parameters", details)
	return false
}

// slugParam reads and normalizes the {slug} path parameter.
func slugParam(r *http.Request) string {
	raw := chi.URLParam(r, "slug")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return util.NormalizeSlug(raw)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// profile converts a validated fields parameter.
func profile(fields string) content.Profile {
	p, err := content.ParseProfile(fields)
	if err != nil {
		return content.ProfileMinimal
	}
	return p
}

// ListDestinations handles GET /api/v1/destinations.
func (h *Handler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r.URL.Query())
	p := destinationParams{
		pageParams: q.page(),
		Type:       q.enum("type"),
		RegionID:   q.int64("region_id"),
		ProvinceID: q.int64("province_id"),
		Featured:   q.bool("featured"),
	}
	if !h.valid(w, q, p) {
		return
	}

	lang := h.lang(r)
	items, err := h.content.Destinations(r.Context(), content.DestinationOptions{
		Lang:       lang,
		Profile:    profile(p.Fields),
		Limit:      p.Limit,
		Offset:     p.Offset,
		Type:       content.DestinationType(p.Type),
		RegionID:   p.RegionID,
		ProvinceID: p.ProvinceID,
		Featured:   p.Featured,
	})
	if err != nil {
		h.writeContentError(w, r, "destinations", err)
		return
	}

	WriteSuccess(w, orEmpty(items), listMeta(lang, len(items), p.Limit, p.Offset))
}

// GetDestination handles GET /api/v1/destinations/{slug}.
func (h *Handler) GetDestination(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r.URL.Query())
	p := lookupParams{Slug: slugParam(r), Fields: q.enum("fields")}
	if !h.valid(w, q, p) {
		return
	}

	res, err := h.content.Destination(r.Context(), content.DestinationOptions{
		Lang:    h.lang(r),
		Profile: profile(p.Fields),
		Slug:    p.Slug,
	})
	if err != nil {
		h.writeContentError(w, r, "destination", err)
		return
	}
	if res == nil {
		WriteNotFound(w, "Destination not found")
		return
	}

	WriteSuccess(w, res.Item, resolvedMeta(res.Lang, res.Requested, res.Fallback))
}

// ListArticles handles GET /api/v1/articles.
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r.URL.Query())
	p := articleParams{
		pageParams:     q.page(),
		CategoryID:     q.int64("category_id"),
		DestinationID:  q.int64("destination_id"),
		FeaturedStatus: q.enum("featured_status"),
		Total:          q.bool("total"),
	}
	if !h.valid(w, q, p) {
		return
	}

	lang := h.lang(r)
	list, err := h.content.Articles(r.Context(), content.ArticleOptions{
		Lang:           lang,
		Profile:        profile(p.Fields),
		Limit:          p.Limit,
		Offset:         p.Offset,
		CategoryID:     p.CategoryID,
		DestinationID:  p.DestinationID,
		FeaturedStatus: content.FeaturedStatus(p.FeaturedStatus),
		WithTotal:      p.Total,
	})
	if err != nil {
		h.writeContentError(w, r, "articles", err)
		return
	}

	meta := listMeta(lang, len(list.Articles), p.Limit, p.Offset)
	if p.Total {
		meta.Total = &list.Total
	}
	WriteSuccess(w, orEmpty(list.Articles), meta)
}

// GetArticle handles GET /api/v1/articles/{slug}.
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r.URL.Query())
	p := lookupParams{Slug: slugParam(r), Fields: q.enum("fields")}
	if !h.valid(w, q, p) {
		return
	}

	res, err := h.content.Article(r.Context(), content.ArticleOptions{
		Lang:    h.lang(r),
		Profile: profile(p.Fields),
		Slug:    p.Slug,
	})
	if err != nil {
		h.writeContentError(w, r, "article", err)
		return
	}
	if res == nil {
		WriteNotFound(w, "Article not found")
		return
	}

	WriteSuccess(w, res.Item, resolvedMeta(res.Lang, res.Requested, res.Fallback))
}

// ListCompanies handles GET /api/v1/companies.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r.URL.Query())
	p := companyParams{
		pageParams:    q.page(),
		CategoryID:    q.int64("category_id"),
		DestinationID: q.int64("destination_id"),
		Featured:      q.bool("featured"),
	}
	if !h.valid(w, q, p) {
		return
	}

	lang := h.lang(r)
	items, err := h.content.Companies(r.Context(), content.CompanyOptions{
		Lang:          lang,
		Profile:       profile(p.Fields),
		Limit:         p.Limit,
		Offset:        p.Offset,
		CategoryID:    p.CategoryID,
		DestinationID: p.DestinationID,
		Featured:      p.Featured,
	})
	if err != nil {
		h.writeContentError(w, r, "companies", err)
		return
	}

	WriteSuccess(w, orEmpty(items), listMeta(lang, len(items), p.Limit, p.Offset))
}

// GetCompany handles GET /api/v1/companies/{slug}.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r.URL.Query())
	p := lookupParams{Slug: slugParam(r), Fields: q.enum("fields")}
	if !h.valid(w, q, p) {
		return
	}

	h.writeCompany(w, r, content.CompanyOptions{
		Lang:    h.lang(r),
		Profile: profile(p.Fields),
		Slug:    p.Slug,
	})
}

// GetCompanyByUUID handles GET /api/v1/companies/uuid/{uuid}.
func (h *Handler) GetCompanyByUUID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		WriteBadRequest(w, "Invalid query parameters", map[string]string{"uuid": "is not a valid UUID"})
		return
	}

	q := newQueryReader(r.URL.Query())
	fields := q.enum("fields")
	if !h.valid(w, q, pageParams{Fields: fields}) {
		return
	}

	h.writeCompany(w, r, content.CompanyOptions{
		Lang:    h.lang(r),
		Profile: profile(fields),
		UUID:    id.String(),
	})
}

func (h *Handler) writeCompany(w http.ResponseWriter, r *http.Request, o content.CompanyOptions) {
	res, err := h.content.Company(r.Context(), o)
	if err != nil {
		h.writeContentError(w, r, "company", err)
		return
	}
	if res == nil {
		WriteNotFound(w, "Company not found")
		return
	}

	WriteSuccess(w, res.Item, resolvedMeta(res.Lang, res.Requested, res.Fallback))
}
