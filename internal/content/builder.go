// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
)

// Sorts that depend on options rather than on the profile.
var (
	featuredDestinationSort = []string{"featured_sort", "id"}
	featuredCompanySort     = []string{"featured_sort", "company_name"}
)

// languageFilter restricts a translations relation to lang.
func languageFilter(lang string) map[string]any {
	return map[string]any{
		"_filter": cms.Filter{"languages_code": cms.Eq(lang)},
	}
}

// languageDeep builds the deep parameter that keeps one translation on the
// entity and on each localized relation.
func languageDeep(lang string, relations []string) map[string]any {
	deep := map[string]any{"translations": languageFilter(lang)}
	for _, rel := range relations {
		deep[rel] = map[string]any{"translations": languageFilter(lang)}
	}
	return deep
}

// intrinsicFilter returns the rules every query of e carries.
func intrinsicFilter(e Entity) cms.Filter {
	switch e {
	case EntityArticles:
		return cms.Filter{"status": cms.Eq("published")}
	case EntityCompanies:
		return cms.Filter{"active": cms.Eq(true)}
	}
	return cms.Filter{}
}

// resolveLimit applies the single-item rule and the profile default.
func resolveLimit(limit *int, single bool, prof QueryProfile) *int {
	switch {
	case single:
		return cms.Limit(1)
	case limit == nil:
		return cms.Limit(prof.DefaultLimit)
	default:
		return cms.Limit(*limit)
	}
}

// buildDestinationQuery translates o into a destinations query.
// o.Lang and o.Profile must already be resolved.
func buildDestinationQuery(o DestinationOptions) cms.Query {
	prof := LookupProfile(EntityDestinations, o.Profile)

	filter := intrinsicFilter(EntityDestinations)
	if o.Type != "" {
		filter["type"] = cms.Eq(o.Type)
	}
	if o.RegionID != 0 {
		filter["region_id"] = cms.Eq(o.RegionID)
	}
	if o.ProvinceID != 0 {
		filter["province_id"] = cms.Eq(o.ProvinceID)
	}
	if o.Featured {
		filter["featured_status"] = cms.Eq(true)
	}
	filter.Merge(o.Filters)

	switch {
	case o.ID != 0:
		filter["id"] = cms.Eq(o.ID)
	case o.Slug != "":
		filter["translations"] = cms.Filter{"slug_permalink": cms.Eq(o.Slug)}
	}

	sort := prof.Sort
	if o.Featured {
		sort = featuredDestinationSort
	}

	q := cms.Query{
		Fields: prof.Fields,
		Filter: filter,
		Deep:   languageDeep(o.Lang, prof.Relations),
		Sort:   sort,
		Limit:  resolveLimit(o.Limit, o.single(), prof),
	}
	if !o.single() {
		q.Offset = o.Offset
	}
	return q
}

// buildArticleQuery translates o into an articles query. Only published
// articles are ever returned.
func buildArticleQuery(o ArticleOptions) cms.Query {
	prof := LookupProfile(EntityArticles, o.Profile)

	filter := intrinsicFilter(EntityArticles)
	if o.CategoryID != 0 {
		filter["category_id"] = cms.Eq(o.CategoryID)
	}
	if o.DestinationID != 0 {
		filter["destination_id"] = cms.Eq(o.DestinationID)
	}
	if o.FeaturedStatus != "" {
		filter["featured_status"] = cms.Eq(o.FeaturedStatus)
	}
	filter.Merge(o.Filters)

	switch {
	case o.ID != 0:
		filter["id"] = cms.Eq(o.ID)
	case o.Slug != "":
		filter["translations"] = cms.Filter{"slug_permalink": cms.Eq(o.Slug)}
	}

	q := cms.Query{
		Fields: prof.Fields,
		Filter: filter,
		Deep:   languageDeep(o.Lang, prof.Relations),
		Sort:   prof.Sort,
		Limit:  resolveLimit(o.Limit, o.single(), prof),
	}
	if !o.single() {
		q.Offset = o.Offset
		if o.WithTotal {
			q.Meta = cms.MetaFilterCount
		}
	}
	return q
}

// buildCompanyQuery translates o into a companies query. Only active
// companies are ever returned.
func buildCompanyQuery(o CompanyOptions) cms.Query {
	prof := LookupProfile(EntityCompanies, o.Profile)

	filter := intrinsicFilter(EntityCompanies)
	if o.CategoryID != 0 {
		filter["category_id"] = cms.Eq(o.CategoryID)
	}
	if o.DestinationID != 0 {
		filter["destination_id"] = cms.Eq(o.DestinationID)
	}
	if o.Featured {
		filter["featured_status"] = cms.Eq(true)
	}
	filter.Merge(o.Filters)

	switch {
	case o.UUID != "":
		filter["uuid"] = cms.Eq(o.UUID)
	case o.ID != 0:
		filter["id"] = cms.Eq(o.ID)
	case o.Slug != "":
		filter["slug_permalink"] = cms.Eq(o.Slug)
	}

	sort := prof.Sort
	if o.Featured {
		sort = featuredCompanySort
	}

	q := cms.Query{
		Fields: prof.Fields,
		Filter: filter,
		Deep:   languageDeep(o.Lang, prof.Relations),
		Sort:   sort,
		Limit:  resolveLimit(o.Limit, o.single(), prof),
	}
	if !o.single() {
		q.Offset = o.Offset
	}
	return q
}
