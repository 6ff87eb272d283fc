// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Entity names a content type. It is also the CMS collection name and the
// entity segment of cache keys.
type Entity string

// Content entities.
const (
	EntityDestinations Entity = "destinations"
	EntityArticles     Entity = "articles"
	EntityCompanies    Entity = "companies"
	EntityCategories   Entity = "categorias"
	EntitySitemap      Entity = "sitemap"
)

// ParseEntity parses a listable entity name.
func ParseEntity(s string) (Entity, error) {
	switch e := Entity(s); e {
	case EntityDestinations, EntityArticles, EntityCompanies:
		return e, nil
	}
	return "", fmt.Errorf("unknown entity %q", s)
}

// translations returns the collection holding the entity's translations.
func (e Entity) translations() string {
	return string(e) + "_translations"
}

// parentKey returns the field of a translation row pointing at its parent.
func (e Entity) parentKey() string {
	return string(e) + "_id"
}

// Profile selects the field set, default limit, sort and TTL of a query.
type Profile string

// Query profiles.
const (
	ProfileMinimal    Profile = "minimal"
	ProfileFull       Profile = "full"
	ProfileSitemap    Profile = "sitemap"
	ProfileHomepage   Profile = "homepage"
	ProfileNavigation Profile = "navigation"
)

// ParseProfile parses a profile name. An empty name is ProfileMinimal and
// "sidebar" is an alias of ProfileNavigation.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ProfileMinimal):
		return ProfileMinimal, nil
	case string(ProfileFull):
		return ProfileFull, nil
	case string(ProfileSitemap):
		return ProfileSitemap, nil
	case string(ProfileHomepage):
		return ProfileHomepage, nil
	case string(ProfileNavigation), "sidebar":
		return ProfileNavigation, nil
	}
	return "", fmt.Errorf("unknown fields profile %q", s)
}

func (p Profile) orDefault() Profile {
	if p == "" {
		return ProfileMinimal
	}
	return p
}

// QueryProfile is the query shape of one (entity, profile) pair.
type QueryProfile struct {
	Fields       []string
	DefaultLimit int
	Sort         []string
	TTL          time.Duration

	// Relations are the localized many-to-one fields expanded by Fields.
	// Each gets the same translation deep filter as the entity itself.
	Relations []string
}

// Shared field groups.
var (
	destinationNameFields = []string{
		"translations.languages_code",
		"translations.destination_name",
		"translations.slug_permalink",
	}
	destinationSEOFields = []string{
		"translations.seo_title",
		"translations.seo_summary",
		"translations.description",
	}
	articleHeadFields = []string{
		"translations.languages_code",
		"translations.titolo",
		"translations.slug_permalink",
	}
	categoryFields = []string{
		"category_id.id",
		"category_id.image",
		"category_id.translations.languages_code",
		"category_id.translations.nome_categoria",
		"category_id.translations.slug_permalink",
	}
)

func relationName(prefix string) []string {
	return []string{
		prefix + ".id",
		prefix + ".type",
		prefix + ".translations.languages_code",
		prefix + ".translations.destination_name",
		prefix + ".translations.slug_permalink",
	}
}

func fields(groups ...[]string) []string {
	return slices.Concat(groups...)
}

var profiles = map[Entity]map[Profile]QueryProfile{
	EntityDestinations: {
		ProfileMinimal: {
			Fields:       fields([]string{"id", "type", "region_id", "province_id", "image"}, destinationNameFields),
			DefaultLimit: 100,
			Sort:         []string{"id"},
			TTL:          24 * time.Hour,
		},
		ProfileFull: {
			Fields: fields(
				[]string{"id", "type", "image", "lat", "long", "featured_status", "featured_sort"},
				destinationNameFields, destinationSEOFields,
				relationName("region_id"), relationName("province_id"),
			),
			DefaultLimit: 50,
			Sort:         []string{"id"},
			TTL:          12 * time.Hour,
			Relations:    []string{"region_id", "province_id"},
		},
		ProfileNavigation: {
			Fields:       fields([]string{"id", "type", "region_id", "province_id"}, destinationNameFields),
			DefaultLimit: 200,
			Sort:         []string{"id"},
			TTL:          12 * time.Hour,
		},
		ProfileHomepage: {
			Fields:       fields([]string{"id", "type", "image", "featured_sort"}, destinationNameFields, []string{"translations.seo_summary"}),
			DefaultLimit: 12,
			Sort:         []string{"featured_sort", "id"},
			TTL:          30 * time.Minute,
		},
		ProfileSitemap: {
			Fields:       []string{"id", "type", "region_id", "province_id", "translations.languages_code", "translations.slug_permalink"},
			DefaultLimit: 1000,
			Sort:         []string{"id"},
			TTL:          6 * time.Hour,
		},
	},
	EntityArticles: {
		ProfileMinimal: {
			Fields:       fields([]string{"id", "image", "date_created", "featured_status", "category_id"}, articleHeadFields, []string{"translations.seo_summary"}),
			DefaultLimit: 20,
			Sort:         []string{"-date_created"},
			TTL:          time.Hour,
		},
		ProfileFull: {
			Fields: fields(
				[]string{"id", "status", "image", "date_created", "featured_status", "destination_id"},
				articleHeadFields,
				[]string{"translations.seo_title", "translations.seo_summary", "translations.description"},
				categoryFields,
			),
			DefaultLimit: 20,
			Sort:         []string{"-date_created"},
			TTL:          time.Hour,
			Relations:    []string{"category_id"},
		},
		ProfileNavigation: {
			Fields:       fields([]string{"id", "image", "date_created"}, articleHeadFields),
			DefaultLimit: 5,
			Sort:         []string{"-date_created"},
			TTL:          30 * time.Minute,
		},
		ProfileHomepage: {
			Fields: fields(
				[]string{"id", "image", "date_created", "featured_status"},
				articleHeadFields, []string{"translations.seo_summary"},
				categoryFields,
			),
			DefaultLimit: 8,
			Sort:         []string{"-date_created"},
			TTL:          15 * time.Minute,
			Relations:    []string{"category_id"},
		},
		ProfileSitemap: {
			Fields:       []string{"id", "date_created", "translations.languages_code", "translations.slug_permalink"},
			DefaultLimit: 1000,
			Sort:         []string{"-date_created"},
			TTL:          6 * time.Hour,
		},
	},
	EntityCompanies: {
		ProfileMinimal: {
			Fields: fields(
				[]string{"id", "uuid", "company_name", "slug_permalink", "image", "lat", "long", "featured_status", "featured_sort", "category_id", "destination_id"},
				[]string{"translations.languages_code", "translations.seo_summary"},
			),
			DefaultLimit: 20,
			Sort:         []string{"company_name"},
			TTL:          2 * time.Hour,
		},
		ProfileFull: {
			Fields: fields(
				[]string{"id", "uuid", "company_name", "slug_permalink", "active", "image", "website", "lat", "long", "featured_status", "featured_sort"},
				[]string{"translations.languages_code", "translations.description", "translations.seo_title", "translations.seo_summary"},
				categoryFields, relationName("destination_id"),
			),
			DefaultLimit: 20,
			Sort:         []string{"company_name"},
			TTL:          time.Hour,
			Relations:    []string{"category_id", "destination_id"},
		},
		ProfileNavigation: {
			Fields:       []string{"id", "uuid", "company_name", "slug_permalink", "image"},
			DefaultLimit: 6,
			Sort:         []string{"company_name"},
			TTL:          time.Hour,
		},
		ProfileHomepage: {
			Fields:       []string{"id", "uuid", "company_name", "slug_permalink", "image", "featured_sort", "translations.languages_code", "translations.seo_summary"},
			DefaultLimit: 12,
			Sort:         []string{"featured_sort", "company_name"},
			TTL:          30 * time.Minute,
		},
		ProfileSitemap: {
			Fields:       []string{"id", "uuid", "slug_permalink"},
			DefaultLimit: 1000,
			Sort:         []string{"id"},
			TTL:          6 * time.Hour,
		},
	},
}

// LookupProfile returns the query profile of (entity, profile).
// Unknown pairs fall back to the entity's minimal profile.
func LookupProfile(e Entity, p Profile) QueryProfile {
	byProfile, ok := profiles[e]
	if !ok {
		return QueryProfile{Fields: []string{"*"}, DefaultLimit: 20, TTL: time.Hour}
	}
	if qp, ok := byProfile[p.orDefault()]; ok {
		return qp
	}
	return byProfile[ProfileMinimal]
}

// Localized reports whether the profile reads any translation field.
func (qp QueryProfile) Localized() bool {
	return slices.ContainsFunc(qp.Fields, func(f string) bool {
		return strings.HasPrefix(f, "translations.")
	})
}

// TTL returns the cache lifetime of (entity, profile).
func TTL(e Entity, p Profile) time.Duration {
	return LookupProfile(e, p).TTL
}
