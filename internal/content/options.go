// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

// The option structs are also the input of cache keys: every field that
// changes the query must be serialized, and nothing else.

// DestinationOptions selects destinations.
type DestinationOptions struct {
	Lang    string  `json:"lang,omitempty"`
	Profile Profile `json:"fields,omitempty"`
	Limit   *int    `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`

	// Single-item lookups; ID takes precedence over Slug.
	ID   int64  `json:"id,omitempty"`
	Slug string `json:"slug,omitempty"`

	Type       DestinationType `json:"type,omitempty"`
	RegionID   int64           `json:"region_id,omitempty"`
	ProvinceID int64           `json:"province_id,omitempty"`
	Featured   bool            `json:"featured,omitempty"`

	// Filters are raw CMS filter rules merged last; they win on key collision.
	Filters map[string]any `json:"filters,omitempty"`
}

func (o DestinationOptions) single() bool {
	return o.ID != 0 || o.Slug != ""
}

// ArticleOptions selects articles.
type ArticleOptions struct {
	Lang    string  `json:"lang,omitempty"`
	Profile Profile `json:"fields,omitempty"`
	Limit   *int    `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`

	// Single-item lookups; ID takes precedence over Slug.
	ID   int64  `json:"id,omitempty"`
	Slug string `json:"slug,omitempty"`

	CategoryID     int64          `json:"category_id,omitempty"`
	DestinationID  int64          `json:"destination_id,omitempty"`
	FeaturedStatus FeaturedStatus `json:"featured_status,omitempty"`

	// WithTotal asks the CMS for the number of matching articles.
	WithTotal bool `json:"total,omitempty"`

	Filters map[string]any `json:"filters,omitempty"`
}

func (o ArticleOptions) single() bool {
	return o.ID != 0 || o.Slug != ""
}

// CompanyOptions selects companies.
type CompanyOptions struct {
	Lang    string  `json:"lang,omitempty"`
	Profile Profile `json:"fields,omitempty"`
	Limit   *int    `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`

	// Single-item lookups; UUID, then ID, take precedence over Slug.
	ID   int64  `json:"id,omitempty"`
	UUID string `json:"uuid,omitempty"`
	Slug string `json:"slug,omitempty"`

	CategoryID    int64 `json:"category_id,omitempty"`
	DestinationID int64 `json:"destination_id,omitempty"`
	Featured      bool  `json:"featured,omitempty"`

	Filters map[string]any `json:"filters,omitempty"`
}

func (o CompanyOptions) single() bool {
	return o.ID != 0 || o.UUID != "" || o.Slug != ""
}

// ArticleList is a page of articles. Total is the number of articles
// matching the filter when it was requested, and 0 otherwise.
type ArticleList struct {
	Articles []Article `json:"articles"`
	Total    int       `json:"total,omitempty"`
}

// Resolved is a single item together with the language it is served in.
type Resolved[T any] struct {
	Item T `json:"item"`

	// Lang is the language of Item's translation.
	Lang string `json:"lang"`

	// Requested is the language asked for.
	Requested string `json:"requested_lang"`

	// Fallback is true when Lang differs from Requested.
	Fallback bool `json:"fallback"`
}
