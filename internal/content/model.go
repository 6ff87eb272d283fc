// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// DestinationType is the level of a destination in the geographic hierarchy.
type DestinationType string

// Destination types.
const (
	DestinationRegion       DestinationType = "region"
	DestinationProvince     DestinationType = "province"
	DestinationMunicipality DestinationType = "municipality"
)

// Valid reports whether t is a known destination type.
func (t DestinationType) Valid() bool {
	switch t {
	case DestinationRegion, DestinationProvince, DestinationMunicipality:
		return true
	}
	return false
}

// FeaturedStatus marks where an article is promoted.
type FeaturedStatus string

// Article featured statuses.
const (
	FeaturedNone     FeaturedStatus = "none"
	FeaturedHomepage FeaturedStatus = "homepage"
	FeaturedTop      FeaturedStatus = "top"
	FeaturedEditor   FeaturedStatus = "editor"
	FeaturedTrending FeaturedStatus = "trending"
)

// Valid reports whether s is a known featured status.
func (s FeaturedStatus) Valid() bool {
	switch s {
	case FeaturedNone, FeaturedHomepage, FeaturedTop, FeaturedEditor, FeaturedTrending:
		return true
	}
	return false
}

// Ref is a many-to-one relation. The CMS returns either the bare id of the
// related item or, when the relation is expanded, the item itself.
type Ref[T any] struct {
	ID   int64
	Item *T
}

// UnmarshalJSON accepts a number, a numeric string or an object with an "id".
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		var head struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			return err
		}
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		id, err := parseID(head.ID.String())
		if err != nil {
			return err
		}
		r.ID, r.Item = id, &item
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id, err := parseID(s)
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	default:
		id, err := parseID(string(data))
		if err != nil {
			return err
		}
		r.ID = id
		return nil
	}
}

// MarshalJSON writes the expanded item when present, the bare id otherwise.
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Item != nil {
		return json.Marshal(r.Item)
	}
	return json.Marshal(r.ID)
}

func parseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid relation id %q", s)
	}
	return id, nil
}

// refID returns the id of r, or 0 when r is nil.
func refID[T any](r *Ref[T]) int64 {
	if r == nil {
		return 0
	}
	return r.ID
}

// DestinationTranslation is one language of a destination.
type DestinationTranslation struct {
	LanguagesCode   string `json:"languages_code"`
	DestinationName string `json:"destination_name,omitempty"`
	SlugPermalink   string `json:"slug_permalink,omitempty"`
	SEOTitle        string `json:"seo_title,omitempty"`
	SEOSummary      string `json:"seo_summary,omitempty"`
	Description     string `json:"description,omitempty"`
}

// Destination is a region, province or municipality.
type Destination struct {
	ID             int64                    `json:"id"`
	Type           DestinationType          `json:"type,omitempty"`
	RegionID       *Ref[Destination]        `json:"region_id,omitempty"`
	ProvinceID     *Ref[Destination]        `json:"province_id,omitempty"`
	FeaturedStatus bool                     `json:"featured_status,omitempty"`
	FeaturedSort   *int                     `json:"featured_sort,omitempty"`
	Image          string                   `json:"image,omitempty"`
	Lat            *float64                 `json:"lat,omitempty"`
	Long           *float64                 `json:"long,omitempty"`
	Translations   []DestinationTranslation `json:"translations"`
}

// Hierarchy errors reported by Destination.Validate.
var (
	ErrProvinceWithoutRegion       = errors.New("province has no region_id")
	ErrMunicipalityWithoutProvince = errors.New("municipality has no province_id")
	ErrMunicipalityWithoutRegion   = errors.New("municipality has no region_id")
)

// Validate checks the parent references required by the destination type.
// It only sees references that were part of the fetched field set.
func (d Destination) Validate() error {
	var errs []error
	switch d.Type {
	case DestinationProvince:
		if refID(d.RegionID) == 0 {
			errs = append(errs, ErrProvinceWithoutRegion)
		}
	case DestinationMunicipality:
		if refID(d.ProvinceID) == 0 {
			errs = append(errs, ErrMunicipalityWithoutProvince)
		}
		if refID(d.RegionID) == 0 {
			errs = append(errs, ErrMunicipalityWithoutRegion)
		}
	}
	return errors.Join(errs...)
}

// HasTranslation reports whether a translation survived language filtering.
func (d Destination) HasTranslation() bool {
	return len(d.Translations) > 0
}

// Slug returns the slug of the first translation.
func (d Destination) Slug() string {
	if len(d.Translations) == 0 {
		return ""
	}
	return d.Translations[0].SlugPermalink
}

func (d *Destination) collapse(lang string) {
	d.Translations = collapseTranslations(d.Translations, lang, func(t DestinationTranslation) string { return t.LanguagesCode })
	for _, r := range []*Ref[Destination]{d.RegionID, d.ProvinceID} {
		if r != nil && r.Item != nil {
			r.Item.collapse(lang)
		}
	}
}

// CategoryTranslation is one language of a category.
type CategoryTranslation struct {
	LanguagesCode string `json:"languages_code"`
	NomeCategoria string `json:"nome_categoria,omitempty"`
	SlugPermalink string `json:"slug_permalink,omitempty"`
}

// Category groups articles and companies.
type Category struct {
	ID           int64                 `json:"id"`
	Image        string                `json:"image,omitempty"`
	Translations []CategoryTranslation `json:"translations"`
}

func (c *Category) collapse(lang string) {
	c.Translations = collapseTranslations(c.Translations, lang, func(t CategoryTranslation) string { return t.LanguagesCode })
}

// ArticleTranslation is one language of an article.
type ArticleTranslation struct {
	LanguagesCode string `json:"languages_code"`
	Titolo        string `json:"titolo,omitempty"`
	SlugPermalink string `json:"slug_permalink,omitempty"`
	SEOTitle      string `json:"seo_title,omitempty"`
	SEOSummary    string `json:"seo_summary,omitempty"`
	Description   string `json:"description,omitempty"`
}

// Article is a magazine article.
type Article struct {
	ID             int64                `json:"id"`
	Status         string               `json:"status,omitempty"`
	FeaturedStatus FeaturedStatus       `json:"featured_status,omitempty"`
	Image          string               `json:"image,omitempty"`
	DateCreated    string               `json:"date_created,omitempty"`
	CategoryID     *Ref[Category]       `json:"category_id,omitempty"`
	DestinationID  *Ref[Destination]    `json:"destination_id,omitempty"`
	Translations   []ArticleTranslation `json:"translations"`
}

// HasTranslation reports whether a translation survived language filtering.
func (a Article) HasTranslation() bool {
	return len(a.Translations) > 0
}

// Slug returns the slug of the first translation.
func (a Article) Slug() string {
	if len(a.Translations) == 0 {
		return ""
	}
	return a.Translations[0].SlugPermalink
}

func (a *Article) collapse(lang string) {
	a.Translations = collapseTranslations(a.Translations, lang, func(t ArticleTranslation) string { return t.LanguagesCode })
	if a.CategoryID != nil && a.CategoryID.Item != nil {
		a.CategoryID.Item.collapse(lang)
	}
	if a.DestinationID != nil && a.DestinationID.Item != nil {
		a.DestinationID.Item.collapse(lang)
	}
}

// CompanyTranslation is one language of a company.
type CompanyTranslation struct {
	LanguagesCode string `json:"languages_code"`
	Description   string `json:"description,omitempty"`
	SEOTitle      string `json:"seo_title,omitempty"`
	SEOSummary    string `json:"seo_summary,omitempty"`
}

// Company is a point of interest. Its name and slug are not localized.
type Company struct {
	ID             int64                `json:"id"`
	UUID           string               `json:"uuid,omitempty"`
	CompanyName    string               `json:"company_name,omitempty"`
	SlugPermalink  string               `json:"slug_permalink,omitempty"`
	Active         bool                 `json:"active,omitempty"`
	Lat            *float64             `json:"lat,omitempty"`
	Long           *float64             `json:"long,omitempty"`
	CategoryID     *Ref[Category]       `json:"category_id,omitempty"`
	DestinationID  *Ref[Destination]    `json:"destination_id,omitempty"`
	FeaturedStatus bool                 `json:"featured_status,omitempty"`
	FeaturedSort   *int                 `json:"featured_sort,omitempty"`
	Image          string               `json:"image,omitempty"`
	Website        string               `json:"website,omitempty"`
	Translations   []CompanyTranslation `json:"translations"`
}

// HasTranslation reports whether a translation survived language filtering.
func (c Company) HasTranslation() bool {
	return len(c.Translations) > 0
}

func (c *Company) collapse(lang string) {
	c.Translations = collapseTranslations(c.Translations, lang, func(t CompanyTranslation) string { return t.LanguagesCode })
	if c.CategoryID != nil && c.CategoryID.Item != nil {
		c.CategoryID.Item.collapse(lang)
	}
	if c.DestinationID != nil && c.DestinationID.Item != nil {
		c.DestinationID.Item.collapse(lang)
	}
}

// collapseTranslations keeps at most one translation: the first one in lang.
// The CMS is asked to filter server-side; this holds even when it does not.
func collapseTranslations[T any](ts []T, lang string, code func(T) string) []T {
	for _, t := range ts {
		if code(t) == lang {
			return []T{t}
		}
	}
	return []T{}
}
