// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
)

// The decomposed path replaces one combined query the CMS rejected with
// several flat ones: the translation record, the parent by id, then each
// localized relation by id. Results are spliced into the same shape the
// combined query returns. Any failure means "not found".

// fetchOne returns the first item of a query, or nil.
func fetchOne[T any](ctx context.Context, f Fetcher, collection string, q cms.Query) (*T, error) {
	var items []T
	if _, err := f.Items(ctx, collection, q, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// subFields returns the fields under prefix with the prefix removed.
func subFields(fields []string, prefix string) []string {
	var out []string
	for _, f := range fields {
		if rest, ok := strings.CutPrefix(f, prefix+"."); ok {
			out = append(out, rest)
		}
	}
	return out
}

// flatFields returns the top-level fields of prof, including the bare
// foreign keys of its relations.
func flatFields(prof QueryProfile) []string {
	var out []string
	for _, f := range prof.Fields {
		if !strings.Contains(f, ".") {
			out = append(out, f)
		}
	}
	for _, rel := range prof.Relations {
		if !slices.Contains(out, rel) {
			out = append(out, rel)
		}
	}
	return out
}

// translationFields returns the fields to read from a translations
// collection: the profile's translation fields plus the parent key.
func translationFields(e Entity, prof QueryProfile) []string {
	out := subFields(prof.Fields, "translations")
	if !slices.Contains(out, "languages_code") {
		out = append(out, "languages_code")
	}
	return append(out, e.parentKey())
}

// parentID reads the parent reference of a translation row.
func parentID(e Entity, row json.RawMessage) (int64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return 0, err
	}
	raw, ok := fields[e.parentKey()]
	if !ok {
		return 0, fmt.Errorf("translation row has no %s", e.parentKey())
	}
	var ref Ref[struct{}]
	if err := json.Unmarshal(raw, &ref); err != nil {
		return 0, err
	}
	return ref.ID, nil
}

// lookupTranslation finds the parent id and the lang translation of an item
// addressed by id or by slug. A slug may belong to any language. The
// returned row is nil when the item has no translation in lang, and the id
// is 0 when the item does not exist.
func (s *Service) lookupTranslation(ctx context.Context, e Entity, prof QueryProfile, id int64, slug, lang string) (int64, json.RawMessage, error) {
	collection := e.translations()
	base := cms.Query{Fields: translationFields(e, prof), Limit: cms.Limit(1)}

	if id == 0 {
		q := base
		q.Filter = cms.Filter{"slug_permalink": cms.Eq(slug), "languages_code": cms.Eq(lang)}
		row, err := fetchOne[json.RawMessage](ctx, s.fetcher, collection, q)
		if err != nil {
			return 0, nil, err
		}
		if row != nil {
			pid, err := parentID(e, *row)
			return pid, *row, err
		}

		q.Filter = cms.Filter{"slug_permalink": cms.Eq(slug)}
		row, err = fetchOne[json.RawMessage](ctx, s.fetcher, collection, q)
		if err != nil || row == nil {
			return 0, nil, err
		}
		if id, err = parentID(e, *row); err != nil || id == 0 {
			return 0, nil, err
		}
	}

	q := base
	q.Filter = cms.Filter{e.parentKey(): cms.Eq(id), "languages_code": cms.Eq(lang)}
	row, err := fetchOne[json.RawMessage](ctx, s.fetcher, collection, q)
	if err != nil {
		return 0, nil, err
	}
	if row == nil {
		return id, nil, nil
	}
	return id, *row, nil
}

// parentQuery reads one item of e by id with flat fields.
func parentQuery(e Entity, prof QueryProfile, id int64) cms.Query {
	filter := intrinsicFilter(e)
	filter["id"] = cms.Eq(id)
	return cms.Query{Fields: flatFields(prof), Filter: filter, Limit: cms.Limit(1)}
}

// spliceTranslation decodes row into a one-element translation list.
func spliceTranslation[T any](row json.RawMessage) ([]T, error) {
	if row == nil {
		return []T{}, nil
	}
	var t T
	if err := json.Unmarshal(row, &t); err != nil {
		return nil, err
	}
	return []T{t}, nil
}

// fetchRelation expands ref by reading the related item from collection
// with the relation's fields and translations filtered to lang.
func fetchRelation[T any](ctx context.Context, f Fetcher, ref *Ref[T], collection Entity, rel string, prof QueryProfile, lang string) error {
	if ref == nil || ref.ID == 0 {
		return nil
	}
	q := cms.Query{
		Fields: subFields(prof.Fields, rel),
		Filter: cms.Filter{"id": cms.Eq(ref.ID)},
		Deep:   languageDeep(lang, nil),
		Limit:  cms.Limit(1),
	}
	item, err := fetchOne[T](ctx, f, string(collection), q)
	if err != nil {
		return fmt.Errorf("relation %s: %w", rel, err)
	}
	ref.Item = item
	return nil
}

// decomposed logs the outcome of a decomposed fetch and hides its errors.
func decomposed[T any](s *Service, e Entity, lang string, item *T, err error) *T {
	if err != nil {
		s.logger.Warn("decomposed fetch failed", "entity", e, "lang", lang, "error", err)
		return nil
	}
	if item != nil {
		s.logger.Info("served through decomposed fetch", "entity", e, "lang", lang)
		s.metrics.Fallback(string(e), fallbackDecomposed)
	}
	return item
}

func (s *Service) decomposedDestination(ctx context.Context, o DestinationOptions) *Destination {
	prof := LookupProfile(EntityDestinations, o.Profile)
	d, err := func() (*Destination, error) {
		id, row, err := s.lookupTranslation(ctx, EntityDestinations, prof, o.ID, o.Slug, o.Lang)
		if err != nil || id == 0 {
			return nil, err
		}
		d, err := fetchOne[Destination](ctx, s.fetcher, string(EntityDestinations), parentQuery(EntityDestinations, prof, id))
		if err != nil || d == nil {
			return nil, err
		}
		if d.Translations, err = spliceTranslation[DestinationTranslation](row); err != nil {
			return nil, err
		}
		for _, rel := range prof.Relations {
			ref := d.RegionID
			if rel == "province_id" {
				ref = d.ProvinceID
			}
			if err := fetchRelation(ctx, s.fetcher, ref, EntityDestinations, rel, prof, o.Lang); err != nil {
				return nil, err
			}
		}
		return d, nil
	}()

	d = decomposed(s, EntityDestinations, o.Lang, d, err)
	if d != nil {
		s.finishDestination(d, o.Lang)
	}
	return d
}

func (s *Service) decomposedArticle(ctx context.Context, o ArticleOptions) *Article {
	prof := LookupProfile(EntityArticles, o.Profile)
	a, err := func() (*Article, error) {
		id, row, err := s.lookupTranslation(ctx, EntityArticles, prof, o.ID, o.Slug, o.Lang)
		if err != nil || id == 0 {
			return nil, err
		}
		a, err := fetchOne[Article](ctx, s.fetcher, string(EntityArticles), parentQuery(EntityArticles, prof, id))
		if err != nil || a == nil {
			return nil, err
		}
		if a.Translations, err = spliceTranslation[ArticleTranslation](row); err != nil {
			return nil, err
		}
		for _, rel := range prof.Relations {
			switch rel {
			case "category_id":
				err = fetchRelation(ctx, s.fetcher, a.CategoryID, EntityCategories, rel, prof, o.Lang)
			case "destination_id":
				err = fetchRelation(ctx, s.fetcher, a.DestinationID, EntityDestinations, rel, prof, o.Lang)
			}
			if err != nil {
				return nil, err
			}
		}
		return a, nil
	}()

	a = decomposed(s, EntityArticles, o.Lang, a, err)
	if a != nil {
		s.finishArticle(a, o.Lang)
	}
	return a
}

func (s *Service) decomposedCompany(ctx context.Context, o CompanyOptions) *Company {
	prof := LookupProfile(EntityCompanies, o.Profile)
	c, err := func() (*Company, error) {
		filter := intrinsicFilter(EntityCompanies)
		switch {
		case o.UUID != "":
			filter["uuid"] = cms.Eq(o.UUID)
		case o.ID != 0:
			filter["id"] = cms.Eq(o.ID)
		default:
			filter["slug_permalink"] = cms.Eq(o.Slug)
		}
		q := cms.Query{Fields: flatFields(prof), Filter: filter, Limit: cms.Limit(1)}
		c, err := fetchOne[Company](ctx, s.fetcher, string(EntityCompanies), q)
		if err != nil || c == nil {
			return nil, err
		}

		_, row, err := s.lookupTranslation(ctx, EntityCompanies, prof, c.ID, "", o.Lang)
		if err != nil {
			return nil, err
		}
		if c.Translations, err = spliceTranslation[CompanyTranslation](row); err != nil {
			return nil, err
		}
		for _, rel := range prof.Relations {
			switch rel {
			case "category_id":
				err = fetchRelation(ctx, s.fetcher, c.CategoryID, EntityCategories, rel, prof, o.Lang)
			case "destination_id":
				err = fetchRelation(ctx, s.fetcher, c.DestinationID, EntityDestinations, rel, prof, o.Lang)
			}
			if err != nil {
				return nil, err
			}
		}
		return c, nil
	}()

	c = decomposed(s, EntityCompanies, o.Lang, c, err)
	if c != nil {
		s.finishCompany(c, o.Lang)
	}
	return c
}
