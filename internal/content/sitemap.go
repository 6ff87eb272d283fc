// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cache"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
)

// sitemapConcurrency bounds the entity queries a sitemap build runs at once.
const sitemapConcurrency = 2

// SlugEntry is one addressable item in a sitemap.
type SlugEntry struct {
	ID          int64           `json:"id"`
	UUID        string          `json:"uuid,omitempty"`
	Slug        string          `json:"slug"`
	Type        DestinationType `json:"type,omitempty"`
	RegionID    int64           `json:"region_id,omitempty"`
	ProvinceID  int64           `json:"province_id,omitempty"`
	DateCreated string          `json:"date_created,omitempty"`
}

// Sitemap lists the slugs of every entity type in one language.
type Sitemap struct {
	Lang         string      `json:"lang"`
	Destinations []SlugEntry `json:"destinations"`
	Articles     []SlugEntry `json:"articles"`
	Companies    []SlugEntry `json:"companies"`
}

// sitemapKey is the option value behind sitemap cache keys.
type sitemapKey struct {
	Profile Profile `json:"fields"`
}

// Sitemap returns the slugs of destinations, articles and companies in lang,
// each capped at the sitemap profile's limit.
func (s *Service) Sitemap(ctx context.Context, lang string) (*Sitemap, error) {
	lang = s.lang(lang)
	return cached(ctx, s, EntitySitemap, lang, sitemapKey{Profile: ProfileSitemap}, queryShape{}, sitemapTTL(), func(ctx context.Context) (*Sitemap, error) {
		return s.buildSitemap(ctx, lang)
	})
}

// RefreshSitemap rebuilds the sitemap of lang and replaces the cached copy,
// even when that copy has not expired yet.
func (s *Service) RefreshSitemap(ctx context.Context, lang string) (*Sitemap, error) {
	lang = s.lang(lang)
	if s.cache == nil {
		return s.buildSitemap(ctx, lang)
	}
	key, err := cache.NewContext(s.namespace(), string(EntitySitemap), lang, s.fallback).Key(sitemapKey{Profile: ProfileSitemap})
	if err != nil {
		return nil, fmt.Errorf("sitemap cache key: %w", err)
	}
	return cache.Refresh(ctx, s.cache.Shared, key, sitemapTTL(), func(ctx context.Context) (*Sitemap, error) {
		return s.buildSitemap(ctx, lang)
	})
}

func sitemapTTL() time.Duration {
	return TTL(EntityDestinations, ProfileSitemap)
}

func (s *Service) buildSitemap(ctx context.Context, lang string) (*Sitemap, error) {
	sm := &Sitemap{Lang: lang}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sitemapConcurrency)
	for _, e := range []struct {
		entity Entity
		dst    *[]SlugEntry
	}{
		{EntityDestinations, &sm.Destinations},
		{EntityArticles, &sm.Articles},
		{EntityCompanies, &sm.Companies},
	} {
		g.Go(func() error {
			entries, _, err := s.slugPage(ctx, e.entity, lang, nil, 0)
			if err != nil {
				return fmt.Errorf("sitemap %s: %w", e.entity, err)
			}
			*e.dst = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sm, nil
}

// AllSlugs pages through every item of entity in lang. Pages are read
// sequentially and paced; transient CMS errors are retried with a fixed
// backoff, and any other error aborts the walk.
func (s *Service) AllSlugs(ctx context.Context, entity Entity, lang string) ([]SlugEntry, error) {
	if _, err := ParseEntity(string(entity)); err != nil {
		return nil, err
	}
	lang = s.lang(lang)

	pace := rate.Inf
	if s.pager.PageDelay > 0 {
		pace = rate.Every(s.pager.PageDelay)
	}
	limiter := rate.NewLimiter(pace, 1)

	entries := []SlugEntry{}
	size := s.pager.PageSize
	for offset := 0; ; offset += size {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var (
			page []SlugEntry
			n    int
		)
		err := s.retry(ctx, func() error {
			var err error
			page, n, err = s.slugPage(ctx, entity, lang, cms.Limit(size), offset)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%s page at offset %d: %w", entity, offset, err)
		}

		entries = append(entries, page...)
		if n < size {
			break
		}
	}

	s.logger.Debug("slugs collected", "entity", entity, "lang", lang, "count", len(entries))
	return entries, nil
}

// retry runs op until it succeeds, fails with a non-transient error, or the
// retry budget is spent.
func (s *Service) retry(ctx context.Context, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil || !cms.IsTransient(err) || attempt >= s.pager.Retries {
			return err
		}
		s.logger.Warn("transient CMS error, retrying", "attempt", attempt+1, "backoff", s.pager.Backoff, "error", err)

		t := time.NewTimer(s.pager.Backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// slugPage reads one page of entity with the sitemap profile. It returns the
// entries that have a slug in lang and the number of items the CMS sent.
func (s *Service) slugPage(ctx context.Context, entity Entity, lang string, limit *int, offset int) ([]SlugEntry, int, error) {
	collection := string(entity)
	entries := []SlugEntry{}

	switch entity {
	case EntityDestinations:
		var items []Destination
		q := buildDestinationQuery(DestinationOptions{Lang: lang, Profile: ProfileSitemap, Limit: limit, Offset: offset})
		if _, err := s.fetcher.Items(ctx, collection, q, &items); err != nil {
			return nil, 0, err
		}
		for _, d := range items {
			d.collapse(lang)
			if slug := d.Slug(); slug != "" {
				entries = append(entries, SlugEntry{
					ID:         d.ID,
					Slug:       slug,
					Type:       d.Type,
					RegionID:   refID(d.RegionID),
					ProvinceID: refID(d.ProvinceID),
				})
			}
		}
		return entries, len(items), nil

	case EntityArticles:
		var items []Article
		q := buildArticleQuery(ArticleOptions{Lang: lang, Profile: ProfileSitemap, Limit: limit, Offset: offset})
		if _, err := s.fetcher.Items(ctx, collection, q, &items); err != nil {
			return nil, 0, err
		}
		for _, a := range items {
			a.collapse(lang)
			if slug := a.Slug(); slug != "" {
				entries = append(entries, SlugEntry{ID: a.ID, Slug: slug, DateCreated: a.DateCreated})
			}
		}
		return entries, len(items), nil

	case EntityCompanies:
		var items []Company
		q := buildCompanyQuery(CompanyOptions{Lang: lang, Profile: ProfileSitemap, Limit: limit, Offset: offset})
		if _, err := s.fetcher.Items(ctx, collection, q, &items); err != nil {
			return nil, 0, err
		}
		for _, c := range items {
			if c.SlugPermalink != "" {
				entries = append(entries, SlugEntry{ID: c.ID, UUID: c.UUID, Slug: c.SlugPermalink})
			}
		}
		return entries, len(items), nil
	}

	return nil, 0, fmt.Errorf("no sitemap for entity %q", entity)
}
