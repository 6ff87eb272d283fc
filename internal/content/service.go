// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content serves destinations, articles and companies from the CMS
// through the content cache.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cache"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/util"
)

// ErrMissingLookup is returned by single-item methods called without an id,
// uuid or slug.
var ErrMissingLookup = errors.New("content: id, uuid or slug required")

// errNotFound is returned by compute functions for results that must not be
// cached: missing items and queries the CMS rejected.
var errNotFound = errors.New("content: not found")

// Fetcher reads items from a CMS collection. *cms.Client implements it.
type Fetcher interface {
	Items(ctx context.Context, collection string, q cms.Query, dst any) (cms.Meta, error)
}

// Recorder receives content metrics. *metrics.Metrics implements it.
type Recorder interface {
	CacheRequest(entity, result string)
	Fallback(entity, kind string)
}

type nopRecorder struct{}

func (nopRecorder) CacheRequest(string, string) {}
func (nopRecorder) Fallback(string, string)     {}

// Fallback kinds reported to the Recorder.
const (
	fallbackLanguage   = "language"
	fallbackDecomposed = "decomposed"
)

// PagerOptions configures full-collection pagination in AllSlugs.
type PagerOptions struct {
	PageSize  int
	PageDelay time.Duration
	Retries   int
	Backoff   time.Duration
}

// DefaultPagerOptions returns the pagination defaults.
func DefaultPagerOptions() PagerOptions {
	return PagerOptions{
		PageSize:  100,
		PageDelay: 100 * time.Millisecond,
		Retries:   3,
		Backoff:   time.Second,
	}
}

// Options configures NewService.
type Options struct {
	Fetcher Fetcher

	// Cache may be nil, in which case every query goes to the CMS.
	Cache *cache.Manager

	// FallbackLanguage is served when the requested translation is missing.
	FallbackLanguage string

	// SanitizeHTML cleans rich-text descriptions before they are cached.
	SanitizeHTML bool

	Pager   PagerOptions
	Logger  *slog.Logger
	Metrics Recorder
}

// Service is the content query layer.
type Service struct {
	fetcher   Fetcher
	cache     *cache.Manager
	fallback  string
	sanitizer *sanitizer
	pager     PagerOptions
	logger    *slog.Logger
	metrics   Recorder
}

// NewService creates a content service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	fallback := opts.FallbackLanguage
	if fallback == "" {
		fallback = cache.DefaultLanguage
	}
	pager := opts.Pager
	def := DefaultPagerOptions()
	if pager.PageSize <= 0 {
		pager.PageSize = def.PageSize
	}
	if pager.Retries < 0 {
		pager.Retries = 0
	}

	s := &Service{
		fetcher:  opts.Fetcher,
		cache:    opts.Cache,
		fallback: fallback,
		pager:    pager,
		logger:   logger,
		metrics:  rec,
	}
	if opts.SanitizeHTML {
		s.sanitizer = newSanitizer()
	}

	if s.cache != nil {
		s.cache.OnOutcome(func(key string, o cache.Outcome) {
			rec.CacheRequest(entityFromKey(key), string(o))
		})
	}
	return s
}

// entityFromKey extracts the entity segment of a cache key.
func entityFromKey(key string) string {
	kc, _ := cache.ParseKey(key)
	return kc.Entity
}

func (s *Service) namespace() string {
	if s.cache == nil {
		return ""
	}
	return s.cache.Namespace()
}

// lang returns the canonical form of code, or the fallback language when
// code is empty or not a valid language tag.
func (s *Service) lang(code string) string {
	if code == "" {
		return s.fallback
	}
	canon, err := util.ParseLanguage(code)
	if err != nil {
		s.logger.Debug("invalid language, using fallback", "lang", code, "fallback", s.fallback)
		return s.fallback
	}
	return canon
}

// requester picks the cache tier for a query and reports whether the cache
// must be bypassed.
func (s *Service) requester(reason string) (*cache.Requester, bool) {
	if s.cache == nil {
		return nil, true
	}
	switch reason {
	case "":
		return s.cache.Shared, false
	case skipDestination:
		if s.cache.Scoped != nil {
			return s.cache.Scoped, false
		}
	}
	return s.cache.Shared, true
}

// cached runs compute through the cache tier selected for shape.
// Results signalled with errNotFound are returned as the zero value and
// never stored.
func cached[T any](ctx context.Context, s *Service, entity Entity, lang string, opts any, shape queryShape, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	reason := skipReason(shape)
	r, skip := s.requester(reason)

	key, err := cache.NewContext(s.namespace(), string(entity), lang, s.fallback).Key(opts)
	if err != nil {
		s.logger.Warn("cache key unavailable, fetching directly", "entity", entity, "error", err)
		skip = true
	}
	if reason != "" {
		s.logger.Debug("cache policy", "entity", entity, "lang", lang, "reason", reason, "skip", skip)
	}

	v, err := cache.Do(ctx, r, key, ttl, skip, compute)
	if errors.Is(err, errNotFound) {
		var zero T
		return zero, nil
	}
	return v, err
}

// Destinations lists destinations. A query the CMS rejects yields an empty
// list.
func (s *Service) Destinations(ctx context.Context, o DestinationOptions) ([]Destination, error) {
	o.Lang = s.lang(o.Lang)
	o.Profile = o.Profile.orDefault()
	if o.Limit != nil && *o.Limit == 0 {
		return []Destination{}, nil
	}

	ttl := TTL(EntityDestinations, o.Profile)
	items, err := cached(ctx, s, EntityDestinations, o.Lang, o, o.shape(), ttl, func(ctx context.Context) ([]Destination, error) {
		return s.listDestinations(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Destination{}
	}
	return items, nil
}

func (s *Service) listDestinations(ctx context.Context, o DestinationOptions) ([]Destination, error) {
	var items []Destination
	if _, err := s.fetcher.Items(ctx, string(EntityDestinations), buildDestinationQuery(o), &items); err != nil {
		return nil, s.listError(EntityDestinations, o.Lang, err)
	}
	for i := range items {
		s.finishDestination(&items[i], o.Lang)
	}
	return items, nil
}

// Destination returns one destination by id or slug, in the requested
// language or the fallback language. It returns nil when not found.
func (s *Service) Destination(ctx context.Context, o DestinationOptions) (*Resolved[Destination], error) {
	if !o.single() {
		return nil, ErrMissingLookup
	}
	o.Lang = s.lang(o.Lang)
	o.Profile = o.Profile.orDefault()
	o.Limit, o.Offset = nil, 0

	ttl := TTL(EntityDestinations, o.Profile)
	return cached(ctx, s, EntityDestinations, o.Lang, o, o.shape(), ttl, func(ctx context.Context) (*Resolved[Destination], error) {
		res, err := resolve(ctx, o.Lang, s.fallback, func(ctx context.Context, lang string) (*Destination, error) {
			oo := o
			oo.Lang = lang
			return s.fetchDestination(ctx, oo)
		})
		return resolved(s, EntityDestinations, res, err)
	})
}

func (s *Service) fetchDestination(ctx context.Context, o DestinationOptions) (*Destination, error) {
	var items []Destination
	_, err := s.fetcher.Items(ctx, string(EntityDestinations), buildDestinationQuery(o), &items)
	if cms.IsRejection(err) {
		return s.decomposedDestination(ctx, o), nil
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	d := items[0]
	s.finishDestination(&d, o.Lang)
	return &d, nil
}

func (s *Service) finishDestination(d *Destination, lang string) {
	d.collapse(lang)
	s.sanitizer.destination(d)
	if err := d.Validate(); err != nil {
		s.logger.Warn("destination hierarchy incomplete", "id", d.ID, "type", d.Type, "error", err)
	}
}

// Articles lists published articles. With WithTotal set the number of
// matching articles is returned as well.
func (s *Service) Articles(ctx context.Context, o ArticleOptions) (ArticleList, error) {
	o.Lang = s.lang(o.Lang)
	o.Profile = o.Profile.orDefault()
	if o.Limit != nil && *o.Limit == 0 {
		return ArticleList{Articles: []Article{}}, nil
	}

	ttl := TTL(EntityArticles, o.Profile)
	list, err := cached(ctx, s, EntityArticles, o.Lang, o, o.shape(), ttl, func(ctx context.Context) (ArticleList, error) {
		return s.listArticles(ctx, o)
	})
	if err != nil {
		return ArticleList{}, err
	}
	if list.Articles == nil {
		list.Articles = []Article{}
	}
	return list, nil
}

func (s *Service) listArticles(ctx context.Context, o ArticleOptions) (ArticleList, error) {
	var items []Article
	meta, err := s.fetcher.Items(ctx, string(EntityArticles), buildArticleQuery(o), &items)
	if err != nil {
		return ArticleList{}, s.listError(EntityArticles, o.Lang, err)
	}
	for i := range items {
		s.finishArticle(&items[i], o.Lang)
	}
	list := ArticleList{Articles: items}
	if o.WithTotal {
		list.Total = meta.FilterCount
	}
	return list, nil
}

// Article returns one published article by id or slug.
// It returns nil when not found.
func (s *Service) Article(ctx context.Context, o ArticleOptions) (*Resolved[Article], error) {
	if !o.single() {
		return nil, ErrMissingLookup
	}
	o.Lang = s.lang(o.Lang)
	o.Profile = o.Profile.orDefault()
	o.Limit, o.Offset, o.WithTotal = nil, 0, false

	ttl := TTL(EntityArticles, o.Profile)
	return cached(ctx, s, EntityArticles, o.Lang, o, o.shape(), ttl, func(ctx context.Context) (*Resolved[Article], error) {
		res, err := resolve(ctx, o.Lang, s.fallback, func(ctx context.Context, lang string) (*Article, error) {
			oo := o
			oo.Lang = lang
			return s.fetchArticle(ctx, oo)
		})
		return resolved(s, EntityArticles, res, err)
	})
}

func (s *Service) fetchArticle(ctx context.Context, o ArticleOptions) (*Article, error) {
	var items []Article
	_, err := s.fetcher.Items(ctx, string(EntityArticles), buildArticleQuery(o), &items)
	if cms.IsRejection(err) {
		return s.decomposedArticle(ctx, o), nil
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	a := items[0]
	s.finishArticle(&a, o.Lang)
	return &a, nil
}

func (s *Service) finishArticle(a *Article, lang string) {
	a.collapse(lang)
	s.sanitizer.article(a)
}

// Companies lists active companies.
func (s *Service) Companies(ctx context.Context, o CompanyOptions) ([]Company, error) {
	o.Lang = s.lang(o.Lang)
	o.Profile = o.Profile.orDefault()
	if o.Limit != nil && *o.Limit == 0 {
		return []Company{}, nil
	}

	ttl := TTL(EntityCompanies, o.Profile)
	items, err := cached(ctx, s, EntityCompanies, o.Lang, o, o.shape(), ttl, func(ctx context.Context) ([]Company, error) {
		return s.listCompanies(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Company{}
	}
	return items, nil
}

func (s *Service) listCompanies(ctx context.Context, o CompanyOptions) ([]Company, error) {
	var items []Company
	if _, err := s.fetcher.Items(ctx, string(EntityCompanies), buildCompanyQuery(o), &items); err != nil {
		return nil, s.listError(EntityCompanies, o.Lang, err)
	}
	for i := range items {
		s.finishCompany(&items[i], o.Lang)
	}
	return items, nil
}

// Company returns one active company by uuid, id or slug.
// It returns nil when not found.
func (s *Service) Company(ctx context.Context, o CompanyOptions) (*Resolved[Company], error) {
	if !o.single() {
		return nil, ErrMissingLookup
	}
	o.Lang = s.lang(o.Lang)
	o.Profile = o.Profile.orDefault()
	o.Limit, o.Offset = nil, 0

	ttl := TTL(EntityCompanies, o.Profile)
	return cached(ctx, s, EntityCompanies, o.Lang, o, o.shape(), ttl, func(ctx context.Context) (*Resolved[Company], error) {
		fetch := func(ctx context.Context, lang string) (*Company, error) {
			oo := o
			oo.Lang = lang
			return s.fetchCompany(ctx, oo)
		}
		if !LookupProfile(EntityCompanies, o.Profile).Localized() {
			res, err := resolveOnce(ctx, o.Lang, fetch)
			return resolved(s, EntityCompanies, res, err)
		}
		res, err := resolve(ctx, o.Lang, s.fallback, fetch)
		return resolved(s, EntityCompanies, res, err)
	})
}

func (s *Service) fetchCompany(ctx context.Context, o CompanyOptions) (*Company, error) {
	var items []Company
	_, err := s.fetcher.Items(ctx, string(EntityCompanies), buildCompanyQuery(o), &items)
	if cms.IsRejection(err) {
		return s.decomposedCompany(ctx, o), nil
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	c := items[0]
	s.finishCompany(&c, o.Lang)
	return &c, nil
}

func (s *Service) finishCompany(c *Company, lang string) {
	c.collapse(lang)
	s.sanitizer.company(c)
}

// resolved maps a resolution result onto the values a cached compute
// function returns, and records language fallbacks.
func resolved[T any](s *Service, entity Entity, res *Resolved[T], err error) (*Resolved[T], error) {
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errNotFound
	}
	if res.Fallback {
		s.logger.Info("serving fallback language", "entity", entity, "lang", res.Requested, "served", res.Lang)
		s.metrics.Fallback(string(entity), fallbackLanguage)
	}
	return res, nil
}

// listError turns a CMS rejection of a list query into an uncached empty
// result. Other errors are returned wrapped.
func (s *Service) listError(entity Entity, lang string, err error) error {
	if cms.IsRejection(err) {
		s.logger.Warn("list query rejected, returning empty result", "entity", entity, "lang", lang, "error", err)
		return errNotFound
	}
	return fmt.Errorf("listing %s: %w", entity, err)
}

// cachedEntities are the entity segments that appear in cache keys.
var cachedEntities = []Entity{EntityDestinations, EntityArticles, EntityCompanies, EntitySitemap}

// Invalidate removes cached content. An empty lang clears every language of
// entity. An empty entity clears every entity in lang, or the whole
// namespace when lang is empty too. Purging destinations, articles or
// companies also drops the sitemap of the same languages, since it lists
// their slugs.
func (s *Service) Invalidate(ctx context.Context, entity Entity, lang string) error {
	if s.cache == nil {
		return nil
	}
	if entity == "" && lang == "" {
		if err := s.cache.ClearAll(ctx); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		return nil
	}
	if lang != "" {
		lang = s.lang(lang)
	}

	entities := []Entity{entity}
	switch entity {
	case "":
		entities = cachedEntities
	case EntityDestinations, EntityArticles, EntityCompanies:
		entities = append(entities, EntitySitemap)
	}

	ns := s.cache.Namespace()
	for _, e := range entities {
		prefix := cache.Context{Namespace: ns, Entity: string(e), Lang: lang}.Prefix()
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
			return fmt.Errorf("invalidating %q: %w", prefix, err)
		}
		s.logger.Info("cache invalidated", "prefix", prefix)
	}
	return nil
}
