// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
)

func fastPager(size, retries int) PagerOptions {
	return PagerOptions{PageSize: size, Retries: retries, Backoff: time.Millisecond}
}

func TestService_Sitemap(t *testing.T) {
	fake := newFakeCMS(italy())
	svc := newTestService(fake, withCache(newTestCache(t, 0)))
	ctx := context.Background()

	sm, err := svc.Sitemap(ctx, "it")
	require.NoError(t, err)

	assert.Equal(t, "it", sm.Lang)
	assert.Equal(t, []SlugEntry{
		{ID: 1, Slug: "toscana", Type: DestinationRegion},
		{ID: 2, Slug: "firenze", Type: DestinationProvince, RegionID: 1},
		{ID: 3, Slug: "greve-in-chianti", Type: DestinationMunicipality, RegionID: 1, ProvinceID: 2},
	}, sm.Destinations)
	assert.Equal(t, []SlugEntry{{ID: 100, Slug: "bistecca", DateCreated: "2025-05-01T10:00:00"}}, sm.Articles)
	assert.Equal(t, []SlugEntry{{ID: 200, UUID: "6f1c1d9e-2c1a-4d4e-9f7a-1b2c3d4e5f60", Slug: "trattoria-mario"}}, sm.Companies)

	again, err := svc.Sitemap(ctx, "it")
	require.NoError(t, err)
	assert.Equal(t, sm, again)
	assert.Len(t, fake.Calls(), 3)
}

func TestService_Sitemap_SkipsUntranslated(t *testing.T) {
	svc := newTestService(newFakeCMS(italy()))

	sm, err := svc.Sitemap(context.Background(), "en")
	require.NoError(t, err)

	assert.Len(t, sm.Destinations, 2)
	assert.Equal(t, "steak", sm.Articles[0].Slug)
}

func TestService_Sitemap_ErrorNotCached(t *testing.T) {
	fake := newFakeCMS(italy())
	fake.fail = func(collection string, _ cms.Query) error {
		if collection == "articles" {
			return &cms.APIError{Status: http.StatusInternalServerError, Collection: collection}
		}
		return nil
	}
	svc := newTestService(fake, withCache(newTestCache(t, 0)))

	_, err := svc.Sitemap(context.Background(), "it")
	require.Error(t, err)

	fake.fail = nil
	sm, err := svc.Sitemap(context.Background(), "it")
	require.NoError(t, err)
	assert.Len(t, sm.Articles, 1)
}

func TestService_RefreshSitemap_ReplacesLiveEntry(t *testing.T) {
	fake := newFakeCMS(italy())
	svc := newTestService(fake, withCache(newTestCache(t, 0)))
	ctx := context.Background()

	_, err := svc.Sitemap(ctx, "it")
	require.NoError(t, err)
	require.Len(t, fake.Calls(), 3)

	fresh, err := svc.RefreshSitemap(ctx, "it")
	require.NoError(t, err)
	assert.Len(t, fake.Calls(), 6, "refresh rebuilds even though the entry is live")

	cached, err := svc.Sitemap(ctx, "it")
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
	assert.Len(t, fake.Calls(), 6)
}

func TestService_RefreshSitemap_NoCache(t *testing.T) {
	fake := newFakeCMS(italy())
	svc := newTestService(fake)

	sm, err := svc.RefreshSitemap(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "en", sm.Lang)
	assert.Len(t, fake.Calls(), 3)
}

func TestService_AllSlugs_Paginates(t *testing.T) {
	fake := newFakeCMS(italy())
	svc := newTestService(fake, withPager(fastPager(2, 0)))

	got, err := svc.AllSlugs(context.Background(), EntityDestinations, "en")
	require.NoError(t, err)

	assert.Equal(t, []string{"tuscany", "florence"}, []string{got[0].Slug, got[1].Slug})
	assert.Len(t, got, 2)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, 0, calls[0].Query.Offset)
	assert.Equal(t, 2, calls[1].Query.Offset)
	for _, c := range calls {
		assert.Equal(t, cms.Limit(2), c.Query.Limit)
	}
}

func TestService_AllSlugs_FullLastPageFetchesOneMore(t *testing.T) {
	fake := newFakeCMS(italy())
	svc := newTestService(fake, withPager(fastPager(1, 0)))

	got, err := svc.AllSlugs(context.Background(), EntityCompanies, "it")
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Len(t, fake.Calls(), 2)
}

func TestService_AllSlugs_RetriesTransientErrors(t *testing.T) {
	fake := newFakeCMS(italy())
	failures := 2
	fake.fail = func(collection string, _ cms.Query) error {
		if failures > 0 {
			failures--
			return &cms.RequestError{Collection: collection, Err: io.ErrUnexpectedEOF}
		}
		return nil
	}
	svc := newTestService(fake, withPager(fastPager(100, 3)))

	got, err := svc.AllSlugs(context.Background(), EntityArticles, "it")
	require.NoError(t, err)

	assert.Len(t, got, 1)
	assert.Len(t, fake.Calls(), 3)
}

func TestService_AllSlugs_RetryBudget(t *testing.T) {
	fake := newFakeCMS(italy())
	fake.fail = func(collection string, _ cms.Query) error {
		return &cms.APIError{Status: http.StatusGatewayTimeout, Collection: collection}
	}
	svc := newTestService(fake, withPager(fastPager(100, 2)))

	_, err := svc.AllSlugs(context.Background(), EntityArticles, "it")
	require.Error(t, err)
	assert.True(t, cms.IsTransient(err))
	assert.Len(t, fake.Calls(), 3)
}

func TestService_AllSlugs_AbortsOnOtherErrors(t *testing.T) {
	fake := newFakeCMS(italy())
	fake.fail = func(collection string, _ cms.Query) error {
		return &cms.APIError{Status: http.StatusInternalServerError, Collection: collection}
	}
	svc := newTestService(fake, withPager(fastPager(100, 3)))

	_, err := svc.AllSlugs(context.Background(), EntityArticles, "it")
	require.Error(t, err)
	assert.Len(t, fake.Calls(), 1)
}

func TestService_AllSlugs_CanceledDuringBackoff(t *testing.T) {
	fake := newFakeCMS(italy())
	fake.fail = func(collection string, _ cms.Query) error {
		return &cms.RequestError{Collection: collection, Err: io.ErrUnexpectedEOF}
	}
	svc := newTestService(fake, withPager(PagerOptions{PageSize: 10, Retries: 5, Backoff: time.Hour}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.AllSlugs(ctx, EntityArticles, "it")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, fake.Calls(), 1)
}

func TestService_AllSlugs_UnknownEntity(t *testing.T) {
	svc := newTestService(newFakeCMS(italy()))

	_, err := svc.AllSlugs(context.Background(), EntitySitemap, "it")
	assert.Error(t, err)
}
