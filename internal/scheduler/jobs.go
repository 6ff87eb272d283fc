// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/content"
)

// Job names and default schedules.
const (
	JobRecycleClient = "recycle-cms-client"
	JobWarmSitemap   = "warm-sitemap"

	RecycleSchedule = "* * * * *"
	WarmSchedule    = "*/15 * * * *"
)

// Recycler is a CMS client that can be swapped for a fresh one.
// *cms.Client implements it.
type Recycler interface {
	Stale(maxAge time.Duration) bool
	Age() time.Duration
	Reset()
}

// RecycleClient returns a job that resets the client once it is older than
// maxAge.
func RecycleClient(c Recycler, maxAge time.Duration, logger *slog.Logger) Job {
	return func(context.Context) error {
		if !c.Stale(maxAge) {
			return nil
		}
		logger.Info("recycling stale cms client", "age", c.Age().Round(time.Second), "max_age", maxAge)
		c.Reset()
		return nil
	}
}

// SitemapSource rebuilds the cached sitemap of one language.
// *content.Service implements it.
type SitemapSource interface {
	RefreshSitemap(ctx context.Context, lang string) (*content.Sitemap, error)
}

// WarmSitemap returns a job that rebuilds the sitemap of each language and
// overwrites the cached copy, so visitors never wait for a rebuild. A
// failing language does not stop the others.
func WarmSitemap(src SitemapSource, langs []string, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		var errs []error
		for _, lang := range langs {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}

			sm, err := src.RefreshSitemap(ctx, lang)
			if err != nil {
				errs = append(errs, fmt.Errorf("warming %s sitemap: %w", lang, err))
				continue
			}
			logger.Debug("sitemap warmed",
				"lang", lang,
				"destinations", len(sm.Destinations),
				"articles", len(sm.Articles),
				"companies", len(sm.Companies),
			)
		}
		return errors.Join(errs...)
	}
}
