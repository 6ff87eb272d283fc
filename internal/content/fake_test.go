// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cache"
	"github.com/thebestitaly/thebestitaly-next-sub000/internal/cms"
)

// row is one CMS item. Translations are stored under "translations" as
// []row; relations are stored as bare ids.
type row = map[string]any

// fakeRelations maps relation fields to the collection they point at.
var fakeRelations = map[string]string{
	"region_id":      "destinations",
	"province_id":    "destinations",
	"category_id":    "categorias",
	"destination_id": "destinations",
}

type fakeCall struct {
	Collection string
	Query      cms.Query
}

// fakeCMS answers Items queries from in-memory collections. It implements
// the subset of the Directus query language the builders emit: _eq filters,
// nested filters on translations and relations, dot-path fields, deep
// translation filters, limit and offset. Sort is ignored; rows come back
// in insertion order.
type fakeCMS struct {
	mu    sync.Mutex
	data  map[string][]row
	calls []fakeCall

	// reject makes a query fail with 403, like a CMS refusing a deep query.
	reject func(collection string, q cms.Query) bool

	// fail injects an error before the query runs.
	fail func(collection string, q cms.Query) error
}

func newFakeCMS(data map[string][]row) *fakeCMS {
	return &fakeCMS{data: data}
}

func (f *fakeCMS) Items(ctx context.Context, collection string, q cms.Query, dst any) (cms.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, fakeCall{Collection: collection, Query: q})
	if err := ctx.Err(); err != nil {
		return cms.Meta{}, err
	}
	if f.fail != nil {
		if err := f.fail(collection, q); err != nil {
			return cms.Meta{}, err
		}
	}
	if f.reject != nil && f.reject(collection, q) {
		return cms.Meta{}, &cms.APIError{Status: http.StatusForbidden, Collection: collection}
	}

	filter := normalize(q.Filter)
	deep := normalize(q.Deep)

	var matched []row
	for _, item := range f.rows(collection) {
		if f.matches(item, filter) {
			matched = append(matched, item)
		}
	}

	var meta cms.Meta
	if q.Meta == cms.MetaFilterCount {
		meta.FilterCount = len(matched)
	}

	matched = window(matched, q.Limit, q.Offset)
	out := make([]row, 0, len(matched))
	for _, item := range matched {
		p := f.project(item, q.Fields)
		f.applyDeep(p, deep)
		out = append(out, p)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return cms.Meta{}, err
	}
	return meta, json.Unmarshal(data, dst)
}

func (f *fakeCMS) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeCMS) CallCount(collection string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Collection == collection {
			n++
		}
	}
	return n
}

// rows returns the items of collection. Translation collections are
// derived from their parents.
func (f *fakeCMS) rows(collection string) []row {
	parent, ok := strings.CutSuffix(collection, "_translations")
	if !ok {
		return f.data[collection]
	}
	var out []row
	for _, item := range f.data[parent] {
		for _, t := range asRows(item["translations"]) {
			r := row{parent + "_id": item["id"]}
			for k, v := range t {
				r[k] = v
			}
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeCMS) find(collection string, id any) row {
	for _, item := range f.data[collection] {
		if fmt.Sprint(item["id"]) == fmt.Sprint(id) {
			return item
		}
	}
	return nil
}

func (f *fakeCMS) matches(item row, filter map[string]any) bool {
	for key, cond := range filter {
		c, ok := cond.(map[string]any)
		if !ok {
			return false
		}
		v := item[key]

		if eq, ok := c["_eq"]; ok {
			if fmt.Sprint(v) != fmt.Sprint(eq) {
				return false
			}
			continue
		}

		if list := asRows(v); list != nil {
			if !slices.ContainsFunc(list, func(el row) bool { return f.matches(el, c) }) {
				return false
			}
			continue
		}

		coll, isRel := fakeRelations[key]
		if !isRel {
			return false
		}
		related := f.find(coll, v)
		if related == nil || !f.matches(related, c) {
			return false
		}
	}
	return true
}

func (f *fakeCMS) project(item row, fields []string) row {
	if len(fields) == 0 || slices.Contains(fields, "*") {
		out := row{}
		for k, v := range item {
			out[k] = v
		}
		return out
	}

	tree := map[string][]string{}
	for _, field := range fields {
		head, rest, _ := strings.Cut(field, ".")
		if rest == "" {
			if _, ok := tree[head]; !ok {
				tree[head] = nil
			}
			continue
		}
		tree[head] = append(tree[head], rest)
	}

	out := row{}
	for head, nested := range tree {
		v, ok := item[head]
		if !ok || v == nil {
			continue
		}
		if list := asRows(v); list != nil {
			projected := make([]row, 0, len(list))
			for _, el := range list {
				projected = append(projected, f.project(el, nested))
			}
			out[head] = projected
			continue
		}
		if coll, isRel := fakeRelations[head]; isRel && len(nested) > 0 {
			if related := f.find(coll, v); related != nil {
				out[head] = f.project(related, nested)
			}
			continue
		}
		out[head] = v
	}
	return out
}

func (f *fakeCMS) applyDeep(obj row, deep map[string]any) {
	for key, rule := range deep {
		s, ok := rule.(map[string]any)
		if !ok {
			continue
		}
		if flt, ok := s["_filter"].(map[string]any); ok {
			if list := asRows(obj[key]); list != nil {
				kept := []row{}
				for _, el := range list {
					if f.matches(el, flt) {
						kept = append(kept, el)
					}
				}
				obj[key] = kept
			}
			continue
		}
		if child, ok := obj[key].(row); ok {
			f.applyDeep(child, s)
		}
	}
}

func asRows(v any) []row {
	switch list := v.(type) {
	case []row:
		return list
	case []any:
		out := make([]row, 0, len(list))
		for _, el := range list {
			if r, ok := el.(row); ok {
				out = append(out, r)
			}
		}
		return out
	}
	return nil
}

func window(items []row, limit *int, offset int) []row {
	n := 100
	if limit != nil {
		n = *limit
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if n >= 0 && n < len(items) {
		items = items[:n]
	}
	return items
}

// normalize turns typed filter values into plain JSON maps.
func normalize(v any) map[string]any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return out
}

// rejectDeepQueries refuses slug lookups through the translations relation
// and queries that expand localized relations.
func rejectDeepQueries(collection string, q cms.Query) bool {
	if strings.HasSuffix(collection, "_translations") {
		return false
	}
	if _, ok := q.Filter["translations"]; ok {
		return true
	}
	return len(q.Deep) > 1
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, scopedSize int) *cache.Manager {
	t.Helper()
	res, err := cache.NewCache(cache.Config{DefaultTTL: time.Hour}, quietLogger())
	require.NoError(t, err)

	m := cache.NewManager(cache.ManagerOptions{
		Namespace:  "tbi",
		Backend:    res,
		ScopedSize: scopedSize,
		Logger:     quietLogger(),
	})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type serviceOption func(*Options)

func withFallback(lang string) serviceOption {
	return func(o *Options) { o.FallbackLanguage = lang }
}

func withCache(m *cache.Manager) serviceOption {
	return func(o *Options) { o.Cache = m }
}

func withSanitizer() serviceOption {
	return func(o *Options) { o.SanitizeHTML = true }
}

func withPager(p PagerOptions) serviceOption {
	return func(o *Options) { o.Pager = p }
}

func withMetrics(r Recorder) serviceOption {
	return func(o *Options) { o.Metrics = r }
}

func newTestService(f Fetcher, opts ...serviceOption) *Service {
	o := Options{
		Fetcher:          f,
		FallbackLanguage: "it",
		Logger:           quietLogger(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return NewService(o)
}

// italy is a small catalogue: one region with a province and a
// municipality, one category, two articles and two companies.
func italy() map[string][]row {
	return map[string][]row{
		"destinations": {
			{
				"id": 1, "type": "region", "image": "toscana.jpg",
				"translations": []row{
					{"languages_code": "it", "destination_name": "Toscana", "slug_permalink": "toscana", "seo_title": "Toscana", "description": "<p>Colline</p>"},
					{"languages_code": "en", "destination_name": "Tuscany", "slug_permalink": "tuscany", "seo_title": "Tuscany", "description": "<p>Hills</p>"},
				},
			},
			{
				"id": 2, "type": "province", "region_id": 1, "image": "firenze.jpg",
				"translations": []row{
					{"languages_code": "it", "destination_name": "Firenze", "slug_permalink": "firenze"},
					{"languages_code": "en", "destination_name": "Florence", "slug_permalink": "florence"},
				},
			},
			{
				"id": 3, "type": "municipality", "region_id": 1, "province_id": 2,
				"translations": []row{
					{"languages_code": "it", "destination_name": "Greve in Chianti", "slug_permalink": "greve-in-chianti"},
				},
			},
		},
		"categorias": {
			{
				"id": 10, "image": "food.jpg",
				"translations": []row{
					{"languages_code": "it", "nome_categoria": "Cibo", "slug_permalink": "cibo"},
					{"languages_code": "en", "nome_categoria": "Food", "slug_permalink": "food"},
				},
			},
		},
		"articles": {
			{
				"id": 100, "status": "published", "featured_status": "homepage", "date_created": "2025-05-01T10:00:00",
				"category_id": 10, "destination_id": 2,
				"translations": []row{
					{"languages_code": "it", "titolo": "Bistecca", "slug_permalink": "bistecca", "description": "<p>Carne</p>"},
					{"languages_code": "en", "titolo": "Steak", "slug_permalink": "steak", "description": "<p>Meat</p>"},
				},
			},
			{
				"id": 101, "status": "draft", "date_created": "2025-05-02T10:00:00",
				"translations": []row{
					{"languages_code": "it", "titolo": "Bozza", "slug_permalink": "bozza"},
				},
			},
		},
		"companies": {
			{
				"id": 200, "uuid": "6f1c1d9e-2c1a-4d4e-9f7a-1b2c3d4e5f60", "company_name": "Trattoria Mario",
				"slug_permalink": "trattoria-mario", "active": true, "category_id": 10, "destination_id": 2,
				"translations": []row{
					{"languages_code": "it", "description": "<p>Cucina tipica</p>", "seo_summary": "Cucina"},
				},
			},
			{
				"id": 201, "uuid": "0b6f5d1a-7e2b-4c3d-8a9f-0e1d2c3b4a59", "company_name": "Chiuso",
				"slug_permalink": "chiuso", "active": false,
			},
		},
	}
}
