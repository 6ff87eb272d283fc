// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
)

// MetaFilterCount asks the CMS to report the number of items matching the
// filter, ignoring limit and offset.
const MetaFilterCount = "filter_count"

// Filter is a Directus filter object, e.g. {"status": {"_eq": "published"}}.
type Filter map[string]any

// Eq builds an equality rule.
func Eq(v any) map[string]any {
	return map[string]any{"_eq": v}
}

// Merge copies every rule of other into f, replacing rules with the same key.
func (f Filter) Merge(other map[string]any) Filter {
	maps.Copy(f, other)
	return f
}

// Query is one read against /items/<collection>.
type Query struct {
	Fields []string
	Filter Filter
	Deep   map[string]any
	Sort   []string

	// Limit nil leaves the CMS default; -1 requests every item.
	Limit  *int
	Offset int
	Meta   string
}

// Limit returns a pointer to n for Query.Limit.
func Limit(n int) *int {
	return &n
}

// Encode returns the URL-encoded query string.
func (q Query) Encode() (string, error) {
	v := url.Values{}
	if len(q.Fields) > 0 {
		v.Set("fields", strings.Join(q.Fields, ","))
	}
	if len(q.Filter) > 0 {
		b, err := json.Marshal(q.Filter)
		if err != nil {
			return "", fmt.Errorf("encoding filter: %w", err)
		}
		v.Set("filter", string(b))
	}
	if len(q.Deep) > 0 {
		b, err := json.Marshal(q.Deep)
		if err != nil {
			return "", fmt.Errorf("encoding deep: %w", err)
		}
		v.Set("deep", string(b))
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if q.Limit != nil {
		v.Set("limit", strconv.Itoa(*q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Meta != "" {
		v.Set("meta", q.Meta)
	}
	return v.Encode(), nil
}
