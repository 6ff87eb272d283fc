// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
)

// translated is an entity whose translations were filtered to one language.
type translated interface {
	HasTranslation() bool
}

// fetchFunc loads one item in one language. It returns nil when the item
// does not exist.
type fetchFunc[T any] func(ctx context.Context, lang string) (*T, error)

// resolve loads an item in lang and, when the item exists but has no
// translation in lang, loads it again in fallback.
//
// Lang of the result is the language actually served. When neither
// language has a translation, the first item is returned untranslated with
// Lang set to the requested language.
func resolve[T translated](ctx context.Context, lang, fallback string, fetch fetchFunc[T]) (*Resolved[T], error) {
	item, err := fetch(ctx, lang)
	if err != nil || item == nil {
		return nil, err
	}

	res := &Resolved[T]{Item: *item, Lang: lang, Requested: lang}
	if (*item).HasTranslation() || lang == fallback || fallback == "" {
		return res, nil
	}

	fb, err := fetch(ctx, fallback)
	if err != nil {
		return nil, err
	}
	if fb == nil || !(*fb).HasTranslation() {
		return res, nil
	}

	return &Resolved[T]{Item: *fb, Lang: fallback, Requested: lang, Fallback: true}, nil
}

// resolveOnce loads an item in lang only. It serves profiles that read no
// translation fields, where a fallback lookup could never find one.
func resolveOnce[T any](ctx context.Context, lang string, fetch fetchFunc[T]) (*Resolved[T], error) {
	item, err := fetch(ctx, lang)
	if err != nil || item == nil {
		return nil, err
	}
	return &Resolved[T]{Item: *item, Lang: lang, Requested: lang}, nil
}
