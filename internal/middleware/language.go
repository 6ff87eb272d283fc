// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"

	"github.com/thebestitaly/thebestitaly-next-sub000/internal/util"
)

// ContextKeyLanguageCode is the context key for the request language.
const ContextKeyLanguageCode ContextKey = "language_code"

// Language creates middleware that resolves the content language of a
// request. Priority order:
// 1. Query parameter ?lang=XX, any valid language code
// 2. Accept-Language header, matched against preferred
// 3. fallback
//
// An invalid ?lang value is rejected with 400.
func Language(fallback string, preferred []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := fallback

			if q := r.URL.Query().Get("lang"); q != "" {
				code, err := util.ParseLanguage(q)
				if err != nil {
					WriteAPIError(w, http.StatusBadRequest, "bad_request", "Invalid language", map[string]string{"lang": q})
					return
				}
				lang = code
			} else if code, ok := util.MatchLanguage(r.Header.Get("Accept-Language"), preferred); ok {
				lang = code
			}

			w.Header().Add("Vary", "Accept-Language")
			ctx := context.WithValue(r.Context(), ContextKeyLanguageCode, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLanguage returns the language resolved for the request, or "" when the
// Language middleware did not run.
func GetLanguage(r *http.Request) string {
	lang, _ := r.Context().Value(ContextKeyLanguageCode).(string)
	return lang
}
