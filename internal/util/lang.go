// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ParseLanguage validates a CMS language code such as "it", "en" or "pt-BR"
// and returns it in canonical form. An empty code is an error.
func ParseLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return tag.String(), nil
}

// MatchLanguage picks the best language from an Accept-Language header among
// the supported codes. It returns false when the header matches none of them.
func MatchLanguage(acceptLanguage string, supported []string) (string, bool) {
	if acceptLanguage == "" || len(supported) == 0 {
		return "", false
	}

	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		if t, err := language.Parse(s); err == nil {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return "", false
	}

	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return "", false
	}

	_, idx, conf := language.NewMatcher(tags).Match(prefs...)
	if conf == language.No {
		return "", false
	}
	return tags[idx].String(), true
}
