// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides validation helpers for request parameters:
// content slugs and language codes.
package util

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxSlugLength is the longest slug accepted in a lookup.
const MaxSlugLength = 200

// NormalizeSlug trims s and converts it to Unicode NFC so that the same slug
// typed on different keyboards produces the same CMS filter and cache key.
func NormalizeSlug(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsValidSlug checks if a string is a valid slug format.
// Slugs of non-Latin languages are allowed, so any letter or digit counts.
func IsValidSlug(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > MaxSlugLength {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
		if unicode.IsUpper(r) {
			return false
		}
	}

	// Check that it doesn't start or end with a hyphen
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}

	return true
}
