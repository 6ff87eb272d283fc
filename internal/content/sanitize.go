// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"github.com/microcosm-cc/bluemonday"
)

// sanitizer cleans rich-text fields before they are cached.
// A nil sanitizer leaves values untouched.
type sanitizer struct {
	policy *bluemonday.Policy
}

func newSanitizer() *sanitizer {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &sanitizer{policy: p}
}

func (s *sanitizer) html(v string) string {
	if s == nil || v == "" {
		return v
	}
	return s.policy.Sanitize(v)
}

func (s *sanitizer) destination(d *Destination) {
	if s == nil {
		return
	}
	for i := range d.Translations {
		d.Translations[i].Description = s.html(d.Translations[i].Description)
	}
}

func (s *sanitizer) article(a *Article) {
	if s == nil {
		return
	}
	for i := range a.Translations {
		a.Translations[i].Description = s.html(a.Translations[i].Description)
	}
}

func (s *sanitizer) company(c *Company) {
	if s == nil {
		return
	}
	for i := range c.Translations {
		c.Translations[i].Description = s.html(c.Translations[i].Description)
	}
}
