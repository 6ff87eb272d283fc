// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"strings"
	"testing"
)

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "toscana", "toscana"},
		{"surrounding spaces", "  firenze  ", "firenze"},
		{"decomposed accent", "citta\u0300", "citt\u00e0"},
		{"already composed", "città", "città"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSlug(tt.input); got != tt.expected {
				t.Errorf("NormalizeSlug(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"valid simple slug", "hello-world", true},
		{"valid slug with numbers", "page-123", true},
		{"valid single word", "toscana", true},
		{"valid numbers only", "123", true},
		{"valid underscore", "val_d-orcia", true},
		{"valid accented", "città-di-castello", true},
		{"valid japanese", "東京", true},
		{"invalid - empty", "", false},
		{"invalid - uppercase", "Hello-World", false},
		{"invalid - spaces", "hello world", false},
		{"invalid - special chars", "hello!world", false},
		{"invalid - slash", "a/b", false},
		{"invalid - starts with hyphen", "-hello", false},
		{"invalid - ends with hyphen", "hello-", false},
		{"invalid - too long", strings.Repeat("a", MaxSlugLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidSlug(tt.input)
			if result != tt.expected {
				t.Errorf("IsValidSlug(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}
