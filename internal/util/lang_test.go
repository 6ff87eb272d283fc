// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import "testing"

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"it", "it", false},
		{"EN", "en", false},
		{"pt-br", "pt-BR", false},
		{" de ", "de", false},
		{"", "", true},
		{"not a language", "", true},
		{"toolonglanguage", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLanguage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLanguage(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLanguage(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMatchLanguage(t *testing.T) {
	supported := []string{"it", "en", "de"}

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"de-DE,de;q=0.9,en;q=0.8", "de", true},
		{"en-US", "en", true},
		{"ja", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := MatchLanguage(tt.header, supported)
			if ok != tt.ok || got != tt.want {
				t.Errorf("MatchLanguage(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
			}
		})
	}
}
