// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
)

// knownWeakTokens contains example admin tokens that must be rejected.
var knownWeakTokens = []string{
	"change-me",
	"changeme",
	"REPLACE_WITH_YOUR_OWN_ADMIN_TOKEN",
}

// ErrMissingCMSURL is returned when TBI_CMS_URL is empty.
var ErrMissingCMSURL = errors.New("TBI_CMS_URL is required")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ServerHost string `env:"TBI_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"TBI_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"TBI_ENV" envDefault:"development"`
	LogLevel   string `env:"TBI_LOG_LEVEL" envDefault:"info"`

	// CMS connection
	CMSURL              string        `env:"TBI_CMS_URL"`
	CMSToken            string        `env:"TBI_CMS_TOKEN"`
	CMSTimeout          time.Duration `env:"TBI_CMS_TIMEOUT" envDefault:"10s"`
	CMSMaxConcurrent    int           `env:"TBI_CMS_MAX_CONCURRENT" envDefault:"50"`
	CMSMaxResponseBytes int64         `env:"TBI_CMS_MAX_RESPONSE_BYTES" envDefault:"10485760"`
	CMSMaxQueryBytes    int           `env:"TBI_CMS_MAX_QUERY_BYTES" envDefault:"16384"`
	CMSClientMaxAge     time.Duration `env:"TBI_CMS_CLIENT_MAX_AGE" envDefault:"30m"`

	// Cache configuration
	RedisURL             string `env:"TBI_REDIS_URL"`                             // Optional Redis URL for the shared cache
	CachePrefix          string `env:"TBI_CACHE_PREFIX" envDefault:"tbi"`         // Key namespace
	CacheMaxSize         int    `env:"TBI_CACHE_MAX_SIZE" envDefault:"10000"`     // Max memory cache entries
	DestinationCacheSize int    `env:"TBI_DESTINATION_CACHE_SIZE" envDefault:"0"` // LRU size for destination-scoped queries (0 = never cached)

	// Content
	FallbackLanguage string   `env:"TBI_FALLBACK_LANGUAGE" envDefault:"it"`                  // Served when a translation is missing
	SanitizeHTML     bool     `env:"TBI_SANITIZE_HTML" envDefault:"true"`                    // Run descriptions through bluemonday
	WarmLanguages    []string `env:"TBI_WARM_LANGUAGES" envSeparator:"," envDefault:"it,en"` // Sitemap warm-up languages

	// Sitemap pagination
	SitemapPageSize     int           `env:"TBI_SITEMAP_PAGE_SIZE" envDefault:"100"`
	SitemapPageDelay    time.Duration `env:"TBI_SITEMAP_PAGE_DELAY" envDefault:"100ms"`
	SitemapRetries      int           `env:"TBI_SITEMAP_RETRIES" envDefault:"3"`
	SitemapRetryBackoff time.Duration `env:"TBI_SITEMAP_RETRY_BACKOFF" envDefault:"1s"`

	// HTTP API
	AdminToken   string   `env:"TBI_ADMIN_TOKEN"`                                   // Bearer token for /cache endpoints (empty = disabled)
	CORSOrigins  []string `env:"TBI_CORS_ORIGINS" envSeparator:"," envDefault:"*"` // Widget origins
	APIRateLimit float64  `env:"TBI_API_RATE_LIMIT" envDefault:"20"`               // Requests per second per IP (0 = unlimited)
	APIRateBurst int      `env:"TBI_API_RATE_BURST" envDefault:"40"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// AdminEnabled returns true if the cache admin endpoints are reachable.
func (c Config) AdminEnabled() bool {
	return c.AdminToken != ""
}

// MinAdminTokenLength is the minimum required length for the admin token.
const MinAdminTokenLength = 16

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CMSURL == "" {
		return nil, ErrMissingCMSURL
	}
	u, err := url.Parse(cfg.CMSURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("TBI_CMS_URL must be an absolute http(s) URL, got %q", cfg.CMSURL)
	}
	cfg.CMSURL = strings.TrimRight(cfg.CMSURL, "/")

	tag, err := language.Parse(cfg.FallbackLanguage)
	if err != nil {
		return nil, fmt.Errorf("TBI_FALLBACK_LANGUAGE %q: %w", cfg.FallbackLanguage, err)
	}
	cfg.FallbackLanguage = tag.String()

	if cfg.CMSMaxConcurrent < 1 {
		return nil, fmt.Errorf("TBI_CMS_MAX_CONCURRENT must be positive, got %d", cfg.CMSMaxConcurrent)
	}
	if cfg.SitemapPageSize < 1 {
		return nil, fmt.Errorf("TBI_SITEMAP_PAGE_SIZE must be positive, got %d", cfg.SitemapPageSize)
	}

	if cfg.AdminToken != "" {
		if len(cfg.AdminToken) < MinAdminTokenLength {
			return nil, fmt.Errorf("TBI_ADMIN_TOKEN must be at least %d bytes long, got %d bytes; "+
				"generate a secure token with: openssl rand -base64 32",
				MinAdminTokenLength, len(cfg.AdminToken))
		}
		for _, weak := range knownWeakTokens {
			if cfg.AdminToken == weak {
				return nil, errors.New("TBI_ADMIN_TOKEN is a known default value and must not be used")
			}
		}
		if !hasMinimumEntropy(cfg.AdminToken) {
			slog.Warn("TBI_ADMIN_TOKEN has low character diversity; " +
				"consider generating a random token with: openssl rand -base64 32")
		}
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
