// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for the content API: language
// resolution, rate limiting, admin authentication and timeouts.
package middleware

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string
