// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultLanguage is used for keys when neither a request language nor a
// fallback language is known.
const DefaultLanguage = "it"

// hashBytes is the number of digest bytes kept in a key (16 hex chars).
const hashBytes = 8

// Context holds the parts of a cache key that stay readable:
// namespace, entity type and language. The remaining query options are hashed.
type Context struct {
	Namespace string
	Entity    string
	Lang      string
}

// NewContext creates a key context. An empty lang is replaced by fallback,
// and an empty fallback by DefaultLanguage.
func NewContext(namespace, entity, lang, fallback string) Context {
	if fallback == "" {
		fallback = DefaultLanguage
	}
	if lang == "" {
		lang = fallback
	}
	return Context{
		Namespace: namespace,
		Entity:    entity,
		Lang:      lang,
	}
}

// Key generates a cache key for opts.
// Format: {namespace}:{entity}:{lang}:{hash}
//
// opts is serialized to canonical JSON (object keys sorted at every level)
// with the language injected, so two option values that differ only in
// map insertion order produce the same key.
func (c Context) Key(opts any) (string, error) {
	payload, err := canonicalJSON(opts, c.Lang)
	if err != nil {
		return "", fmt.Errorf("building cache key for %s: %w", c.Entity, err)
	}
	sum := sha256.Sum256(payload)
	return c.Prefix() + hex.EncodeToString(sum[:hashBytes]), nil
}

// Prefix returns the key prefix shared by every key of this entity and
// language. Empty parts shorten the prefix so it can address a whole
// entity or namespace.
func (c Context) Prefix() string {
	parts := []string{c.Namespace}
	if c.Entity != "" {
		parts = append(parts, c.Entity)
		if c.Lang != "" {
			parts = append(parts, c.Lang)
		}
	}
	return strings.Join(parts, ":") + ":"
}

// ParseKey splits a key built by Key back into its readable parts. The
// namespace may itself contain colons, so the key is read from the right.
func ParseKey(key string) (Context, bool) {
	parts := strings.Split(key, ":")
	n := len(parts)
	if n < 4 || parts[n-3] == "" {
		return Context{}, false
	}
	return Context{
		Namespace: strings.Join(parts[:n-3], ":"),
		Entity:    parts[n-3],
		Lang:      parts[n-2],
	}, true
}

// canonicalJSON normalizes v into a generic JSON value and re-encodes it.
// encoding/json writes map keys in sorted order.
func canonicalJSON(v any, lang string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	obj, ok := generic.(map[string]any)
	if !ok {
		obj = map[string]any{"value": generic}
	}
	obj["lang"] = lang

	return json.Marshal(obj)
}
