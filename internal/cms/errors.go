// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cms

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Error represents a sentinel error of the CMS client.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrMissingBaseURL is returned by New when no CMS URL is configured.
	ErrMissingBaseURL Error = "cms: base URL is required"

	// ErrTooManyRequests is returned when the concurrency ceiling is reached.
	// The call is rejected, not queued.
	ErrTooManyRequests Error = "cms: too many concurrent requests"

	// ErrResponseTooLarge is returned when a response exceeds MaxResponseBytes.
	ErrResponseTooLarge Error = "cms: response too large"

	// ErrRequestTooLarge is returned when an encoded query exceeds MaxQueryBytes.
	ErrRequestTooLarge Error = "cms: request too large"

	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable Error = "cms: temporarily unavailable"

	// ErrRequestFailed matches every network or timeout failure.
	ErrRequestFailed Error = "cms: request failed"

	// ErrClosed is returned after Close.
	ErrClosed Error = "cms: client closed"
)

// maxErrorBody bounds the response body kept in an APIError.
const maxErrorBody = 512

// APIError is returned for non-2xx responses.
type APIError struct {
	Status     int
	Collection string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cms: %s returned status %d: %s", e.Collection, e.Status, e.Body)
}

// RequestError wraps a network or timeout failure.
type RequestError struct {
	Collection string
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("cms: requesting %s: %v", e.Collection, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// IsRejection reports whether the CMS refused the query itself, either for
// permissions or because it could not validate a deep filter.
func IsRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusForbidden
}

// IsTransient reports whether err is worth retrying: timeouts, connection
// resets, truncated responses and gateway errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

// isClientError reports whether err is a 4xx response. Those describe the
// query, not the health of the CMS, and never trip the breaker.
func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}
