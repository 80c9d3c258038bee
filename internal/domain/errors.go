package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// ErrStoreUnavailable marks a transient persistence failure. Callers surface
	// a retryable error to the user and must never hand out a token after one.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrShortenerUnavailable means the short-link service errored or timed out.
	// Callers fall back to the raw callback URL instead of dropping the request.
	ErrShortenerUnavailable = errors.New("shortener unavailable")

	// Challenge completion failures. "Too late" and "already done" are distinct
	// user-facing conditions; an unknown token maps to ErrNotFound.
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenAlreadyCompleted = errors.New("token already completed")
)
