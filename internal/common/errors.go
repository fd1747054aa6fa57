// Package common defines shared constants and sentinel errors used across
// the client and server layers of AdmitFlow. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a draft write carries a stale
	// expected version. The caller owns resolution; the write is never
	// applied silently.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateApplication is returned when an application already exists
	// for the same (owner, program, intake) tuple.
	ErrDuplicateApplication = errors.New("application already exists")

	// Service-level errors.
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")

	// ErrUnavailable marks transport failures (connection refused, timeout).
	// The sync layer downgrades it to an offline save, never a user-facing error.
	ErrUnavailable = errors.New("server unavailable")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
