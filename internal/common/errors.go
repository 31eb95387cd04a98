// Package common defines shared constants and sentinel errors used across
// the OurChat client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound        = errors.New("not found")
	ErrFetch           = errors.New("failed to fetch")
	ErrVersionConflict = errors.New("version conflict")

	// Account / auth errors.
	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidToken  = errors.New("invalid token")

	// Generic flow control.
	ErrInternal = errors.New("internal error")
)
