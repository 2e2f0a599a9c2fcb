// Package common defines shared constants and sentinel errors used across
// Repostash components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrCapExceeded = errors.New("backend record cap exceeded")

	// Remote mirror errors.
	ErrQuotaExceeded     = errors.New("remote byte quota exceeded")
	ErrItemLimitExceeded = errors.New("remote item limit exceeded")

	// Validation / save-flow errors.
	ErrValidation = errors.New("validation error")
	ErrDuplicate  = errors.New("repository already saved")

	// Import errors.
	ErrEmptyImport     = errors.New("no repositories found in import")
	ErrMalformedImport = errors.New("invalid import format")
)
