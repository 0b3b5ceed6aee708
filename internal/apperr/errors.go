// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidArgument     = errors.New("invalid argument")
)
