// Package apperr holds the sentinel errors shared across murmur packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnreachable   = errors.New("collection unreachable")
	ErrNotText       = errors.New("not a text document")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrNotConfigured = errors.New("not configured")
)
