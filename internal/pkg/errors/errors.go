// Package errors holds the sentinel errors shared across services and
// handlers. Services wrap these with %w so handlers can map them to HTTP
// statuses with errors.Is: ErrInvalidArgument to 400, ErrUnauthorized to
// 401, ErrNotFound to 404. Domain-specific sentinels (quiz transitions,
// resolution staleness) live next to the code that raises them.
package errors

import "errors"

var (
	// ErrNotFound marks a lookup that matched nothing: a practice,
	// favorite, or event id the catalog does not contain.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks a failed Telegram initData check or an
	// invalid access token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument marks client input that failed validation.
	ErrInvalidArgument = errors.New("invalid argument")
)
