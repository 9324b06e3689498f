// Package pkg holds small utilities shared by every layer.
//
// Domain errors are sentinel values; services wrap them with context via
// fmt.Errorf("%w: ...") and the handler layer maps them to HTTP status codes:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrRateLimited   = errors.New("rate limited")
	ErrInternal      = errors.New("internal error")
)
