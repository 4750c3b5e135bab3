package api

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotFound     = errors.New("not found")
	// ErrConflict is returned by Helix when the subscription already exists.
	ErrConflict = errors.New("conflict")
)
