package domain

import "errors"

var (
	// Source errors
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceRateLimited = errors.New("source rate limited")
	ErrCursorLoop        = errors.New("source repeated a continuation cursor")

	// Store errors
	ErrStoreRead  = errors.New("store read failure")
	ErrStoreWrite = errors.New("store write failure")

	ErrMalformedEntity = errors.New("malformed entity")
)
