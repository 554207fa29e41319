package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrBackingStoreUnavailable indicates a cache refresh could not reach
	// the backing store; the previous snapshot stays in place.
	ErrBackingStoreUnavailable = errors.New("backing store unavailable")
	// ErrUnknownCache indicates a refresh was requested for a cache name
	// that is not registered.
	ErrUnknownCache = errors.New("unknown cache")
)
