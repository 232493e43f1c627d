package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced Store, Session, Product, Improvement or ApiToken is missing
	ErrNotFound = errors.New("not found")

	// ErrCorruptSecret is returned when a secret blob cannot be parsed or authenticated
	ErrCorruptSecret = errors.New("corrupt secret")

	// ErrStorageUnavailable is returned when the durable medium cannot be read or written
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrExternalServiceUnavailable is returned when the enhancement or catalog call fails or times out
	ErrExternalServiceUnavailable = errors.New("external service unavailable")

	// ErrMisconfigured signals an absent or incomplete enhancement integration (degraded mode)
	ErrMisconfigured = errors.New("integration misconfigured")

	// ErrExternalUpdateFailed is returned when an approved improvement could not be pushed to the catalog
	ErrExternalUpdateFailed = errors.New("external update failed")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)
