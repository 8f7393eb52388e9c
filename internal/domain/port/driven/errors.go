// Package driven defines secondary port interfaces for external adapters.
package driven

import "errors"

// Sentinel errors shared by the store ports. Adapters wrap them so callers can
// match with errors.Is regardless of the backing storage.
var (
	// ErrNotFound indicates the requested key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorageUnavailable indicates the backing storage cannot be reached,
	// for example because it was closed or disabled.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded indicates a write was refused because the store is full.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrEncryptionKeyInvalid is returned when the at-rest encryption key cannot
	// decrypt a stored secret.
	ErrEncryptionKeyInvalid = errors.New("encryption key cannot decrypt stored secret")
)
