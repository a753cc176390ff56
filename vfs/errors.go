package vfs

import "errors"

// Sentinel errors for providers and the mount layer.
var (
	// ErrNotInitialized is returned when a provider is used before Initialize.
	ErrNotInitialized = errors.New("vfs: not initialized")

	// ErrAlreadyMounted is returned when a mount name or mount point is taken.
	ErrAlreadyMounted = errors.New("vfs: already mounted")

	// ErrNotMounted is returned when unmounting an unknown archive.
	ErrNotMounted = errors.New("vfs: not mounted")

	// ErrProviderUnavailable is returned when a provider's backing store
	// cannot be reached or opened.
	ErrProviderUnavailable = errors.New("vfs: provider unavailable")
)
