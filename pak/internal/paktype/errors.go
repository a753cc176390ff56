// Package paktype holds the types and sentinel errors shared by the pak
// package and its internal helpers.
package paktype

import "errors"

// Sentinel errors for archive content.
var (
	// ErrHashMismatch is returned when file content does not match its hash.
	ErrHashMismatch = errors.New("pak: hash verification failed")

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = errors.New("pak: decompression failed")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("pak: size overflow")
)
