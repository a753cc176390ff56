package pak

import (
	"errors"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

// Sentinel errors returned by archive operations.
var (
	// ErrInvalidFormat is returned when the footer or layout is malformed.
	ErrInvalidFormat = errors.New("pak: invalid format")

	// ErrUnsupportedVersion is returned for unknown footer or index versions.
	ErrUnsupportedVersion = errors.New("pak: unsupported version")

	// ErrIndexCorrupt is returned when the index fails its digest or cannot be parsed.
	ErrIndexCorrupt = errors.New("pak: index corrupt")

	// ErrUnsigned is returned when a signature is required but absent.
	ErrUnsigned = errors.New("pak: archive is not signed")

	// ErrSignature is returned when a signature does not verify against any trusted key.
	ErrSignature = errors.New("pak: signature verification failed")

	// ErrInvalidMountPoint is returned by SetMountPoint for paths that escape the namespace.
	ErrInvalidMountPoint = errors.New("pak: invalid mount point")

	// ErrTooManyFiles is returned when Create exceeds the configured file limit.
	ErrTooManyFiles = errors.New("pak: too many files")

	// ErrHashMismatch is returned when file content does not match its hash.
	ErrHashMismatch = paktype.ErrHashMismatch

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = paktype.ErrDecompression

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = paktype.ErrSizeOverflow
)
