package pakstream

import (
	"errors"

	"github.com/meigma/pakstream/metrics"
	"github.com/meigma/pakstream/pak"
	"github.com/meigma/pakstream/vfs"
)

// Streaming errors. StreamPackage wraps one of these together with the
// underlying cause, so both match with errors.Is.
var (
	// ErrNotInitialized is returned when a streaming operation runs before Initialize.
	ErrNotInitialized = errors.New("pakstream: streamer not initialized")

	// ErrStreamInProgress is returned when StreamPackage is called while a session holds the gate.
	ErrStreamInProgress = errors.New("pakstream: stream already in progress")

	// ErrModeInitFailed is returned when the provider for the requested mode cannot be initialized.
	ErrModeInitFailed = errors.New("pakstream: provider initialization failed")

	// ErrPathNotFound is returned when the resolved archive path is not a file.
	ErrPathNotFound = errors.New("pakstream: archive not found")

	// ErrInvalidArchive is returned when the archive fails validation.
	ErrInvalidArchive = errors.New("pakstream: invalid archive")

	// ErrMountFailed is returned when the archive cannot be mounted.
	ErrMountFailed = errors.New("pakstream: mount failed")

	// ErrLoaderUnavailable is returned when no loader is registered.
	ErrLoaderUnavailable = errors.New("pakstream: no loader registered")

	// ErrLoadRequestFailed is returned when the loader rejects the manifest.
	ErrLoadRequestFailed = errors.New("pakstream: load request rejected")
)

// Errors re-exported from pak and vfs.
var (
	// ErrUnsigned is returned when a signed archive is required but none is present.
	ErrUnsigned = pak.ErrUnsigned

	// ErrSignature is returned when an archive signature does not verify.
	ErrSignature = pak.ErrSignature

	// ErrHashMismatch is returned when content does not match its recorded hash.
	ErrHashMismatch = pak.ErrHashMismatch

	// ErrProviderUnavailable is returned when a provider cannot reach its storage.
	ErrProviderUnavailable = vfs.ErrProviderUnavailable
)

// result maps a streaming error to a metrics label.
func result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrStreamInProgress):
		return "in_progress"
	case errors.Is(err, ErrModeInitFailed):
		return "mode_init_failed"
	case errors.Is(err, ErrPathNotFound):
		return "path_not_found"
	case errors.Is(err, ErrInvalidArchive):
		return "invalid_archive"
	case errors.Is(err, ErrMountFailed):
		return "mount_failed"
	case errors.Is(err, ErrLoaderUnavailable):
		return "loader_unavailable"
	case errors.Is(err, ErrLoadRequestFailed):
		return "load_request_failed"
	default:
		return "error"
	}
}
