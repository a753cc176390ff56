package pak

import (
	"crypto/ed25519"
	"log/slog"

	"github.com/meigma/pakstream/pak/internal/write"
)

// DefaultMaxFiles is the file limit used when CreateWithMaxFiles is not set.
const DefaultMaxFiles = 200_000

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc = write.SkipCompressionFunc

// DefaultSkipCompression returns a SkipCompressionFunc that skips files
// smaller than minSize and formats that are already compressed (audio,
// video, images, nested archives).
var DefaultSkipCompression = write.DefaultSkipCompression

type createConfig struct {
	compression     Compression
	skipCompression []SkipCompressionFunc
	maxFiles        int
	signingKey      ed25519.PrivateKey
	logger          *slog.Logger
	progress        ProgressFunc
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithCompression sets the compression algorithm (default: none).
func CreateWithCompression(c Compression) CreateOption {
	return func(cfg *createConfig) {
		cfg.compression = c
	}
}

// CreateWithSkipCompression adds predicates that decide to store a file
// uncompressed. If any predicate returns true, compression is skipped.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithMaxFiles limits the number of files in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithSigningKey signs the archive with key.
func CreateWithSigningKey(key ed25519.PrivateKey) CreateOption {
	return func(cfg *createConfig) {
		cfg.signingKey = key
	}
}

// CreateWithLogger sets the logger for archive creation.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}

// CreateWithProgress sets a callback that receives progress updates.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}
