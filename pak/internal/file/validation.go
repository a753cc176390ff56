package file

import (
	"crypto/sha256"
	"fmt"

	"github.com/meigma/pakstream/pak/internal/paktype"
	"github.com/meigma/pakstream/pak/internal/sizing"
)

// ValidateForRead checks that an entry is safe to read from a source of the
// given size and that its metadata is self-consistent.
func ValidateForRead(entry *paktype.Entry, sourceSize int64, maxFileSize uint64) error {
	if sourceSize < 0 {
		return paktype.ErrSizeOverflow
	}
	if maxFileSize > 0 && (entry.DataSize > maxFileSize || entry.OriginalSize > maxFileSize) {
		return paktype.ErrSizeOverflow
	}

	end, ok := sizing.AddUint64(entry.DataOffset, entry.DataSize)
	if !ok || end > uint64(sourceSize) {
		return paktype.ErrSizeOverflow
	}

	if len(entry.Hash) != sha256.Size {
		return fmt.Errorf("invalid hash length: %d", len(entry.Hash))
	}

	switch entry.Compression {
	case paktype.CompressionNone:
		if entry.DataSize != entry.OriginalSize {
			return fmt.Errorf("%w: size mismatch", paktype.ErrDecompression)
		}
	case paktype.CompressionZstd:
	default:
		return fmt.Errorf("unknown compression algorithm: %d", entry.Compression)
	}
	return nil
}
