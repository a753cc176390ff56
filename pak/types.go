package pak

import (
	"io"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

// Entry describes a file stored in the archive.
type Entry = paktype.Entry

// Compression identifies the compression algorithm used for a file.
type Compression = paktype.Compression

// Compression algorithms.
const (
	CompressionNone = paktype.CompressionNone
	CompressionZstd = paktype.CompressionZstd
)

// ParseCompression maps "none" or "zstd" to a Compression.
var ParseCompression = paktype.ParseCompression

// ByteSource provides random access to archive bytes.
//
// Sources that also implement ReadRange(off, length int64) (io.ReadCloser,
// error) stream compressed entries in a single request.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// ProgressStage identifies the current phase of archive creation.
type ProgressStage uint8

// Progress stages reported by Create.
const (
	// StageEnumerating indicates the source tree is being walked.
	StageEnumerating ProgressStage = iota

	// StageWriting indicates entries are being written to the data region.
	StageWriting

	// StageFinalizing indicates the index, signature and footer are being written.
	StageFinalizing
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageWriting:
		return "writing"
	case StageFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ProgressEvent reports progress during archive creation.
type ProgressEvent struct {
	Stage      ProgressStage
	Path       string
	FilesDone  int
	FilesTotal int
	BytesDone  uint64
}

// ProgressFunc receives progress updates.
type ProgressFunc func(ProgressEvent)
