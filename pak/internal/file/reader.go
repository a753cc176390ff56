package file

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/pakstream/pak/internal/paktype"
	"github.com/meigma/pakstream/pak/internal/sizing"
)

const (
	// DefaultMaxFileSize is the default maximum file size (256MB).
	DefaultMaxFileSize = 256 << 20

	// DefaultMaxDecoderMemory is the default maximum decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// ByteSource provides random access to archive data.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// RangeReader is implemented by sources that can stream a byte range in a
// single request, such as HTTP range sources.
type RangeReader interface {
	ReadRange(off, length int64) (io.ReadCloser, error)
}

// Reader reads and verifies entry content from a ByteSource.
type Reader struct {
	source      ByteSource
	maxFileSize uint64
	pool        *DecompressPool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxFileSize sets the maximum file size limit.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxFileSize = limit
	}
}

// NewReader creates a Reader for entries stored in source.
func NewReader(source ByteSource, opts ...Option) *Reader {
	r := &Reader{
		source:      source,
		maxFileSize: DefaultMaxFileSize,
		pool:        NewDecompressPool(DefaultMaxDecoderMemory),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Source returns the underlying ByteSource.
func (r *Reader) Source() ByteSource {
	return r.source
}

// ReadAll reads the entire content of an entry, decompresses if needed,
// and verifies the hash.
func (r *Reader) ReadAll(entry *paktype.Entry) ([]byte, error) {
	if err := ValidateForRead(entry, r.source.Size(), r.maxFileSize); err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}

	reader, release, err := r.entryReader(entry)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	defer release()

	size, err := sizing.ToInt(entry.OriginalSize, paktype.ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	content := make([]byte, size)

	hr := NewHashingReader(reader, sha256.New())
	n, err := io.ReadFull(hr, content)
	if err != nil {
		return nil, mapReadError(entry, n, size, err)
	}
	if err := EnsureNoExtra(hr); err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}
	if !bytes.Equal(hr.Sum(), entry.Hash) {
		return nil, fmt.Errorf("read %s: %w", entry.Path, paktype.ErrHashMismatch)
	}
	return content, nil
}

// Open returns a streaming handle for entry.
//
// The handle verifies the content hash when it reaches EOF. When verify is
// true, Close drains any unread content and verifies it as well.
func (r *Reader) Open(entry *paktype.Entry, name string, verify bool) (*Handle, error) {
	if err := ValidateForRead(entry, r.source.Size(), r.maxFileSize); err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Path, err)
	}
	info, err := NewInfo(entry, name)
	if err != nil {
		return nil, err
	}
	reader, release, err := r.entryReader(entry)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Path, err)
	}
	return &Handle{
		entry:   entry,
		info:    info,
		hr:      NewHashingReader(io.LimitReader(reader, int64(entry.OriginalSize)+1), sha256.New()), //nolint:gosec // bounded by ValidateForRead
		release: release,
		verify:  verify,
	}, nil
}

// entryReader returns a reader producing the uncompressed entry content.
func (r *Reader) entryReader(entry *paktype.Entry) (io.Reader, func(), error) {
	offset, err := sizing.ToInt64(entry.DataOffset, paktype.ErrSizeOverflow)
	if err != nil {
		return nil, nil, err
	}
	length, err := sizing.ToInt64(entry.DataSize, paktype.ErrSizeOverflow)
	if err != nil {
		return nil, nil, err
	}

	var raw io.Reader = io.NewSectionReader(r.source, offset, length)
	closeRaw := func() {}
	if rr, ok := r.source.(RangeReader); ok && length > 0 {
		rc, err := rr.ReadRange(offset, length)
		if err != nil {
			return nil, nil, err
		}
		raw = rc
		closeRaw = func() { _ = rc.Close() }
	}

	switch entry.Compression {
	case paktype.CompressionNone:
		return raw, closeRaw, nil
	case paktype.CompressionZstd:
		dec, release, err := r.pool.Get(raw)
		if err != nil {
			closeRaw()
			return nil, nil, fmt.Errorf("%w: %v", paktype.ErrDecompression, err)
		}
		return dec, func() {
			release()
			closeRaw()
		}, nil
	default:
		closeRaw()
		return nil, nil, fmt.Errorf("unknown compression algorithm: %d", entry.Compression)
	}
}

func mapReadError(entry *paktype.Entry, n, expected int, err error) error {
	short := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	if entry.Compression == paktype.CompressionNone {
		if short {
			return fmt.Errorf("read %s: short read (%d of %d bytes)", entry.Path, n, expected)
		}
		return fmt.Errorf("read %s: %w", entry.Path, err)
	}
	if short {
		return fmt.Errorf("read %s: %w: unexpected EOF", entry.Path, paktype.ErrDecompression)
	}
	return fmt.Errorf("read %s: %w: %v", entry.Path, paktype.ErrDecompression, err)
}
