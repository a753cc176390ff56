package write

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

// Ops writes file content with hashing and optional compression.
// An Ops is not safe for concurrent use.
type Ops struct {
	encoder *zstd.Encoder
	buf     []byte
}

// New creates an Ops. Pass a non-nil encoder to enable compression.
func New(enc *zstd.Encoder) *Ops {
	return &Ops{
		encoder: enc,
		buf:     make([]byte, 32*1024),
	}
}

// WriteFile streams exactly expectedSize bytes from r into w, hashing the
// uncompressed content and compressing it when requested.
func (o *Ops) WriteFile(ctx context.Context, r io.Reader, w io.Writer, compression paktype.Compression, expectedSize int64) (dataSize, originalSize uint64, hash []byte, err error) {
	if expectedSize < 0 {
		return 0, 0, nil, errors.New("negative file size")
	}

	hasher := sha256.New()
	cw := &countingWriter{w: w}
	cr := &countingReader{r: io.LimitReader(r, expectedSize)}
	src := io.TeeReader(cr, hasher)

	switch compression {
	case paktype.CompressionNone:
		if err := o.copy(ctx, cw, src); err != nil {
			return 0, 0, nil, err
		}
	case paktype.CompressionZstd:
		if o.encoder == nil {
			return 0, 0, nil, errors.New("compression requested without encoder")
		}
		o.encoder.Reset(cw)
		if err := o.copy(ctx, o.encoder, src); err != nil {
			_ = o.encoder.Close()
			return 0, 0, nil, err
		}
		if err := o.encoder.Close(); err != nil {
			return 0, 0, nil, fmt.Errorf("close zstd encoder: %w", err)
		}
	default:
		return 0, 0, nil, fmt.Errorf("unknown compression algorithm: %d", compression)
	}

	if cr.n != uint64(expectedSize) {
		return 0, 0, nil, fmt.Errorf("file size changed during archive creation: expected %d, got %d", expectedSize, cr.n)
	}
	return cw.n, cr.n, hasher.Sum(nil), nil
}

// copy is io.CopyBuffer with a cancellation check between chunks.
func (o *Ops) copy(ctx context.Context, dst io.Writer, src io.Reader) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := src.Read(o.buf)
		if n > 0 {
			if _, werr := dst.Write(o.buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n) //nolint:gosec // n is non-negative per io.Reader
	return n, err
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n) //nolint:gosec // n is non-negative per io.Writer
	return n, err
}
