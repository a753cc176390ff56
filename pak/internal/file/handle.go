package file

import (
	"bytes"
	"io"
	"io/fs"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

// Handle is an open archive entry. It implements fs.File.
type Handle struct {
	entry   *paktype.Entry
	info    *Info
	hr      *HashingReader
	release func()
	verify  bool

	read    uint64
	checked bool
	err     error
	closed  bool
}

// Stat returns the entry's file info.
func (h *Handle) Stat() (fs.FileInfo, error) {
	return h.info, nil
}

// Read reads uncompressed content. At EOF the content length and hash are
// checked; a mismatch surfaces as ErrHashMismatch or ErrSizeOverflow.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, &fs.PathError{Op: "read", Path: h.entry.Path, Err: fs.ErrClosed}
	}
	if h.err != nil {
		return 0, h.err
	}
	n, err := h.hr.Read(p)
	h.read += uint64(n) //nolint:gosec // n is non-negative per io.Reader
	if h.read > h.entry.OriginalSize {
		h.err = paktype.ErrSizeOverflow
		return n, h.err
	}
	if err == io.EOF {
		if cerr := h.check(); cerr != nil {
			return n, cerr
		}
		return n, io.EOF
	}
	if err != nil {
		h.err = err
	}
	return n, err
}

func (h *Handle) check() error {
	if h.checked {
		return h.err
	}
	h.checked = true
	switch {
	case h.read != h.entry.OriginalSize:
		h.err = io.ErrUnexpectedEOF
	case !bytes.Equal(h.hr.Sum(), h.entry.Hash):
		h.err = paktype.ErrHashMismatch
	}
	return h.err
}

// Close releases the decoder and, when verification is enabled, reads any
// remaining content and reports integrity failures.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	var err error
	if h.verify && h.err == nil && !h.checked {
		if _, cerr := io.Copy(io.Discard, h); cerr != nil {
			err = cerr
		}
	} else if h.verify {
		err = h.err
	}
	h.closed = true
	h.release()
	return err
}
