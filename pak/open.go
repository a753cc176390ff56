package pak

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/meigma/pakstream/pak/internal/file"
	"github.com/meigma/pakstream/pak/internal/index"
	"github.com/meigma/pakstream/pak/internal/sizing"
)

// maxIndexSize bounds the index read into memory at open time.
const maxIndexSize = 256 << 20

// Open validates the archive stored in src and returns a Pak reading from it.
//
// Open reads the footer, the index and the signature (if any). It checks
// that the regions exactly tile the source, that the index matches the
// digest recorded in the footer, and that the index describes a data region
// of the expected size. Entry content is read lazily.
func Open(src ByteSource, opts ...Option) (*Pak, error) {
	p := &Pak{verifyOnClose: true}
	for _, opt := range opts {
		opt(p)
	}

	f, err := readFooter(src)
	if err != nil {
		return nil, err
	}

	indexData, err := sizing.ReadAtFull(src, int64(f.indexOffset), f.indexSize, ErrSizeOverflow) //nolint:gosec // bounds checked by readFooter
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if sum := sha256.Sum256(indexData); sum != f.indexHash {
		return nil, fmt.Errorf("%w: digest mismatch", ErrIndexCorrupt)
	}
	idx, err := index.Load(indexData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if idx.Version() != index.Version {
		return nil, fmt.Errorf("%w: index version %d", ErrUnsupportedVersion, idx.Version())
	}
	if idx.DataSize() != f.indexOffset {
		return nil, fmt.Errorf("%w: index describes %d data bytes, archive has %d", ErrIndexCorrupt, idx.DataSize(), f.indexOffset)
	}

	if err := p.checkSignature(src, f); err != nil {
		return nil, err
	}

	data := dataRegion(src, int64(f.indexOffset)) //nolint:gosec // bounds checked by readFooter
	if p.verifyData {
		if err := verifyDataRegion(data, idx); err != nil {
			return nil, err
		}
	}

	var readerOpts []file.Option
	if p.maxFileSizeSet {
		readerOpts = append(readerOpts, file.WithMaxFileSize(p.maxFileSize))
	}
	p.idx = idx
	p.footer = f
	p.reader = file.NewReader(data, readerOpts...)

	if p.initialMountPoint != "" {
		if err := p.SetMountPoint(p.initialMountPoint); err != nil {
			return nil, err
		}
	}

	p.log().Debug("archive opened",
		"entries", idx.Len(),
		"data_size", f.indexOffset,
		"signed", p.signed,
		"index_digest", p.IndexDigest().String())
	return p, nil
}

func readFooter(src ByteSource) (*footer, error) {
	size := src.Size()
	if size < FooterSize {
		return nil, fmt.Errorf("%w: %d bytes is smaller than the footer", ErrInvalidFormat, size)
	}
	buf, err := sizing.ReadAtFull(src, size-FooterSize, FooterSize, ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("read footer: %w", err)
	}
	f, err := parseFooter(buf)
	if err != nil {
		return nil, err
	}

	if f.indexSize == 0 || f.indexSize > maxIndexSize {
		return nil, fmt.Errorf("%w: index size %d", ErrInvalidFormat, f.indexSize)
	}
	end, ok := sizing.AddUint64(f.indexOffset, f.indexSize)
	if ok {
		end, ok = sizing.AddUint64(end, uint64(f.sigSize))
	}
	if ok {
		end, ok = sizing.AddUint64(end, FooterSize)
	}
	if !ok || end != uint64(size) {
		return nil, fmt.Errorf("%w: regions do not match archive size %d", ErrInvalidFormat, size)
	}
	return f, nil
}

func (p *Pak) checkSignature(src ByteSource, f *footer) error {
	if f.sigSize == 0 {
		if p.signedOnly {
			return ErrUnsigned
		}
		return nil
	}
	if !p.signedOnly && len(p.trustedKeys) == 0 {
		p.log().Debug("signature present but not verified, no trusted keys")
		return nil
	}
	sig, err := sizing.ReadAtFull(src, int64(f.indexOffset+f.indexSize), uint64(f.sigSize), ErrSizeOverflow) //nolint:gosec // bounds checked by readFooter
	if err != nil {
		return fmt.Errorf("read signature: %w", err)
	}
	if err := verifySignature(f, sig, p.trustedKeys); err != nil {
		return err
	}
	p.signed = true
	return nil
}

func verifyDataRegion(data ByteSource, idx *index.Index) error {
	want, ok := idx.DataHash()
	if !ok {
		return fmt.Errorf("%w: index has no data digest", ErrIndexCorrupt)
	}
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(data, 0, data.Size())); err != nil {
		return fmt.Errorf("hash data region: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), want) {
		return fmt.Errorf("data region: %w", ErrHashMismatch)
	}
	return nil
}

type rangeReader interface {
	ReadRange(off, length int64) (io.ReadCloser, error)
}

// dataRegion bounds src to its first n bytes, keeping range reads when the
// underlying source supports them.
func dataRegion(src ByteSource, n int64) ByteSource {
	section := io.NewSectionReader(src, 0, n)
	if rr, ok := src.(rangeReader); ok {
		return &rangeSection{SectionReader: section, rr: rr}
	}
	return section
}

type rangeSection struct {
	*io.SectionReader
	rr rangeReader
}

func (s *rangeSection) ReadRange(off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 || off+length > s.Size() {
		return nil, fmt.Errorf("%w: range %d+%d outside data region", ErrSizeOverflow, off, length)
	}
	return s.rr.ReadRange(off, length)
}

// fileSource adapts *os.File to ByteSource.
type fileSource struct {
	f    *os.File
	size int64
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *fileSource) Size() int64                             { return s.size }

// OpenFile opens the archive at path. Close releases the file handle.
func OpenFile(path string, opts ...Option) (*Pak, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	p, err := Open(&fileSource{f: f, size: info.Size()}, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	p.closer = f
	return p, nil
}
