package pak

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/klauspost/compress/zstd"
	digest "github.com/opencontainers/go-digest"

	"github.com/meigma/pakstream/pak/internal/index"
	"github.com/meigma/pakstream/pak/internal/write"
)

// Summary describes an archive written by Create.
type Summary struct {
	Files       int
	Compressed  int
	DataSize    uint64
	IndexSize   uint64
	Signed      bool
	IndexDigest digest.Digest
	DataDigest  digest.Digest
}

// Create writes an archive containing every regular file in fsys to w.
//
// Files are written in path order so that a directory's contents occupy a
// contiguous byte range. Symbolic links and other non-regular files are
// skipped; empty directories are not preserved. The whole index is built in
// memory before it is written.
func Create(ctx context.Context, fsys fs.FS, w io.Writer, opts ...CreateOption) (*Summary, error) {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &creator{cfg: cfg}
	c.log().Info("creating archive", "compression", cfg.compression.String(), "signed", cfg.signingKey != nil)

	paths, err := c.collect(ctx, fsys)
	if err != nil {
		return nil, err
	}

	dataHash := sha256.New()
	out := &countingWriter{w: w}
	entries, compressed, err := c.writeData(ctx, fsys, paths, io.MultiWriter(out, dataHash))
	if err != nil {
		return nil, err
	}
	dataSize := out.n
	dataSum := dataHash.Sum(nil)

	c.progress(ProgressEvent{Stage: StageFinalizing, FilesDone: len(paths), FilesTotal: len(paths), BytesDone: dataSize})
	indexData, err := index.Build(entries, dataSize, dataSum)
	if err != nil {
		return nil, err
	}
	if _, err := out.Write(indexData); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	f := footer{
		version:     FormatVersion,
		indexOffset: dataSize,
		indexSize:   uint64(len(indexData)),
		indexHash:   sha256.Sum256(indexData),
	}
	if cfg.signingKey != nil {
		f.sigSize = ed25519.SignatureSize
		sig := ed25519.Sign(cfg.signingKey, signedPayload(&f))
		if _, err := out.Write(sig); err != nil {
			return nil, fmt.Errorf("write signature: %w", err)
		}
	}
	if _, err := out.Write(f.marshal()); err != nil {
		return nil, fmt.Errorf("write footer: %w", err)
	}

	summary := &Summary{
		Files:       len(entries),
		Compressed:  compressed,
		DataSize:    dataSize,
		IndexSize:   f.indexSize,
		Signed:      cfg.signingKey != nil,
		IndexDigest: digest.NewDigestFromBytes(digest.SHA256, f.indexHash[:]),
		DataDigest:  digest.NewDigestFromBytes(digest.SHA256, dataSum),
	}
	c.log().Info("archive created",
		"files", summary.Files,
		"compressed", summary.Compressed,
		"data_size", summary.DataSize,
		"index_digest", summary.IndexDigest.String())
	return summary, nil
}

// CreateDir is Create over the directory tree rooted at dir.
// The walk is confined to dir with os.Root.
func CreateDir(ctx context.Context, dir string, w io.Writer, opts ...CreateOption) (*Summary, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()
	return Create(ctx, root.FS(), w, opts...)
}

type creator struct {
	cfg createConfig
}

func (c *creator) log() *slog.Logger {
	if c.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.cfg.logger
}

func (c *creator) progress(ev ProgressEvent) {
	if c.cfg.progress != nil {
		c.cfg.progress(ev)
	}
}

// collect returns the sorted paths of all regular files in fsys.
func (c *creator) collect(ctx context.Context, fsys fs.FS) ([]string, error) {
	limit := c.cfg.maxFiles
	if limit == 0 {
		limit = DefaultMaxFiles
	}

	var paths []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if limit > 0 && len(paths) >= limit {
			return fmt.Errorf("%w: limit is %d", ErrTooManyFiles, limit)
		}
		paths = append(paths, p)
		c.progress(ProgressEvent{Stage: StageEnumerating, Path: p, FilesDone: len(paths)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// WalkDir order is per-directory lexical, not byte order over full paths.
	slices.Sort(paths)
	return paths, nil
}

func (c *creator) writeData(ctx context.Context, fsys fs.FS, paths []string, w io.Writer) ([]Entry, int, error) {
	var enc *zstd.Encoder
	if c.cfg.compression == CompressionZstd {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, 0, fmt.Errorf("create zstd encoder: %w", err)
		}
		defer enc.Close()
	}
	ops := write.New(enc)

	entries := make([]Entry, 0, len(paths))
	var offset uint64
	compressed := 0
	for i, p := range paths {
		entry, err := c.writeEntry(ctx, fsys, p, ops, w)
		if err != nil {
			return nil, 0, err
		}
		entry.DataOffset = offset
		offset += entry.DataSize
		if entry.Compression != CompressionNone {
			compressed++
		}
		entries = append(entries, entry)
		c.progress(ProgressEvent{Stage: StageWriting, Path: p, FilesDone: i + 1, FilesTotal: len(paths), BytesDone: offset})
	}
	return entries, compressed, nil
}

func (c *creator) writeEntry(ctx context.Context, fsys fs.FS, p string, ops *write.Ops, w io.Writer) (Entry, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, err
	}

	comp := c.cfg.compression
	if comp != CompressionNone && write.ShouldSkip(p, info, c.cfg.skipCompression) {
		comp = CompressionNone
	}

	dataSize, origSize, sum, err := ops.WriteFile(ctx, f, w, comp, info.Size())
	if err != nil {
		return Entry{}, fmt.Errorf("write %s: %w", p, err)
	}
	return Entry{
		Path:         p,
		DataSize:     dataSize,
		OriginalSize: origSize,
		Hash:         sum,
		Mode:         info.Mode().Perm(),
		ModTime:      info.ModTime(),
		Compression:  comp,
	}, nil
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

