package vfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
)

// FileSystem is the read side of the virtual file layer.
//
// Names are slash-separated paths relative to the namespace root; leading
// slashes are ignored.
type FileSystem interface {
	// Stat returns file info for name. Missing files report fs.ErrNotExist.
	Stat(ctx context.Context, name string) (fs.FileInfo, error)

	// Open returns a reader for the full content of name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// OpenSource returns random-access content for name, used to open archives.
	OpenSource(ctx context.Context, name string) (ReadSource, error)

	// FindFiles lists file paths under dir, descending into subdirectories
	// when recursive is true.
	FindFiles(ctx context.Context, dir string, recursive bool) ([]string, error)
}

// Provider is a FileSystem backed by real storage.
type Provider interface {
	FileSystem

	// Name identifies the provider in logs.
	Name() string

	// Initialize prepares the provider. cmdLine is an opaque command line
	// (see ParseCommandLine) whose switches may override configuration.
	// Initialize may be called again to re-target the provider.
	Initialize(ctx context.Context, cmdLine string) error
}

// ReadSource is random-access content that must be closed after use.
type ReadSource interface {
	io.ReaderAt
	Size() int64
	Close() error
}

// FileExists reports whether name exists in fsys and is not a directory.
func FileExists(ctx context.Context, fsys FileSystem, name string) bool {
	info, err := fsys.Stat(ctx, name)
	return err == nil && !info.IsDir()
}

// IsNotExist reports whether err means a file was not found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
