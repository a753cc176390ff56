package pak

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile creates an archive from fsys at path.
//
// The archive is written to a temporary file in the target directory and
// renamed into place, so readers never observe a partial archive. Parent
// directories are created as needed.
func WriteFile(ctx context.Context, fsys fs.FS, path string, opts ...CreateOption) (*Summary, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pak-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()

	summary, err := Create(ctx, fsys, tmp, opts...)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}
	return summary, nil
}
