// Package paktest builds PAK archives for tests.
package paktest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak"
)

// MapFS converts path/content pairs into an fstest.MapFS with 0644 files.
func MapFS(files map[string][]byte) fstest.MapFS {
	fsys := make(fstest.MapFS, len(files))
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: data, Mode: 0o644}
	}
	return fsys
}

// Build returns the bytes of an archive containing files.
func Build(tb testing.TB, files map[string][]byte, opts ...pak.CreateOption) []byte {
	tb.Helper()
	var buf bytes.Buffer
	_, err := pak.Create(context.Background(), MapFS(files), &buf, opts...)
	require.NoError(tb, err)
	return buf.Bytes()
}

// Open builds an archive from files and opens it from memory.
func Open(tb testing.TB, files map[string][]byte, opts ...pak.Option) *pak.Pak {
	tb.Helper()
	p, err := pak.Open(bytes.NewReader(Build(tb, files)), opts...)
	require.NoError(tb, err)
	return p
}

// WriteFile writes an archive named name into dir and returns its path.
func WriteFile(tb testing.TB, dir, name string, files map[string][]byte, opts ...pak.CreateOption) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	_, err := pak.WriteFile(context.Background(), MapFS(files), path, opts...)
	require.NoError(tb, err)
	return path
}
