package file

import (
	"bytes"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

type bytesSource struct {
	*bytes.Reader
}

func newSource(data []byte) bytesSource {
	return bytesSource{bytes.NewReader(data)}
}

// makeEntry appends content to data and returns the matching entry.
func makeEntry(t *testing.T, data *[]byte, path string, content []byte, comp paktype.Compression) paktype.Entry {
	t.Helper()
	stored := content
	if comp == paktype.CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		stored = enc.EncodeAll(content, nil)
		require.NoError(t, enc.Close())
	}
	sum := sha256.Sum256(content)
	e := paktype.Entry{
		Path:         path,
		DataOffset:   uint64(len(*data)),
		DataSize:     uint64(len(stored)),
		OriginalSize: uint64(len(content)),
		Hash:         sum[:],
		Mode:         0o644,
		Compression:  comp,
	}
	*data = append(*data, stored...)
	return e
}

func TestReaderReadAll(t *testing.T) {
	t.Parallel()

	var data []byte
	content := bytes.Repeat([]byte("asset-bytes "), 200)
	raw := makeEntry(t, &data, "raw.uasset", content, paktype.CompressionNone)
	zst := makeEntry(t, &data, "zst.uasset", content, paktype.CompressionZstd)

	r := NewReader(newSource(data))

	got, err := r.ReadAll(&raw)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = r.ReadAll(&zst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReaderReadAllHashMismatch(t *testing.T) {
	t.Parallel()

	var data []byte
	e := makeEntry(t, &data, "a.uasset", []byte("hello"), paktype.CompressionNone)
	data[0] ^= 0xff

	_, err := NewReader(newSource(data)).ReadAll(&e)
	require.ErrorIs(t, err, paktype.ErrHashMismatch)
}

func TestReaderValidation(t *testing.T) {
	t.Parallel()

	var data []byte
	base := makeEntry(t, &data, "a.uasset", []byte("hello world"), paktype.CompressionNone)
	r := NewReader(newSource(data), WithMaxFileSize(8))

	tests := []struct {
		name   string
		mutate func(e *paktype.Entry)
		reader *Reader
		want   error
	}{
		{"too large", func(*paktype.Entry) {}, r, paktype.ErrSizeOverflow},
		{"out of bounds", func(e *paktype.Entry) { e.DataOffset = 100 }, NewReader(newSource(data)), paktype.ErrSizeOverflow},
		{"size mismatch", func(e *paktype.Entry) { e.OriginalSize++ }, NewReader(newSource(data)), paktype.ErrDecompression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := base
			tt.mutate(&e)
			_, err := tt.reader.ReadAll(&e)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandleStreamsAndVerifies(t *testing.T) {
	t.Parallel()

	var data []byte
	content := bytes.Repeat([]byte("x"), 4096)
	e := makeEntry(t, &data, "Maps/Arena.umap", content, paktype.CompressionZstd)

	h, err := NewReader(newSource(data)).Open(&e, "Arena.umap", true)
	require.NoError(t, err)

	info, err := h.Stat()
	require.NoError(t, err)
	assert.Equal(t, "Arena.umap", info.Name())
	assert.Equal(t, int64(4096), info.Size())

	got, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	require.NoError(t, h.Close())
}

func TestHandleCloseDetectsCorruption(t *testing.T) {
	t.Parallel()

	var data []byte
	e := makeEntry(t, &data, "a.uasset", []byte("some content"), paktype.CompressionNone)
	data[len(data)-1] ^= 0xff

	h, err := NewReader(newSource(data)).Open(&e, "a.uasset", true)
	require.NoError(t, err)

	buf := make([]byte, 2)
	_, err = h.Read(buf)
	require.NoError(t, err)
	require.ErrorIs(t, h.Close(), paktype.ErrHashMismatch)
}

func TestChild(t *testing.T) {
	t.Parallel()

	name, dir := Child("Maps/Sub/a.umap", "Maps/")
	assert.Equal(t, "Sub", name)
	assert.True(t, dir)

	name, dir = Child("Maps/a.umap", "Maps/")
	assert.Equal(t, "a.umap", name)
	assert.False(t, dir)

	assert.Equal(t, "a.umap", Base("Maps/a.umap"))
	assert.Equal(t, "", DirPrefix("."))
	assert.Equal(t, "Maps/", DirPrefix("Maps"))
}
