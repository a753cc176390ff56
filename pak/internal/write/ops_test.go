package write

import (
	"bytes"
	"context"
	"crypto/sha256"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

func TestWriteFileRaw(t *testing.T) {
	t.Parallel()

	content := []byte("uasset payload")
	var out bytes.Buffer
	dataSize, origSize, hash, err := New(nil).WriteFile(context.Background(), bytes.NewReader(content), &out, paktype.CompressionNone, int64(len(content)))
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	assert.Equal(t, uint64(len(content)), dataSize)
	assert.Equal(t, uint64(len(content)), origSize)
	assert.Equal(t, sum[:], hash)
	assert.Equal(t, content, out.Bytes())
}

func TestWriteFileZstd(t *testing.T) {
	t.Parallel()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)

	content := []byte(strings.Repeat("umap ", 1000))
	var out bytes.Buffer
	dataSize, origSize, _, err := New(enc).WriteFile(context.Background(), bytes.NewReader(content), &out, paktype.CompressionZstd, int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, uint64(out.Len()), dataSize)
	assert.Equal(t, uint64(len(content)), origSize)
	assert.Less(t, dataSize, origSize)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	got, err := dec.DecodeAll(out.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestWriteFileShortInput(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, _, _, err := New(nil).WriteFile(context.Background(), strings.NewReader("abc"), &out, paktype.CompressionNone, 10)
	require.ErrorContains(t, err, "file size changed")
}

func TestWriteFileCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, _, _, err := New(nil).WriteFile(ctx, strings.NewReader("abc"), &out, paktype.CompressionNone, 3)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultSkipCompression(t *testing.T) {
	t.Parallel()

	skip := DefaultSkipCompression(0)
	assert.True(t, skip("Movies/Intro.bk2", nil))
	assert.True(t, skip("Textures/Logo.PNG", nil))
	assert.False(t, skip("Maps/Arena.umap", nil))
	assert.True(t, ShouldSkip("a.zip", nil, []SkipCompressionFunc{nil, skip}))
	assert.False(t, ShouldSkip("a.uasset", nil, nil))
}
