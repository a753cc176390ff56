package index

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pakstream/pak/internal/paktype"
)

func testEntries() []paktype.Entry {
	mk := func(path string, off uint64) paktype.Entry {
		sum := sha256.Sum256([]byte(path))
		return paktype.Entry{
			Path:         path,
			DataOffset:   off,
			DataSize:     10,
			OriginalSize: 10,
			Hash:         sum[:],
			Mode:         0o644,
			ModTime:      time.Unix(1700000000, 0),
		}
	}
	// Deliberately unsorted.
	return []paktype.Entry{
		mk("Maps/b.umap", 30),
		mk("a.uasset", 0),
		mk("Maps/a.umap", 20),
		mk("Maps.txt", 10),
	}
}

func TestBuildAndLoad(t *testing.T) {
	t.Parallel()

	dataHash := sha256.Sum256([]byte("data"))
	data, err := Build(testEntries(), 40, dataHash[:])
	require.NoError(t, err)

	idx, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, uint32(Version), idx.Version())
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, uint64(40), idx.DataSize())
	hash, ok := idx.DataHash()
	require.True(t, ok)
	assert.Equal(t, dataHash[:], hash)

	var paths []string
	for e := range idx.Entries() {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"Maps.txt", "Maps/a.umap", "Maps/b.umap", "a.uasset"}, paths)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	data, err := Build(testEntries(), 40, nil)
	require.NoError(t, err)
	idx, err := Load(data)
	require.NoError(t, err)

	e, ok := idx.Lookup("Maps/a.umap")
	require.True(t, ok)
	assert.Equal(t, uint64(20), e.DataOffset)
	assert.Equal(t, uint64(10), e.DataSize)
	assert.Equal(t, int64(1700000000), e.ModTime.Unix())

	_, ok = idx.Lookup("Maps")
	assert.False(t, ok)
	_, ok = idx.Lookup("zzz")
	assert.False(t, ok)

	_, ok = idx.DataHash()
	assert.False(t, ok)
}

func TestEntriesWithPrefix(t *testing.T) {
	t.Parallel()

	data, err := Build(testEntries(), 40, nil)
	require.NoError(t, err)
	idx, err := Load(data)
	require.NoError(t, err)

	var paths []string
	for e := range idx.EntriesWithPrefix("Maps/") {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"Maps/a.umap", "Maps/b.umap"}, paths)
	assert.True(t, idx.HasPrefix("Maps/"))
	assert.False(t, idx.HasPrefix("Textures/"))
}

func TestBuildRejectsDuplicates(t *testing.T) {
	t.Parallel()

	entries := testEntries()
	entries = append(entries, entries[0])
	_, err := Build(entries, 40, nil)
	require.Error(t, err)
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte{1, 2}},
		{"garbage", []byte{0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(tt.data)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
