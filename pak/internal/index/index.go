package index

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"slices"
	"sort"
	"strings"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/pakstream/pak/internal/fb"
	"github.com/meigma/pakstream/pak/internal/paktype"
)

// Version is the index format version written by Build.
const Version = 1

// ErrCorrupt is returned when the index bytes cannot be parsed.
var ErrCorrupt = errors.New("pak: corrupt index")

// Index provides access to archive entries.
//
// Index is backed by FlatBuffers. Entries are sorted by path, enabling
// binary-search lookups and contiguous prefix scans.
type Index struct {
	data []byte
	root *fb.Index
}

// Load parses a FlatBuffers-encoded index.
//
// The provided data is retained by the index; callers must not modify it
// after calling Load. Load walks every entry once so that a truncated or
// unsorted index is rejected here rather than on first access.
func Load(data []byte) (idx *Index, err error) {
	defer func() {
		if r := recover(); r != nil {
			idx = nil
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}

	root := fb.GetRootAsIndex(data, 0)
	idx = &Index{data: data, root: root}
	if err := idx.check(); err != nil {
		return nil, err
	}
	return idx, nil
}

// check verifies ordering and path validity of every entry.
func (idx *Index) check() error {
	var prev []byte
	var e fb.Entry
	for i := range idx.root.EntriesLength() {
		if !idx.root.Entries(&e, i) {
			return fmt.Errorf("%w: missing entry %d", ErrCorrupt, i)
		}
		path := e.Path()
		if !fs.ValidPath(string(path)) || string(path) == "." {
			return fmt.Errorf("%w: invalid path %q", ErrCorrupt, path)
		}
		if prev != nil && bytes.Compare(prev, path) >= 0 {
			return fmt.Errorf("%w: entries out of order at %q", ErrCorrupt, path)
		}
		prev = path
	}
	return nil
}

// Version returns the format version recorded in the index.
func (idx *Index) Version() uint32 {
	return idx.root.Version()
}

// DataHash returns the SHA256 of the data region.
// The returned slice aliases the index buffer and must be treated as immutable.
func (idx *Index) DataHash() ([]byte, bool) {
	hash := idx.root.DataHashBytes()
	if len(hash) == 0 {
		return nil, false
	}
	return hash, true
}

// DataSize returns the size of the data region in bytes.
func (idx *Index) DataSize() uint64 {
	return idx.root.DataSize()
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return idx.root.EntriesLength()
}

// Lookup returns the entry for the given archive-relative path.
func (idx *Index) Lookup(path string) (paktype.Entry, bool) {
	n := idx.root.EntriesLength()
	target := []byte(path)
	var e fb.Entry
	i := sort.Search(n, func(i int) bool {
		idx.root.Entries(&e, i)
		return bytes.Compare(e.Path(), target) >= 0
	})
	if i >= n {
		return paktype.Entry{}, false
	}
	idx.root.Entries(&e, i)
	if !bytes.Equal(e.Path(), target) {
		return paktype.Entry{}, false
	}
	return toEntry(&e), true
}

// Entries returns an iterator over all entries in path order.
func (idx *Index) Entries() iter.Seq[paktype.Entry] {
	return idx.EntriesWithPrefix("")
}

// EntriesWithPrefix returns an iterator over entries whose path starts with
// prefix, in path order.
func (idx *Index) EntriesWithPrefix(prefix string) iter.Seq[paktype.Entry] {
	return func(yield func(paktype.Entry) bool) {
		n := idx.root.EntriesLength()
		if n == 0 {
			return
		}
		prefixBytes := []byte(prefix)

		var e fb.Entry
		start := sort.Search(n, func(i int) bool {
			idx.root.Entries(&e, i)
			return bytes.Compare(e.Path(), prefixBytes) >= 0
		})
		for i := start; i < n; i++ {
			idx.root.Entries(&e, i)
			if !bytes.HasPrefix(e.Path(), prefixBytes) {
				return
			}
			if !yield(toEntry(&e)) {
				return
			}
		}
	}
}

// HasPrefix reports whether any entry path starts with prefix.
func (idx *Index) HasPrefix(prefix string) bool {
	for range idx.EntriesWithPrefix(prefix) {
		return true
	}
	return false
}

func toEntry(e *fb.Entry) paktype.Entry {
	var modTime time.Time
	if ns := e.MtimeNs(); ns != 0 {
		modTime = time.Unix(0, ns)
	}
	return paktype.Entry{
		Path:         string(e.Path()),
		DataOffset:   e.DataOffset(),
		DataSize:     e.DataSize(),
		OriginalSize: e.OriginalSize(),
		Hash:         e.HashBytes(),
		Mode:         fs.FileMode(e.Mode()),
		ModTime:      modTime,
		Compression:  paktype.Compression(e.Compression()),
	}
}

// Build serializes entries to FlatBuffers format.
//
// Entries are sorted by path before encoding; the caller's slice is left
// untouched. Duplicate paths are rejected.
func Build(entries []paktype.Entry, dataSize uint64, dataHash []byte) ([]byte, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b paktype.Entry) int {
		return strings.Compare(a.Path, b.Path)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Path == sorted[i].Path {
			return nil, fmt.Errorf("pak: duplicate entry %q", sorted[i].Path)
		}
	}

	builder := flatbuffers.NewBuilder(1024)

	// Children before parents, back to front.
	offsets := make([]flatbuffers.UOffsetT, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		pathOffset := builder.CreateString(e.Path)
		hashOffset := builder.CreateByteVector(e.Hash)

		fb.EntryStart(builder)
		fb.EntryAddPath(builder, pathOffset)
		fb.EntryAddDataOffset(builder, e.DataOffset)
		fb.EntryAddDataSize(builder, e.DataSize)
		fb.EntryAddOriginalSize(builder, e.OriginalSize)
		fb.EntryAddHash(builder, hashOffset)
		fb.EntryAddMode(builder, uint32(e.Mode))
		if !e.ModTime.IsZero() {
			fb.EntryAddMtimeNs(builder, e.ModTime.UnixNano())
		}
		fb.EntryAddCompression(builder, fb.Compression(e.Compression))
		offsets[i] = fb.EntryEnd(builder)
	}

	fb.IndexStartEntriesVector(builder, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(offsets[i])
	}
	entriesOffset := builder.EndVector(len(offsets))

	var dataHashOffset flatbuffers.UOffsetT
	if len(dataHash) > 0 {
		dataHashOffset = builder.CreateByteVector(dataHash)
	}

	fb.IndexStart(builder)
	fb.IndexAddVersion(builder, Version)
	fb.IndexAddEntries(builder, entriesOffset)
	fb.IndexAddDataSize(builder, dataSize)
	if dataHashOffset != 0 {
		fb.IndexAddDataHash(builder, dataHashOffset)
	}
	builder.Finish(fb.IndexEnd(builder))
	return builder.FinishedBytes(), nil
}
