package pak

import (
	"crypto/ed25519"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	digest "github.com/opencontainers/go-digest"

	"github.com/meigma/pakstream/pak/internal/file"
	"github.com/meigma/pakstream/pak/internal/index"
)

// Pak is an opened archive. It implements fs.FS, fs.StatFS, fs.ReadFileFS
// and fs.ReadDirFS over archive-relative paths.
//
// A Pak is safe for concurrent use.
type Pak struct {
	idx    *index.Index
	footer *footer
	reader *file.Reader
	closer io.Closer
	logger *slog.Logger

	signedOnly        bool
	trustedKeys       []ed25519.PublicKey
	verifyData        bool
	verifyOnClose     bool
	maxFileSize       uint64
	maxFileSizeSet    bool
	initialMountPoint string
	signed            bool

	mu         sync.RWMutex
	mountPoint string
	closed     bool
}

// log returns the configured logger or a discard logger if none was set.
func (p *Pak) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// Open implements fs.FS.
//
// The returned file verifies the content hash when read to EOF and, unless
// disabled with WithVerifyOnClose, on Close.
func (p *Pak) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if entry, ok := p.idx.Lookup(name); ok {
		h, err := p.reader.Open(&entry, file.Base(name), p.verifyOnClose)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return h, nil
	}
	if p.isDir(name) {
		return &openDir{p: p, name: name}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS. Directories are synthesized from entry paths.
func (p *Pak) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if entry, ok := p.idx.Lookup(name); ok {
		info, err := file.NewInfo(&entry, file.Base(name))
		if err != nil {
			return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
		}
		return info, nil
	}
	if p.isDir(name) {
		if name == "." {
			return file.NewDirInfo("."), nil
		}
		return file.NewDirInfo(file.Base(name)), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS. Content is decompressed if necessary
// and verified against its hash.
func (p *Pak) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	entry, ok := p.idx.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	return p.reader.ReadAll(&entry)
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (p *Pak) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if _, ok := p.idx.Lookup(name); ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}

	di := newDirIter(p.idx, file.DirPrefix(name))
	defer di.Close()

	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := di.Next()
		if !ok {
			break
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	// Index order puts "a.txt" before the children of "a/"; names must sort.
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// Entry returns the index entry for an archive-relative path.
func (p *Pak) Entry(path string) (Entry, bool) {
	return p.idx.Lookup(path)
}

// Entries returns an iterator over all entries in path order.
func (p *Pak) Entries() iter.Seq[Entry] {
	return p.idx.Entries()
}

// EntriesWithPrefix returns an iterator over entries whose path starts with prefix.
func (p *Pak) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return p.idx.EntriesWithPrefix(prefix)
}

// Len returns the number of entries.
func (p *Pak) Len() int {
	return p.idx.Len()
}

// IndexDigest returns the SHA256 digest of the index, as recorded in the footer.
func (p *Pak) IndexDigest() digest.Digest {
	return digest.NewDigestFromBytes(digest.SHA256, p.footer.indexHash[:])
}

// DataDigest returns the SHA256 digest of the data region recorded in the index.
func (p *Pak) DataDigest() (digest.Digest, bool) {
	hash, ok := p.idx.DataHash()
	if !ok {
		return "", false
	}
	return digest.NewDigestFromBytes(digest.SHA256, hash), true
}

// DataSize returns the size of the data region in bytes.
func (p *Pak) DataSize() uint64 {
	return p.idx.DataSize()
}

// Signed reports whether the archive carries a signature that verified
// against a trusted key.
func (p *Pak) Signed() bool {
	return p.signed
}

// Close releases the underlying file when the archive was opened with
// OpenFile or WithCloser. It is safe to call more than once.
func (p *Pak) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

// isDir reports whether name has entries under it.
func (p *Pak) isDir(name string) bool {
	if name == "." {
		return p.idx.Len() > 0
	}
	return p.idx.HasPrefix(name + "/")
}

// openDir implements fs.ReadDirFile for synthetic directories.
type openDir struct {
	p    *Pak
	name string
	iter *dirIter
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	if d.name == "." {
		return file.NewDirInfo("."), nil
	}
	return file.NewDirInfo(file.Base(d.name)), nil
}

func (d *openDir) Close() error {
	if d.iter != nil {
		d.iter.Close()
		d.iter = nil
	}
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.iter == nil {
		d.iter = newDirIter(d.p.idx, file.DirPrefix(d.name))
	}
	entries := make([]fs.DirEntry, 0, max(n, 0))
	for n <= 0 || len(entries) < n {
		entry, ok := d.iter.Next()
		if !ok {
			if n > 0 && len(entries) == 0 {
				return nil, io.EOF
			}
			break
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// dirIter yields the immediate children of a prefix, synthesizing one
// directory entry per distinct subdirectory.
type dirIter struct {
	next     func() (Entry, bool)
	stop     func()
	prefix   string
	lastName string
	done     bool
}

func newDirIter(idx *index.Index, prefix string) *dirIter {
	next, stop := iter.Pull(idx.EntriesWithPrefix(prefix))
	return &dirIter{next: next, stop: stop, prefix: prefix}
}

func (it *dirIter) Next() (fs.DirEntry, bool) {
	if it.done {
		return nil, false
	}
	for {
		entry, ok := it.next()
		if !ok {
			it.Close()
			return nil, false
		}
		childName, isSubDir := file.Child(entry.Path, it.prefix)
		if childName == it.lastName {
			continue
		}
		it.lastName = childName

		if isSubDir {
			return file.NewDirEntry(file.NewDirInfo(childName)), true
		}
		info, err := file.NewInfo(&entry, childName)
		if err != nil {
			// Size does not fit in int64; unreadable anyway.
			continue
		}
		return file.NewDirEntry(info), true
	}
}

func (it *dirIter) Close() {
	if it.done {
		return
	}
	it.done = true
	if it.stop != nil {
		it.stop()
		it.stop = nil
	}
}
