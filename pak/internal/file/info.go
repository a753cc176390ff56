package file

import (
	"io/fs"
	"strings"
	"time"

	"github.com/meigma/pakstream/pak/internal/paktype"
	"github.com/meigma/pakstream/pak/internal/sizing"
)

// Info implements fs.FileInfo for archive entries and synthetic directories.
type Info struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// NewInfo returns file info for entry using name as the base name.
func NewInfo(entry *paktype.Entry, name string) (*Info, error) {
	size, err := sizing.ToInt64(entry.OriginalSize, paktype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	return &Info{
		name:    name,
		size:    size,
		mode:    entry.Mode.Perm(),
		modTime: entry.ModTime,
	}, nil
}

// NewDirInfo returns info for a directory synthesized from entry paths.
func NewDirInfo(name string) *Info {
	return &Info{name: name, mode: fs.ModeDir | 0o755}
}

func (i *Info) Name() string       { return i.name }
func (i *Info) Size() int64        { return i.size }
func (i *Info) Mode() fs.FileMode  { return i.mode }
func (i *Info) ModTime() time.Time { return i.modTime }
func (i *Info) IsDir() bool        { return i.mode.IsDir() }
func (i *Info) Sys() any           { return nil }

// DirEntry adapts Info to fs.DirEntry.
type DirEntry struct {
	info *Info
}

// NewDirEntry wraps info as a directory entry.
func NewDirEntry(info *Info) *DirEntry {
	return &DirEntry{info: info}
}

func (d *DirEntry) Name() string               { return d.info.Name() }
func (d *DirEntry) IsDir() bool                { return d.info.IsDir() }
func (d *DirEntry) Type() fs.FileMode          { return d.info.Mode().Type() }
func (d *DirEntry) Info() (fs.FileInfo, error) { return d.info, nil }
func (d *DirEntry) String() string             { return fs.FormatDirEntry(d) }

// Base returns the last element of a slash-separated path.
func Base(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// DirPrefix returns the entry-path prefix for listing directory name.
func DirPrefix(name string) string {
	if name == "." || name == "" {
		return ""
	}
	return name + "/"
}

// Child returns the immediate child of prefix on the way to path, and
// whether that child is itself a directory.
func Child(path, prefix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i], true
	}
	return rest, false
}
