// Package write streams file content into an archive data region.
package write

import (
	"io/fs"
	"path"
	"strings"
)

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc func(path string, info fs.FileInfo) bool

// DefaultSkipCompression returns a SkipCompressionFunc that skips small files
// and formats that are already compressed.
func DefaultSkipCompression(minSize int64) SkipCompressionFunc {
	return func(p string, info fs.FileInfo) bool {
		if info != nil && minSize > 0 && info.Size() < minSize {
			return true
		}
		_, ok := precompressedExts[strings.ToLower(path.Ext(p))]
		return ok
	}
}

// ShouldSkip reports whether any predicate returns true for the given file.
func ShouldSkip(p string, info fs.FileInfo, predicates []SkipCompressionFunc) bool {
	for _, fn := range predicates {
		if fn != nil && fn(p, info) {
			return true
		}
	}
	return false
}

var precompressedExts = map[string]struct{}{
	".bk2":  {},
	".gz":   {},
	".jpg":  {},
	".jpeg": {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".pak":  {},
	".png":  {},
	".ucas": {},
	".webm": {},
	".wem":  {},
	".zip":  {},
	".zst":  {},
}
