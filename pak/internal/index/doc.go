// Package index provides FlatBuffers index loading, building and lookup for
// PAK archives.
//
// The index stores file metadata (paths, offsets, sizes, hashes) sorted by
// path, enabling O(log n) lookups and prefix scans for directory listing and
// mount-point enumeration.
package index
