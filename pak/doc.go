// Package pak implements the PAK asset container.
//
// A PAK file is a single self-describing archive:
//
//	[data region]  entry contents in path order, each raw or zstd
//	[index]        FlatBuffers index (paths, offsets, sizes, hashes)
//	[signature]    optional ed25519 signature
//	[footer]       fixed 64-byte trailer locating the index and signature
//
// Archives are opened from any ByteSource (a local file, an HTTP range
// source) and expose their contents through fs.FS. Only the footer and the
// index are read at open time; entry data is fetched lazily and verified
// against the SHA256 recorded in the index.
//
// An opened archive carries a mount point, the virtual directory its
// entries appear under once mounted (for example "Engine/Content").
// FindFiles enumerates mounted paths.
package pak
