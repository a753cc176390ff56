// Package file reads and verifies individual archive entries.
//
// Entries are read through a ByteSource, decompressed with pooled zstd
// decoders when needed, and checked against their SHA256 hash either eagerly
// (ReadAll) or when a streamed handle reaches EOF or is closed.
package file
