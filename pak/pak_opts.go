package pak

import (
	"crypto/ed25519"
	"io"
	"log/slog"
)

// Option configures Open.
type Option func(*Pak)

// WithSignedOnly requires the archive to carry a signature that verifies
// against one of the trusted keys.
func WithSignedOnly(required bool) Option {
	return func(p *Pak) {
		p.signedOnly = required
	}
}

// WithTrustedKeys adds public keys accepted for signature verification.
// Signatures on archives are verified whenever trusted keys are present,
// even if WithSignedOnly is not set.
func WithTrustedKeys(keys ...ed25519.PublicKey) Option {
	return func(p *Pak) {
		p.trustedKeys = append(p.trustedKeys, keys...)
	}
}

// WithVerifyData hashes the entire data region at open time and compares
// it with the digest recorded in the index. Off by default since it reads
// the full archive.
func WithVerifyData(enabled bool) Option {
	return func(p *Pak) {
		p.verifyData = enabled
	}
}

// WithVerifyOnClose controls whether fs.File handles drain and verify
// unread content on Close (default: true).
func WithVerifyOnClose(enabled bool) Option {
	return func(p *Pak) {
		p.verifyOnClose = enabled
	}
}

// WithMaxFileSize limits the uncompressed size of any single entry.
// Zero disables the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(p *Pak) {
		p.maxFileSize = limit
		p.maxFileSizeSet = true
	}
}

// WithMountPoint sets the initial mount point. See SetMountPoint.
func WithMountPoint(mountPoint string) Option {
	return func(p *Pak) {
		p.initialMountPoint = mountPoint
	}
}

// WithLogger sets the logger for archive operations.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pak) {
		p.logger = logger
	}
}

// WithCloser makes Close also close c. Use it to hand ownership of the
// source passed to Open to the archive.
func WithCloser(c io.Closer) Option {
	return func(p *Pak) {
		p.closer = c
	}
}
