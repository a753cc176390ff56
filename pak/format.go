package pak

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const (
	// FooterSize is the fixed size of the trailer at the end of every archive.
	FooterSize = 64

	// FormatVersion is the footer version written by Create.
	FormatVersion = 1

	// DefaultExtension is the conventional archive file extension.
	DefaultExtension = ".pak"
)

var footerMagic = [4]byte{'P', 'A', 'K', 'S'}

// signaturePrefix domain-separates signatures from other ed25519 uses.
const signaturePrefix = "pakstream-signature-v1\x00"

// footer is the decoded archive trailer.
//
//	0  magic        [4]byte
//	4  version      uint32
//	8  indexOffset  uint64
//	16 indexSize    uint64
//	24 sigSize      uint32
//	28 reserved     uint32
//	32 indexHash    [32]byte
type footer struct {
	version     uint32
	indexOffset uint64
	indexSize   uint64
	sigSize     uint32
	indexHash   [sha256.Size]byte
}

func (f *footer) marshal() []byte {
	buf := make([]byte, FooterSize)
	copy(buf[0:4], footerMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], f.version)
	binary.LittleEndian.PutUint64(buf[8:16], f.indexOffset)
	binary.LittleEndian.PutUint64(buf[16:24], f.indexSize)
	binary.LittleEndian.PutUint32(buf[24:28], f.sigSize)
	copy(buf[32:64], f.indexHash[:])
	return buf
}

func parseFooter(buf []byte) (*footer, error) {
	if len(buf) != FooterSize {
		return nil, fmt.Errorf("%w: footer is %d bytes", ErrInvalidFormat, len(buf))
	}
	if !bytes.Equal(buf[0:4], footerMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidFormat, buf[0:4])
	}
	f := &footer{
		version:     binary.LittleEndian.Uint32(buf[4:8]),
		indexOffset: binary.LittleEndian.Uint64(buf[8:16]),
		indexSize:   binary.LittleEndian.Uint64(buf[16:24]),
		sigSize:     binary.LittleEndian.Uint32(buf[24:28]),
	}
	if f.version != FormatVersion {
		return nil, fmt.Errorf("%w: footer version %d", ErrUnsupportedVersion, f.version)
	}
	if binary.LittleEndian.Uint32(buf[28:32]) != 0 {
		return nil, fmt.Errorf("%w: reserved footer bytes set", ErrInvalidFormat)
	}
	copy(f.indexHash[:], buf[32:64])
	return f, nil
}

// signedPayload returns the message covered by the archive signature.
// The footer commits to the index digest, which commits to the data digest.
func signedPayload(f *footer) []byte {
	return append([]byte(signaturePrefix), f.marshal()...)
}
