package pak

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// GenerateKey creates a new ed25519 signing key pair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// MarshalPublicKey encodes a public key as a single line of base64 text.
func MarshalPublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

// ParsePublicKey decodes a key produced by MarshalPublicKey.
// Surrounding whitespace is ignored.
func ParsePublicKey(text string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("parse public key: got %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}

// MarshalPrivateKey encodes a private key's seed as base64 text.
func MarshalPrivateKey(priv ed25519.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(priv.Seed())
}

// ParsePrivateKey decodes a key produced by MarshalPrivateKey.
func ParsePrivateKey(text string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("parse private key: got %d bytes, want %d", len(raw), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// LoadPublicKeys reads one public key per file.
func LoadPublicKeys(paths ...string) ([]ed25519.PublicKey, error) {
	keys := make([]ed25519.PublicKey, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // key paths come from configuration
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		key, err := ParsePublicKey(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// LoadPrivateKey reads a private key file written by the keygen command.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // key path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKey(string(data))
}

func verifySignature(f *footer, sig []byte, trusted []ed25519.PublicKey) error {
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: signature is %d bytes", ErrSignature, len(sig))
	}
	if len(trusted) == 0 {
		return fmt.Errorf("%w: no trusted keys configured", ErrSignature)
	}
	msg := signedPayload(f)
	for _, key := range trusted {
		if ed25519.Verify(key, msg, sig) {
			return nil
		}
	}
	return errors.Join(ErrSignature, errors.New("no trusted key matched"))
}
