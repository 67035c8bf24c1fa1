// Package secrets seals sensitive payout details before they reach the store.
package secrets

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const envelopeVersion = "v1"

var (
	ErrKeyLength         = errors.New("sealing key must be 32 bytes")
	ErrMalformedEnvelope = errors.New("malformed sealed envelope")
)

type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(envelope string) ([]byte, error)
}

// AEADSealer seals with XChaCha20-Poly1305. The envelope is "v1:" followed by the hex of
// nonce||ciphertext. Safe for concurrent use; the key is read-only after construction.
type AEADSealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*AEADSealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrKeyLength
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return &AEADSealer{aead: aead}, nil
}

func (s *AEADSealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return envelopeVersion + ":" + hex.EncodeToString(sealed), nil
}

func (s *AEADSealer) Open(envelope string) ([]byte, error) {
	version, payload, ok := strings.Cut(envelope, ":")
	if !ok || version != envelopeVersion {
		return nil, ErrMalformedEnvelope
	}
	raw, err := hex.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return nil, ErrMalformedEnvelope
	}

	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open envelope: %w", err)
	}
	return plaintext, nil
}
