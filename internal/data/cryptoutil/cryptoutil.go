// Package cryptoutil seals stored API keys at rest.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encryptor seals and opens credential strings. An empty plaintext seals to an empty string so
// unset key slots stay empty in storage.
type Encryptor interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

const (
	prefixV1   = "v1:"
	noopPrefix = "noop:"
)

// ErrUnknownCiphertext is returned when a stored value carries no recognised version prefix.
var ErrUnknownCiphertext = errors.New("unknown ciphertext version")

// AESGCMEncryptor seals values with AES-256-GCM and a random nonce.
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

// NewAESGCMEncryptor builds an encryptor from a raw 32-byte key.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMEncryptor{aead: aead}, nil
}

// DeriveKey turns a configured secret into a 32-byte key: a 64-char hex string is decoded as-is,
// anything else is hashed with SHA-256.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	if decoded, err := hex.DecodeString(secret); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// NewFromSecret returns an AES-GCM encryptor for a non-empty secret, or a NoopEncryptor when
// secret is empty. The bool reports whether real encryption is active.
//
//nolint:ireturn // callers only need the Encryptor behaviour
func NewFromSecret(secret string) (Encryptor, bool, error) {
	if strings.TrimSpace(secret) == "" {
		return NoopEncryptor{}, false, nil
	}
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, false, err
	}
	enc, err := NewAESGCMEncryptor(key)
	if err != nil {
		return nil, false, err
	}
	return enc, true, nil
}

// Seal returns "v1:" followed by base64(nonce||ciphertext).
func (e *AESGCMEncryptor) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	out := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefixV1 + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values written by NoopEncryptor are still readable so a deployment can
// turn encryption on without rewriting existing rows.
func (e *AESGCMEncryptor) Open(sealed string) (string, error) {
	switch {
	case sealed == "":
		return "", nil
	case strings.HasPrefix(sealed, noopPrefix):
		return NoopEncryptor{}.Open(sealed)
	case !strings.HasPrefix(sealed, prefixV1):
		return "", ErrUnknownCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(sealed[len(prefixV1):])
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("ciphertext too short")
	}
	pt, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(pt), nil
}

// NoopEncryptor stores plaintext behind a marker prefix. Used when no secret is configured and in tests.
type NoopEncryptor struct{}

func (NoopEncryptor) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return noopPrefix + base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
}

func (NoopEncryptor) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, noopPrefix) {
		return "", ErrUnknownCiphertext
	}
	b, err := base64.StdEncoding.DecodeString(sealed[len(noopPrefix):])
	if err != nil {
		return "", fmt.Errorf("decode noop value: %w", err)
	}
	return string(b), nil
}
