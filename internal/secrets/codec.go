// Package secrets provides the symmetric codec used to seal token values
// before they are persisted. Ciphertext is AES-256-GCM with the nonce
// prepended, base64-encoded. The key is process-wide configuration loaded
// once at startup; rotating it invalidates all previously sealed values.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt is returned by Open when the ciphertext was produced under a
// different key, was tampered with, or is malformed.
var ErrDecrypt = errors.New("decrypt failed: ciphertext invalid or wrong key")

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// Codec seals and opens secret strings with a fixed AES-256-GCM key.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Codec{aead: aead}, nil
}

// Seal encrypts plaintext and returns a base64-encoded string containing
// the nonce (12 bytes) prepended to the ciphertext.
func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal. Any failure is reported as
// ErrDecrypt; the underlying cause is not recoverable by the caller.
func (c *Codec) Open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode: %v", ErrDecrypt, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return string(plaintext), nil
}
