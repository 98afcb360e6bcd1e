// Package cryptox seals credential material at rest. Stored access and
// refresh tokens are encrypted with AES-GCM under a key derived from a local
// passphrase via Argon2id, so the account database never holds bearer tokens
// in the clear.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const nonceSize = 12

var ErrInvalidSeal = errors.New("invalid sealed value")

// DeriveKey stretches a passphrase and salt into a 32-byte AES key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// Cipher seals and opens short string values (tokens).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 16/24/32-byte AES key.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext.
func (c *Cipher) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize {
		return "", ErrInvalidSeal
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSeal, err)
	}
	return string(plaintext), nil
}
