package service

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// AESGCMCipher implements the AEAD interface using AES-256-GCM.
//
// The cipher instance is stateless and safe for concurrent use from multiple
// goroutines. Nonces are supplied by the caller; with GCM it is critical they
// are never reused with the same key, which is why wrap operations source them
// from a counter-based NonceSource rather than generating them here.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher. The key must be exactly 32 bytes.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != 32 {
		return nil, errors.New("key must be exactly 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Seal encrypts plaintext under the given 12-byte nonce and AAD. The returned
// ciphertext includes the 16-byte authentication tag appended to the end.
func (a *AESGCMCipher) Seal(plaintext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes", a.aead.NonceSize())
	}
	return a.aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts ciphertext using the given nonce and AAD. The same AAD used
// during Seal must be provided; the authentication tag is verified before any
// plaintext is returned.
func (a *AESGCMCipher) Open(ciphertext, nonce, aad []byte) ([]byte, error) {
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
