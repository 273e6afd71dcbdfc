// Package crypto provides authenticated encryption at rest for the token
// vault's stored values.
//
// Values are sealed with XChaCha20-Poly1305 under a single master key that
// lives on disk, created on first use. Ciphertext is self-delimiting: the
// 24-byte random nonce is prepended to the AEAD output, so callers only need
// to persist one blob per value.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// keySize is the XChaCha20-Poly1305 key size in bytes.
const keySize = chacha20poly1305.KeySize // 32

// ErrDecryptFailed is returned by Decrypt when the ciphertext fails
// authentication or is malformed. Decryption failure is a signal the caller
// handles (treat the stored value as unrecoverable), never a panic.
var ErrDecryptFailed = errors.New("crypto: decryption failed")

// Core seals and opens values with a single master key.
// Safe for concurrent use: the underlying cipher.AEAD is read-only after
// construction, and each Seal call draws its own fresh nonce.
type Core struct {
	aead cipher.AEAD
}

// Open loads the master key at keyPath, creating one if it does not yet
// exist. The containing directory is created with mode 0700 and the key
// file is written with mode 0600.
func Open(keyPath string) (*Core, error) {
	dir := filepath.Dir(keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("crypto: create key dir %s: %w", dir, err)
	}

	key, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: init aead: %w", err)
	}
	return &Core{aead: aead}, nil
}

func loadOrCreateKey(keyPath string) ([]byte, error) {
	data, err := os.ReadFile(keyPath) //nolint:gosec // keyPath is a fixed, operator-controlled path
	if err == nil {
		if len(data) != keySize {
			return nil, fmt.Errorf("crypto: key file %s has length %d, want %d", keyPath, len(data), keySize)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("crypto: read key %s: %w", keyPath, err)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	if err := os.WriteFile(keyPath, key, 0o600); err != nil {
		return nil, fmt.Errorf("crypto: write key %s: %w", keyPath, err)
	}
	return key, nil
}

// Encrypt seals plaintext under a freshly generated nonce and returns
// nonce || ciphertext || tag.
func (c *Core) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, sealed...), nil
}

// Decrypt opens data produced by Encrypt. It returns ErrDecryptFailed if
// data is too short to contain a nonce, or if authentication fails.
func (c *Core) Decrypt(data []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return nil, ErrDecryptFailed
	}
	nonce, ciphertext := data[:ns], data[ns:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
