package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix marks values written by SecretboxCipher
const sealedPrefix = "sb1:"

// Key derivation parameters
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	keySalt       = "flocon-token-cipher-v1"
)

var (
	ErrMissingKey      = errors.New("token encryption key is required")
	ErrCiphertextShort = errors.New("ciphertext too short")
	ErrDecrypt         = errors.New("failed to decrypt token")
)

// SecretboxCipher encrypts stored OAuth credentials with NaCl secretbox
// (XSalsa20-Poly1305). The 32-byte key is derived from the configured
// secret with Argon2id.
type SecretboxCipher struct {
	key [32]byte
}

// NewSecretboxCipher creates a cipher from secret
func NewSecretboxCipher(secret string) (*SecretboxCipher, error) {
	if secret == "" {
		return nil, ErrMissingKey
	}
	c := &SecretboxCipher{}
	derived := argon2.IDKey([]byte(secret), []byte(keySalt), argon2Time, argon2Memory, argon2Threads, 32)
	copy(c.key[:], derived)
	return c, nil
}

// Seal encrypts plaintext under a fresh random nonce
func (c *SecretboxCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(box), nil
}

// Open decrypts a value written by Seal. Values without the sealed prefix
// predate encryption and are returned unchanged.
func (c *SecretboxCipher) Open(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, sealedPrefix) {
		return ciphertext, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(ciphertext, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(raw) < 24+secretbox.Overhead {
		return "", ErrCiphertextShort
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
