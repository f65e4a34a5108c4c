package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// SecretCipher implements ports.EncryptionService for subscription signing
// secrets. Secrets are sealed with AES-256-GCM before they reach the
// database; the dispatcher opens one just before signing an envelope, so
// plaintext secrets exist only in memory and in the registration response.
type SecretCipher struct {
	key []byte
}

// NewSecretCipher builds the cipher from a 64-character hex key (32 bytes,
// AES-256). Rotating the key invalidates every stored secret: affected
// subscriptions must be re-registered.
func NewSecretCipher(hexKey string) (*SecretCipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decoding secret cipher key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secret cipher key must be 32 bytes, got %d", len(key))
	}
	return &SecretCipher{key: key}, nil
}

// Encrypt seals a signing secret for storage. Output is hex encoded:
// a fresh random nonce followed by the ciphertext.
func (c *SecretCipher) Encrypt(secret string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := aesGCM.Seal(nonce, nonce, []byte(secret), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a stored secret. Fails when the ciphertext was tampered
// with or was sealed under a different key.
func (c *SecretCipher) Decrypt(stored string) (string, error) {
	sealed, err := hex.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decoding stored secret: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("stored secret too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	secret, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("opening stored secret: %w", err)
	}

	return string(secret), nil
}
