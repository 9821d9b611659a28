package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

const (
	secretBlobVersion = "v1"
	hkdfInfo          = "coursefox/payment-gateway-secret/v1"
)

// DecryptionError is returned when a stored secret cannot be opened, e.g.
// after SETTINGS_ENCRYPTION_KEY was rotated without re-encrypting.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt secret: %s: %v", e.Reason, e.Err)
	}
	return "decrypt secret: " + e.Reason
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// SecretCipher encrypts small secrets with AES-256-GCM. Every call to
// Encrypt uses a fresh random nonce which is stored in front of the
// ciphertext.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives the AES key from masterKey with HKDF-SHA256.
func NewSecretCipher(masterKey string) (*SecretCipher, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, errors.New("encryption master key is required")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(masterKey), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretCipher{aead: aead}, nil
}

// NewSecretCipherFromEnv reads SETTINGS_ENCRYPTION_KEY.
func NewSecretCipherFromEnv() (*SecretCipher, error) {
	return NewSecretCipher(env.GetEnv("SETTINGS_ENCRYPTION_KEY", ""))
}

// Encrypt seals plaintext. associated is authenticated but not encrypted;
// the gateway name is used so a blob cannot be moved to another row.
func (c *SecretCipher) Encrypt(plaintext, associated string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return secretBlobVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. All failures are *DecryptionError.
func (c *SecretCipher) Decrypt(blob, associated string) (string, error) {
	version, encoded, ok := strings.Cut(blob, ":")
	if !ok || version != secretBlobVersion {
		return "", &DecryptionError{Reason: "unknown blob version"}
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &DecryptionError{Reason: "invalid encoding", Err: err}
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", &DecryptionError{Reason: "ciphertext too short"}
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], []byte(associated))
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	return string(plaintext), nil
}
