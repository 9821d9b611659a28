package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretCipherRoundTrip(t *testing.T) {
	c, err := NewSecretCipher("master-key-for-tests")
	require.NoError(t, err)

	blob, err := c.Encrypt("sk_live_abcdef123456", "paystack")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blob, "v1:"))
	assert.NotContains(t, blob, "sk_live_abcdef123456")

	plain, err := c.Decrypt(blob, "paystack")
	require.NoError(t, err)
	assert.Equal(t, "sk_live_abcdef123456", plain)
}

func TestSecretCipherUsesFreshNonce(t *testing.T) {
	c, err := NewSecretCipher("master-key-for-tests")
	require.NoError(t, err)

	a, err := c.Encrypt("same secret", "paystack")
	require.NoError(t, err)
	b, err := c.Encrypt("same secret", "paystack")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestSecretCipherDecryptFailures(t *testing.T) {
	c, err := NewSecretCipher("master-key-for-tests")
	require.NoError(t, err)
	rotated, err := NewSecretCipher("rotated-master-key")
	require.NoError(t, err)

	blob, err := c.Encrypt("sk_test_123", "paystack")
	require.NoError(t, err)

	tests := []struct {
		name   string
		cipher *SecretCipher
		blob   string
		aad    string
	}{
		{"rotated key", rotated, blob, "paystack"},
		{"other row", c, blob, "flutterwave"},
		{"unknown version", c, "v0:" + strings.TrimPrefix(blob, "v1:"), "paystack"},
		{"no version", c, "garbage", "paystack"},
		{"bad base64", c, "v1:***", "paystack"},
		{"too short", c, "v1:AAAA", "paystack"},
		{"empty", c, "", "paystack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, err := tt.cipher.Decrypt(tt.blob, tt.aad)
			require.Error(t, err)
			assert.Empty(t, plain)

			var decErr *DecryptionError
			assert.True(t, errors.As(err, &decErr))
		})
	}
}

func TestNewSecretCipherRequiresKey(t *testing.T) {
	_, err := NewSecretCipher("  ")
	assert.Error(t, err)
}
