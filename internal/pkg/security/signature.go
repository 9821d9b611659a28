package security

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"
)

// Signer signs and verifies request bodies with a shared key.
type Signer interface {
	Sign(body, key []byte) string
	Verify(body []byte, signature string, key []byte) bool
}

// HMACSigner produces lowercase hex HMAC digests.
type HMACSigner struct {
	newHash func() hash.Hash
}

// NewHMACSigner returns a signer using the given hash constructor.
func NewHMACSigner(newHash func() hash.Hash) *HMACSigner {
	return &HMACSigner{newHash: newHash}
}

// NewHMACSHA512Signer matches the processor's X-Paystack-Signature scheme.
func NewHMACSHA512Signer() *HMACSigner {
	return NewHMACSigner(sha512.New)
}

func (s *HMACSigner) Sign(body, key []byte) string {
	return hex.EncodeToString(s.sum(body, key))
}

// Verify compares in constant time. Empty keys and malformed hex never verify.
func (s *HMACSigner) Verify(body []byte, signature string, key []byte) bool {
	sig := strings.TrimSpace(signature)
	if sig == "" || len(key) == 0 {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	return hmac.Equal(s.sum(body, key), decodedSig)
}

func (s *HMACSigner) sum(body, key []byte) []byte {
	mac := hmac.New(s.newHash, key)
	mac.Write(body)
	return mac.Sum(nil)
}
