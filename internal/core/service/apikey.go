package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// APIKeyPrefix marks raw API keys so they can be told apart from JWTs.
const APIKeyPrefix = "prod_sk_"

const (
	apiKeyRandomLength = 24
	apiKeyDisplayChars = 8
	apiKeyAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewAPIKey returns a raw key, its SHA-256 hash and a short display prefix.
// Only the hash and prefix are persisted.
func NewAPIKey() (raw, hash, prefix string, err error) {
	var b strings.Builder
	b.WriteString(APIKeyPrefix)
	alphabetLen := big.NewInt(int64(len(apiKeyAlphabet)))
	for i := 0; i < apiKeyRandomLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", "", "", fmt.Errorf("generate api key: %w", err)
		}
		b.WriteByte(apiKeyAlphabet[n.Int64()])
	}
	raw = b.String()
	return raw, HashAPIKey(raw), raw[:len(APIKeyPrefix)+apiKeyDisplayChars], nil
}

// HashAPIKey returns the hex SHA-256 of a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// IsAPIKey reports whether s has the shape of a raw API key.
func IsAPIKey(s string) bool {
	return strings.HasPrefix(s, APIKeyPrefix) && len(s) == len(APIKeyPrefix)+apiKeyRandomLength
}
