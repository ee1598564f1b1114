package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// TokenGenerator mints opaque bearer tokens. Only the hash is persisted.
type TokenGenerator interface {
	Generate(prefix string) (plainToken string, tokenHash string, err error)
	Hash(plainToken string) string
	Verify(plainToken, tokenHash string) bool
}

type DefaultTokenGenerator struct{}

func NewTokenGenerator() TokenGenerator {
	return DefaultTokenGenerator{}
}

func (g DefaultTokenGenerator) Generate(prefix string) (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	plain := prefix + "_" + base64.RawURLEncoding.EncodeToString(buf)
	return plain, g.Hash(plain), nil
}

func (DefaultTokenGenerator) Hash(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}

func (g DefaultTokenGenerator) Verify(plainToken, tokenHash string) bool {
	return subtle.ConstantTimeCompare([]byte(g.Hash(plainToken)), []byte(tokenHash)) == 1
}
