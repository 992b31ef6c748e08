package auth

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	verifierLength   = 128
	verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewVerifier returns a random 128 character PKCE code verifier drawn from [A-Za-z0-9].
//
// Bytes at or above the largest multiple of the alphabet size are rejected so every character is equally likely.
func NewVerifier() (string, error) {
	const limit = 256 - 256%len(verifierAlphabet)

	out := make([]byte, 0, verifierLength)
	buf := make([]byte, verifierLength)
	for len(out) < verifierLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, verifierAlphabet[int(b)%len(verifierAlphabet)])
			if len(out) == verifierLength {
				break
			}
		}
	}
	return string(out), nil
}

// Challenge derives the S256 code challenge: unpadded base64url of SHA-256(verifier).
func Challenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
