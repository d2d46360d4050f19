package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const tokenBytes = 32

// GenerateToken returns a random URL-safe token.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the form session tokens are stored and looked up in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SessionCredentials are minted together for one session: the cookie value
// handed to the client, its stored hash, and the CSRF token edit routes expect.
type SessionCredentials struct {
	Token     string
	TokenHash string
	CSRFToken string
}

func NewSessionCredentials() (SessionCredentials, error) {
	token, err := GenerateToken()
	if err != nil {
		return SessionCredentials{}, err
	}
	csrf, err := GenerateToken()
	if err != nil {
		return SessionCredentials{}, err
	}
	return SessionCredentials{Token: token, TokenHash: HashToken(token), CSRFToken: csrf}, nil
}
