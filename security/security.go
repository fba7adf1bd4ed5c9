package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// GenerateResetToken returns 32 random bytes, hex encoded. The raw token is
// mailed to the user and never stored.
func GenerateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the form a reset token is stored and looked up under.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SanitizeHeaders removes credentials from a header set before it is logged.
func SanitizeHeaders(headers http.Header) http.Header {
	clean := headers.Clone()
	for _, header := range []string{"Authorization", "Cookie", "Set-Cookie", "X-CSRF-Token"} {
		clean.Del(header)
	}
	return clean
}
