package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword verifies a password against a hash
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateRandomBytes generates random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// GenerateRandomString generates a random string
func GenerateRandomString(n int) (string, error) {
	bytes, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// GenerateEdgeKey generates the public half of an edge server credential
// pair: "edge_" followed by 32 hex characters.
func GenerateEdgeKey() (string, error) {
	b, err := GenerateRandomBytes(16)
	if err != nil {
		return "", err
	}
	return "edge_" + hex.EncodeToString(b), nil
}

// GenerateEdgeSecret generates the HMAC signing secret of an edge server:
// 64 hex characters. It is stored server-side and shown to the operator
// exactly once, at registration.
func GenerateEdgeSecret() (string, error) {
	b, err := GenerateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateLicenseKey generates a license key of the form
// VEL-XXXX-XXXX-XXXX-XXXX.
func GenerateLicenseKey() (string, error) {
	b, err := GenerateRandomBytes(8)
	if err != nil {
		return "", err
	}
	s := strings.ToUpper(hex.EncodeToString(b))
	return "VEL-" + s[0:4] + "-" + s[4:8] + "-" + s[8:12] + "-" + s[12:16], nil
}
