// Package crypto implements server-side password hashing and at-rest sealing of
// third-party credentials.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2-HMAC-SHA256 parameters. Stored credentials depend on them; do not change.
const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
	saltLen          = 16
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// derive returns PBKDF2-HMAC-SHA256 of password using the provided salt.
func derive(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
}

// HashPassword returns a credential of the form "salthex:hashhex" with a fresh random salt.
func HashPassword(password string) (string, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(derive([]byte(password), salt)), nil
}

// VerifyPassword verifies password against a stored credential.
// Malformed credentials yield false.
func VerifyPassword(password, credential string) bool {
	saltHex, hashHex, ok := strings.Cut(credential, ":")
	if !ok || strings.Contains(hashHex, ":") {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := hex.DecodeString(hashHex)
	if err != nil || len(expected) == 0 {
		return false
	}
	got := derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
