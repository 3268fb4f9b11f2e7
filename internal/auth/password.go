package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes        = 16
	keyBytes         = 64
	pbkdf2Iterations = 10000
)

// HashPassword derives a salted PBKDF2-SHA512 hash, encoded as "salt:hash" in hex.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return encodeHash(salt, derive(password, salt)), nil
}

// CheckPasswordHash re-derives the hash with the stored salt and compares.
// A malformed stored value never matches.
func CheckPasswordHash(password, stored string) bool {
	saltHex, hashHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil || len(want) != keyBytes {
		return false
	}
	return subtle.ConstantTimeCompare(derive(password, salt), want) == 1
}

func derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keyBytes, sha512.New)
}

func encodeHash(salt, key []byte) string {
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(key)
}
