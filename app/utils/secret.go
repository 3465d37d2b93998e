package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashAPIKey hashes an api key with bcrypt so it can be stored in config.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// VerifyAPIKey reports whether key matches the bcrypt hash.
func VerifyAPIKey(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// IsBcryptHash reports whether s looks like a bcrypt hash rather than a plain key.
func IsBcryptHash(s string) bool {
	return len(s) == 60 && (strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$"))
}
