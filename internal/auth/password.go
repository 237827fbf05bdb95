package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of the password using the given cost
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a password with a stored hash. Both bcrypt hashes and
// legacy unsalted SHA-256 hex digests are accepted.
func VerifyPassword(password, storedHash string) bool {
	if IsLegacyHash(storedHash) {
		sum := sha256.Sum256([]byte(password))
		actual := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(actual), []byte(storedHash)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
}

// IsLegacyHash reports whether the hash is a bare SHA-256 hex digest
func IsLegacyHash(storedHash string) bool {
	if len(storedHash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(storedHash)
	return err == nil
}

// NeedsRehash reports whether a verified hash should be replaced on next login
func NeedsRehash(storedHash string, cost int) bool {
	if IsLegacyHash(storedHash) {
		return true
	}
	c, err := bcrypt.Cost([]byte(storedHash))
	return err != nil || c != cost
}

// dummyHash is compared against when the login does not exist so that
// unknown and known logins take comparable time
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("protocol-registry-dummy"), bcrypt.DefaultCost)

// BurnCompare performs a throwaway bcrypt comparison
func BurnCompare(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
