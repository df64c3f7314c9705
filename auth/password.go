package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"

	"github.com/openconf/regdesk/config"
)

// Legacy credentials were produced by a prior system: PBKDF2-SHA512,
// 1,000 iterations, 64-byte key, hex-encoded, with the hex salt string
// itself (its ASCII bytes, not the decoded bytes) used as the KDF salt.
// They are detected structurally and accepted for verification only;
// new hashes are never written in this format.
const (
	legacyIterations = 1_000
	legacyKeyLength  = 64
	legacySaltHexLen = 32
	legacyHashHexLen = 128
)

// Credential is the result of hashing a password: a random salt and the
// derived key, both base64-encoded for storage.
type Credential struct {
	Salt string
	Hash string
}

// HashPassword derives a storable credential from a plaintext password
// using the canonical parameters in config. Each call generates a fresh
// random salt, so hashing the same password twice yields different
// outputs.
func HashPassword(password string) (Credential, error) {
	salt := make([]byte, config.PasswordSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, config.PasswordIterations, config.PasswordKeyLength, sha256.New)
	cred := Credential{
		Salt: base64.StdEncoding.EncodeToString(salt),
		Hash: base64.StdEncoding.EncodeToString(key),
	}
	memguard.WipeBytes(key)
	return cred, nil
}

// VerifyPassword checks a plaintext password against a stored salt and
// hash. It first tries the canonical format; if that does not match and
// the stored pair has the legacy shape, it retries with the legacy
// parameters. Malformed stored data degrades to false; the only
// outcome of a verification is true or false.
func VerifyPassword(password, storedSalt, storedHash string) bool {
	if verifyCanonical(password, storedSalt, storedHash) {
		return true
	}
	if !isLegacyCredential(storedSalt, storedHash) {
		return false
	}
	return verifyLegacy(password, storedSalt, storedHash)
}

func verifyCanonical(password, storedSalt, storedHash string) bool {
	salt, err := base64.StdEncoding.DecodeString(storedSalt)
	if err != nil {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(storedHash)
	if err != nil {
		return false
	}
	key := pbkdf2.Key([]byte(password), salt, config.PasswordIterations, config.PasswordKeyLength, sha256.New)
	defer memguard.WipeBytes(key)
	return subtle.ConstantTimeCompare(key, expected) == 1
}

func verifyLegacy(password, storedSalt, storedHash string) bool {
	// The legacy KDF salted with the ASCII bytes of the hex string.
	key := pbkdf2.Key([]byte(password), []byte(storedSalt), legacyIterations, legacyKeyLength, sha512.New)
	defer memguard.WipeBytes(key)
	derived := hex.EncodeToString(key)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(strings.ToLower(storedHash))) == 1
}

func isLegacyCredential(salt, hash string) bool {
	return isHexString(salt) && isHexString(hash) &&
		len(salt) == legacySaltHexLen && len(hash) == legacyHashHexLen
}

func isHexString(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
