// Package crypto seals stored vendor credentials at rest.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Argon2id parameters for deriving the root key from the configured secret.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1

	KeyLen = 32
)

// rootSalt is fixed so the same secret always yields the same root key.
var rootSalt = []byte("bonusdrive/entry-secrets/v1")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveRootKey stretches secret into a root key using Argon2id.
func DeriveRootKey(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// DeriveEntryKey derives a per-entry key via HKDF-SHA256 using entryID as info.
func DeriveEntryKey(root, entryID []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, root, nil, entryID)
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}
