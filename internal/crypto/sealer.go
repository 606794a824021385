package crypto

import (
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedTooShort is returned by Open for input shorter than a nonce.
var ErrSealedTooShort = errors.New("sealed value too short")

// Sealer encrypts small secrets bound to an entry id.
type Sealer struct {
	root []byte
}

// NewSealer derives the root key from secret.
func NewSealer(secret string) *Sealer {
	return &Sealer{root: DeriveRootKey([]byte(secret), rootSalt)}
}

// NewSealerWithKey uses root as is. It must be KeyLen bytes.
func NewSealerWithKey(root []byte) *Sealer {
	return &Sealer{root: append([]byte(nil), root...)}
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under the entry key.
// The entry id is also the AAD. Output is nonce||ciphertext.
func (s *Sealer) Seal(entryID, plaintext []byte) ([]byte, error) {
	key, err := DeriveEntryKey(s.root, entryID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, entryID)...)
	return out, nil
}

// Open reverses Seal. It fails when sealed was produced for another entry.
func (s *Sealer) Open(entryID, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, ErrSealedTooShort
	}
	key, err := DeriveEntryKey(s.root, entryID)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, entryID)
}
