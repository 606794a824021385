package crypto

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"testing"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := RandBytes(n)
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal", n)
	}
}

func TestDeriveRootKey_DeterministicAndSaltDependent(t *testing.T) {
	t.Parallel()
	secret := []byte("server-secret")
	k1 := DeriveRootKey(secret, []byte("salt-1"))
	k2 := DeriveRootKey(secret, []byte("salt-1"))
	if len(k1) != KeyLen {
		t.Fatalf("len=%d, want=%d", len(k1), KeyLen)
	}
	if subtle.ConstantTimeCompare(k1, k2) != 1 {
		t.Fatalf("DeriveRootKey not deterministic")
	}
	if bytes.Equal(k1, DeriveRootKey(secret, []byte("salt-2"))) {
		t.Fatalf("DeriveRootKey must change with salt")
	}
	if bytes.Equal(k1, DeriveRootKey([]byte("other"), []byte("salt-1"))) {
		t.Fatalf("DeriveRootKey must change with secret")
	}
}

func TestDeriveEntryKey_DiffPerEntry(t *testing.T) {
	t.Parallel()
	root, _ := RandBytes(KeyLen)
	ka, _ := DeriveEntryKey(root, []byte("entry-A"))
	kb, _ := DeriveEntryKey(root, []byte("entry-B"))
	if subtle.ConstantTimeCompare(ka, kb) != 0 {
		t.Fatalf("keys for different entries must differ")
	}
	ka2, _ := DeriveEntryKey(root, []byte("entry-A"))
	if !bytes.Equal(ka, ka2) {
		t.Fatalf("DeriveEntryKey must be deterministic")
	}
}

func TestSealer_Roundtrip(t *testing.T) {
	t.Parallel()
	root, _ := RandBytes(KeyLen)
	s := NewSealerWithKey(root)
	entry := []byte("5d0c6a0e-entry")

	pt := []byte("vendor password \x00\x01")
	sealed, err := s.Seal(entry, pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, pt) {
		t.Fatalf("sealed value leaks plaintext")
	}
	again, _ := s.Seal(entry, pt)
	if bytes.Equal(sealed, again) {
		t.Fatalf("nonce must be random")
	}

	got, err := s.Open(entry, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestSealer_RejectsWrongEntryOrKey(t *testing.T) {
	t.Parallel()
	root, _ := RandBytes(KeyLen)
	s := NewSealerWithKey(root)
	sealed, _ := s.Seal([]byte("entry-1"), []byte("pw"))

	if _, err := s.Open([]byte("entry-2"), sealed); err == nil {
		t.Fatalf("expected error on entry mismatch")
	}
	other, _ := RandBytes(KeyLen)
	if _, err := NewSealerWithKey(other).Open([]byte("entry-1"), sealed); err == nil {
		t.Fatalf("expected error on wrong root key")
	}
	if _, err := s.Open([]byte("entry-1"), []byte("short")); !errors.Is(err, ErrSealedTooShort) {
		t.Fatalf("expected ErrSealedTooShort, got %v", err)
	}
}

func TestNewSealer_SameSecretOpens(t *testing.T) {
	t.Parallel()
	sealed, err := NewSealer("s3cret").Seal([]byte("e"), []byte("pw"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := NewSealer("s3cret").Open([]byte("e"), sealed)
	if err != nil || string(got) != "pw" {
		t.Fatalf("Open: %q %v", got, err)
	}
	if _, err := NewSealer("other").Open([]byte("e"), sealed); err == nil {
		t.Fatalf("expected error for different secret")
	}
}
