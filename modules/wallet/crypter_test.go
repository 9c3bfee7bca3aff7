package wallet

import (
	"testing"
	"time"

	"github.com/WinterParker/libcoin/crypto"
)

// fakeClock lets calibrateIterations be exercised deterministically: each
// call to now() advances by a fixed step regardless of how much CPU work
// actually ran in between, so the calibration always lands on a predictable
// iteration count.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var c crypter
	var mk masterKeyMaterial
	copy(mk[:], []byte("0123456789abcdef0123456789abcdef0123456789abcd"))

	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := c.encrypt(mk.key(), pk, sk)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := c.decrypt(mk.key(), pk, ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != sk {
		t.Error("decrypt(encrypt(priv)) != priv")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	var c crypter
	var mk1, mk2 masterKeyMaterial
	copy(mk1[:], []byte("0123456789abcdef0123456789abcdef0123456789abcd"))
	copy(mk2[:], []byte("zyxwvutsrqponmlkjihgfedcba9876543210zyxwvutsrqp"))

	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	ciphertext, err := c.encrypt(mk1.key(), pk, sk)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.decrypt(mk2.key(), pk, ciphertext)
	if err == nil && got == sk {
		t.Error("decrypt with the wrong master key produced the original private key")
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	a := deriveKey("hunter2", salt, 1000)
	b := deriveKey("hunter2", salt, 1000)
	if a != b {
		t.Error("deriveKey is not deterministic for identical inputs")
	}
	c := deriveKey("hunter3", salt, 1000)
	if a == c {
		t.Error("deriveKey produced the same output for different passphrases")
	}
}

func TestCalibrateIterationsFloor(t *testing.T) {
	// A clock that advances an hour per reading makes every timed sample
	// read as extremely slow, so calibration computes zero iterations and
	// must clamp to the floor rather than return zero.
	c := &fakeClock{t: time.Unix(0, 0), step: time.Hour}
	salt := [8]byte{}
	iterations := calibrateIterations(c, "pw", salt)
	if iterations < minKDFIterations {
		t.Errorf("calibrateIterations = %d, want >= %d", iterations, minKDFIterations)
	}
}
