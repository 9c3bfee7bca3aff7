package wallet

import (
	"testing"
	"time"

	"github.com/WinterParker/libcoin/crypto"
)

func TestCryptoKeyStorePlainModeBehavesLikePlainKeyStore(t *testing.T) {
	cks := newCryptoKeyStore(crypto.NetworkMainnet)
	if cks.IsEncrypted() {
		t.Fatal("a fresh cryptoKeyStore reports encrypted")
	}

	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	addr, err := cks.AddKey(pk, sk)
	if err != nil {
		t.Fatal(err)
	}
	got, err := cks.GetPrivKey(addr)
	if err != nil || got != sk {
		t.Errorf("GetPrivKey: got (%v, %v), want (%v, nil)", got, err, sk)
	}
}

func TestCryptoKeyStoreEncryptLockUnlock(t *testing.T) {
	cks := newCryptoKeyStore(crypto.NetworkMainnet)

	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	addr, err := cks.AddKey(pk, sk)
	if err != nil {
		t.Fatal(err)
	}

	var mk masterKeyMaterial
	copy(mk[:], []byte("supersecretsupersecretsupersecretsupersecretsu"))
	clk := &fakeClock{t: time.Unix(0, 0), step: time.Microsecond}
	if err := cks.EncryptKeys("correct horse", clk, mk); err != nil {
		t.Fatalf("EncryptKeys: %v", err)
	}
	if !cks.IsEncrypted() {
		t.Fatal("IsEncrypted false right after EncryptKeys succeeded")
	}

	// S4: immediately after EncryptKeys the store starts out unlocked
	// (the caller just supplied the master key in memory); Lock must then
	// make private key material unavailable.
	if err := cks.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if !cks.IsLocked() {
		t.Fatal("IsLocked false after Lock")
	}
	if _, err := cks.GetPrivKey(addr); err != ErrLocked {
		t.Errorf("GetPrivKey while locked: got %v, want ErrLocked", err)
	}

	if err := cks.Unlock("bad passphrase"); err != ErrBadPassphrase {
		t.Errorf("Unlock(wrong passphrase): got %v, want ErrBadPassphrase", err)
	}
	if err := cks.Unlock("correct horse"); err != nil {
		t.Fatalf("Unlock(correct passphrase): %v", err)
	}
	if cks.IsLocked() {
		t.Fatal("IsLocked true after a successful Unlock")
	}
	got, err := cks.GetPrivKey(addr)
	if err != nil || got != sk {
		t.Errorf("GetPrivKey after Unlock: got (%v, %v), want (%v, nil)", got, err, sk)
	}
}

func TestCryptoKeyStoreEncryptTwiceFails(t *testing.T) {
	cks := newCryptoKeyStore(crypto.NetworkMainnet)
	var mk masterKeyMaterial
	clk := &fakeClock{t: time.Unix(0, 0), step: time.Microsecond}
	if err := cks.EncryptKeys("pw", clk, mk); err != nil {
		t.Fatal(err)
	}
	if err := cks.EncryptKeys("pw", clk, mk); err != ErrAlreadyEncrypted {
		t.Errorf("second EncryptKeys: got %v, want ErrAlreadyEncrypted", err)
	}
}

func TestCryptoKeyStoreAddKeyWhileLockedFails(t *testing.T) {
	cks := newCryptoKeyStore(crypto.NetworkMainnet)
	var mk masterKeyMaterial
	clk := &fakeClock{t: time.Unix(0, 0), step: time.Microsecond}
	if err := cks.EncryptKeys("pw", clk, mk); err != nil {
		t.Fatal(err)
	}
	if err := cks.Lock(); err != nil {
		t.Fatal(err)
	}
	sk, pk, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cks.AddKey(pk, sk); err != ErrLocked {
		t.Errorf("AddKey while locked: got %v, want ErrLocked", err)
	}
}
