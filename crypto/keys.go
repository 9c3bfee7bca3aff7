// Package crypto provides the key material, address derivation, and hashing
// primitives shared by the wallet engine: secp256k1 key pairs, RIPEMD160∘SHA256
// addresses, and the double-SHA-256 hash used throughout the wallet's
// persistence and encryption layers.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	// PublicKeySize is the size in bytes of a serialized (compressed)
	// public key.
	PublicKeySize = 33

	// PrivateKeySize is the size in bytes of a raw secp256k1 scalar.
	PrivateKeySize = 32
)

var (
	// ErrInvalidPrivateKey is returned when a private key fails to decode
	// to a valid secp256k1 scalar.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	nilPublicKey  = PublicKey{}
	nilPrivateKey = PrivateKey{}
)

type (
	// PublicKey is a compressed secp256k1 public key.
	PublicKey [PublicKeySize]byte

	// PrivateKey is a secp256k1 private scalar.
	PrivateKey [PrivateKeySize]byte
)

// IsNil returns true if pk is the zero public key.
func (pk PublicKey) IsNil() bool { return pk == nilPublicKey }

// IsNil returns true if sk is the zero private key.
func (sk PrivateKey) IsNil() bool { return sk == nilPrivateKey }

// PublicKey derives the public key that corresponds to sk.
func (sk PrivateKey) PublicKey() (pk PublicKey) {
	_, pub := btcec.PrivKeyFromBytes(sk[:])
	copy(pk[:], pub.SerializeCompressed())
	return
}

// GenerateKeyPair creates a new random secp256k1 key pair.
func GenerateKeyPair() (sk PrivateKey, pk PublicKey, err error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return PrivateKey{}, PublicKey{}, err
	}
	copy(sk[:], priv.Serialize())
	copy(pk[:], priv.PubKey().SerializeCompressed())
	return
}

// ParsePublicKey validates that b decodes to a well-formed compressed
// secp256k1 public key and returns it.
func ParsePublicKey(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, errors.New("public key has wrong length")
	}
	if _, err := btcec.ParsePubKey(b); err != nil {
		return PublicKey{}, err
	}
	var pk PublicKey
	copy(pk[:], b)
	return pk, nil
}

// SecureWipe overwrites b with zeroes. It is used to scrub private key
// material and derived wallet keys from memory as soon as they are no
// longer needed, matching the wipe-on-lock contract of the wallet's
// CryptoKeyStore.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// randomBytes reads n cryptographically secure random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// equalConstantTime reports whether a and b are equal using a
// constant-time comparison, suitable for verifying decrypted
// authentication material.
func equalConstantTime(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
