package crypto

import "crypto/sha256"

const (
	// HashSize is the size in bytes of a Hash256.
	HashSize = 32
)

// Hash256 is a 32-byte hash, used for transaction ids, block ids, and the
// hashes chained together by the wallet's passphrase KDF.
type Hash256 [HashSize]byte

// IsNil returns true if h is the zero hash.
func (h Hash256) IsNil() bool { return h == Hash256{} }

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) Hash256 {
	return Hash256(sha256.Sum256(data))
}

// DoubleSHA256 returns SHA256(SHA256(data)), the hash Bitcoin Core's
// passphrase KDF iterates and the hash used to derive per-key
// initialization vectors for the wallet's private-key encryption.
func DoubleSHA256(data []byte) Hash256 {
	first := sha256.Sum256(data)
	return Hash256(sha256.Sum256(first[:]))
}

// HashAll hashes the concatenation of every byte slice in data.
func HashAll(data ...[]byte) Hash256 {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var sum Hash256
	copy(sum[:], h.Sum(nil))
	return sum
}
