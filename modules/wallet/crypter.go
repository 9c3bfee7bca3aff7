package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"time"

	"github.com/WinterParker/libcoin/crypto"
)

// keyDerivationMethod identifies the KDF used to turn a passphrase into a
// masterKeyMaterial. 0 is the only method this wallet speaks; the field
// exists on-disk so a future method can be introduced without breaking old
// master key records.
const keyDerivationMethod = 0

// minKDFIterations is the floor the calibration in calibrateIterations
// clamps to, so a machine slow enough that calibration computes fewer
// iterations still gets at least this much stretching.
const minKDFIterations = 25000

// masterKeyMaterial is the 48-byte KDF output: a 32-byte AES-256 key
// followed by a 16-byte CBC IV.
type masterKeyMaterial [48]byte

func (m masterKeyMaterial) key() []byte { return m[:32] }
func (m masterKeyMaterial) iv() []byte  { return m[32:48] }

// deriveKey runs the iterated double-SHA-256 KDF: iterations rounds of
// crypto.DoubleSHA256 seeded with passphrase||salt, producing enough output
// to fill a masterKeyMaterial. Each round's digest feeds the next; the
// final 32 bytes are expanded to 48 by hashing once more with a domain
// separator, since DoubleSHA256 only yields 32 bytes per call.
func deriveKey(passphrase string, salt [8]byte, iterations uint32) masterKeyMaterial {
	data := append([]byte(passphrase), salt[:]...)
	h := crypto.DoubleSHA256(data)
	for i := uint32(1); i < iterations; i++ {
		h = crypto.DoubleSHA256(h[:])
	}
	var out masterKeyMaterial
	copy(out[:32], h[:])
	tail := crypto.DoubleSHA256(append(h[:], 0x01))
	copy(out[32:], tail[:16])
	return out
}

// clock lets tests substitute a deterministic timer for calibrateIterations
// instead of wall-clock time.
type clock interface {
	now() time.Time
}

type realClock struct{}

func (realClock) now() time.Time { return time.Now() }

// calibrateIterations reproduces the two-stage iteration calibration: an
// initial estimate from a short timed run, refined by a second timed run at
// that estimate, clamped to a floor so slow hardware never drops below a
// meaningful amount of stretching.
func calibrateIterations(c clock, passphrase string, salt [8]byte) uint32 {
	const calibrationSample = 25000
	t0 := timeDerive(c, passphrase, salt, calibrationSample)
	if t0 <= 0 {
		t0 = 1
	}
	iter1 := int64(2_500_000) / t0

	t1 := timeDerive(c, passphrase, salt, int(iter1))
	if t1 <= 0 {
		t1 = 1
	}
	iter2 := (iter1 + iter1*100/t1) / 2

	iterations := iter2
	if iterations < minKDFIterations {
		iterations = minKDFIterations
	}
	return uint32(iterations)
}

// timeDerive measures, in milliseconds, how long n rounds of the KDF take.
func timeDerive(c clock, passphrase string, salt [8]byte, n int) int64 {
	if n < 1 {
		n = 1
	}
	start := c.now()
	deriveKey(passphrase, salt, uint32(n))
	elapsed := c.now().Sub(start)
	ms := elapsed.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return ms
}

// crypter encrypts and decrypts private key material with AES-256-CBC and
// PKCS#7 padding. Each (pub, priv) pair uses its own IV, derived from the
// public key so no IV needs to be stored alongside the ciphertext.
type crypter struct{}

func ivForPub(pub crypto.PublicKey) []byte {
	h := crypto.DoubleSHA256(pub[:])
	return h[:16]
}

// encrypt returns AES-256-CBC(key, IV=ivForPub(pub)) of priv, PKCS#7 padded
// to the cipher's block size.
func (crypter) encrypt(key []byte, pub crypto.PublicKey, priv crypto.PrivateKey) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := pkcs7Pad(priv[:], block.BlockSize())
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, ivForPub(pub)).CryptBlocks(out, plain)
	return out, nil
}

// decrypt inverts encrypt, returning ErrBadPassphrase-shaped failures as a
// generic decode error (signing on a garbled key is the caller's
// responsibility to detect by re-deriving the public key and comparing).
func (crypter) decrypt(key []byte, pub crypto.PublicKey, ciphertext []byte) (crypto.PrivateKey, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return crypto.PrivateKey{}, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return crypto.PrivateKey{}, errors.New("ciphertext is not a multiple of the block size")
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, ivForPub(pub)).CryptBlocks(plain, ciphertext)
	unpadded, err := pkcs7Unpad(plain, block.BlockSize())
	if err != nil {
		return crypto.PrivateKey{}, err
	}
	if len(unpadded) != crypto.PrivateKeySize {
		return crypto.PrivateKey{}, errors.New("decrypted key has wrong length")
	}
	var priv crypto.PrivateKey
	copy(priv[:], unpadded)
	return priv, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid pkcs7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid pkcs7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}

// encryptRaw/decryptRaw are IV-explicit counterparts of encrypt/decrypt for
// arbitrary plaintext; master key records have no associated public key to
// derive an IV from, so they use these with an IV taken from the derived
// KDF output instead.
func (crypter) encryptRaw(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func (crypter) decryptRaw(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain, block.BlockSize())
}

func randomSalt() ([8]byte, error) {
	var salt [8]byte
	_, err := rand.Read(salt[:])
	return salt, err
}
