package wallet

import (
	"github.com/WinterParker/libcoin/crypto"
)

// masterKeyRecord holds one KDF salt and calibrated iteration count, and
// the ciphertext of the 48-byte masterKeyMaterial, itself encrypted with a
// key derived from the user's passphrase.
type masterKeyRecord struct {
	ID         uint32
	Salt       [8]byte
	Iterations uint32
	Method     uint32
	Ciphertext []byte
}

// cryptoKeyStore is a keyStore that can additionally hold its private keys
// encrypted at rest under a single process-resident master key. It has two
// modes: plain (ckeys is empty, priv entries live directly in keyStore) and
// encrypted (every key's private half lives only as ciphertext in ckeys;
// while unlocked, GetPrivKey decrypts it on demand).
type cryptoKeyStore struct {
	*keyStore

	network crypto.NetworkID
	c       crypter

	// ckeys holds AES-256-CBC ciphertexts of private keys once the store has
	// been encrypted. A non-empty ckeys means the store is in encrypted mode
	// regardless of whether it is currently unlocked.
	ckeys map[crypto.Address]ckeyEntry

	masterKeys []masterKeyRecord
	nextMKID   uint32

	unlocked   bool
	masterKey  masterKeyMaterial
	haveMaster bool
}

type ckeyEntry struct {
	pub        crypto.PublicKey
	ciphertext []byte
}

func newCryptoKeyStore(network crypto.NetworkID) *cryptoKeyStore {
	return &cryptoKeyStore{
		keyStore: newKeyStore(),
		network:  network,
		ckeys:    make(map[crypto.Address]ckeyEntry),
		unlocked: true, // a never-encrypted store behaves as always-unlocked
	}
}

// IsEncrypted reports whether EncryptKeys has ever succeeded on this store.
func (cks *cryptoKeyStore) IsEncrypted() bool {
	return len(cks.ckeys) > 0 || len(cks.masterKeys) > 0
}

// AddKey adds a plain (pub, priv) pair. If the store is encrypted and
// currently unlocked, the key is immediately encrypted under the resident
// master key instead of being kept in the clear, so a key added after
// EncryptKeys never exists as plaintext on disk.
func (cks *cryptoKeyStore) AddKey(pub crypto.PublicKey, priv crypto.PrivateKey) (crypto.Address, error) {
	if !cks.IsEncrypted() {
		return cks.keyStore.AddKey(cks.network, pub, priv), nil
	}
	if !cks.unlocked {
		return crypto.Address{}, ErrLocked
	}
	ciphertext, err := cks.c.encrypt(cks.masterKey.key(), pub, priv)
	if err != nil {
		return crypto.Address{}, err
	}
	addr := crypto.NewAddress(cks.network, pub)
	cks.pub[addr] = pub
	cks.ckeys[addr] = ckeyEntry{pub: pub, ciphertext: ciphertext}
	return addr, nil
}

// GetPrivKey overrides keyStore.GetPrivKey: in encrypted mode it returns
// ErrLocked while locked, and otherwise decrypts on demand from ckeys.
func (cks *cryptoKeyStore) GetPrivKey(addr crypto.Address) (crypto.PrivateKey, error) {
	if !cks.IsEncrypted() {
		return cks.keyStore.GetPrivKey(addr)
	}
	if !cks.unlocked {
		if cks.HaveKey(addr) {
			return crypto.PrivateKey{}, ErrLocked
		}
		return crypto.PrivateKey{}, ErrUnknownKey
	}
	if sk, ok := cks.priv[addr]; ok {
		return sk, nil
	}
	entry, ok := cks.ckeys[addr]
	if !ok {
		return crypto.PrivateKey{}, ErrUnknownKey
	}
	return cks.c.decrypt(cks.masterKey.key(), entry.pub, entry.ciphertext)
}

// EncryptKeys converts every plain (pub, priv) pair currently held into a
// ciphertext entry under mk, and records a masterKeyRecord (encrypted with a
// key derived from passphrase) so a future process can recover mk given the
// right passphrase. Fails if the store is already encrypted.
//
// EncryptKeys only updates in-memory state; it is the caller's
// responsibility (Wallet.EncryptWallet, via walletDB.commitEncryption) to
// persist the resulting master key record and ciphertexts durably in a
// single transaction.
func (cks *cryptoKeyStore) EncryptKeys(passphrase string, c clock, mk masterKeyMaterial) error {
	if cks.IsEncrypted() {
		return ErrAlreadyEncrypted
	}

	salt, err := randomSalt()
	if err != nil {
		return err
	}
	iterations := calibrateIterations(c, passphrase, salt)
	derived := deriveKey(passphrase, salt, iterations)

	mkCiphertext, err := encryptMasterKey(derived, mk)
	if err != nil {
		return err
	}

	converted := make(map[crypto.Address]ckeyEntry, len(cks.pub))
	for addr, pub := range cks.pub {
		priv, ok := cks.priv[addr]
		if !ok {
			continue
		}
		ciphertext, err := cks.c.encrypt(mk.key(), pub, priv)
		if err != nil {
			cks.ckeys = converted
			return err
		}
		converted[addr] = ckeyEntry{pub: pub, ciphertext: ciphertext}
	}

	cks.ckeys = converted
	cks.priv = make(map[crypto.Address]crypto.PrivateKey)
	cks.nextMKID++
	cks.masterKeys = append(cks.masterKeys, masterKeyRecord{
		ID:         cks.nextMKID,
		Salt:       salt,
		Iterations: iterations,
		Method:     keyDerivationMethod,
		Ciphertext: mkCiphertext,
	})
	cks.masterKey = mk
	cks.haveMaster = true
	cks.unlocked = true
	return nil
}

// Unlock tries every stored masterKeyRecord against passphrase and, on the
// first successful decrypt, populates cks.masterKey and marks the store
// unlocked. It is all-or-nothing: either some master key record decrypts
// (the first one that does is used) and unlocking succeeds, or none do and
// ErrBadPassphrase is returned.
func (cks *cryptoKeyStore) Unlock(passphrase string) error {
	if !cks.IsEncrypted() {
		return ErrNotEncrypted
	}
	for _, rec := range cks.masterKeys {
		derived := deriveKey(passphrase, rec.Salt, rec.Iterations)
		mk, err := decryptMasterKey(derived, rec.Ciphertext)
		if err != nil {
			continue
		}
		cks.masterKey = mk
		cks.haveMaster = true
		cks.unlocked = true
		return nil
	}
	return ErrBadPassphrase
}

// Lock wipes the resident master key and its decrypted private key cache.
// After Lock, GetPrivKey returns ErrLocked until Unlock succeeds again.
func (cks *cryptoKeyStore) Lock() error {
	if !cks.IsEncrypted() {
		return ErrNotEncrypted
	}
	var zero masterKeyMaterial
	cks.masterKey = zero
	cks.haveMaster = false
	cks.unlocked = false
	for addr, sk := range cks.priv {
		crypto.SecureWipe(sk[:])
		delete(cks.priv, addr)
	}
	return nil
}

// IsLocked reports whether private key material is currently unavailable.
func (cks *cryptoKeyStore) IsLocked() bool {
	return cks.IsEncrypted() && !cks.unlocked
}

// encryptMasterKey/decryptMasterKey wrap a masterKeyMaterial's 48 bytes
// using the same AES-256-CBC primitive as key encryption, keyed by the
// passphrase-derived material rather than a public-key-derived IV — the
// IV here is the trailing 16 bytes (iv()) of the salt-stretched material, since a
// master key record has no associated public key to derive one from.
func encryptMasterKey(derived masterKeyMaterial, mk masterKeyMaterial) ([]byte, error) {
	var c crypter
	return c.encryptRaw(derived.key(), derived.iv(), mk[:])
}

func decryptMasterKey(derived masterKeyMaterial, ciphertext []byte) (masterKeyMaterial, error) {
	var c crypter
	plain, err := c.decryptRaw(derived.key(), derived.iv(), ciphertext)
	if err != nil {
		return masterKeyMaterial{}, err
	}
	if len(plain) != len(masterKeyMaterial{}) {
		return masterKeyMaterial{}, ErrBadPassphrase
	}
	var mk masterKeyMaterial
	copy(mk[:], plain)
	return mk, nil
}
