package wallet

import (
	"sort"

	"github.com/WinterParker/libcoin/crypto"
)

// keyStore is an in-memory set of (pub, priv) pairs, looked up by the
// address derived from the public key. It has no locking of its own;
// callers hold the wallet's mutex.
type keyStore struct {
	pub  map[crypto.Address]crypto.PublicKey
	priv map[crypto.Address]crypto.PrivateKey
}

func newKeyStore() *keyStore {
	return &keyStore{
		pub:  make(map[crypto.Address]crypto.PublicKey),
		priv: make(map[crypto.Address]crypto.PrivateKey),
	}
}

// AddKey inserts pub/priv under the address derived from pub. network picks
// which address tag the key is filed under.
func (ks *keyStore) AddKey(network crypto.NetworkID, pub crypto.PublicKey, priv crypto.PrivateKey) crypto.Address {
	addr := crypto.NewAddress(network, pub)
	ks.pub[addr] = pub
	ks.priv[addr] = priv
	return addr
}

// HaveKey reports whether addr has a known public key, regardless of
// whether the private half is currently available (e.g. locked).
func (ks *keyStore) HaveKey(addr crypto.Address) bool {
	_, ok := ks.pub[addr]
	return ok
}

// GetPubKey returns the public key for addr.
func (ks *keyStore) GetPubKey(addr crypto.Address) (crypto.PublicKey, error) {
	pk, ok := ks.pub[addr]
	if !ok {
		return crypto.PublicKey{}, ErrUnknownKey
	}
	return pk, nil
}

// GetPrivKey returns the private key for addr, or ErrUnknownKey if addr was
// never added. A CryptoKeyStore overrides this to also return ErrLocked.
func (ks *keyStore) GetPrivKey(addr crypto.Address) (crypto.PrivateKey, error) {
	if !ks.HaveKey(addr) {
		return crypto.PrivateKey{}, ErrUnknownKey
	}
	sk, ok := ks.priv[addr]
	if !ok {
		return crypto.PrivateKey{}, ErrLocked
	}
	return sk, nil
}

// GetKeys returns every known address, sorted for deterministic iteration.
func (ks *keyStore) GetKeys() []crypto.Address {
	addrs := make([]crypto.Address, 0, len(ks.pub))
	for addr := range ks.pub {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return string(addrs[i].Bytes()) < string(addrs[j].Bytes())
	})
	return addrs
}
