package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/ripemd160"
)

const (
	// AddressHashSize is the size in bytes of the RIPEMD160(SHA256(pub))
	// digest that uniquely identifies a public key.
	AddressHashSize = 20

	// AddressSize is the total size of an Address: one network byte plus
	// the 20-byte hash.
	AddressSize = 1 + AddressHashSize
)

// NetworkID identifies which network an Address was minted for, so the
// same hash can't be replayed as a valid address across networks.
type NetworkID byte

const (
	// NetworkMainnet is the production network id.
	NetworkMainnet NetworkID = 0x00
	// NetworkTestnet is the test network id.
	NetworkTestnet NetworkID = 0x6f
)

// ErrInvalidAddress is returned when a byte slice cannot be parsed as an
// Address.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a network-tagged 20-byte hash of a public key: the unique
// lookup key for HaveKey/GetKey in the wallet's KeyStore.
type Address struct {
	Network NetworkID
	Hash    [AddressHashSize]byte
}

// NewAddress derives the Address for pk on the given network: the
// RIPEMD160 digest of the SHA-256 digest of the compressed public key.
func NewAddress(network NetworkID, pk PublicKey) Address {
	sum := sha256.Sum256(pk[:])
	r := ripemd160.New()
	r.Write(sum[:])
	var addr Address
	addr.Network = network
	copy(addr.Hash[:], r.Sum(nil))
	return addr
}

// Bytes returns the fixed-width wire encoding of the address: the
// network byte followed by the 20-byte hash.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressSize)
	b[0] = byte(a.Network)
	copy(b[1:], a.Hash[:])
	return b
}

// ParseAddress decodes the fixed-width wire encoding produced by Bytes.
func ParseAddress(b []byte) (Address, error) {
	if len(b) != AddressSize {
		return Address{}, ErrInvalidAddress
	}
	var a Address
	a.Network = NetworkID(b[0])
	copy(a.Hash[:], b[1:])
	return a, nil
}

// String returns a hex debug representation of the address. It is not a
// checksummed, human-facing encoding (base58check); that lives outside
// the wallet engine's scope.
func (a Address) String() string {
	return hex.EncodeToString(a.Bytes())
}

// IsNil returns true if a is the zero address.
func (a Address) IsNil() bool {
	return a.Network == 0 && a.Hash == [AddressHashSize]byte{}
}
