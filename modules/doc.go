// Package modules defines the external contracts the wallet engine is
// built against: the chain facade it consumes events and queries from,
// the transactional key/value store facade its durable state is built
// on, and the shared error values and small value types referenced by
// both. None of the collaborators behind these interfaces — the
// peer/network layer, the blockchain index, the binary transaction/block
// serializer, the choice of underlying KV engine — are implemented in
// this module; see persist.BoltStore for the one concrete KV
// implementation the wallet engine is tested against.
package modules

import (
	"errors"

	"github.com/WinterParker/libcoin/crypto"
)

// Shared sentinel errors returned across the Chain and KeyValueStore
// facades. Component-specific errors (coin selection, encryption, the
// fee loop, ...) live in modules/wallet/errors.go.
var (
	// ErrNotFound reports a key or hash that does not exist. KVBucket.Get
	// reports a missing key as a nil slice and Chain.BlockAt reports a
	// missing block as false; neither returns ErrNotFound.
	ErrNotFound = errors.New("not found")
)

// BlockHeight is a 0-indexed height in the main chain.
type BlockHeight uint64

// BlockLocator is an opaque, chain-defined pointer to a block, persisted
// by the wallet as the ("bestblock") settings record so a restarted
// wallet knows where its view of the chain left off.
type BlockLocator []byte

// Chain is the facade the wallet engine consumes to answer
// confirmation, finality, and maturity questions about transactions it
// holds, and to broadcast new transactions. It is implemented by the
// out-of-scope consensus/indexing engine; the wallet never reaches past
// this interface.
type Chain interface {
	// IsFinal reports whether tx's locktime (or equivalent finality
	// condition) is satisfied given the chain's current tip.
	IsFinal(tx Transaction) bool

	// Depth returns the confirmation depth of the transaction
	// identified by hash: 0 if unconfirmed, negative if the chain has
	// no record of it at all.
	Depth(hash crypto.Hash256) int32

	// NumSpent returns the number of known spends of the transaction
	// identified by hash; IsSpent/SpentIn report on one specific coin.
	NumSpent(hash crypto.Hash256) int32
	IsSpent(coin OutPoint) bool
	SpentIn(coin OutPoint) crypto.Hash256

	// BlocksToMaturity returns how many additional blocks must be
	// mined before a coinbase-type transaction's outputs may be spent.
	BlocksToMaturity(tx Transaction) int32

	// BestReceivedTime returns the timestamp the chain last received a
	// new block at, used to rate-limit ResendWalletTransactions.
	BestReceivedTime() int64

	// GenesisHash returns the hash of the chain's genesis block.
	GenesisHash() crypto.Hash256

	// BlockAt returns the block at the given height.
	BlockAt(height BlockHeight) (Block, bool)

	// NetworkID returns the one-byte network identifier addresses on
	// this chain are tagged with.
	NetworkID() crypto.NetworkID

	// AcceptTransaction submits tx for relay/mempool acceptance,
	// reporting whether it was accepted.
	AcceptTransaction(tx Transaction) bool
}

// KeyValueStore is the transactional key/value store facade the
// wallet's durable records are built on: a single logical file, opened
// once, that supports read-only and read-write transactions (which do not
// nest).
type KeyValueStore interface {
	// View runs fn in a read-only transaction.
	View(fn func(tx KVTx) error) error

	// Update runs fn in a read-write transaction; fn's mutations are
	// committed iff fn returns nil.
	Update(fn func(tx KVTx) error) error

	// Begin starts a transaction explicitly, for callers (notably
	// EncryptWallet) that must span several logically-multi-record
	// mutations inside one durability boundary. The returned
	// transaction must be committed or rolled back by the caller.
	Begin(writable bool) (KVTxn, error)

	// Checkpoint flushes and syncs the store to stable storage.
	Checkpoint() error

	// Close releases the store. persist.BoltStore does not
	// reference-count handles to a file and does not call Checkpoint on
	// Close; bbolt has already synced each committed transaction.
	Close() error
}

// KVTx is a KV transaction as seen from inside a View/Update callback.
type KVTx interface {
	// Bucket returns the named bucket, or nil if it does not exist.
	Bucket(name []byte) KVBucket

	// CreateBucketIfNotExists returns the named bucket, creating it
	// (and any record families it implies) if necessary. Only valid
	// in a writable transaction (Update, or Begin(true)).
	CreateBucketIfNotExists(name []byte) (KVBucket, error)
}

// KVTxn is an explicit, caller-managed transaction returned by
// KeyValueStore.Begin.
type KVTxn interface {
	KVTx
	Commit() error
	Rollback() error
}

// KVBucket is one named record family inside the store (e.g. "tx",
// "key", "pool" — the wallet package defines the full set of buckets
// it uses).
type KVBucket interface {
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Exists(key []byte) bool
	ForEach(fn func(k, v []byte) error) error
}
