package persist

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/WinterParker/libcoin/modules"
)

// BoltStore implements modules.KeyValueStore atop go.etcd.io/bbolt. One
// BoltStore owns one open *bolt.DB for the lifetime of the process that
// created it. Close releases it without a separate checkpoint; bbolt
// syncs each transaction to disk when it commits.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) View(fn func(tx modules.KVTx) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(boltTx{tx})
	})
}

func (s *BoltStore) Update(fn func(tx modules.KVTx) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(boltTx{tx})
	})
}

func (s *BoltStore) Begin(writable bool) (modules.KVTxn, error) {
	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, err
	}
	return boltTxn{boltTx{tx}, tx}, nil
}

// Checkpoint forces a sync of the underlying file to stable storage.
func (s *BoltStore) Checkpoint() error {
	return s.db.Sync()
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t boltTx) Bucket(name []byte) modules.KVBucket {
	b := t.tx.Bucket(name)
	if b == nil {
		return nil
	}
	return boltBucket{b}
}

func (t boltTx) CreateBucketIfNotExists(name []byte) (modules.KVBucket, error) {
	b, err := t.tx.CreateBucketIfNotExists(name)
	if err != nil {
		return nil, err
	}
	return boltBucket{b}, nil
}

type boltTxn struct {
	boltTx
	tx *bolt.Tx
}

func (t boltTxn) Commit() error   { return t.tx.Commit() }
func (t boltTxn) Rollback() error { return t.tx.Rollback() }

type boltBucket struct {
	b *bolt.Bucket
}

func (b boltBucket) Get(key []byte) []byte {
	v := b.b.Get(key)
	if v == nil {
		return nil
	}
	// bbolt's Get returns a slice valid only for the transaction's
	// lifetime; copy it so callers can safely retain it past the
	// enclosing View/Update.
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (b boltBucket) Put(key, value []byte) error {
	return b.b.Put(key, value)
}

func (b boltBucket) Delete(key []byte) error {
	return b.b.Delete(key)
}

func (b boltBucket) Exists(key []byte) bool {
	return b.b.Get(key) != nil
}

func (b boltBucket) ForEach(fn func(k, v []byte) error) error {
	return b.b.ForEach(fn)
}
