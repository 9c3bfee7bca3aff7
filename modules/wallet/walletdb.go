package wallet

import (
	"bytes"

	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// Bucket names for each durable record family. Each is its own bucket in
// the underlying modules.KeyValueStore rather than a shared namespace with
// a type-tag prefix, since bbolt buckets already give us that separation
// for free.
var (
	bucketTx         = []byte("tx")
	bucketKey        = []byte("key")
	bucketCKey       = []byte("ckey")
	bucketMKey       = []byte("mkey")
	bucketPool       = []byte("pool")
	bucketName       = []byte("name")
	bucketDefaultKey = []byte("defaultkey")
	bucketBestBlock  = []byte("bestblock")
	bucketVersion    = []byte("version")
	bucketSetting    = []byte("setting")

	keySingleton = []byte("_") // the lone key inside a single-entry bucket

	allBuckets = [][]byte{
		bucketTx, bucketKey, bucketCKey, bucketMKey, bucketPool,
		bucketName, bucketDefaultKey, bucketBestBlock, bucketVersion,
		bucketSetting,
	}
)

// currentVersion is written to the "version" bucket by a freshly created
// wallet database; minVersion is the oldest version this code can still
// read without requiring a rewrite.
const (
	currentVersion = 1
	minVersion     = 1
)

// LoadStatus reports the outcome of walletDB.load.
type LoadStatus int

const (
	// LoadOK indicates every record was read and decoded successfully.
	LoadOK LoadStatus = iota
	// LoadNeedsFirstRun indicates the database was empty: no version
	// record exists yet. The caller should write one and call TopUp.
	LoadNeedsFirstRun
	// LoadNeedRewrite indicates the database's version predates
	// minVersion; it must be rewritten before use.
	LoadNeedRewrite
	// LoadCorrupt indicates a record could not be decoded.
	LoadCorrupt
)

// walletDB is a thin typed layer over modules.KeyValueStore implementing
// the wallet's durable record layout. All mutations run inside the store's
// own transaction; WriteX methods below auto-commit by using Update
// directly.
type walletDB struct {
	store modules.KeyValueStore
}

func newWalletDB(store modules.KeyValueStore) *walletDB {
	return &walletDB{store: store}
}

func (db *walletDB) createBuckets() error {
	return db.store.Update(func(tx modules.KVTx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// load streams every persisted record into the provided sink callbacks,
// reconstructing in-memory wallet state, and reports the outcome.
func (db *walletDB) load(sink walletLoadSink) (LoadStatus, error) {
	if err := db.createBuckets(); err != nil {
		return LoadCorrupt, err
	}

	var status = LoadOK
	err := db.store.View(func(tx modules.KVTx) error {
		versionBytes := tx.Bucket(bucketVersion).Get(keySingleton)
		if versionBytes == nil {
			status = LoadNeedsFirstRun
			return nil
		}
		version, err := decodeUint32(versionBytes)
		if err != nil {
			status = LoadCorrupt
			return nil
		}
		if version < minVersion {
			status = LoadNeedRewrite
			return nil
		}

		if err := tx.Bucket(bucketKey).ForEach(func(k, v []byte) error {
			pub, priv, err := decodeKeyRecord(k, v)
			if err != nil {
				return err
			}
			sink.onKey(pub, priv)
			return nil
		}); err != nil {
			status = LoadCorrupt
			return nil
		}

		if err := tx.Bucket(bucketCKey).ForEach(func(k, v []byte) error {
			pub, err := decodePub(k)
			if err != nil {
				return err
			}
			sink.onCKey(pub, append([]byte(nil), v...))
			return nil
		}); err != nil {
			status = LoadCorrupt
			return nil
		}

		if err := tx.Bucket(bucketMKey).ForEach(func(k, v []byte) error {
			id, err := decodeUint32(k)
			if err != nil {
				return err
			}
			rec, err := decodeMasterKeyRecord(id, v)
			if err != nil {
				return err
			}
			sink.onMasterKey(rec)
			return nil
		}); err != nil {
			status = LoadCorrupt
			return nil
		}

		if err := tx.Bucket(bucketPool).ForEach(func(k, v []byte) error {
			index, err := decodeInt64(k)
			if err != nil {
				return err
			}
			entry, err := decodePoolEntry(v)
			if err != nil {
				return err
			}
			sink.onPool(index, entry)
			return nil
		}); err != nil {
			status = LoadCorrupt
			return nil
		}

		if err := tx.Bucket(bucketTx).ForEach(func(k, v []byte) error {
			wtx, err := decodeWalletTx(v)
			if err != nil {
				return err
			}
			sink.onTx(wtx)
			return nil
		}); err != nil {
			status = LoadCorrupt
			return nil
		}

		if err := tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			addr, err := crypto.ParseAddress(k)
			if err != nil {
				return err
			}
			sink.onName(addr, string(v))
			return nil
		}); err != nil {
			status = LoadCorrupt
			return nil
		}

		if dk := tx.Bucket(bucketDefaultKey).Get(keySingleton); dk != nil {
			pub, err := decodePub(dk)
			if err != nil {
				status = LoadCorrupt
				return nil
			}
			sink.onDefaultKey(pub)
		}

		if bb := tx.Bucket(bucketBestBlock).Get(keySingleton); bb != nil {
			sink.onBestBlock(modules.BlockLocator(append([]byte(nil), bb...)))
		}

		return nil
	})
	if err != nil {
		return LoadCorrupt, err
	}
	return status, nil
}

// walletLoadSink receives every record load streams from disk, in no
// particular order across buckets (order within bucketTx/bucketPool is the
// store's own iteration order).
type walletLoadSink struct {
	onKey        func(pub crypto.PublicKey, priv crypto.PrivateKey)
	onCKey       func(pub crypto.PublicKey, ciphertext []byte)
	onMasterKey  func(rec masterKeyRecord)
	onPool       func(index int64, entry poolEntry)
	onTx         func(wtx *WalletTx)
	onName       func(addr crypto.Address, label string)
	onDefaultKey func(pub crypto.PublicKey)
	onBestBlock  func(loc modules.BlockLocator)
}

func (db *walletDB) writeVersion(v uint32) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketVersion).Put(keySingleton, encodeUint32(v))
	})
}

func (db *walletDB) writeKey(pub crypto.PublicKey, priv crypto.PrivateKey) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketKey).Put(pub[:], encodeKeyValue(priv))
	})
}

func (db *walletDB) writeCKey(pub crypto.PublicKey, ciphertext []byte) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketCKey).Put(pub[:], ciphertext)
	})
}

// ckeyWrite is one (pub, ciphertext) pair to be durably recorded as part of
// an encryption conversion.
type ckeyWrite struct {
	pub        crypto.PublicKey
	ciphertext []byte
}

// commitEncryption persists rec and every entry in ckeys inside a single
// explicit transaction, so a crash partway through an encryption conversion
// cannot leave the store with some keys converted to ciphertext and others
// still recorded in the clear. Unlike the single-record WriteX helpers
// above, which auto-commit through Update, this spans multiple buckets and
// multiple records under one durability boundary via KeyValueStore.Begin.
func (db *walletDB) commitEncryption(rec masterKeyRecord, ckeys []ckeyWrite) error {
	tx, err := db.store.Begin(true)
	if err != nil {
		return err
	}

	mkBucket, err := tx.CreateBucketIfNotExists(bucketMKey)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := mkBucket.Put(encodeUint32(rec.ID), encodeMasterKeyRecord(rec)); err != nil {
		tx.Rollback()
		return err
	}

	ckeyBucket, err := tx.CreateBucketIfNotExists(bucketCKey)
	if err != nil {
		tx.Rollback()
		return err
	}
	keyBucket, err := tx.CreateBucketIfNotExists(bucketKey)
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, ck := range ckeys {
		if err := ckeyBucket.Put(ck.pub[:], ck.ciphertext); err != nil {
			tx.Rollback()
			return err
		}
		if err := keyBucket.Delete(ck.pub[:]); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (db *walletDB) writePool(index int64, entry poolEntry) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketPool).Put(encodeInt64(index), encodePoolEntry(entry))
	})
}

func (db *walletDB) erasePool(index int64) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketPool).Delete(encodeInt64(index))
	})
}

func (db *walletDB) writeTx(wtx *WalletTx) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketTx).Put(walletTxKey(wtx), encodeWalletTx(wtx))
	})
}

func (db *walletDB) writeName(addr crypto.Address, label string) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketName).Put(addr.Bytes(), []byte(label))
	})
}

func (db *walletDB) writeDefaultKey(pub crypto.PublicKey) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketDefaultKey).Put(keySingleton, pub[:])
	})
}

func (db *walletDB) writeBestBlock(loc modules.BlockLocator) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketBestBlock).Put(keySingleton, loc)
	})
}

func (db *walletDB) writeSetting(name string, value []byte) error {
	return db.store.Update(func(tx modules.KVTx) error {
		return tx.Bucket(bucketSetting).Put([]byte(name), value)
	})
}

func (db *walletDB) readSetting(name string) ([]byte, bool, error) {
	var value []byte
	err := db.store.View(func(tx modules.KVTx) error {
		v := tx.Bucket(bucketSetting).Get([]byte(name))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, value != nil, err
}

func decodePub(b []byte) (crypto.PublicKey, error) {
	if len(b) != crypto.PublicKeySize {
		return crypto.PublicKey{}, ErrDecode
	}
	var pub crypto.PublicKey
	copy(pub[:], b)
	return pub, nil
}

func decodeKeyRecord(k, v []byte) (crypto.PublicKey, crypto.PrivateKey, error) {
	pub, err := decodePub(k)
	if err != nil {
		return pub, crypto.PrivateKey{}, err
	}
	if len(v) != crypto.PrivateKeySize {
		return pub, crypto.PrivateKey{}, ErrDecode
	}
	var priv crypto.PrivateKey
	copy(priv[:], v)
	return pub, priv, nil
}

func encodeKeyValue(priv crypto.PrivateKey) []byte {
	out := make([]byte, len(priv))
	copy(out, priv[:])
	return out
}

func encodeUint32(v uint32) []byte {
	var buf bytes.Buffer
	_ = modules.WriteUint32(&buf, v)
	return buf.Bytes()
}

func decodeUint32(b []byte) (uint32, error) {
	v, err := modules.ReadUint32(bytes.NewReader(b))
	if err != nil {
		return 0, ErrDecode
	}
	return v, nil
}

func encodeInt64(v int64) []byte {
	var buf bytes.Buffer
	_ = modules.WriteInt64(&buf, v)
	return buf.Bytes()
}

func decodeInt64(b []byte) (int64, error) {
	v, err := modules.ReadInt64(bytes.NewReader(b))
	if err != nil {
		return 0, ErrDecode
	}
	return v, nil
}

func encodeMasterKeyRecord(rec masterKeyRecord) []byte {
	var buf bytes.Buffer
	_ = modules.WriteUint32(&buf, rec.Iterations)
	_ = modules.WriteUint32(&buf, rec.Method)
	buf.Write(rec.Salt[:])
	_ = modules.WriteVarString(&buf, rec.Ciphertext)
	return buf.Bytes()
}

func decodeMasterKeyRecord(id uint32, b []byte) (masterKeyRecord, error) {
	r := bytes.NewReader(b)
	iterations, err := modules.ReadUint32(r)
	if err != nil {
		return masterKeyRecord{}, ErrDecode
	}
	method, err := modules.ReadUint32(r)
	if err != nil {
		return masterKeyRecord{}, ErrDecode
	}
	var salt [8]byte
	if _, err := r.Read(salt[:]); err != nil {
		return masterKeyRecord{}, ErrDecode
	}
	ciphertext, err := modules.ReadVarString(r, 1<<16)
	if err != nil {
		return masterKeyRecord{}, ErrDecode
	}
	return masterKeyRecord{
		ID:         id,
		Salt:       salt,
		Iterations: iterations,
		Method:     method,
		Ciphertext: ciphertext,
	}, nil
}

func encodePoolEntry(e poolEntry) []byte {
	var buf bytes.Buffer
	_ = modules.WriteInt64(&buf, e.Time)
	buf.Write(e.Pub[:])
	return buf.Bytes()
}

func decodePoolEntry(b []byte) (poolEntry, error) {
	r := bytes.NewReader(b)
	t, err := modules.ReadInt64(r)
	if err != nil {
		return poolEntry{}, ErrDecode
	}
	pubBytes := make([]byte, crypto.PublicKeySize)
	if _, err := r.Read(pubBytes); err != nil {
		return poolEntry{}, ErrDecode
	}
	pub, err := decodePub(pubBytes)
	if err != nil {
		return poolEntry{}, err
	}
	return poolEntry{Time: t, Pub: pub}, nil
}
