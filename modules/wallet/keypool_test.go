package wallet

import (
	"testing"

	"github.com/WinterParker/libcoin/crypto"
)

// persistedPool is an in-memory stand-in for the walletDB's pool bucket,
// used so topUp's persistEntry callback has somewhere real to write.
type persistedPool struct {
	entries map[int64]poolEntry
}

func newPersistedPool() *persistedPool {
	return &persistedPool{entries: make(map[int64]poolEntry)}
}

func (p *persistedPool) write(index int64, e poolEntry) error {
	p.entries[index] = e
	return nil
}

func (p *persistedPool) erase(index int64) error {
	delete(p.entries, index)
	return nil
}

func genKeys(t *testing.T, n int) []crypto.PublicKey {
	t.Helper()
	pubs := make([]crypto.PublicKey, n)
	for i := range pubs {
		_, pk, err := crypto.GenerateKeyPair()
		if err != nil {
			t.Fatal(err)
		}
		pubs[i] = pk
	}
	return pubs
}

// TestKeyPoolTopUpReachesTargetPlusOne exercises S1's pool-size invariant: a
// freshly created pool topped up from empty ends with target+1 records.
func TestKeyPoolTopUpReachesTargetPlusOne(t *testing.T) {
	kp := newKeyPool(100)
	pool := newPersistedPool()
	pubs := genKeys(t, 200)
	next := 0

	err := kp.topUp(
		func() (crypto.PublicKey, error) {
			pk := pubs[next]
			next++
			return pk, nil
		},
		pool.write,
		func() int64 { return 0 },
	)
	if err != nil {
		t.Fatal(err)
	}
	if kp.size() != 101 {
		t.Errorf("pool size after TopUp = %d, want 101", kp.size())
	}
	if len(pool.entries) != 101 {
		t.Errorf("persisted pool records = %d, want 101", len(pool.entries))
	}
}

// TestKeyPoolReserveKeepReturn exercises the three-state protocol: a
// reserved-then-returned index is reservable again and its on-disk record
// survives; a reserved-then-kept index is gone from both.
func TestKeyPoolReserveKeepReturn(t *testing.T) {
	kp := newKeyPool(3)
	pool := newPersistedPool()
	pubs := genKeys(t, 10)
	next := 0
	if err := kp.topUp(
		func() (crypto.PublicKey, error) {
			pk := pubs[next]
			next++
			return pk, nil
		},
		pool.write,
		func() int64 { return 0 },
	); err != nil {
		t.Fatal(err)
	}

	sizeBefore := kp.size()
	index, entry, ok := kp.reserve()
	if !ok {
		t.Fatal("reserve failed on a freshly topped-up pool")
	}
	if kp.size() != sizeBefore-1 {
		t.Errorf("size after reserve = %d, want %d", kp.size(), sizeBefore-1)
	}
	if _, ok := pool.entries[index]; !ok {
		t.Error("reserve must not delete the on-disk record")
	}

	kp.returnKey(index)
	if kp.size() != sizeBefore {
		t.Errorf("size after returnKey = %d, want %d", kp.size(), sizeBefore)
	}

	index2, _, ok := kp.reserve()
	if !ok || index2 != index {
		t.Errorf("reserve after returnKey should hand back index %d, got %d (ok=%v)", index, index2, ok)
	}
	if err := kp.keep(index2, pool.erase); err != nil {
		t.Fatal(err)
	}
	if _, ok := pool.entries[index2]; ok {
		t.Error("keep must delete the on-disk record")
	}
	if _, ok := kp.entries[index2]; ok {
		t.Error("keep must delete the in-memory record")
	}
	_ = entry
}

// TestKeyPoolIntegrity checks that every in-memory reservable index has a
// corresponding entries record whose public key is one the caller actually
// generated.
func TestKeyPoolIntegrity(t *testing.T) {
	kp := newKeyPool(5)
	pool := newPersistedPool()
	pubs := genKeys(t, 10)
	generated := make(map[crypto.PublicKey]bool)
	next := 0
	if err := kp.topUp(
		func() (crypto.PublicKey, error) {
			pk := pubs[next]
			generated[pk] = true
			next++
			return pk, nil
		},
		pool.write,
		func() int64 { return 0 },
	); err != nil {
		t.Fatal(err)
	}

	for _, index := range kp.set {
		entry, ok := kp.entries[index]
		if !ok {
			t.Errorf("index %d in the reservable set has no entries record", index)
			continue
		}
		if !generated[entry.Pub] {
			t.Errorf("index %d holds a public key that was never generated", index)
		}
		if _, ok := pool.entries[index]; !ok {
			t.Errorf("index %d is reservable in memory but missing from the persisted pool", index)
		}
	}
}
