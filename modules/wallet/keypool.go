package wallet

import (
	"sort"

	"github.com/WinterParker/libcoin/crypto"
)

// defaultKeyPoolTarget is the target number of spare addresses TopUp keeps
// available.
const defaultKeyPoolTarget = 100

// poolEntry is the on-disk payload of one ("pool", index) record.
type poolEntry struct {
	Time int64
	Pub  crypto.PublicKey
}

// keyPool is the reservable pool of fresh, unused public keys: an in-memory
// set of indexes plus their on-disk {time, pub} records. Reserve/Keep/Return
// is a three-state protocol so a caller that abandons a reservation (e.g. an
// aborted send) doesn't burn the address.
type keyPool struct {
	target int

	// set is kept sorted so reserve can always take the smallest index
	// from its front; entries map index -> its record for O(1) lookup.
	set     []int64
	entries map[int64]poolEntry

	nextIndex int64
}

func newKeyPool(target int) *keyPool {
	if target <= 0 {
		target = defaultKeyPoolTarget
	}
	return &keyPool{
		target:  target,
		entries: make(map[int64]poolEntry),
	}
}

// size returns the number of reservable (not yet reserved) indexes.
func (kp *keyPool) size() int {
	return len(kp.set)
}

// topUp generates and persists new keys until the pool reaches kp.target+1
// entries: one extra above target so a currently-open reservation still
// leaves a target-sized reservable set behind. generate must produce a
// fresh (pub, priv) pair and persist it via the KeyStore; persistEntry must
// durably write the new pool record before it is added to the in-memory
// set.
func (kp *keyPool) topUp(generate func() (crypto.PublicKey, error), persistEntry func(index int64, e poolEntry) error, now func() int64) error {
	for len(kp.set) < kp.target+1 {
		pub, err := generate()
		if err != nil {
			return err
		}
		entry := poolEntry{Time: now(), Pub: pub}
		index := kp.nextIndex
		if err := persistEntry(index, entry); err != nil {
			return err
		}
		kp.entries[index] = entry
		kp.set = insertSorted(kp.set, index)
		kp.nextIndex++
	}
	return nil
}

// reserve removes and returns the smallest reservable index. The disk
// record is left untouched: the caller must eventually call keep (consuming
// it) or returnKey (making it reservable again).
func (kp *keyPool) reserve() (int64, poolEntry, bool) {
	if len(kp.set) == 0 {
		return 0, poolEntry{}, false
	}
	index := kp.set[0]
	kp.set = kp.set[1:]
	return index, kp.entries[index], true
}

// keep permanently consumes a reserved index: its disk record is deleted
// via deleteEntry and it is dropped from kp.entries.
func (kp *keyPool) keep(index int64, deleteEntry func(index int64) error) error {
	if err := deleteEntry(index); err != nil {
		return err
	}
	delete(kp.entries, index)
	return nil
}

// returnKey re-inserts an abandoned reservation into the reservable set; the
// disk record, never having been deleted, remains valid.
func (kp *keyPool) returnKey(index int64) {
	if _, ok := kp.entries[index]; !ok {
		return
	}
	for _, i := range kp.set {
		if i == index {
			return
		}
	}
	kp.set = insertSorted(kp.set, index)
}

func insertSorted(s []int64, v int64) []int64 {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= v })
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
