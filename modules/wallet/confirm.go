package wallet

import (
	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// isConfirmed is an explicit BFS over VtxPrev rather than recursion: a
// transaction is confirmed if the chain
// considers it final, and either it has depth >= 1 on the main chain, or it
// is from-me and every ancestor reachable through VtxPrev is itself final
// and either confirmed by depth or from-me with its own parents present.
func isConfirmed(chain modules.Chain, index *txIndex, tx *WalletTx) bool {
	if !chain.IsFinal(tx.Tx) {
		return false
	}
	if chain.Depth(tx.Tx.ID()) >= 1 {
		return true
	}
	if !tx.FromMe {
		return false
	}

	visited := map[crypto.Hash256]bool{tx.Tx.ID(): true}
	queue := ancestorHashes(tx)

	for len(queue) > 0 {
		hash := queue[0]
		queue = queue[1:]
		if visited[hash] {
			continue
		}
		visited[hash] = true

		ancestor, ok := lookupAncestor(index, tx, hash)
		if !ok {
			return false
		}
		if !chain.IsFinal(ancestor.Tx) {
			return false
		}
		if chain.Depth(ancestor.Tx.ID()) >= 1 {
			continue
		}
		if !ancestor.FromMe {
			return false
		}
		queue = append(queue, ancestorTxHashes(ancestor.Tx)...)
	}
	return true
}

// lookupAncestor finds the WalletTx for hash, first checking the shared
// index (the common case: the ancestor is itself a wallet transaction) and
// falling back to tx's own VtxPrev cache of raw ancestor transactions
// (needed when the ancestor, being none of ours, was never separately
// indexed but was attached for relay purposes).
func lookupAncestor(index *txIndex, tx *WalletTx, hash crypto.Hash256) (*WalletTx, bool) {
	if wtx, ok := index.get(hash); ok {
		return wtx, true
	}
	for _, prev := range tx.VtxPrev {
		if prev.ID() == hash {
			return &WalletTx{Tx: prev, Index: -1, FromMe: false}, true
		}
	}
	return nil, false
}

func ancestorHashes(tx *WalletTx) []crypto.Hash256 {
	return ancestorTxHashes(tx.Tx)
}

func ancestorTxHashes(tx modules.Transaction) []crypto.Hash256 {
	hashes := make([]crypto.Hash256, len(tx.Inputs))
	for i, in := range tx.Inputs {
		hashes[i] = in.PrevOut.Hash
	}
	return hashes
}
