package wallet

import (
	"testing"

	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// fakeChain is a minimal modules.Chain test double: every transaction is
// final unless a test clears final, and depth/spend bookkeeping is driven entirely by the maps a test
// populates before calling isConfirmed.
type fakeChain struct {
	final            bool
	depth            map[crypto.Hash256]int32
	spent            map[modules.OutPoint]bool
	bestReceivedTime int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{final: true, depth: make(map[crypto.Hash256]int32), spent: make(map[modules.OutPoint]bool)}
}

func (c *fakeChain) IsFinal(modules.Transaction) bool { return c.final }
func (c *fakeChain) Depth(hash crypto.Hash256) int32 {
	if d, ok := c.depth[hash]; ok {
		return d
	}
	return 0
}
func (c *fakeChain) NumSpent(crypto.Hash256) int32          { return 0 }
func (c *fakeChain) IsSpent(out modules.OutPoint) bool      { return c.spent[out] }
func (c *fakeChain) SpentIn(modules.OutPoint) crypto.Hash256 { return crypto.Hash256{} }
func (c *fakeChain) BlocksToMaturity(modules.Transaction) int32 { return 0 }
func (c *fakeChain) BestReceivedTime() int64 { return c.bestReceivedTime }
func (c *fakeChain) GenesisHash() crypto.Hash256                 { return crypto.Hash256{} }
func (c *fakeChain) BlockAt(modules.BlockHeight) (modules.Block, bool) {
	return modules.Block{}, false
}
func (c *fakeChain) NetworkID() crypto.NetworkID           { return crypto.NetworkMainnet }
func (c *fakeChain) AcceptTransaction(modules.Transaction) bool { return true }

func TestIsConfirmedByDepth(t *testing.T) {
	chain := newFakeChain()
	idx := newTxIndex()
	tx := makeTx(0, modules.TxOut{Value: 1})
	wtx := newWalletTx(tx)
	chain.depth[tx.ID()] = 1

	if !isConfirmed(chain, idx, wtx) {
		t.Error("a final transaction with depth >= 1 must be confirmed")
	}
}

func TestIsConfirmedUnconfirmedNotFromMe(t *testing.T) {
	chain := newFakeChain()
	idx := newTxIndex()
	tx := makeTx(0, modules.TxOut{Value: 1})
	wtx := newWalletTx(tx)
	wtx.FromMe = false

	if isConfirmed(chain, idx, wtx) {
		t.Error("a zero-depth non-from-me transaction must not be confirmed")
	}
}

// TestIsConfirmedViaFromMeAncestry: an unconfirmed from-me transaction is
// confirmed through its ancestry when its only ancestor, found in the tx
// index, is final and confirmed by depth.
func TestIsConfirmedViaFromMeAncestry(t *testing.T) {
	chain := newFakeChain()
	idx := newTxIndex()

	parent := makeTx(0, modules.TxOut{Value: 1})
	parentWtx := newWalletTx(parent)
	chain.depth[parent.ID()] = 1
	idx.byHash[parent.ID()] = parentWtx

	child := modules.Transaction{
		Version: 1,
		Inputs:  []modules.TxIn{{PrevOut: modules.OutPoint{Hash: parent.ID(), Index: 0}}},
		Outputs: []modules.TxOut{{Value: 1}},
	}
	childWtx := newWalletTx(child)
	childWtx.FromMe = true

	if !isConfirmed(chain, idx, childWtx) {
		t.Error("an unconfirmed from-me transaction whose ancestor is confirmed must be confirmed")
	}
}

func TestIsConfirmedViaFromMeAncestryBreaksOnMissingAncestor(t *testing.T) {
	chain := newFakeChain()
	idx := newTxIndex()

	child := modules.Transaction{
		Version: 1,
		Inputs:  []modules.TxIn{{PrevOut: modules.OutPoint{Hash: crypto.SHA256([]byte("missing")), Index: 0}}},
		Outputs: []modules.TxOut{{Value: 1}},
	}
	childWtx := newWalletTx(child)
	childWtx.FromMe = true

	if isConfirmed(chain, idx, childWtx) {
		t.Error("confirmation must not succeed when an ancestor cannot be found")
	}
}

func TestIsConfirmedRejectsNonFinal(t *testing.T) {
	chain := newFakeChain()
	chain.final = false
	idx := newTxIndex()
	tx := makeTx(0, modules.TxOut{Value: 1})
	wtx := newWalletTx(tx)
	chain.depth[tx.ID()] = 5

	if isConfirmed(chain, idx, wtx) {
		t.Error("a non-final transaction must never be confirmed")
	}
}
