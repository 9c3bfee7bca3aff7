package modules

import "github.com/WinterParker/libcoin/crypto"

// OutPoint identifies one spendable output: the hash of the transaction
// that created it and its index within that transaction's output list.
type OutPoint struct {
	Hash  crypto.Hash256
	Index uint32
}

// TxIn is a transaction input, spending the output identified by
// PrevOut. ScriptSig carries whatever the (external) signer attaches to
// authorize the spend; the wallet engine treats it as an opaque blob it
// fills in via its own keys.
type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
	Sequence  uint32
}

// TxOut is a transaction output: an amount, in the smallest indivisible
// unit, and the scriptPubKey (here, simply the recipient Address) that
// must be satisfied to spend it.
type TxOut struct {
	Value   int64
	Address crypto.Address
}

// Transaction is the binary tx format the wallet persists through; its
// exact wire encoding is assumed to already exist elsewhere in the node,
// but the wallet needs a concrete in-memory shape to build, sign, and
// classify transactions against.
type Transaction struct {
	Version  uint32
	Inputs   []TxIn
	Outputs  []TxOut
	LockTime uint32
}

// ID returns the transaction's hash, computed over its canonical
// encoding.
func (tx Transaction) ID() crypto.Hash256 {
	return crypto.DoubleSHA256(tx.Encode())
}

// Block is the minimal block shape the wallet engine needs: its hash,
// height, and the transactions it contains.
type Block struct {
	Hash         crypto.Hash256
	Height       BlockHeight
	Timestamp    int64
	Transactions []Transaction
}

// MerkleBranch is the set of sibling hashes needed to prove a
// transaction's inclusion in a block, paired with the transaction's
// index among its block's leaves.
type MerkleBranch struct {
	Siblings []crypto.Hash256
	Index    int
}
