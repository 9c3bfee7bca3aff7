package wallet

import (
	"bytes"
	"io"

	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// WalletTx is a transaction augmented with the bookkeeping the wallet needs
// to classify, confirm, and later relay it. BlockHash is the zero hash
// while the transaction is unconfirmed. Index is -1 until the transaction
// is known to be included in a block. VtxPrev holds whichever ancestor
// transactions are needed to re-relay this one and to walk confirmation
// through unconfirmed from-me ancestry.
type WalletTx struct {
	Tx           modules.Transaction
	BlockHash    crypto.Hash256
	MerkleBranch modules.MerkleBranch
	Index        int
	TimeReceived int64
	FromMe       bool
	SpentBitmap  []bool
	VtxPrev      []modules.Transaction
}

func newWalletTx(tx modules.Transaction) *WalletTx {
	return &WalletTx{
		Tx:          tx,
		Index:       -1,
		SpentBitmap: make([]bool, len(tx.Outputs)),
	}
}

// txIndex is the mapping hash -> *WalletTx. It is insert-only except
// through the merge semantics of AddToWallet.
type txIndex struct {
	byHash map[crypto.Hash256]*WalletTx
}

func newTxIndex() *txIndex {
	return &txIndex{byHash: make(map[crypto.Hash256]*WalletTx)}
}

func (ti *txIndex) get(hash crypto.Hash256) (*WalletTx, bool) {
	wtx, ok := ti.byHash[hash]
	return wtx, ok
}

// isMine reports whether any output of tx pays an address this wallet
// holds a key for.
func isMine(ks *cryptoKeyStore, tx modules.Transaction) bool {
	for _, out := range tx.Outputs {
		if ks.HaveKey(out.Address) {
			return true
		}
	}
	return false
}

// isFromMe reports whether any input of tx spends an output this wallet
// recognizes as one of its own, per the index's record of the spent
// transaction's outputs.
func (ti *txIndex) isFromMe(ks *cryptoKeyStore, tx modules.Transaction) bool {
	for _, in := range tx.Inputs {
		prev, ok := ti.get(in.PrevOut.Hash)
		if !ok || int(in.PrevOut.Index) >= len(prev.Tx.Outputs) {
			continue
		}
		if ks.HaveKey(prev.Tx.Outputs[in.PrevOut.Index].Address) {
			return true
		}
	}
	return false
}

// addToWallet merges incoming into the index: insert on first
// sight, or update only the fields that become more informative on a
// repeat sighting (a later block confirmation, a corrected merkle index, or
// a from-me transition). The spent bitmap is OR'd element-wise so marking a
// coin spent is permanent once observed. Returns the merged record and
// whether this call actually changed anything observable (used by callers
// deciding whether to persist and whether to rotate the default key).
func (ti *txIndex) addToWallet(ks *cryptoKeyStore, incoming *WalletTx, now func() int64) (*WalletTx, bool) {
	hash := incoming.Tx.ID()
	existing, existed := ti.get(hash)
	if !existed {
		incoming.TimeReceived = now()
		if incoming.Index == 0 && incoming.BlockHash.IsNil() {
			incoming.Index = -1
		}
		ti.byHash[hash] = incoming
		return incoming, true
	}

	changed := false
	if !incoming.BlockHash.IsNil() && existing.BlockHash.IsNil() {
		existing.BlockHash = incoming.BlockHash
		changed = true
	}
	if incoming.Index != -1 && incoming.Index != existing.Index {
		existing.Index = incoming.Index
		existing.MerkleBranch = incoming.MerkleBranch
		changed = true
	}
	if incoming.FromMe && !existing.FromMe {
		existing.FromMe = true
		changed = true
	}
	if len(incoming.VtxPrev) > 0 {
		existing.VtxPrev = incoming.VtxPrev
	}

	if len(existing.SpentBitmap) != len(existing.Tx.Outputs) {
		rebuilt := make([]bool, len(existing.Tx.Outputs))
		copy(rebuilt, existing.SpentBitmap)
		existing.SpentBitmap = rebuilt
	}
	for i := range existing.SpentBitmap {
		if i < len(incoming.SpentBitmap) && incoming.SpentBitmap[i] {
			if !existing.SpentBitmap[i] {
				existing.SpentBitmap[i] = true
				changed = true
			}
		}
	}

	return existing, changed
}

// scriptPubKeyMatchesDefaultKey checks default key rotation against the
// full scriptPubKey derived from the current default key (i.e. the address
// it hashes to), not merely a raw pubkey-hash comparison against some other
// representation.
func scriptPubKeyMatchesDefaultKey(network crypto.NetworkID, out modules.TxOut, defaultKey crypto.PublicKey) bool {
	return out.Address == crypto.NewAddress(network, defaultKey)
}

func walletTxKey(wtx *WalletTx) []byte {
	h := wtx.Tx.ID()
	return h[:]
}

// encodeWalletTx/decodeWalletTx serialize a WalletTx using the shared
// varint/varstr/container codec: the transaction's own encoding, followed
// by the wallet-specific fields.
func encodeWalletTx(wtx *WalletTx) []byte {
	var buf bytes.Buffer
	_ = modules.WriteVarString(&buf, wtx.Tx.Encode())
	buf.Write(wtx.BlockHash[:])
	_ = modules.WriteInt64(&buf, int64(wtx.Index))
	_ = modules.WriteInt64(&buf, wtx.TimeReceived)
	fromMe := byte(0)
	if wtx.FromMe {
		fromMe = 1
	}
	buf.WriteByte(fromMe)
	_ = modules.WriteContainer(&buf, len(wtx.SpentBitmap), func(w io.Writer, i int) error {
		b := byte(0)
		if wtx.SpentBitmap[i] {
			b = 1
		}
		_, err := w.Write([]byte{b})
		return err
	})
	_ = modules.WriteContainer(&buf, len(wtx.VtxPrev), func(w io.Writer, i int) error {
		return modules.WriteVarString(w, wtx.VtxPrev[i].Encode())
	})
	_ = modules.WriteContainer(&buf, len(wtx.MerkleBranch.Siblings), func(w io.Writer, i int) error {
		_, err := w.Write(wtx.MerkleBranch.Siblings[i][:])
		return err
	})
	_ = modules.WriteInt64(&buf, int64(wtx.MerkleBranch.Index))
	return buf.Bytes()
}

func decodeWalletTx(b []byte) (*WalletTx, error) {
	r := bytes.NewReader(b)
	txBytes, err := modules.ReadVarString(r, 1<<24)
	if err != nil {
		return nil, ErrDecode
	}
	tx, err := modules.DecodeTransaction(bytes.NewReader(txBytes))
	if err != nil {
		return nil, ErrDecode
	}
	wtx := newWalletTx(tx)

	if _, err := io.ReadFull(r, wtx.BlockHash[:]); err != nil {
		return nil, ErrDecode
	}
	index64, err := modules.ReadInt64(r)
	if err != nil {
		return nil, ErrDecode
	}
	wtx.Index = int(index64)
	if wtx.TimeReceived, err = modules.ReadInt64(r); err != nil {
		return nil, ErrDecode
	}
	fromMe, err := r.ReadByte()
	if err != nil {
		return nil, ErrDecode
	}
	wtx.FromMe = fromMe != 0

	var bitmap []bool
	if _, err := modules.ReadContainer(r, 1<<20, func(r io.Reader) error {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return err
		}
		bitmap = append(bitmap, b[0] != 0)
		return nil
	}); err != nil {
		return nil, ErrDecode
	}
	wtx.SpentBitmap = bitmap

	var vtxPrev []modules.Transaction
	if _, err := modules.ReadContainer(r, 1<<16, func(r io.Reader) error {
		raw, err := modules.ReadVarString(r, 1<<24)
		if err != nil {
			return err
		}
		prevTx, err := modules.DecodeTransaction(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		vtxPrev = append(vtxPrev, prevTx)
		return nil
	}); err != nil {
		return nil, ErrDecode
	}
	wtx.VtxPrev = vtxPrev

	var siblings []crypto.Hash256
	if _, err := modules.ReadContainer(r, 1<<10, func(r io.Reader) error {
		var h crypto.Hash256
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return err
		}
		siblings = append(siblings, h)
		return nil
	}); err != nil {
		return nil, ErrDecode
	}
	wtx.MerkleBranch.Siblings = siblings

	merkleIndex, err := modules.ReadInt64(r)
	if err != nil {
		return nil, ErrDecode
	}
	wtx.MerkleBranch.Index = int(merkleIndex)

	return wtx, nil
}
