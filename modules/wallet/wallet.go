package wallet

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"sort"
	"sync"
	"time"

	"github.com/NebulousLabs/threadgroup"
	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
	"github.com/WinterParker/libcoin/persist"
)

// Config bundles the constructor-time parameters New needs: the keypool's
// target size, the network addresses are minted for, and the relay fee
// schedule coin selection and the fee loop use. It is passed in explicitly
// rather than read from a global.
type Config struct {
	PersistDir    string
	Network       crypto.NetworkID
	KeyPoolTarget int
	FeePerKB      int64
	Verbose       bool
}

// DefaultConfig returns sane defaults for Network mainnet and a 100-key
// keypool target.
func DefaultConfig(persistDir string) Config {
	return Config{
		PersistDir:    persistDir,
		Network:       crypto.NetworkMainnet,
		KeyPoolTarget: defaultKeyPoolTarget,
		FeePerKB:      1000,
	}
}

// Wallet owns a set of private keys and locally observed transactions: it
// classifies transactions as mine/from-me/spent, selects unspent outputs to
// fund new payments, and maintains a durable, optionally-encrypted key
// store atop a transactional key/value file.
type Wallet struct {
	cfg   Config
	chain modules.Chain

	keys  *cryptoKeyStore
	pool  *keyPool
	index *txIndex
	names map[crypto.Address]string

	defaultKey crypto.PublicKey
	haveDefKey bool
	bestBlock  modules.BlockLocator

	lastResend       time.Time
	lastBestReceived int64

	db  *walletDB
	log *persist.Logger

	rng Rand

	mu sync.Mutex
	tg threadgroup.ThreadGroup
}

// mathRandAdapter exposes a math/rand.Rand through the narrow Rand
// interface coin selection depends on.
type mathRandAdapter struct{ r *mathrand.Rand }

func (a mathRandAdapter) Intn(n int) int { return a.r.Intn(n) }

func newSeededRand() Rand {
	var seed [8]byte
	_, _ = rand.Read(seed[:])
	return mathRandAdapter{mathrand.New(mathrand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))}
}

// New creates a wallet backed by store, persisting its records through it.
// Keys and addresses are not necessarily decrypted during New; if the
// database is encrypted, private key material stays unavailable until
// Unlock succeeds.
func New(chain modules.Chain, store modules.KeyValueStore, cfg Config) (*Wallet, error) {
	if chain == nil {
		return nil, fmt.Errorf("wallet: %w", errNilChain)
	}
	if store == nil {
		return nil, fmt.Errorf("wallet: %w", errNilStore)
	}
	if cfg.KeyPoolTarget <= 0 {
		cfg.KeyPoolTarget = defaultKeyPoolTarget
	}

	log, err := persist.NewFileLogger("wallet", cfg.PersistDir+"/wallet.log", cfg.Verbose)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		cfg:   cfg,
		chain: chain,
		keys:  newCryptoKeyStore(cfg.Network),
		pool:  newKeyPool(cfg.KeyPoolTarget),
		index: newTxIndex(),
		names: make(map[crypto.Address]string),
		db:    newWalletDB(store),
		log:   log,
		rng:   newSeededRand(),
	}

	status, err := w.load()
	if err != nil {
		log.Error("load failed: ", err)
		return nil, err
	}
	switch status {
	case LoadCorrupt:
		return nil, ErrDBCorrupt
	case LoadNeedRewrite:
		return nil, ErrDBNeedsRewrite
	case LoadNeedsFirstRun:
		if err := w.db.writeVersion(currentVersion); err != nil {
			return nil, err
		}
	}

	w.log.Info("STARTUP: wallet opened at ", cfg.PersistDir)
	return w, nil
}

var (
	errNilChain = fmt.Errorf("wallet cannot initialize with a nil chain")
	errNilStore = fmt.Errorf("wallet cannot initialize with a nil key/value store")
)

// load reconstructs in-memory state from the underlying store.
func (w *Wallet) load() (LoadStatus, error) {
	sink := walletLoadSink{
		onKey: func(pub crypto.PublicKey, priv crypto.PrivateKey) {
			w.keys.keyStore.AddKey(w.cfg.Network, pub, priv)
		},
		onCKey: func(pub crypto.PublicKey, ciphertext []byte) {
			addr := crypto.NewAddress(w.cfg.Network, pub)
			w.keys.pub[addr] = pub
			w.keys.ckeys[addr] = ckeyEntry{pub: pub, ciphertext: ciphertext}
		},
		onMasterKey: func(rec masterKeyRecord) {
			w.keys.masterKeys = append(w.keys.masterKeys, rec)
			if rec.ID >= w.keys.nextMKID {
				w.keys.nextMKID = rec.ID
			}
			w.keys.unlocked = false
		},
		onPool: func(index int64, entry poolEntry) {
			w.pool.entries[index] = entry
			w.pool.set = insertSorted(w.pool.set, index)
			if index >= w.pool.nextIndex {
				w.pool.nextIndex = index + 1
			}
		},
		onTx: func(wtx *WalletTx) {
			w.index.byHash[wtx.Tx.ID()] = wtx
		},
		onName: func(addr crypto.Address, label string) {
			w.names[addr] = label
		},
		onDefaultKey: func(pub crypto.PublicKey) {
			w.defaultKey = pub
			w.haveDefKey = true
		},
		onBestBlock: func(loc modules.BlockLocator) {
			w.bestBlock = loc
		},
	}
	return w.db.load(sink)
}

// Close stops accepting new operations, waits for in-flight ones to
// finish, and closes the log and underlying store.
func (w *Wallet) Close() error {
	if err := w.tg.Stop(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if err := w.db.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.log.Close(); err != nil {
		errs = append(errs, err)
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}

// Locked reports whether the wallet's key store currently holds no
// decrypted private key material.
func (w *Wallet) Locked() (bool, error) {
	if err := w.tg.Add(); err != nil {
		return false, ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.keys.IsLocked(), nil
}

// Unlock decrypts the wallet's master key with passphrase, making private
// key material available until Lock is called.
func (w *Wallet) Unlock(passphrase string) error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.keys.Unlock(passphrase)
}

// Lock wipes the resident master key and any decrypted private keys.
func (w *Wallet) Lock() error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.keys.Lock()
}

// EncryptWallet converts every key currently held in the clear to encrypted
// storage under a fresh random master key, itself protected by a KDF of
// passphrase. The master key record and every converted ckey are written
// durably in a single explicit transaction (walletDB.commitEncryption), so a
// crash partway through the conversion can never leave the store with some
// keys converted and others still in the clear.
func (w *Wallet) EncryptWallet(passphrase string) error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.keys.IsEncrypted() {
		return ErrAlreadyEncrypted
	}

	var mk masterKeyMaterial
	if _, err := rand.Read(mk[:]); err != nil {
		return err
	}

	plainKeys := make(map[crypto.Address]crypto.PublicKey, len(w.keys.pub))
	for addr, pub := range w.keys.pub {
		plainKeys[addr] = pub
	}

	if err := w.keys.EncryptKeys(passphrase, realClock{}, mk); err != nil {
		return err
	}

	rec := w.keys.masterKeys[len(w.keys.masterKeys)-1]
	ckeys := make([]ckeyWrite, 0, len(plainKeys))
	for addr := range plainKeys {
		entry, ok := w.keys.ckeys[addr]
		if !ok {
			continue
		}
		ckeys = append(ckeys, ckeyWrite{pub: entry.pub, ciphertext: entry.ciphertext})
	}

	if err := w.db.commitEncryption(rec, ckeys); err != nil {
		w.log.Critical("encryption conversion could not be committed durably: ", err)
	}

	return nil
}

// addToWalletIfInvolvingMe includes tx in the index iff it was already
// present, pays us, or spends from us; otherwise still runs
// walletUpdateSpent so externally observed spends mark our outputs spent.
func (w *Wallet) addToWalletIfInvolvingMe(tx modules.Transaction, block *modules.Block) (*WalletTx, error) {
	hash := tx.ID()
	_, existed := w.index.get(hash)

	mine := isMine(w.keys, tx)
	fromMe := w.index.isFromMe(w.keys, tx)

	if !existed && !mine && !fromMe {
		if err := w.walletUpdateSpent(tx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	incoming := newWalletTx(tx)
	incoming.FromMe = fromMe
	if block != nil {
		incoming.BlockHash = block.Hash
		for i, btx := range block.Transactions {
			if btx.ID() == hash {
				incoming.Index = i
				break
			}
		}
	}

	wtx, err := w.addToWallet(incoming)
	if err != nil {
		return nil, err
	}
	if err := w.walletUpdateSpent(tx); err != nil {
		return nil, err
	}
	return wtx, nil
}

// addToWallet merges incoming into the index, persists the merge, rotates
// the default key if one of tx's outputs paid it, and returns the merged
// record.
func (w *Wallet) addToWallet(incoming *WalletTx) (*WalletTx, error) {
	wtx, changed := w.index.addToWallet(w.keys, incoming, adjustedTime)
	if !changed {
		return wtx, nil
	}
	if err := w.db.writeTx(wtx); err != nil {
		return nil, err
	}

	if w.haveDefKey && !w.keys.IsLocked() {
		for _, out := range wtx.Tx.Outputs {
			if scriptPubKeyMatchesDefaultKey(w.cfg.Network, out, w.defaultKey) {
				if err := w.rotateDefaultKey(); err != nil {
					w.log.Critical("default key rotation failed: ", err)
				}
				break
			}
		}
	}

	return wtx, nil
}

// walletUpdateSpent marks, for each input of tx, the referenced previous
// output as spent and persists the change, if it is ours and not already
// marked.
func (w *Wallet) walletUpdateSpent(tx modules.Transaction) error {
	for _, in := range tx.Inputs {
		prev, ok := w.index.get(in.PrevOut.Hash)
		if !ok || int(in.PrevOut.Index) >= len(prev.Tx.Outputs) {
			continue
		}
		if !w.keys.HaveKey(prev.Tx.Outputs[in.PrevOut.Index].Address) {
			continue
		}
		if int(in.PrevOut.Index) >= len(prev.SpentBitmap) {
			continue
		}
		if prev.SpentBitmap[in.PrevOut.Index] {
			continue
		}
		prev.SpentBitmap[in.PrevOut.Index] = true
		if err := w.db.writeTx(prev); err != nil {
			return err
		}
	}
	return nil
}

// ScanForWalletTransactions walks the chain forward from fromHeight,
// offering every transaction in every block to AddToWalletIfInvolvingMe,
// and returns how many blocks were scanned.
func (w *Wallet) ScanForWalletTransactions(fromHeight modules.BlockHeight) (int, error) {
	if err := w.tg.Add(); err != nil {
		return 0, ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	scanned := 0
	for height := fromHeight; ; height++ {
		block, ok := w.chain.BlockAt(height)
		if !ok {
			break
		}
		for _, tx := range block.Transactions {
			if _, err := w.addToWalletIfInvolvingMe(tx, &block); err != nil {
				return scanned, err
			}
		}
		scanned++
	}
	return scanned, nil
}

// TopUpKeyPool tops up the keypool to its target size plus one, generating and
// persisting fresh keys through the wallet's key store. It is a silent
// no-op while the wallet is locked.
func (w *Wallet) TopUpKeyPool() error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.topUpKeyPool()
}

func (w *Wallet) topUpKeyPool() error {
	if w.keys.IsLocked() {
		return nil
	}
	err := w.pool.topUp(
		func() (crypto.PublicKey, error) {
			sk, pk, err := crypto.GenerateKeyPair()
			if err != nil {
				return crypto.PublicKey{}, err
			}
			addr, err := w.keys.AddKey(pk, sk)
			if err != nil {
				return crypto.PublicKey{}, err
			}
			if w.keys.IsEncrypted() {
				entry := w.keys.ckeys[addr]
				if err := w.db.writeCKey(entry.pub, entry.ciphertext); err != nil {
					return crypto.PublicKey{}, err
				}
			} else if err := w.db.writeKey(pk, sk); err != nil {
				return crypto.PublicKey{}, err
			}
			return pk, nil
		},
		w.db.writePool,
		func() int64 { return time.Now().Unix() },
	)
	if err != nil {
		return err
	}
	if !w.haveDefKey {
		return w.rotateDefaultKey()
	}
	return nil
}

// rotateDefaultKey reserves a fresh key from the pool, commits it (removing
// it from future reservation), and makes it the new default receiving key,
// persisting the change and topping the pool back up.
func (w *Wallet) rotateDefaultKey() error {
	index, entry, ok := w.pool.reserve()
	if !ok {
		if err := w.topUpKeyPool(); err != nil {
			return err
		}
		index, entry, ok = w.pool.reserve()
		if !ok {
			return nil
		}
	}
	if err := w.pool.keep(index, w.db.erasePool); err != nil {
		return err
	}
	w.defaultKey = entry.Pub
	w.haveDefKey = true
	if err := w.db.writeDefaultKey(entry.Pub); err != nil {
		return err
	}
	return w.topUpKeyPool()
}

// GetAddressLabel returns the address book label for addr, if any.
func (w *Wallet) GetAddressLabel(addr crypto.Address) (string, bool) {
	if err := w.tg.Add(); err != nil {
		return "", false
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	label, ok := w.names[addr]
	return label, ok
}

// SetAddressLabel records a human-readable label for addr in the address
// book.
func (w *Wallet) SetAddressLabel(addr crypto.Address, label string) error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.names[addr] = label
	return w.db.writeName(addr, label)
}

// adjustedTime stands in for the chain's network-adjusted clock; the
// wallet engine does not implement clock skew correction itself, so it
// uses the local wall clock.
func adjustedTime() int64 {
	return time.Now().Unix()
}

// spendableCoins builds the coin-selection candidate list from the
// wallet's current tx index: every unspent output we can sign for, from
// transactions that are final and not immature coinbase.
func (w *Wallet) spendableCoins() []coin {
	var coins []coin
	hashes := make([]crypto.Hash256, 0, len(w.index.byHash))
	for h := range w.index.byHash {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return string(hashes[i][:]) < string(hashes[j][:]) })

	for _, h := range hashes {
		wtx := w.index.byHash[h]
		if !w.chain.IsFinal(wtx.Tx) || w.chain.BlocksToMaturity(wtx.Tx) > 0 {
			continue
		}
		for i, out := range wtx.Tx.Outputs {
			if !w.keys.HaveKey(out.Address) {
				continue
			}
			if i < len(wtx.SpentBitmap) && wtx.SpentBitmap[i] {
				continue
			}
			coins = append(coins, coin{
				Out:     modules.OutPoint{Hash: h, Index: uint32(i)},
				Value:   out.Value,
				FromMe:  wtx.FromMe,
				Address: out.Address,
			})
		}
	}
	return coins
}

// priorityOf computes Σ(credit·depth) / size for tx, used by the fee loop
// to decide free-relay eligibility.
func (w *Wallet) priorityOf(tx modules.Transaction) float64 {
	var weighted float64
	for _, in := range tx.Inputs {
		prev, ok := w.index.get(in.PrevOut.Hash)
		if !ok || int(in.PrevOut.Index) >= len(prev.Tx.Outputs) {
			continue
		}
		depth := w.chain.Depth(in.PrevOut.Hash)
		if depth < 0 {
			depth = 0
		}
		weighted += float64(prev.Tx.Outputs[in.PrevOut.Index].Value) * float64(depth)
	}
	size := len(tx.Encode())
	if size == 0 {
		return 0
	}
	return weighted / float64(size)
}

// sign fills in ScriptSig for input i of tx, spending the coin owned by
// owner, after checking that the wallet's key store can produce owner's
// private key (failing with its error, e.g. ErrLocked, when it cannot). No
// signature is computed: ScriptSig holds only owner's public key.
func (w *Wallet) sign(tx *modules.Transaction, i int, owner crypto.Address) error {
	priv, err := w.keys.GetPrivKey(owner)
	if err != nil {
		return err
	}
	pub := priv.PublicKey()
	tx.Inputs[i].ScriptSig = append([]byte{}, pub[:]...)
	return nil
}

// CreateTransaction builds, but does not broadcast, a transaction paying
// outs, running the fee-convergence loop. The caller must follow a
// successful call with CommitTransaction. If the result is discarded
// instead, a reserved change key stays out of the reservable pool until the
// wallet is next loaded; Wallet has no method that returns it.
func (w *Wallet) CreateTransaction(outs []modules.TxOut) (createTransactionResult, error) {
	if err := w.tg.Add(); err != nil {
		return createTransactionResult{}, ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.keys.IsLocked() {
		return createTransactionResult{}, ErrLocked
	}

	deps := createTransactionDeps{
		chain:      w.chain,
		rng:        w.rng,
		candidates: w.spendableCoins(),
		pool:       w.pool,
		sign:       w.sign,
		estimator:  linearFeeEstimator{feePerKB: w.cfg.FeePerKB},
		network:    w.cfg.Network,
		feePerKB:   w.cfg.FeePerKB,
		priorityOf: w.priorityOf,
	}

	return createTransaction(deps, outs, uniformChangePosition)
}

// CommitTransaction finalizes a transaction built by CreateTransaction:
// permanently consumes the reserved change key (if any), merges the
// transaction into the index, marks its inputs' coins spent, and requests
// broadcast through the chain facade. On broadcast failure the transaction
// remains recorded in the wallet; it may still propagate via a later
// ResendWalletTransactions.
func (w *Wallet) CommitTransaction(result createTransactionResult) error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	wtxNew := newWalletTx(result.Tx)
	wtxNew.FromMe = true

	merged, err := func() (*WalletTx, error) {
		w.mu.Lock()
		defer w.mu.Unlock()

		if result.HasReservation {
			if err := w.pool.keep(result.ReservedIndex, w.db.erasePool); err != nil {
				return nil, err
			}
		}
		merged, err := w.addToWallet(wtxNew)
		if err != nil {
			return nil, err
		}
		if err := w.walletUpdateSpent(merged.Tx); err != nil {
			return nil, err
		}
		return merged, nil
	}()
	if err != nil {
		return err
	}

	// The broadcast callback runs without the wallet lock held, to avoid
	// deadlocking against the chain's own locks. The mutation above has
	// already been committed to disk, so a failed or slow broadcast cannot
	// corrupt wallet state.
	if !w.chain.AcceptTransaction(merged.Tx) {
		return ErrRejected
	}
	return nil
}

// resendWalletTransactions, only after a random 0-30 minute delay past the
// last attempt and only if the chain's best-received time has advanced,
// collects our own unconfirmed transactions older than 5 minutes, oldest
// first, for the caller to relay.
func (w *Wallet) resendWalletTransactions() ([]crypto.Hash256, error) {
	now := time.Now()
	if !w.lastResend.IsZero() {
		delay := time.Duration(w.rng.Intn(30*60)) * time.Second
		if now.Before(w.lastResend.Add(delay)) {
			return nil, nil
		}
	}
	if w.chain.BestReceivedTime() <= w.lastBestReceived {
		return nil, nil
	}
	w.lastResend = now
	w.lastBestReceived = w.chain.BestReceivedTime()

	type candidate struct {
		hash crypto.Hash256
		tr   int64
	}
	var candidates []candidate
	cutoff := now.Add(-5 * time.Minute).Unix()
	for h, wtx := range w.index.byHash {
		if !wtx.FromMe || !wtx.BlockHash.IsNil() {
			continue
		}
		if wtx.TimeReceived > cutoff {
			continue
		}
		candidates = append(candidates, candidate{hash: h, tr: wtx.TimeReceived})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].tr < candidates[j].tr })

	hashes := make([]crypto.Hash256, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.hash
	}
	return hashes, nil
}

// IsConfirmed reports whether wtx meets the wallet's confirmation
// predicate.
func (w *Wallet) IsConfirmed(wtx *WalletTx) bool {
	if err := w.tg.Add(); err != nil {
		return false
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	return isConfirmed(w.chain, w.index, wtx)
}
