package wallet

import (
	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// OnTransactionAccepted is called by the external chain when a transaction
// enters its mempool. It is equivalent to AddToWalletIfInvolvingMe(tx,
// nil).
func (w *Wallet) OnTransactionAccepted(tx modules.Transaction) error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.addToWalletIfInvolvingMe(tx, nil)
	return err
}

// OnBlockAccepted is called by the external chain when a new block joins
// the main chain. Every transaction in the block is offered to
// AddToWalletIfInvolvingMe, and the wallet's bestBlock locator is advanced.
func (w *Wallet) OnBlockAccepted(block modules.Block) error {
	if err := w.tg.Add(); err != nil {
		return ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, tx := range block.Transactions {
		if _, err := w.addToWalletIfInvolvingMe(tx, &block); err != nil {
			return err
		}
	}
	return w.db.writeBestBlock(modules.BlockLocator(block.Hash[:]))
}

// OnReminder is called periodically by the external chain to give the
// wallet a chance to re-announce its own unconfirmed transactions. hashes
// returned are the wallet's recommendation of what to relay; the caller is
// responsible for actually broadcasting them.
func (w *Wallet) OnReminder() ([]crypto.Hash256, error) {
	if err := w.tg.Add(); err != nil {
		return nil, ErrWalletShutdown
	}
	defer w.tg.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.resendWalletTransactions()
}
