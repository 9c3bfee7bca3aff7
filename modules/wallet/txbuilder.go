package wallet

import (
	"github.com/WinterParker/libcoin/crypto"
	"github.com/WinterParker/libcoin/modules"
)

// maxFeeIterations bounds CreateTransaction's fee-convergence loop: rather
// than loop forever relying on a break, the loop gives up with
// ErrNotConverged after this many attempts.
const maxFeeIterations = 32

// minTxFee is the minimum relay fee charged regardless of size.
const minTxFee = 10000

// maxRelayTxSize caps a built transaction's serialized size.
const maxRelayTxSize = 1_000_000 / 5

// maxSaneFee caps the fee CreateTransaction will ever settle on: a
// converged fee above this is treated as a sizing/estimator malfunction
// rather than paid silently.
const maxSaneFee = 1_000_000_000

// Signer signs one input of a transaction being built, filling in
// ScriptSig for the coin owned by owner. It is the only point at which
// TxBuilder needs access to private key material.
type Signer func(tx *modules.Transaction, inputIndex int, owner crypto.Address) error

// feeEstimator computes the relay fee a transaction of the given
// serialized size should carry, given whether the caller has found it to
// qualify for free (no minimum fee) relay.
type feeEstimator interface {
	minFee(txSize int, allowFree bool) int64
}

type linearFeeEstimator struct {
	feePerKB int64
}

// minFee combines two independent quantities the caller must always clear:
// payFee, the size-proportional fee implied by feePerKB, which is charged
// regardless of priority; and a flat minimum, which allowFree waives for
// small, high-priority transactions. The transaction must pay whichever of
// the two is larger, so a nonzero feePerKB is never dropped to zero just
// because the transaction qualifies for free relay.
func (e linearFeeEstimator) minFee(txSize int, allowFree bool) int64 {
	payFee := e.feePerKB * int64(1+txSize/1000)

	flatMin := int64(minTxFee)
	if allowFree {
		flatMin = 0
	}

	if payFee > flatMin {
		return payFee
	}
	return flatMin
}

// createTransactionDeps bundles CreateTransaction's collaborators so the
// function signature stays readable: coin selection needs the chain and an
// RNG, change needs the keypool, signing needs the keystore, and size/fee
// checks need an estimator.
type createTransactionDeps struct {
	chain      modules.Chain
	rng        Rand
	candidates []coin
	pool       *keyPool
	sign       Signer
	estimator  feeEstimator
	network    crypto.NetworkID
	feePerKB   int64
	priorityOf func(tx modules.Transaction) float64
}

// createTransactionResult is CreateTransaction's output: the fully built,
// signed transaction, the fee actually paid, and the change key reserved
// (if any — the caller must Keep it on commit or Return it on abort).
type createTransactionResult struct {
	Tx              modules.Transaction
	FeePaid         int64
	ReservedIndex   int64
	HasReservation  bool
	SelectedOutputs []modules.OutPoint
}

// createTransaction builds and signs a transaction paying outs, looping to
// raise the fee each time the built transaction's priority/size imply a
// higher minimum, until the fee converges or maxFeeIterations is exceeded.
func createTransaction(deps createTransactionDeps, outs []modules.TxOut, changePos func(n int, rng Rand) int) (createTransactionResult, error) {
	var value int64
	for _, o := range outs {
		value += o.Value
	}

	var fee int64
	for iteration := 0; iteration < maxFeeIterations; iteration++ {
		selected, total, err := selectCoinsForTarget(deps.chain, deps.rng, deps.candidates, value+fee)
		if err != nil {
			return createTransactionResult{}, err
		}

		tx := modules.Transaction{Outputs: append([]modules.TxOut(nil), outs...)}
		var selectedOutpoints []modules.OutPoint
		for _, c := range selected {
			tx.Inputs = append(tx.Inputs, modules.TxIn{PrevOut: c.Out})
			selectedOutpoints = append(selectedOutpoints, c.Out)
		}

		change := total - value - fee
		if fee < minTxFee && change > 0 && change < CENT {
			bump := minTxFee - fee
			if bump > change {
				bump = change
			}
			fee += bump
			change -= bump
		}

		var reservedIndex int64
		hasReservation := false
		if change > 0 {
			index, entry, ok := deps.pool.reserve()
			if !ok {
				return createTransactionResult{}, ErrInsufficientFunds
			}
			reservedIndex = index
			hasReservation = true
			changeAddr := crypto.NewAddress(deps.network, entry.Pub)
			pos := changePos(len(tx.Outputs)+1, deps.rng)
			changeOut := modules.TxOut{Value: change, Address: changeAddr}
			tx.Outputs = append(tx.Outputs, modules.TxOut{})
			copy(tx.Outputs[pos+1:], tx.Outputs[pos:])
			tx.Outputs[pos] = changeOut
		}

		for i, c := range selected {
			if err := deps.sign(&tx, i, c.Address); err != nil {
				if hasReservation {
					deps.pool.returnKey(reservedIndex)
				}
				return createTransactionResult{}, ErrSigningFailed
			}
		}

		size := len(tx.Encode())
		if size >= maxRelayTxSize {
			if hasReservation {
				deps.pool.returnKey(reservedIndex)
			}
			return createTransactionResult{}, ErrTxTooLarge
		}

		priority := deps.priorityOf(tx)
		allowFree := priority > 0 && size < 10000
		requiredFee := deps.estimator.minFee(size, allowFree)
		if fee < requiredFee {
			fee = requiredFee
			if hasReservation {
				deps.pool.returnKey(reservedIndex)
			}
			continue
		}

		if fee > maxSaneFee {
			if hasReservation {
				deps.pool.returnKey(reservedIndex)
			}
			return createTransactionResult{}, ErrFeeTooLarge
		}

		return createTransactionResult{
			Tx:              tx,
			FeePaid:         fee,
			ReservedIndex:   reservedIndex,
			HasReservation:  hasReservation,
			SelectedOutputs: selectedOutpoints,
		}, nil
	}
	return createTransactionResult{}, ErrNotConverged
}

// uniformChangePosition picks a uniformly random slot among n positions for
// the change output.
func uniformChangePosition(n int, rng Rand) int {
	if n <= 1 {
		return 0
	}
	return rng.Intn(n)
}
