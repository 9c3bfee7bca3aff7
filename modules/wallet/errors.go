package wallet

import "errors"

// Sentinel errors returned across the wallet engine's public API. Internal
// helpers return these directly or wrap them with fmt.Errorf("...: %w", ...)
// at the call site; no error-wrapping framework beyond the standard library
// is used.
var (
	// ErrLocked is returned by any operation that needs private key
	// material while the wallet's CryptoKeyStore is locked.
	ErrLocked = errors.New("wallet is locked")

	// ErrUnknownKey is returned when an address has no corresponding key
	// in the KeyStore.
	ErrUnknownKey = errors.New("unknown key")

	// ErrInsufficientFunds is returned by CoinSelector/TxBuilder when no
	// combination of spendable coins can fund the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrFeeTooLarge is returned when the fee required to relay a
	// transaction would exceed a sanity bound.
	ErrFeeTooLarge = errors.New("fee too large")

	// ErrTxTooLarge is returned when a built transaction's serialized size
	// would exceed the relay size limit.
	ErrTxTooLarge = errors.New("transaction too large")

	// ErrSigningFailed is returned when an input cannot be signed, e.g.
	// because its key is missing or locked.
	ErrSigningFailed = errors.New("signing failed")

	// ErrDBCorrupt is returned by New when a record cannot be
	// decoded and no rewrite is possible.
	ErrDBCorrupt = errors.New("wallet database is corrupt")

	// ErrDBNeedsRewrite is returned by New when the database was
	// readable but written by an older, incompatible minversion.
	ErrDBNeedsRewrite = errors.New("wallet database needs rewrite")

	// ErrDecode is returned by the wallet's record decoders on malformed
	// input.
	ErrDecode = errors.New("decode error")

	// ErrBadPassphrase is returned by Unlock when no master key decrypts
	// with the given passphrase.
	ErrBadPassphrase = errors.New("bad passphrase")

	// ErrRejected is returned when the chain facade refuses a broadcast
	// transaction.
	ErrRejected = errors.New("transaction rejected")

	// ErrNotConverged is returned by CreateTransaction when the fee
	// feedback loop exceeds maxFeeIterations without settling.
	ErrNotConverged = errors.New("fee did not converge")

	// ErrAlreadyEncrypted is returned by EncryptKeys on a CryptoKeyStore
	// that is already encrypted (holds ciphertext entries or a master key).
	ErrAlreadyEncrypted = errors.New("keystore is already encrypted")

	// ErrNotEncrypted is returned by Unlock/Lock on a plain (never
	// encrypted) CryptoKeyStore.
	ErrNotEncrypted = errors.New("keystore is not encrypted")

	// ErrWalletShutdown is returned by any error-returning public method called after
	// Close has begun draining the wallet's ThreadGroup.
	ErrWalletShutdown = errors.New("wallet is shutting down")
)
