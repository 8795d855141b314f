package asset

import (
	"context"
	"errors"
)

// ErrUnknownAccount occurs when an operation references an account the
// ledger has never seen.
var ErrUnknownAccount = errors.New("unknown account")

// Ledger is the external asset-movement collaborator. The vault does not own
// the underlying balances; it only requests movements and reads its own
// balance. A false result and a call error are treated identically by the
// vault (both surface as a transfer failure).
type Ledger interface {
	// Transfer moves amount from the vault's own account to the given account.
	Transfer(ctx context.Context, to string, amount int64) (bool, error)

	// TransferFrom pulls amount from the given account into the vault's account.
	TransferFrom(ctx context.Context, from, to string, amount int64) (bool, error)

	// BalanceOf reports the ledger balance of an account.
	BalanceOf(ctx context.Context, account string) (int64, error)
}
