package vault

import "errors"

// Typed, terminal failure outcomes. Every validation failure is detected
// before any mutation; no operation is retried automatically.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotAuthorizedBorrower = errors.New("not an authorized borrower")
	ErrNotAuthorizedIssuer   = errors.New("not an authorized issuer")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrLoanAlreadyActive     = errors.New("loan already active")
	ErrNoActiveLoan          = errors.New("no active loan")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidIdentifier     = errors.New("invalid identifier")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrTransferFailed        = errors.New("asset transfer failed")
	ErrAlreadyInitialized    = errors.New("vault already initialized")
	ErrNotInitialized        = errors.New("vault not initialized")
)
