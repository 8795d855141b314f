package vault

import (
	fpmath "kuyayvault/internal/math"
)

// Share pricing. All divisions floor toward zero; the dust stays in the
// vault and slightly raises the price for remaining holders.

// sharesForDeposit computes the claim units minted for a deposit of amount.
// The first deposit bootstraps price at parity (1 unit per asset unit).
// Returns ErrInvalidAmount when units are outstanding but vault value is
// zero: the price would be undefined.
func (s *State) sharesForDeposit(amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	if s.TotalShares == 0 {
		return amount, nil
	}

	value := s.VaultValue()
	if value <= 0 {
		return 0, ErrInvalidAmount
	}

	return fpmath.MulDivFloor(amount, s.TotalShares, value), nil
}

// sharesForWithdrawal computes the units to burn to withdraw amount asset
// units for account. Fails when the account's redeemable balance does not
// cover the request, or when pricing is undefined.
func (s *State) sharesForWithdrawal(account string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	value := s.VaultValue()
	if s.TotalShares == 0 || value <= 0 {
		return 0, ErrInvalidAmount
	}

	redeemable := fpmath.MulDivFloor(s.Shares[account], value, s.TotalShares)
	if redeemable < amount {
		return 0, ErrInsufficientBalance
	}

	return fpmath.MulDivFloor(amount, s.TotalShares, value), nil
}

// redeemableBalance is the asset value an account could withdraw at the
// current claim price. Zero when no units are outstanding.
func (s *State) redeemableBalance(account string) int64 {
	if s.TotalShares == 0 {
		return 0
	}
	value := s.VaultValue()
	if value <= 0 {
		return 0
	}
	return fpmath.MulDivFloor(s.Shares[account], value, s.TotalShares)
}
