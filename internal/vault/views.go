package vault

import (
	fpmath "kuyayvault/internal/math"
)

// Read-side accessors. All are side-effect free and take the same writer
// lock as the operations so they never observe a half-applied mutation.

// Aggregates is a point-in-time copy of the vault's top-level counters.
type Aggregates struct {
	AssetID             string `json:"asset_id"`
	TreasuryID          string `json:"treasury_id"`
	OwnerID             string `json:"owner_id"`
	TotalAssets         int64  `json:"total_assets"`
	TotalLoaned         int64  `json:"total_loaned"`
	TotalInterestEarned int64  `json:"total_interest_earned"`
	InsurancePool       int64  `json:"insurance_pool"`
	TotalShares         int64  `json:"total_shares"`
	FeesAccrued         int64  `json:"fees_accrued"`
	OriginationFeeBps   int64  `json:"origination_fee_bps"`
}

// Snapshot is a deep copy of the full vault state plus the sequence number
// of the last committed event. It serializes to JSON for persistence.
type Snapshot struct {
	Sequence int64  `json:"sequence"`
	State    *State `json:"state"`
}

// RedeemableBalance is the asset value an account could withdraw now.
func (c *Controller) RedeemableBalance(account string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.redeemableBalance(account)
}

// ShareBalance is an account's raw claim-unit count.
func (c *Controller) ShareBalance(account string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Shares[account]
}

// OutstandingDebt is a borrower's remaining debt at the current time. Zero
// when the borrower has no active loan.
func (c *Controller) OutstandingDebt(borrower string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	loan, ok := c.state.Loans[borrower]
	if !ok {
		return 0
	}
	return loan.outstandingDebt(c.now().Unix())
}

// AvailableLiquidity is the deposited value not currently out on loan.
func (c *Controller) AvailableLiquidity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AvailableLiquidity()
}

// LoanRecord returns a copy of a borrower's loan record. The second result
// is false when no loan has ever existed for the borrower.
func (c *Controller) LoanRecord(borrower string) (Loan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	loan, ok := c.state.Loans[borrower]
	if !ok {
		return Loan{}, false
	}
	return *loan, true
}

// UtilizationRatio is loaned value per mille of deposited value. Zero when
// nothing is deposited.
func (c *Controller) UtilizationRatio() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.TotalAssets == 0 {
		return 0
	}
	return fpmath.MulDivFloor(c.state.TotalLoaned, 1000, c.state.TotalAssets)
}

// IsAuthorizedBorrower reports borrower-set membership.
func (c *Controller) IsAuthorizedBorrower(account string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AuthorizedBorrowers[account]
}

// IsAuthorizedIssuer reports issuer-set membership.
func (c *Controller) IsAuthorizedIssuer(account string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.AuthorizedIssuers[account]
}

// Aggregates returns the raw aggregate counters.
func (c *Controller) Aggregates() Aggregates {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Aggregates{
		AssetID:             c.state.AssetID,
		TreasuryID:          c.state.TreasuryID,
		OwnerID:             c.state.OwnerID,
		TotalAssets:         c.state.TotalAssets,
		TotalLoaned:         c.state.TotalLoaned,
		TotalInterestEarned: c.state.TotalInterestEarned,
		InsurancePool:       c.state.InsurancePool,
		TotalShares:         c.state.TotalShares,
		FeesAccrued:         c.state.FeesAccrued,
		OriginationFeeBps:   c.state.OriginationFeeBps,
	}
}

// Sequence is the sequence number of the last committed event.
func (c *Controller) Sequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sequence
}

// CreateSnapshot deep-copies the vault state for persistence.
func (c *Controller) CreateSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Sequence: c.sequence,
		State:    c.state.clone(),
	}
}

// RestoreSnapshot replaces the vault state from a persisted snapshot.
// Intended for startup, before the controller serves traffic.
func (c *Controller) RestoreSnapshot(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = snap.State.clone()
	c.sequence = snap.Sequence
}
