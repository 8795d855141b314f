package vault

// State is the single vault aggregate. Every public operation mutates it
// under the controller's writer lock; nothing outside the controller holds a
// reference to it.
type State struct {
	// Identity
	AssetID    string `json:"asset_id"`
	TreasuryID string `json:"treasury_id"`
	OwnerID    string `json:"owner_id"`

	// Financial counters (asset units)
	TotalAssets         int64 `json:"total_assets"`          // deposited value, including insurance funding
	TotalLoaned         int64 `json:"total_loaned"`          // principal currently out
	TotalInterestEarned int64 `json:"total_interest_earned"` // cumulative interest collected
	InsurancePool       int64 `json:"insurance_pool"`        // loss buffer balance
	TotalShares         int64 `json:"total_shares"`          // claim units outstanding
	FeesAccrued         int64 `json:"fees_accrued"`          // origination fees retained, payable to treasury

	// Configuration
	OriginationFeeBps int64 `json:"origination_fee_bps"`

	// Per-account claim balances; removed when zeroed
	Shares map[string]int64 `json:"shares"`

	// Capability sets
	AuthorizedBorrowers map[string]bool `json:"authorized_borrowers"`
	AuthorizedIssuers   map[string]bool `json:"authorized_issuers"`

	// Loan records, one per borrower. Never deleted: deactivated loans keep
	// their terminal values queryable.
	Loans map[string]*Loan `json:"loans"`
}

// NewState creates an empty, uninitialized vault aggregate.
func NewState() *State {
	return &State{
		Shares:              make(map[string]int64),
		AuthorizedBorrowers: make(map[string]bool),
		AuthorizedIssuers:   make(map[string]bool),
		Loans:               make(map[string]*Loan),
	}
}

// VaultValue is the basis for claim pricing: deposited assets plus all
// interest collected to date.
func (s *State) VaultValue() int64 {
	return s.TotalAssets + s.TotalInterestEarned
}

// AvailableLiquidity is the deposited value not currently out on loan.
func (s *State) AvailableLiquidity() int64 {
	if s.TotalAssets > s.TotalLoaned {
		return s.TotalAssets - s.TotalLoaned
	}
	return 0
}

// addShares credits claim units to an account.
func (s *State) addShares(account string, units int64) {
	s.Shares[account] += units
}

// removeShares debits claim units, deleting the entry when it reaches zero.
func (s *State) removeShares(account string, units int64) {
	remaining := s.Shares[account] - units
	if remaining <= 0 {
		delete(s.Shares, account)
		return
	}
	s.Shares[account] = remaining
}

// SumShares totals all claim balances. Used by the invariant check
// sum(claim balances) == TotalShares.
func (s *State) SumShares() int64 {
	var sum int64
	for _, units := range s.Shares {
		sum += units
	}
	return sum
}

// clone produces a deep copy for snapshotting.
func (s *State) clone() *State {
	cp := &State{
		AssetID:             s.AssetID,
		TreasuryID:          s.TreasuryID,
		OwnerID:             s.OwnerID,
		TotalAssets:         s.TotalAssets,
		TotalLoaned:         s.TotalLoaned,
		TotalInterestEarned: s.TotalInterestEarned,
		InsurancePool:       s.InsurancePool,
		TotalShares:         s.TotalShares,
		FeesAccrued:         s.FeesAccrued,
		OriginationFeeBps:   s.OriginationFeeBps,
		Shares:              make(map[string]int64, len(s.Shares)),
		AuthorizedBorrowers: make(map[string]bool, len(s.AuthorizedBorrowers)),
		AuthorizedIssuers:   make(map[string]bool, len(s.AuthorizedIssuers)),
		Loans:               make(map[string]*Loan, len(s.Loans)),
	}
	for k, v := range s.Shares {
		cp.Shares[k] = v
	}
	for k, v := range s.AuthorizedBorrowers {
		cp.AuthorizedBorrowers[k] = v
	}
	for k, v := range s.AuthorizedIssuers {
		cp.AuthorizedIssuers[k] = v
	}
	for k, v := range s.Loans {
		loan := *v
		cp.Loans[k] = &loan
	}
	return cp
}
