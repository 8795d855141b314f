package vault

// Insurance backstop: a single shared buffer drawn down completely before
// any loss socializes to claim holders.

// fundInsurance credits the buffer. Funding is itself a deposit of value:
// it raises TotalAssets (and therefore claim price) without minting units.
func (s *State) fundInsurance(amount int64) {
	s.InsurancePool += amount
	s.TotalAssets += amount
}

// absorbShortfall covers a liquidation shortfall from the buffer first; any
// residual is subtracted from TotalAssets, reducing every claim-holder's
// redeemable value. The write-down stops at available liquidity: TotalAssets
// never drops below TotalLoaned, so pricing denominators stay non-negative.
// Shortfall beyond that (phantom value such as never-collected interest that
// TotalAssets never contained) is returned as unabsorbed for the caller to
// record. Returns the residual socialized loss and the unabsorbed remainder.
func (s *State) absorbShortfall(shortfall int64) (residual, unabsorbed int64) {
	if shortfall <= 0 {
		return 0, 0
	}

	if s.InsurancePool >= shortfall {
		s.InsurancePool -= shortfall
		return 0, 0
	}

	residual = shortfall - s.InsurancePool
	s.InsurancePool = 0

	if limit := s.TotalAssets - s.TotalLoaned; residual > limit {
		unabsorbed = residual - limit
		residual = limit
	}
	s.TotalAssets -= residual
	return residual, unabsorbed
}
