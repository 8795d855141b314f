package event

// VaultInitialized marks the one-time vault setup.
type VaultInitialized struct {
	AssetID    string `json:"asset_id"`
	TreasuryID string `json:"treasury_id"`
	OwnerID    string `json:"owner_id"`
}

func (VaultInitialized) EventType() EventType { return EventTypeVaultInitialized }

// Deposited is emitted per credited deposit, including batch entries.
type Deposited struct {
	Account      string `json:"account"`
	Amount       int64  `json:"amount"`
	SharesMinted int64  `json:"shares_minted"`
}

func (Deposited) EventType() EventType { return EventTypeDeposited }

// Withdrawn is emitted when claim units are redeemed for assets.
type Withdrawn struct {
	Account      string `json:"account"`
	Amount       int64  `json:"amount"`
	SharesBurned int64  `json:"shares_burned"`
}

func (Withdrawn) EventType() EventType { return EventTypeWithdrawn }

// InsurancePoolFunded records a contribution to the loss buffer.
type InsurancePoolFunded struct {
	From   string `json:"from"`
	Amount int64  `json:"amount"`
}

func (InsurancePoolFunded) EventType() EventType { return EventTypeInsurancePoolFunded }
