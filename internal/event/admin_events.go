package event

type BorrowerAuthorized struct {
	Borrower string `json:"borrower"`
	By       string `json:"by"`
}

func (BorrowerAuthorized) EventType() EventType { return EventTypeBorrowerAuthorized }

type BorrowerRevoked struct {
	Borrower string `json:"borrower"`
}

func (BorrowerRevoked) EventType() EventType { return EventTypeBorrowerRevoked }

type IssuerAuthorized struct {
	Issuer string `json:"issuer"`
}

func (IssuerAuthorized) EventType() EventType { return EventTypeIssuerAuthorized }

type IssuerRevoked struct {
	Issuer string `json:"issuer"`
}

func (IssuerRevoked) EventType() EventType { return EventTypeIssuerRevoked }

type OriginationFeeUpdated struct {
	FeeBps int64 `json:"fee_bps"`
}

func (OriginationFeeUpdated) EventType() EventType { return EventTypeOriginationFeeUpdated }

type TreasuryUpdated struct {
	Treasury string `json:"treasury"`
}

func (TreasuryUpdated) EventType() EventType { return EventTypeTreasuryUpdated }

type OwnershipTransferred struct {
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
}

func (OwnershipTransferred) EventType() EventType { return EventTypeOwnershipTransferred }

type FeesCollected struct {
	Amount   int64  `json:"amount"`
	Treasury string `json:"treasury"`
}

func (FeesCollected) EventType() EventType { return EventTypeFeesCollected }
