package event

// LoanIssued is emitted when a loan is opened and its net amount disbursed.
type LoanIssued struct {
	Borrower       string `json:"borrower"`
	Principal      int64  `json:"principal"`
	RateBps        int64  `json:"rate_bps"`
	DurationSecs   int64  `json:"duration_secs"`
	OriginationFee int64  `json:"origination_fee"`
	NetDisbursed   int64  `json:"net_disbursed"`
}

func (LoanIssued) EventType() EventType { return EventTypeLoanIssued }

// LoanRepaid is emitted per repayment, with the debt remaining after it.
type LoanRepaid struct {
	Borrower      string `json:"borrower"`
	Amount        int64  `json:"amount"`
	RemainingDebt int64  `json:"remaining_debt"`
}

func (LoanRepaid) EventType() EventType { return EventTypeLoanRepaid }

// LoanLiquidated is emitted when the owner liquidates an active loan.
// ResidualLoss is the portion of the shortfall the insurance buffer could
// not absorb, which reduces the value backing outstanding claims.
type LoanLiquidated struct {
	Borrower     string `json:"borrower"`
	Recovered    int64  `json:"recovered"`
	UnpaidDebt   int64  `json:"unpaid_debt"`
	Shortfall    int64  `json:"shortfall"`
	ResidualLoss int64  `json:"residual_loss"`
}

func (LoanLiquidated) EventType() EventType { return EventTypeLoanLiquidated }
