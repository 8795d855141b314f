package vault

import (
	fpmath "kuyayvault/internal/math"
)

const (
	secondsPerDay  = 86_400
	secondsPerYear = 31_536_000 // 365-day year
	bpsDenominator = 10_000
)

// Loan is the per-borrower loan record. A borrower has at most one; the
// record is deactivated on full repayment or liquidation, never deleted.
type Loan struct {
	Principal int64 `json:"principal"`
	RateBps   int64 `json:"rate_bps"`
	StartTime int64 `json:"start_time"` // unix seconds
	Duration  int64 `json:"duration"`   // seconds
	Paid      int64 `json:"paid"`
	Active    bool  `json:"active"`
}

// accruedInterest computes simple interest at now (unix seconds), linear in
// elapsed time, flat after maturity:
//
//	floor(principal * rate_bps * elapsed / (10000 * seconds_per_year))
//
// elapsed is clamped to [0, duration].
func (l *Loan) accruedInterest(now int64) int64 {
	elapsed := now - l.StartTime
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > l.Duration {
		elapsed = l.Duration
	}

	return fpmath.MulDiv3Floor(l.Principal, l.RateBps, elapsed, bpsDenominator*secondsPerYear)
}

// totalDebt is principal plus interest accrued by now.
func (l *Loan) totalDebt(now int64) int64 {
	return l.Principal + l.accruedInterest(now)
}

// outstandingDebt is the amount remaining after payments, never negative.
// Zero for inactive loans: a pure function of stored state and now.
func (l *Loan) outstandingDebt(now int64) int64 {
	if !l.Active {
		return 0
	}
	debt := l.totalDebt(now)
	if debt > l.Paid {
		return debt - l.Paid
	}
	return 0
}

// openLoan records a new active loan for borrower. Validation (authorization,
// liquidity, no active loan) happens in the controller before this runs.
func (s *State) openLoan(borrower string, principal, durationDays, rateBps, now int64) *Loan {
	loan := &Loan{
		Principal: principal,
		RateBps:   rateBps,
		StartTime: now,
		Duration:  durationDays * secondsPerDay,
		Paid:      0,
		Active:    true,
	}
	s.Loans[borrower] = loan
	s.TotalLoaned += principal
	return loan
}

// applyRepayment credits amount to the loan and settles its bookkeeping.
// Returns the remaining debt after the payment.
//
// Interest collection is incremental: only the part of this payment beyond
// max(principal, paid-so-far) counts, so repeated partial repayments never
// double-count. Payments beyond total debt are retained as extra interest
// collected (no refund).
func (s *State) applyRepayment(borrower string, amount, now int64) int64 {
	loan := s.Loans[borrower]

	paidBefore := loan.Paid
	loan.Paid += amount

	interestFloor := loan.Principal
	if paidBefore > interestFloor {
		interestFloor = paidBefore
	}
	if loan.Paid > interestFloor {
		s.TotalInterestEarned += loan.Paid - interestFloor
	}

	var remaining int64
	if debt := loan.totalDebt(now); debt > loan.Paid {
		remaining = debt - loan.Paid
	}

	if remaining == 0 {
		// Capital-recovered bookkeeping is decoupled from debt-cleared
		// bookkeeping: the full original principal comes off TotalLoaned.
		loan.Active = false
		s.TotalLoaned -= loan.Principal
	}

	return remaining
}

// applyLiquidation closes the loan and returns the shortfall left after
// recovery (unpaid debt minus recovered, floored at zero). TotalLoaned drops
// by the original principal regardless of the recovery outcome.
func (s *State) applyLiquidation(borrower string, recovered, now int64) (unpaid, shortfall int64) {
	loan := s.Loans[borrower]

	unpaid = loan.outstandingDebt(now)

	loan.Active = false
	s.TotalLoaned -= loan.Principal

	if recovered < unpaid {
		shortfall = unpaid - recovered
	}
	return unpaid, shortfall
}
