package vault

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kuyayvault/internal/asset"
	"kuyayvault/internal/event"
	fpmath "kuyayvault/internal/math"
	"kuyayvault/internal/observability"
)

// EventSink receives every committed event envelope. Implementations must
// not block: the controller calls them while holding the vault lock.
type EventSink interface {
	Publish(env event.Envelope)
}

// Controller orchestrates all public vault operations. It is the only
// component that talks to the external asset ledger, and it holds the single
// writer lock over the aggregate: every operation validates, performs at
// most one external transfer, and commits its mutations only after that
// transfer succeeds. On a failed transfer nothing has been applied yet, so
// rollback is simply not committing.
type Controller struct {
	mu       sync.Mutex
	state    *State
	sequence int64

	assets       asset.Ledger
	vaultAccount string

	now     func() time.Time
	log     zerolog.Logger
	metrics *observability.Metrics
	sinks   []EventSink
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source. Tests use a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSink registers an event sink. May be given multiple times.
func WithSink(s EventSink) Option {
	return func(c *Controller) { c.sinks = append(c.sinks, s) }
}

// WithState seeds the controller from a restored snapshot.
func WithState(s *State, sequence int64) Option {
	return func(c *Controller) {
		c.state = s
		c.sequence = sequence
	}
}

// NewController creates a controller over an empty vault. vaultAccount is
// the vault's own account id on the external asset ledger.
func NewController(assets asset.Ledger, vaultAccount string, log zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		state:        NewState(),
		assets:       assets,
		vaultAccount: vaultAccount,
		now:          time.Now,
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize sets the asset, treasury and owner identities. The caller
// becomes the owner. Callable exactly once.
func (c *Controller) Initialize(ctx context.Context, caller, assetID, treasuryID string) error {
	defer c.observe("initialize", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.OwnerID != "" {
		return c.reject("initialize", ErrAlreadyInitialized)
	}
	if caller == "" || assetID == "" || treasuryID == "" {
		return c.reject("initialize", ErrInvalidIdentifier)
	}

	c.state.AssetID = assetID
	c.state.TreasuryID = treasuryID
	c.state.OwnerID = caller
	c.state.OriginationFeeBps = defaultOriginationFeeBps

	c.commit("initialize", event.VaultInitialized{
		AssetID:    assetID,
		TreasuryID: treasuryID,
		OwnerID:    caller,
	})
	return nil
}

const defaultOriginationFeeBps = 300

// Deposit pulls amount from the caller's ledger account and mints claim
// units at the current price. Returns the units minted.
func (c *Controller) Deposit(ctx context.Context, caller string, amount int64) (int64, error) {
	defer c.observe("deposit", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return 0, c.reject("deposit", err)
	}
	if caller == "" {
		return 0, c.reject("deposit", ErrInvalidIdentifier)
	}

	units, err := c.state.sharesForDeposit(amount)
	if err != nil {
		return 0, c.reject("deposit", err)
	}

	if err := c.pull(ctx, caller, amount); err != nil {
		return 0, c.reject("deposit", err)
	}

	c.state.addShares(caller, units)
	c.state.TotalShares += units
	c.state.TotalAssets += amount

	c.commit("deposit", event.Deposited{
		Account:      caller,
		Amount:       amount,
		SharesMinted: units,
	})
	return units, nil
}

// Withdraw burns claim units and moves amount to the caller. Fails when the
// caller's redeemable balance or the vault's unloaned liquidity cannot cover
// the request.
func (c *Controller) Withdraw(ctx context.Context, caller string, amount int64) (int64, error) {
	defer c.observe("withdraw", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return 0, c.reject("withdraw", err)
	}
	if caller == "" {
		return 0, c.reject("withdraw", ErrInvalidIdentifier)
	}

	units, err := c.state.sharesForWithdrawal(caller, amount)
	if err != nil {
		return 0, c.reject("withdraw", err)
	}
	if c.state.AvailableLiquidity() < amount {
		return 0, c.reject("withdraw", ErrInsufficientLiquidity)
	}

	if err := c.push(ctx, caller, amount); err != nil {
		return 0, c.reject("withdraw", err)
	}

	c.state.removeShares(caller, units)
	c.state.TotalShares -= units
	c.state.TotalAssets -= amount

	c.commit("withdraw", event.Withdrawn{
		Account:      caller,
		Amount:       amount,
		SharesBurned: units,
	})
	return units, nil
}

// BatchDeposit credits claim units to many accounts in one call with no
// asset movement. Entries are priced sequentially against working totals and
// committed all-or-nothing: any pricing failure aborts the whole batch.
// Zero amounts mint zero units and are skipped.
func (c *Controller) BatchDeposit(ctx context.Context, accounts []string, amounts []int64) ([]int64, error) {
	defer c.observe("batch_deposit", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return nil, c.reject("batch_deposit", err)
	}
	if len(accounts) != len(amounts) {
		return nil, c.reject("batch_deposit", ErrInvalidParameter)
	}

	// Stage against working totals so nothing is applied until every entry
	// prices successfully.
	workingShares := c.state.TotalShares
	workingAssets := c.state.TotalAssets

	minted := make([]int64, len(accounts))
	for i, amount := range amounts {
		if accounts[i] == "" {
			return nil, c.reject("batch_deposit", ErrInvalidIdentifier)
		}
		if amount == 0 {
			continue
		}
		if amount < 0 {
			return nil, c.reject("batch_deposit", ErrInvalidAmount)
		}

		units, err := priceDeposit(amount, workingShares, workingAssets+c.state.TotalInterestEarned)
		if err != nil {
			return nil, c.reject("batch_deposit", err)
		}

		minted[i] = units
		workingShares += units
		workingAssets += amount
	}

	for i, units := range minted {
		if amounts[i] == 0 {
			continue
		}
		c.state.addShares(accounts[i], units)
		c.state.TotalShares += units
		c.state.TotalAssets += amounts[i]

		c.commit("batch_deposit", event.Deposited{
			Account:      accounts[i],
			Amount:       amounts[i],
			SharesMinted: units,
		})
	}
	return minted, nil
}

// RequestLoan opens a loan for the caller and disburses the principal net
// of the origination fee. The fee stays in the vault's ledger account and
// accrues toward the treasury until swept by CollectFees.
func (c *Controller) RequestLoan(ctx context.Context, caller string, principal, durationDays, rateBps int64) (int64, error) {
	defer c.observe("request_loan", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return 0, c.reject("request_loan", err)
	}
	if !c.state.AuthorizedBorrowers[caller] {
		return 0, c.reject("request_loan", ErrNotAuthorizedBorrower)
	}
	if principal <= 0 {
		return 0, c.reject("request_loan", ErrInvalidAmount)
	}
	if durationDays <= 0 || rateBps < 0 {
		return 0, c.reject("request_loan", ErrInvalidParameter)
	}
	if loan, ok := c.state.Loans[caller]; ok && loan.Active {
		return 0, c.reject("request_loan", ErrLoanAlreadyActive)
	}
	if c.state.AvailableLiquidity() < principal {
		return 0, c.reject("request_loan", ErrInsufficientLiquidity)
	}

	fee := fpmath.MulDivFloor(principal, c.state.OriginationFeeBps, bpsDenominator)
	net := principal - fee

	if err := c.push(ctx, caller, net); err != nil {
		return 0, c.reject("request_loan", err)
	}

	now := c.now().Unix()
	loan := c.state.openLoan(caller, principal, durationDays, rateBps, now)
	c.state.FeesAccrued += fee

	c.commit("request_loan", event.LoanIssued{
		Borrower:       caller,
		Principal:      principal,
		RateBps:        rateBps,
		DurationSecs:   loan.Duration,
		OriginationFee: fee,
		NetDisbursed:   net,
	})
	return net, nil
}

// RepayLoan pulls amount from the caller and applies it to their active
// loan. Returns the debt remaining after the payment; the loan closes when
// it reaches zero. Overpayment is retained as extra interest collected.
func (c *Controller) RepayLoan(ctx context.Context, caller string, amount int64) (int64, error) {
	defer c.observe("repay_loan", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return 0, c.reject("repay_loan", err)
	}
	if !c.state.AuthorizedBorrowers[caller] {
		return 0, c.reject("repay_loan", ErrNotAuthorizedBorrower)
	}
	if loan, ok := c.state.Loans[caller]; !ok || !loan.Active {
		return 0, c.reject("repay_loan", ErrNoActiveLoan)
	}
	if amount <= 0 {
		return 0, c.reject("repay_loan", ErrInvalidAmount)
	}

	if err := c.pull(ctx, caller, amount); err != nil {
		return 0, c.reject("repay_loan", err)
	}

	remaining := c.state.applyRepayment(caller, amount, c.now().Unix())

	c.commit("repay_loan", event.LoanRepaid{
		Borrower:      caller,
		Amount:        amount,
		RemainingDebt: remaining,
	})
	return remaining, nil
}

// Liquidate closes a borrower's active loan, recording recovered as the
// liquidation proceeds. The shortfall is absorbed by the insurance buffer
// first; any residual is socialized to claim holders as a logged loss.
// Owner-only. Moves no assets: recovery settlement is external.
func (c *Controller) Liquidate(ctx context.Context, caller, borrower string, recovered int64) error {
	defer c.observe("liquidate", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("liquidate", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("liquidate", ErrUnauthorized)
	}
	if recovered < 0 {
		return c.reject("liquidate", ErrInvalidAmount)
	}
	if loan, ok := c.state.Loans[borrower]; !ok || !loan.Active {
		return c.reject("liquidate", ErrNoActiveLoan)
	}

	unpaid, shortfall := c.state.applyLiquidation(borrower, recovered, c.now().Unix())
	residual, unabsorbed := c.state.absorbShortfall(shortfall)

	if residual > 0 || unabsorbed > 0 {
		c.log.Warn().
			Str("borrower", borrower).
			Int64("shortfall", shortfall).
			Int64("residual_loss", residual).
			Int64("unabsorbed", unabsorbed).
			Msg("liquidation loss socialized to claim holders")
	}
	if c.metrics != nil {
		c.metrics.LiquidationShortfall.Add(float64(shortfall))
		c.metrics.LiquidationResidualLoss.Add(float64(residual))
	}

	c.commit("liquidate", event.LoanLiquidated{
		Borrower:     borrower,
		Recovered:    recovered,
		UnpaidDebt:   unpaid,
		Shortfall:    shortfall,
		ResidualLoss: residual,
	})
	return nil
}

// FundInsurancePool pulls amount from the caller into the loss buffer. Open
// to any caller; funding raises claim price without minting units.
func (c *Controller) FundInsurancePool(ctx context.Context, caller string, amount int64) error {
	defer c.observe("fund_insurance", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("fund_insurance", err)
	}
	if caller == "" {
		return c.reject("fund_insurance", ErrInvalidIdentifier)
	}
	if amount <= 0 {
		return c.reject("fund_insurance", ErrInvalidAmount)
	}

	if err := c.pull(ctx, caller, amount); err != nil {
		return c.reject("fund_insurance", err)
	}

	c.state.fundInsurance(amount)

	c.commit("fund_insurance", event.InsurancePoolFunded{
		From:   caller,
		Amount: amount,
	})
	return nil
}

// CollectFees sweeps accrued origination fees to the treasury. Owner-only.
// A no-op returning zero when nothing has accrued.
func (c *Controller) CollectFees(ctx context.Context, caller string) (int64, error) {
	defer c.observe("collect_fees", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return 0, c.reject("collect_fees", err)
	}
	if caller != c.state.OwnerID {
		return 0, c.reject("collect_fees", ErrUnauthorized)
	}

	amount := c.state.FeesAccrued
	if amount == 0 {
		return 0, nil
	}

	if err := c.push(ctx, c.state.TreasuryID, amount); err != nil {
		return 0, c.reject("collect_fees", err)
	}

	c.state.FeesAccrued = 0

	c.commit("collect_fees", event.FeesCollected{
		Amount:   amount,
		Treasury: c.state.TreasuryID,
	})
	return amount, nil
}

// SetOriginationFee updates the fee taken from loan disbursements.
// Owner-only; capped at 1000 bps.
func (c *Controller) SetOriginationFee(ctx context.Context, caller string, bps int64) error {
	defer c.observe("set_origination_fee", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("set_origination_fee", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("set_origination_fee", ErrUnauthorized)
	}
	if bps < 0 || bps > 1000 {
		return c.reject("set_origination_fee", ErrInvalidParameter)
	}

	c.state.OriginationFeeBps = bps

	c.commit("set_origination_fee", event.OriginationFeeUpdated{FeeBps: bps})
	return nil
}

// SetTreasury changes the fee-sweep destination. Owner-only.
func (c *Controller) SetTreasury(ctx context.Context, caller, treasuryID string) error {
	defer c.observe("set_treasury", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("set_treasury", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("set_treasury", ErrUnauthorized)
	}
	if treasuryID == "" {
		return c.reject("set_treasury", ErrInvalidIdentifier)
	}

	c.state.TreasuryID = treasuryID

	c.commit("set_treasury", event.TreasuryUpdated{Treasury: treasuryID})
	return nil
}

// TransferOwnership hands control to a new owner. Owner-only.
func (c *Controller) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	defer c.observe("transfer_ownership", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("transfer_ownership", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("transfer_ownership", ErrUnauthorized)
	}
	if newOwner == "" {
		return c.reject("transfer_ownership", ErrInvalidIdentifier)
	}

	previous := c.state.OwnerID
	c.state.OwnerID = newOwner

	c.commit("transfer_ownership", event.OwnershipTransferred{
		PreviousOwner: previous,
		NewOwner:      newOwner,
	})
	return nil
}

// AuthorizeBorrower admits an account to the borrower set. The owner or any
// authorized issuer may grant this.
func (c *Controller) AuthorizeBorrower(ctx context.Context, caller, borrower string) error {
	defer c.observe("authorize_borrower", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("authorize_borrower", err)
	}
	if caller != c.state.OwnerID && !c.state.AuthorizedIssuers[caller] {
		return c.reject("authorize_borrower", ErrNotAuthorizedIssuer)
	}
	if borrower == "" {
		return c.reject("authorize_borrower", ErrInvalidIdentifier)
	}

	c.state.AuthorizedBorrowers[borrower] = true

	c.commit("authorize_borrower", event.BorrowerAuthorized{
		Borrower: borrower,
		By:       caller,
	})
	return nil
}

// RevokeBorrower removes an account from the borrower set. Owner-only.
func (c *Controller) RevokeBorrower(ctx context.Context, caller, borrower string) error {
	defer c.observe("revoke_borrower", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("revoke_borrower", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("revoke_borrower", ErrUnauthorized)
	}

	delete(c.state.AuthorizedBorrowers, borrower)

	c.commit("revoke_borrower", event.BorrowerRevoked{Borrower: borrower})
	return nil
}

// AuthorizeIssuer admits an account to the issuer set. Owner-only.
func (c *Controller) AuthorizeIssuer(ctx context.Context, caller, issuer string) error {
	defer c.observe("authorize_issuer", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("authorize_issuer", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("authorize_issuer", ErrUnauthorized)
	}
	if issuer == "" {
		return c.reject("authorize_issuer", ErrInvalidIdentifier)
	}

	c.state.AuthorizedIssuers[issuer] = true

	c.commit("authorize_issuer", event.IssuerAuthorized{Issuer: issuer})
	return nil
}

// RevokeIssuer removes an account from the issuer set. Owner-only.
func (c *Controller) RevokeIssuer(ctx context.Context, caller, issuer string) error {
	defer c.observe("revoke_issuer", time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireInitialized(); err != nil {
		return c.reject("revoke_issuer", err)
	}
	if caller != c.state.OwnerID {
		return c.reject("revoke_issuer", ErrUnauthorized)
	}

	delete(c.state.AuthorizedIssuers, issuer)

	c.commit("revoke_issuer", event.IssuerRevoked{Issuer: issuer})
	return nil
}

// --- internals ---

func (c *Controller) requireInitialized() error {
	if c.state.OwnerID == "" {
		return ErrNotInitialized
	}
	return nil
}

// pull moves amount from an external account into the vault's account.
func (c *Controller) pull(ctx context.Context, from string, amount int64) error {
	ok, err := c.assets.TransferFrom(ctx, from, c.vaultAccount, amount)
	if err != nil || !ok {
		return ErrTransferFailed
	}
	return nil
}

// push moves amount from the vault's account to an external account.
func (c *Controller) push(ctx context.Context, to string, amount int64) error {
	ok, err := c.assets.Transfer(ctx, to, amount)
	if err != nil || !ok {
		return ErrTransferFailed
	}
	return nil
}

// commit assigns the next sequence number, emits the event envelope to all
// sinks, and refreshes metrics. Called with the lock held, after all state
// mutation for the operation has been applied.
func (c *Controller) commit(op string, payload event.Payload) {
	c.sequence++
	env := event.NewEnvelope(c.sequence, c.now(), payload)
	for _, sink := range c.sinks {
		sink.Publish(env)
	}

	c.log.Info().
		Str("operation", op).
		Int64("sequence", env.Sequence).
		Str("event", env.TypeName).
		Msg("operation committed")

	if c.metrics != nil {
		c.metrics.OpsApplied.WithLabelValues(op).Inc()
		c.metrics.Sequence.Set(float64(c.sequence))
		active := 0
		for _, loan := range c.state.Loans {
			if loan.Active {
				active++
			}
		}
		c.metrics.SetAggregates(
			c.state.TotalAssets,
			c.state.TotalLoaned,
			c.state.TotalShares,
			c.state.TotalInterestEarned,
			c.state.InsurancePool,
			c.state.FeesAccrued,
			active,
		)
	}
}


// observe records the wall-clock duration of a public operation.
func (c *Controller) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// reject records a failed operation and passes the error through.
func (c *Controller) reject(op string, err error) error {
	c.log.Debug().Str("operation", op).Err(err).Msg("operation rejected")
	if c.metrics != nil {
		c.metrics.OpsRejected.WithLabelValues(op, err.Error()).Inc()
	}
	return err
}

// priceDeposit is the share-pricing rule used by staged batch entries.
func priceDeposit(amount, totalShares, vaultValue int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if totalShares == 0 {
		return amount, nil
	}
	if vaultValue <= 0 {
		return 0, ErrInvalidAmount
	}
	return fpmath.MulDivFloor(amount, totalShares, vaultValue), nil
}
