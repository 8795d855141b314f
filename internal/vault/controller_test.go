package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kuyayvault/internal/asset"
	"kuyayvault/internal/event"
)

const (
	testVaultAccount = "vault-0"
	testOwner        = "owner"
	testTreasury     = "treasury"
	testAsset        = "uscl"
)

type fixedClock struct {
	t time.Time
}

func (f *fixedClock) Now() time.Time {
	return f.t
}

func (f *fixedClock) Advance(d time.Duration) {
	f.t = f.t.Add(d)
}

type captureSink struct {
	events []event.Envelope
}

func (s *captureSink) Publish(env event.Envelope) {
	s.events = append(s.events, env)
}

// refusingLedger answers every movement request with a failure.
type refusingLedger struct{}

func (refusingLedger) Transfer(context.Context, string, int64) (bool, error) {
	return false, nil
}

func (refusingLedger) TransferFrom(context.Context, string, string, int64) (bool, error) {
	return false, nil
}

func (refusingLedger) BalanceOf(context.Context, string) (int64, error) {
	return 0, nil
}

func newTestController(t *testing.T) (*Controller, *asset.InMemoryLedger, *fixedClock) {
	t.Helper()

	clock := &fixedClock{t: time.Unix(loanStart, 0)}
	ledger := asset.NewInMemory(testVaultAccount)
	c := NewController(ledger, testVaultAccount, zerolog.Nop(), WithClock(clock.Now))

	if err := c.Initialize(context.Background(), testOwner, testAsset, testTreasury); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, ledger, clock
}

func checkInvariants(t *testing.T, c *Controller) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	if sum := c.state.SumShares(); sum != c.state.TotalShares {
		t.Errorf("sum(claim balances) = %d, TotalShares = %d", sum, c.state.TotalShares)
	}
	if c.state.TotalAssets < c.state.TotalLoaned {
		t.Errorf("TotalAssets %d < TotalLoaned %d", c.state.TotalAssets, c.state.TotalLoaned)
	}
	if c.state.InsurancePool < 0 {
		t.Errorf("insurance buffer negative: %d", c.state.InsurancePool)
	}
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	c := NewController(asset.NewInMemory(testVaultAccount), testVaultAccount, zerolog.Nop())

	if _, err := c.Deposit(ctx, "a", 100); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("deposit before init: %v, want ErrNotInitialized", err)
	}

	if err := c.Initialize(ctx, testOwner, "", testTreasury); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("empty asset id: %v, want ErrInvalidIdentifier", err)
	}

	if err := c.Initialize(ctx, testOwner, testAsset, testTreasury); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	agg := c.Aggregates()
	if agg.OwnerID != testOwner || agg.AssetID != testAsset || agg.TreasuryID != testTreasury {
		t.Errorf("identity = %+v", agg)
	}
	if agg.OriginationFeeBps != 300 {
		t.Errorf("default fee = %d, want 300", agg.OriginationFeeBps)
	}

	if err := c.Initialize(ctx, "other", testAsset, testTreasury); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second initialize: %v, want ErrAlreadyInitialized", err)
	}
}

func TestDepositMintsProportionally(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 1000)
	ledger.Credit("bob", 500)

	minted, err := c.Deposit(ctx, "alice", 1000)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if minted != 1000 {
		t.Errorf("first deposit minted %d, want 1000", minted)
	}

	minted, err = c.Deposit(ctx, "bob", 500)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if minted != 500 {
		t.Errorf("second deposit minted %d, want 500", minted)
	}

	agg := c.Aggregates()
	if agg.TotalShares != 1500 || agg.TotalAssets != 1500 {
		t.Errorf("totals = shares %d assets %d, want 1500/1500", agg.TotalShares, agg.TotalAssets)
	}

	if balance, _ := ledger.BalanceOf(ctx, testVaultAccount); balance != 1500 {
		t.Errorf("vault ledger balance = %d, want 1500", balance)
	}
	checkInvariants(t, c)
}

func TestDepositInsufficientFundsRollsBack(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 10)

	if _, err := c.Deposit(ctx, "alice", 100); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	agg := c.Aggregates()
	if agg.TotalShares != 0 || agg.TotalAssets != 0 {
		t.Errorf("state mutated on failed transfer: %+v", agg)
	}
	if c.ShareBalance("alice") != 0 {
		t.Error("shares minted on failed transfer")
	}
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 1000)

	if _, err := c.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Withdraw(ctx, "alice", 1001); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("over-withdrawal: %v, want ErrInsufficientBalance", err)
	}

	burned, err := c.Withdraw(ctx, "alice", 1000)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if burned != 1000 {
		t.Errorf("burned %d, want 1000", burned)
	}

	if balance, _ := ledger.BalanceOf(ctx, "alice"); balance != 1000 {
		t.Errorf("alice balance = %d, want 1000", balance)
	}
	if c.ShareBalance("alice") != 0 {
		t.Error("share balance should be zeroed")
	}
	checkInvariants(t, c)
}

func TestWithdrawBlockedByLoanedLiquidity(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 1000)

	if _, err := c.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 800, 30, 1200); err != nil {
		t.Fatal(err)
	}

	// 800 of the 1000 is out on loan; alice's claim is still 1000 but only
	// 200 is liquid.
	if _, err := c.Withdraw(ctx, "alice", 500); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("err = %v, want ErrInsufficientLiquidity", err)
	}

	if _, err := c.Withdraw(ctx, "alice", 200); err != nil {
		t.Fatalf("liquid portion should be withdrawable: %v", err)
	}
	checkInvariants(t, c)
}

func TestWithdrawTransferFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{t: time.Unix(loanStart, 0)}
	c := NewController(refusingLedger{}, testVaultAccount, zerolog.Nop(), WithClock(clock.Now))
	if err := c.Initialize(ctx, testOwner, testAsset, testTreasury); err != nil {
		t.Fatal(err)
	}

	// Seed state directly: deposits cannot go through the refusing ledger.
	c.mu.Lock()
	c.state.addShares("alice", 1000)
	c.state.TotalShares = 1000
	c.state.TotalAssets = 1000
	c.mu.Unlock()

	if _, err := c.Withdraw(ctx, "alice", 500); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	agg := c.Aggregates()
	if agg.TotalShares != 1000 || agg.TotalAssets != 1000 {
		t.Errorf("state mutated on failed transfer: %+v", agg)
	}
	if c.ShareBalance("alice") != 1000 {
		t.Error("shares burned on failed transfer")
	}
}

func TestBatchDeposit(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	minted, err := c.BatchDeposit(ctx, []string{"a", "b", "c"}, []int64{1000, 500, 0})
	if err != nil {
		t.Fatalf("batch deposit: %v", err)
	}
	want := []int64{1000, 500, 0}
	for i := range want {
		if minted[i] != want[i] {
			t.Errorf("minted[%d] = %d, want %d", i, minted[i], want[i])
		}
	}

	agg := c.Aggregates()
	if agg.TotalShares != 1500 || agg.TotalAssets != 1500 {
		t.Errorf("totals = shares %d assets %d, want 1500/1500", agg.TotalShares, agg.TotalAssets)
	}
	checkInvariants(t, c)
}

func TestBatchDepositLengthMismatch(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	if _, err := c.BatchDeposit(ctx, []string{"a", "b"}, []int64{100}); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestBatchDepositAllOrNothing(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	// Negative amount in the middle aborts the whole batch.
	if _, err := c.BatchDeposit(ctx, []string{"a", "b", "c"}, []int64{100, -1, 50}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	agg := c.Aggregates()
	if agg.TotalShares != 0 || agg.TotalAssets != 0 {
		t.Errorf("partial batch committed: %+v", agg)
	}
	if c.ShareBalance("a") != 0 {
		t.Error("entry before the failure was committed")
	}
}

func TestRequestLoan(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 10_000)

	if _, err := c.Deposit(ctx, "alice", 10_000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}

	net, err := c.RequestLoan(ctx, "circle", 1000, 30, 1200)
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	// 3% origination fee carved out of the disbursement.
	if net != 970 {
		t.Errorf("net disbursed = %d, want 970", net)
	}
	if balance, _ := ledger.BalanceOf(ctx, "circle"); balance != 970 {
		t.Errorf("borrower balance = %d, want 970", balance)
	}

	agg := c.Aggregates()
	if agg.TotalLoaned != 1000 {
		t.Errorf("TotalLoaned = %d, want 1000", agg.TotalLoaned)
	}
	if agg.FeesAccrued != 30 {
		t.Errorf("FeesAccrued = %d, want 30", agg.FeesAccrued)
	}

	loan, ok := c.LoanRecord("circle")
	if !ok || !loan.Active {
		t.Fatalf("loan record = %+v ok=%v", loan, ok)
	}

	// A second loan while one is active is refused.
	if _, err := c.RequestLoan(ctx, "circle", 500, 30, 1200); !errors.Is(err, ErrLoanAlreadyActive) {
		t.Fatalf("second loan: %v, want ErrLoanAlreadyActive", err)
	}
	checkInvariants(t, c)
}

func TestRequestLoanValidation(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 1000)
	if _, err := c.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		caller    string
		principal int64
		days      int64
		rate      int64
		wantErr   error
	}{
		{name: "unauthorized caller", caller: "stranger", principal: 100, days: 30, rate: 1200, wantErr: ErrNotAuthorizedBorrower},
		{name: "zero principal", caller: "circle", principal: 0, days: 30, rate: 1200, wantErr: ErrInvalidAmount},
		{name: "zero duration", caller: "circle", principal: 100, days: 0, rate: 1200, wantErr: ErrInvalidParameter},
		{name: "negative rate", caller: "circle", principal: 100, days: 30, rate: -1, wantErr: ErrInvalidParameter},
		{name: "exceeds liquidity", caller: "circle", principal: 1001, days: 30, rate: 1200, wantErr: ErrInsufficientLiquidity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.RequestLoan(ctx, tt.caller, tt.principal, tt.days, tt.rate); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRepayLoanLifecycle(t *testing.T) {
	ctx := context.Background()
	c, ledger, clock := newTestController(t)
	ledger.Credit("alice", 10_000)
	ledger.Credit("circle", 2000)

	if _, err := c.Deposit(ctx, "alice", 10_000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 1000, 30, 1200); err != nil {
		t.Fatal(err)
	}

	clock.Advance(15 * 24 * time.Hour)

	if got := c.OutstandingDebt("circle"); got != 1004 {
		t.Fatalf("debt at day 15 = %d, want 1004", got)
	}

	remaining, err := c.RepayLoan(ctx, "circle", 600)
	if err != nil {
		t.Fatalf("partial repayment: %v", err)
	}
	if remaining != 404 {
		t.Errorf("remaining = %d, want 404", remaining)
	}

	remaining, err = c.RepayLoan(ctx, "circle", 404)
	if err != nil {
		t.Fatalf("final repayment: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}

	agg := c.Aggregates()
	if agg.TotalLoaned != 0 {
		t.Errorf("TotalLoaned = %d, want 0", agg.TotalLoaned)
	}
	if agg.TotalInterestEarned != 4 {
		t.Errorf("interest earned = %d, want 4", agg.TotalInterestEarned)
	}

	// Interest raises the claim price above parity.
	if got := c.RedeemableBalance("alice"); got <= 10_000 {
		t.Errorf("redeemable = %d, want > 10000", got)
	}

	if _, err := c.RepayLoan(ctx, "circle", 10); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("repay after payoff: %v, want ErrNoActiveLoan", err)
	}

	// The borrower can open a fresh loan once the prior one cleared.
	if _, err := c.RequestLoan(ctx, "circle", 500, 30, 1200); err != nil {
		t.Fatalf("loan after payoff: %v", err)
	}
	checkInvariants(t, c)
}

func TestLiquidateAbsorbsThroughInsurance(t *testing.T) {
	ctx := context.Background()
	c, ledger, clock := newTestController(t)
	ledger.Credit("alice", 10_000)
	ledger.Credit("backer", 100)

	if _, err := c.Deposit(ctx, "alice", 10_000); err != nil {
		t.Fatal(err)
	}
	if err := c.FundInsurancePool(ctx, "backer", 100); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 1000, 30, 1200); err != nil {
		t.Fatal(err)
	}
	clock.Advance(15 * 24 * time.Hour)

	// Pay the debt down to 200, then liquidate with 50 recovered. The 150
	// shortfall drains the 100 buffer and socializes 50.
	ledger.Credit("circle", 804)
	if _, err := c.RepayLoan(ctx, "circle", 804); err != nil {
		t.Fatal(err)
	}

	sink := &captureSink{}
	c.mu.Lock()
	c.sinks = append(c.sinks, sink)
	c.mu.Unlock()

	valueBefore := c.Aggregates().TotalAssets + c.Aggregates().TotalInterestEarned

	if err := c.Liquidate(ctx, "stranger", "circle", 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner liquidate: %v, want ErrUnauthorized", err)
	}
	if err := c.Liquidate(ctx, testOwner, "circle", 50); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	agg := c.Aggregates()
	if agg.InsurancePool != 0 {
		t.Errorf("buffer = %d, want 0", agg.InsurancePool)
	}
	// Only the residual is subtracted from deposited value; the buffer's
	// absorbed 100 stays in TotalAssets, offsetting the loss.
	valueAfter := agg.TotalAssets + agg.TotalInterestEarned
	if valueBefore-valueAfter != 50 {
		t.Errorf("vault value dropped by %d, want 50", valueBefore-valueAfter)
	}

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	payload, ok := sink.events[0].Payload.(event.LoanLiquidated)
	if !ok {
		t.Fatalf("payload type %T", sink.events[0].Payload)
	}
	if payload.Shortfall != 150 || payload.ResidualLoss != 50 {
		t.Errorf("payload = %+v, want shortfall 150 residual 50", payload)
	}

	if err := c.Liquidate(ctx, testOwner, "circle", 50); !errors.Is(err, ErrNoActiveLoan) {
		t.Fatalf("second liquidate: %v, want ErrNoActiveLoan", err)
	}
	checkInvariants(t, c)
}

func TestLiquidateShortfallBeyondAssets(t *testing.T) {
	ctx := context.Background()
	c, ledger, clock := newTestController(t)
	ledger.Credit("alice", 1000)

	if _, err := c.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 1000, 365, 1200); err != nil {
		t.Fatal(err)
	}

	// A full year of accrual puts the debt at 1120 while the vault only
	// ever held 1000. A total default must write the pool down to zero,
	// not below it: the 120 of never-collected interest was never in
	// TotalAssets to lose.
	clock.Advance(365 * 24 * time.Hour)

	sink := &captureSink{}
	c.mu.Lock()
	c.sinks = append(c.sinks, sink)
	c.mu.Unlock()

	if err := c.Liquidate(ctx, testOwner, "circle", 0); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	agg := c.Aggregates()
	if agg.TotalAssets != 0 {
		t.Errorf("TotalAssets = %d, want 0", agg.TotalAssets)
	}
	if agg.TotalLoaned != 0 {
		t.Errorf("TotalLoaned = %d, want 0", agg.TotalLoaned)
	}

	payload, ok := sink.events[0].Payload.(event.LoanLiquidated)
	if !ok {
		t.Fatalf("payload type %T", sink.events[0].Payload)
	}
	if payload.Shortfall != 1120 || payload.ResidualLoss != 1000 {
		t.Errorf("payload = %+v, want shortfall 1120 residual 1000", payload)
	}

	// The wiped-out vault rejects further share pricing instead of
	// panicking on a zero value.
	ledger.Credit("bob", 500)
	if _, err := c.Deposit(ctx, "bob", 500); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("deposit into wiped vault: %v, want ErrInvalidAmount", err)
	}
	if got := c.RedeemableBalance("alice"); got != 0 {
		t.Errorf("redeemable after wipeout = %d, want 0", got)
	}
	checkInvariants(t, c)
}

func TestCollectFees(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)
	ledger.Credit("alice", 10_000)

	if _, err := c.Deposit(ctx, "alice", 10_000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 1000, 30, 1200); err != nil {
		t.Fatal(err)
	}

	if _, err := c.CollectFees(ctx, "stranger"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-owner sweep: %v, want ErrUnauthorized", err)
	}

	swept, err := c.CollectFees(ctx, testOwner)
	if err != nil {
		t.Fatalf("collect fees: %v", err)
	}
	if swept != 30 {
		t.Errorf("swept = %d, want 30", swept)
	}
	if balance, _ := ledger.BalanceOf(ctx, testTreasury); balance != 30 {
		t.Errorf("treasury balance = %d, want 30", balance)
	}

	// Nothing left to sweep; no-op.
	swept, err = c.CollectFees(ctx, testOwner)
	if err != nil || swept != 0 {
		t.Errorf("second sweep = %d, %v; want 0, nil", swept, err)
	}
}

func TestAdminAuthorizationMatrix(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	if err := c.AuthorizeIssuer(ctx, testOwner, "factory"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{name: "issuer authorizes borrower", call: func() error { return c.AuthorizeBorrower(ctx, "factory", "c1") }},
		{name: "owner authorizes borrower", call: func() error { return c.AuthorizeBorrower(ctx, testOwner, "c2") }},
		{name: "stranger authorizes borrower", call: func() error { return c.AuthorizeBorrower(ctx, "stranger", "c3") }, wantErr: ErrNotAuthorizedIssuer},
		{name: "issuer revokes borrower", call: func() error { return c.RevokeBorrower(ctx, "factory", "c1") }, wantErr: ErrUnauthorized},
		{name: "owner revokes borrower", call: func() error { return c.RevokeBorrower(ctx, testOwner, "c1") }},
		{name: "issuer authorizes issuer", call: func() error { return c.AuthorizeIssuer(ctx, "factory", "f2") }, wantErr: ErrUnauthorized},
		{name: "stranger sets fee", call: func() error { return c.SetOriginationFee(ctx, "stranger", 100) }, wantErr: ErrUnauthorized},
		{name: "owner sets fee", call: func() error { return c.SetOriginationFee(ctx, testOwner, 100) }},
		{name: "fee above cap", call: func() error { return c.SetOriginationFee(ctx, testOwner, 1001) }, wantErr: ErrInvalidParameter},
		{name: "stranger sets treasury", call: func() error { return c.SetTreasury(ctx, "stranger", "t2") }, wantErr: ErrUnauthorized},
		{name: "owner sets empty treasury", call: func() error { return c.SetTreasury(ctx, testOwner, "") }, wantErr: ErrInvalidIdentifier},
		{name: "owner sets treasury", call: func() error { return c.SetTreasury(ctx, testOwner, "t2") }},
		{name: "stranger transfers ownership", call: func() error { return c.TransferOwnership(ctx, "stranger", "x") }, wantErr: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.IsAuthorizedBorrower("c1") {
		t.Error("c1 should be revoked")
	}
	if !c.IsAuthorizedBorrower("c2") {
		t.Error("c2 should remain authorized")
	}
}

func TestTransferOwnership(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t)

	if err := c.TransferOwnership(ctx, testOwner, "new-owner"); err != nil {
		t.Fatal(err)
	}

	// Former owner loses control, new owner gains it.
	if err := c.SetOriginationFee(ctx, testOwner, 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("former owner: %v, want ErrUnauthorized", err)
	}
	if err := c.SetOriginationFee(ctx, "new-owner", 100); err != nil {
		t.Fatalf("new owner: %v", err)
	}
}

func TestUtilizationRatio(t *testing.T) {
	ctx := context.Background()
	c, ledger, _ := newTestController(t)

	if got := c.UtilizationRatio(); got != 0 {
		t.Errorf("empty vault utilization = %d, want 0", got)
	}

	ledger.Credit("alice", 1000)
	if _, err := c.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 250, 30, 1200); err != nil {
		t.Fatal(err)
	}

	if got := c.UtilizationRatio(); got != 250 {
		t.Errorf("utilization = %d, want 250", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, ledger, clock := newTestController(t)
	ledger.Credit("alice", 1000)
	if _, err := c.Deposit(ctx, "alice", 1000); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.RequestLoan(ctx, "circle", 500, 30, 1200); err != nil {
		t.Fatal(err)
	}

	snap := c.CreateSnapshot()

	restored := NewController(ledger, testVaultAccount, zerolog.Nop(), WithClock(clock.Now))
	restored.RestoreSnapshot(snap)

	if got, want := restored.Sequence(), c.Sequence(); got != want {
		t.Errorf("sequence = %d, want %d", got, want)
	}
	if got, want := restored.Aggregates(), c.Aggregates(); got != want {
		t.Errorf("aggregates = %+v, want %+v", got, want)
	}
	if got, want := restored.OutstandingDebt("circle"), c.OutstandingDebt("circle"); got != want {
		t.Errorf("debt = %d, want %d", got, want)
	}

	// The snapshot is a deep copy: mutating the original must not leak.
	ledger.Credit("alice", 1)
	if _, err := c.Deposit(ctx, "alice", 1); err != nil {
		t.Fatal(err)
	}
	if restored.Aggregates().TotalAssets == c.Aggregates().TotalAssets {
		t.Error("restored state shares storage with the source")
	}
}

func TestEventSequenceMonotonic(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{t: time.Unix(loanStart, 0)}
	ledger := asset.NewInMemory(testVaultAccount)
	sink := &captureSink{}
	c := NewController(ledger, testVaultAccount, zerolog.Nop(), WithClock(clock.Now), WithSink(sink))

	if err := c.Initialize(ctx, testOwner, testAsset, testTreasury); err != nil {
		t.Fatal(err)
	}
	ledger.Credit("alice", 100)
	if _, err := c.Deposit(ctx, "alice", 100); err != nil {
		t.Fatal(err)
	}
	if err := c.AuthorizeBorrower(ctx, testOwner, "circle"); err != nil {
		t.Fatal(err)
	}

	if len(sink.events) != 3 {
		t.Fatalf("events = %d, want 3", len(sink.events))
	}
	for i, env := range sink.events {
		if env.Sequence != int64(i+1) {
			t.Errorf("event %d sequence = %d, want %d", i, env.Sequence, i+1)
		}
	}
	if sink.events[0].Type != event.EventTypeVaultInitialized {
		t.Errorf("first event = %v", sink.events[0].TypeName)
	}
}
