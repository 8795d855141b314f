package server

import (
	"github.com/gofiber/fiber/v2"

	"kuyayvault/internal/oracle"
	"kuyayvault/internal/simulator"
)

type initializeRequest struct {
	AssetID    string `json:"asset_id"`
	TreasuryID string `json:"treasury_id"`
}

func (s *Server) initialize(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req initializeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.Initialize(c.UserContext(), account, req.AssetID, req.TreasuryID); err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"asset_id":    req.AssetID,
		"treasury_id": req.TreasuryID,
		"owner_id":    account,
	})
}

func (s *Server) vaultStatus(c *fiber.Ctx) error {
	agg := s.deps.Controller.Aggregates()
	return c.JSON(fiber.Map{
		"aggregates":          agg,
		"sequence":            s.deps.Controller.Sequence(),
		"available_liquidity": s.deps.Controller.AvailableLiquidity(),
		"utilization_ratio":   s.deps.Controller.UtilizationRatio(),
	})
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) deposit(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	shares, err := s.deps.Controller.Deposit(c.UserContext(), account, req.Amount)
	if err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"account":       account,
		"amount":        req.Amount,
		"shares_minted": shares,
	})
}

type batchDepositRequest struct {
	Accounts []string `json:"accounts"`
	Amounts  []int64  `json:"amounts"`
}

func (s *Server) batchDeposit(c *fiber.Ctx) error {
	var req batchDepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	shares, err := s.deps.Controller.BatchDeposit(c.UserContext(), req.Accounts, req.Amounts)
	if err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"accounts":      req.Accounts,
		"shares_minted": shares,
	})
}

func (s *Server) withdraw(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	burned, err := s.deps.Controller.Withdraw(c.UserContext(), account, req.Amount)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"account":       account,
		"amount":        req.Amount,
		"shares_burned": burned,
	})
}

func (s *Server) accountStatus(c *fiber.Ctx) error {
	account := c.Params("account")
	return c.JSON(fiber.Map{
		"account":             account,
		"shares":              s.deps.Controller.ShareBalance(account),
		"redeemable_balance":  s.deps.Controller.RedeemableBalance(account),
		"authorized_borrower": s.deps.Controller.IsAuthorizedBorrower(account),
		"authorized_issuer":   s.deps.Controller.IsAuthorizedIssuer(account),
	})
}

type loanRequest struct {
	Principal    int64 `json:"principal"`
	DurationDays int64 `json:"duration_days"`
	RateBps      int64 `json:"rate_bps"`
}

func (s *Server) requestLoan(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req loanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	net, err := s.deps.Controller.RequestLoan(c.UserContext(), account, req.Principal, req.DurationDays, req.RateBps)
	if err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"borrower":      account,
		"principal":     req.Principal,
		"net_disbursed": net,
	})
}

func (s *Server) repayLoan(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	remaining, err := s.deps.Controller.RepayLoan(c.UserContext(), account, req.Amount)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"borrower":       account,
		"amount":         req.Amount,
		"remaining_debt": remaining,
	})
}

func (s *Server) loanStatus(c *fiber.Ctx) error {
	borrower := c.Params("borrower")
	loan, ok := s.deps.Controller.LoanRecord(borrower)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no active loan")
	}
	return c.JSON(fiber.Map{
		"borrower":         borrower,
		"loan":             loan,
		"outstanding_debt": s.deps.Controller.OutstandingDebt(borrower),
	})
}

type liquidateRequest struct {
	Recovered int64 `json:"recovered"`
}

func (s *Server) liquidate(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req liquidateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	borrower := c.Params("borrower")
	if err := s.deps.Controller.Liquidate(c.UserContext(), account, borrower, req.Recovered); err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"borrower":  borrower,
		"recovered": req.Recovered,
	})
}

func (s *Server) fundInsurance(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.FundInsurancePool(c.UserContext(), account, req.Amount); err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"from":   account,
		"amount": req.Amount,
	})
}

func (s *Server) collectFees(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	amount, err := s.deps.Controller.CollectFees(c.UserContext(), account)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{"amount": amount})
}

type feeRequest struct {
	FeeBps int64 `json:"fee_bps"`
}

func (s *Server) setOriginationFee(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req feeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.SetOriginationFee(c.UserContext(), account, req.FeeBps); err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{"fee_bps": req.FeeBps})
}

type treasuryRequest struct {
	Treasury string `json:"treasury"`
}

func (s *Server) setTreasury(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req treasuryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.SetTreasury(c.UserContext(), account, req.Treasury); err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{"treasury": req.Treasury})
}

type ownerRequest struct {
	NewOwner string `json:"new_owner"`
}

func (s *Server) transferOwnership(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req ownerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.TransferOwnership(c.UserContext(), account, req.NewOwner); err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{"owner": req.NewOwner})
}

type borrowerRequest struct {
	Borrower string `json:"borrower"`
}

func (s *Server) authorizeBorrower(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req borrowerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.AuthorizeBorrower(c.UserContext(), account, req.Borrower); err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"borrower": req.Borrower})
}

func (s *Server) revokeBorrower(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	if err := s.deps.Controller.RevokeBorrower(c.UserContext(), account, c.Params("borrower")); err != nil {
		return fail(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type issuerRequest struct {
	Issuer string `json:"issuer"`
}

func (s *Server) authorizeIssuer(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	var req issuerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Controller.AuthorizeIssuer(c.UserContext(), account, req.Issuer); err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"issuer": req.Issuer})
}

func (s *Server) revokeIssuer(c *fiber.Ctx) error {
	account, err := caller(c)
	if err != nil {
		return err
	}
	if err := s.deps.Controller.RevokeIssuer(c.UserContext(), account, c.Params("issuer")); err != nil {
		return fail(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) oracleTiers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tiers": s.deps.Oracle.Tiers()})
}

func (s *Server) oracleAddTier(c *fiber.Ctx) error {
	var tier oracle.Tier
	if err := c.BodyParser(&tier); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := s.deps.Oracle.AddTier(tier); err != nil {
		return fail(err)
	}
	return c.Status(fiber.StatusCreated).JSON(tier)
}

func (s *Server) oracleTerms(c *fiber.Ctx) error {
	level := c.QueryInt("level")
	terms, err := s.deps.Oracle.TierForLevel(int64(level))
	if err != nil {
		return fail(err)
	}
	return c.JSON(terms)
}

type cohortRequest struct {
	Members    []oracle.Member `json:"members"`
	CreditMode bool            `json:"credit_mode"`
}

func (s *Server) oracleEvaluate(c *fiber.Ctx) error {
	var req cohortRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	avg, err := oracle.AverageLevel(req.Members)
	if err != nil {
		return fail(err)
	}
	terms, err := s.deps.Oracle.TierForLevel(avg)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"eligible":      oracle.AllEligible(req.Members, req.CreditMode),
		"average_level": avg,
		"terms":         terms,
		"weights":       oracle.Weights(req.Members),
	})
}

func (s *Server) simulate(c *fiber.Ctx) error {
	var params simulator.Params
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	res, err := s.deps.Simulator.Simulate(params)
	if err != nil {
		return fail(err)
	}
	return c.JSON(res)
}

type quickSimRequest struct {
	Members        int   `json:"members"`
	Contribution   int64 `json:"contribution"`
	DefaultProbBps int64 `json:"default_prob_bps"`
}

func (s *Server) quickSimulate(c *fiber.Ctx) error {
	var req quickSimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	res, err := s.deps.Simulator.QuickSimulate(req.Members, req.Contribution, req.DefaultProbBps)
	if err != nil {
		return fail(err)
	}
	return c.JSON(res)
}
