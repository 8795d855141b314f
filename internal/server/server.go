package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"kuyayvault/internal/observability"
	"kuyayvault/internal/oracle"
	"kuyayvault/internal/simulator"
	"kuyayvault/internal/vault"
)

// Deps aggregates everything the HTTP layer needs. Cache is optional;
// without it idempotency replay is disabled.
type Deps struct {
	Controller     *vault.Controller
	Oracle         *oracle.Oracle
	Simulator      *simulator.Simulator
	Cache          *redis.Client
	IdempotencyTTL time.Duration
	Log            zerolog.Logger
	Metrics        *observability.Metrics
	Health         *observability.HealthChecker
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Deps
}

// New builds the HTTP server and wires all routes.
func New(d Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "kuyay-vault",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(accessLog(d.Log))
	if d.Metrics != nil {
		app.Use(requestMetrics(d.Metrics))
	}
	if d.Cache != nil {
		ttl := d.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		app.Use(idempotency(d.Cache, ttl, d.Log, d.Metrics))
	}

	s := &Server{app: app, deps: d}
	s.routes()
	return s
}

func (s *Server) routes() {
	app := s.app

	app.Get("/healthz", s.healthz)
	app.Get("/readyz", s.readyz)

	v1 := app.Group("/v1")

	v1.Post("/vault/initialize", s.initialize)
	v1.Get("/vault", s.vaultStatus)

	v1.Post("/vault/deposits", s.deposit)
	v1.Post("/vault/deposits/batch", s.batchDeposit)
	v1.Post("/vault/withdrawals", s.withdraw)
	v1.Get("/accounts/:account", s.accountStatus)

	v1.Post("/loans", s.requestLoan)
	v1.Post("/loans/repayments", s.repayLoan)
	v1.Get("/loans/:borrower", s.loanStatus)
	v1.Post("/loans/:borrower/liquidate", s.liquidate)

	v1.Post("/insurance/contributions", s.fundInsurance)
	v1.Post("/fees/collect", s.collectFees)

	admin := v1.Group("/admin")
	admin.Put("/origination-fee", s.setOriginationFee)
	admin.Put("/treasury", s.setTreasury)
	admin.Put("/owner", s.transferOwnership)
	admin.Post("/borrowers", s.authorizeBorrower)
	admin.Delete("/borrowers/:borrower", s.revokeBorrower)
	admin.Post("/issuers", s.authorizeIssuer)
	admin.Delete("/issuers/:issuer", s.revokeIssuer)

	v1.Get("/oracle/tiers", s.oracleTiers)
	v1.Post("/oracle/tiers", s.oracleAddTier)
	v1.Get("/oracle/terms", s.oracleTerms)
	v1.Post("/oracle/cohorts/evaluate", s.oracleEvaluate)

	v1.Post("/simulations", s.simulate)
	v1.Post("/simulations/quick", s.quickSimulate)
}

// App exposes the underlying fiber application for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on addr and blocks.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) readyz(c *fiber.Ctx) error {
	if s.deps.Health != nil && !s.deps.Health.IsReady() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "not ready")
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
