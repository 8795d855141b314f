package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"kuyayvault/internal/oracle"
	"kuyayvault/internal/simulator"
	"kuyayvault/internal/vault"
)

// statusFor maps domain errors onto HTTP status codes. Unknown errors are
// treated as internal so their text never leaks to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vault.ErrInvalidAmount),
		errors.Is(err, vault.ErrInvalidIdentifier),
		errors.Is(err, vault.ErrInvalidParameter),
		errors.Is(err, oracle.ErrNoMembers),
		errors.Is(err, oracle.ErrNoTiers),
		errors.Is(err, oracle.ErrInvalidTier),
		errors.Is(err, oracle.ErrInvalidParameter),
		errors.Is(err, simulator.ErrInvalidMemberCount),
		errors.Is(err, simulator.ErrInvalidRoundCount),
		errors.Is(err, simulator.ErrInvalidSimulationCount),
		errors.Is(err, simulator.ErrInvalidProbability):
		return fiber.StatusBadRequest
	case errors.Is(err, vault.ErrUnauthorized),
		errors.Is(err, vault.ErrNotAuthorizedBorrower),
		errors.Is(err, vault.ErrNotAuthorizedIssuer):
		return fiber.StatusForbidden
	case errors.Is(err, vault.ErrNoActiveLoan):
		return fiber.StatusNotFound
	case errors.Is(err, vault.ErrAlreadyInitialized),
		errors.Is(err, vault.ErrNotInitialized),
		errors.Is(err, vault.ErrLoanAlreadyActive):
		return fiber.StatusConflict
	case errors.Is(err, vault.ErrInsufficientLiquidity),
		errors.Is(err, vault.ErrInsufficientBalance):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrTransferFailed):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// fail renders a domain error as a fiber error with the mapped status.
func fail(err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		return fiber.NewError(status, "internal error")
	}
	return fiber.NewError(status, err.Error())
}
