package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/ports"
)

// GovernanceHandler handles mint, migration and deposit requests
type GovernanceHandler struct {
	governance ports.GovernanceService
	logger     *logger.Logger
}

// NewGovernanceHandler creates a new governance handler
func NewGovernanceHandler(governance ports.GovernanceService, logger *logger.Logger) *GovernanceHandler {
	return &GovernanceHandler{
		governance: governance,
		logger:     logger,
	}
}

// Mint handles a token supply increase
func (h *GovernanceHandler) Mint(c echo.Context) error {
	var req ports.MintRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.governance.Mint(c.Request().Context(), req); err != nil {
		h.logger.Error("Mint failed", "error", err, "amount", req.Amount)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Mint requested"})
}

// Migrate handles the one-shot migration to a successor
func (h *GovernanceHandler) Migrate(c echo.Context) error {
	var req ports.MigrateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := h.governance.Migrate(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Migration failed", "error", err, "successor", req.Successor)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, report)
}

// ReceiveDeposit handles an unconditioned native-currency deposit notice
func (h *GovernanceHandler) ReceiveDeposit(c echo.Context) error {
	var notice ports.DepositNotice
	if err := c.Bind(&notice); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.governance.Receive(c.Request().Context(), notice); err != nil {
		h.logger.Error("Deposit notice failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusAccepted, MessageResponse{Message: "Deposit recorded"})
}
