package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/ports"
)

// FundingHandler handles funding and reservation requests
type FundingHandler struct {
	funding ports.FundingService
	payouts ports.PayoutService
	logger  *logger.Logger
}

// NewFundingHandler creates a new funding handler
func NewFundingHandler(funding ports.FundingService, payouts ports.PayoutService, logger *logger.Logger) *FundingHandler {
	return &FundingHandler{
		funding: funding,
		payouts: payouts,
		logger:  logger,
	}
}

// ContributeEth handles a native-currency contribution to a task
func (h *FundingHandler) ContributeEth(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.ContributionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.funding.ContributeEth(c.Request().Context(), id, req)
	if err != nil {
		h.logger.Error("Eth contribution failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// ContributeTokens handles a token contribution to a task
func (h *FundingHandler) ContributeTokens(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.ContributionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.funding.ContributeTokens(c.Request().Context(), id, req)
	if err != nil {
		h.logger.Error("Token contribution failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// SetReservation handles setting a task's token reservation
func (h *FundingHandler) SetReservation(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.ReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	task, err := h.funding.SetReservation(c.Request().Context(), id, req)
	if err != nil {
		h.logger.Error("Set reservation failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// ReleaseReservation handles releasing an accepted task's reservation
func (h *FundingHandler) ReleaseReservation(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.funding.ReleaseReservation(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Release reservation failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// AcceptTask handles marking a task accepted
func (h *FundingHandler) AcceptTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.payouts.Accept(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Accept task failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// PayoutTask handles the two-asset payout of an accepted task
func (h *FundingHandler) PayoutTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.PayoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.payouts.CompleteAndPay(c.Request().Context(), id, req)
	if err != nil {
		h.logger.Error("Payout failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}
