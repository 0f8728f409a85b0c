package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/domain/safemath"
)

// MessageResponse is a simple message payload
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a ledger error to the client
type ErrorResponse struct {
	Error string `json:"error"`
}

// httpError maps ledger errors onto HTTP statuses. Unknown errors stay
// opaque 500s so internals never leak.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, entities.ErrEmptyField),
		errors.Is(err, safemath.ErrOverflow),
		errors.Is(err, safemath.ErrUnderflow):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, entities.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrTaskAlreadyAccepted),
		errors.Is(err, entities.ErrTaskNotAccepted),
		errors.Is(err, entities.ErrLedgerRetired):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entities.ErrInsufficientColonyBalance):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, entities.ErrTransferFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// taskID parses the :id route parameter.
func taskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	return id, nil
}
