// Package http exposes the ledger over echo. Handlers bind and validate
// the payload, call the service, and map ledger errors onto statuses.
package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/ports"
)

// TaskHandler handles task store requests
type TaskHandler struct {
	tasks  ports.TaskService
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		logger: logger,
	}
}

// CreateTask handles task creation
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req ports.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.CreateTask(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Create task failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// UpdateTitle handles renaming a task
func (h *TaskHandler) UpdateTitle(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTitleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.UpdateTitle(c.Request().Context(), id, req)
	if err != nil {
		h.logger.Error("Update title failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateDescription handles replacing a task's description
func (h *TaskHandler) UpdateDescription(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	var req ports.UpdateDescriptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.tasks.UpdateDescription(c.Request().Context(), id, req)
	if err != nil {
		h.logger.Error("Update description failed", "error", err, "task_id", id)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// GetTask handles getting a task by id
func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := taskID(c)
	if err != nil {
		return err
	}

	task, err := h.tasks.GetTask(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// ListTasks handles listing tasks in id order
func (h *TaskHandler) ListTasks(c echo.Context) error {
	var filter ports.TaskFilter
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		filter.Limit = limit
	}
	if v := c.QueryParam("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		filter.Offset = offset
	}

	tasks, err := h.tasks.ListTasks(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error("List tasks failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, tasks)
}

// GetLedger handles the ledger state snapshot
func (h *TaskHandler) GetLedger(c echo.Context) error {
	state, err := h.tasks.Ledger(c.Request().Context())
	if err != nil {
		h.logger.Error("Get ledger failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, state)
}
