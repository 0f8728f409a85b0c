package services

import (
	"context"
	"fmt"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/infrastructure/metrics"
	"github.com/colonyledger/core/internal/ports"
)

// TaskService owns the task arena: creation, text updates and snapshots.
type TaskService struct {
	store   ports.LedgerStore
	gate    ports.AccessGate
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewTaskService creates a new task service
func NewTaskService(store ports.LedgerStore, gate ports.AccessGate, logger *logger.Logger, metrics *metrics.Metrics) *TaskService {
	return &TaskService{
		store:   store,
		gate:    gate,
		logger:  logger,
		metrics: metrics,
	}
}

// authorize asks the access gate whether the context's caller holds the
// capability. Shared by all services in this package.
func authorize(ctx context.Context, gate ports.AccessGate, capability ports.Capability) error {
	caller := ports.CallerFromContext(ctx)
	if err := gate.Authorize(ctx, caller, capability); err != nil {
		return fmt.Errorf("access gate: %w", err)
	}
	return nil
}

// liveState loads the state row inside a unit and rejects a retired ledger.
func liveState(ctx context.Context, tx ports.LedgerTx) (*entities.LedgerState, error) {
	state, err := tx.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	if state.Retired {
		return nil, entities.ErrLedgerRetired
	}
	return state, nil
}

// CreateTask validates the text fields, assigns the next dense id and
// stores an unaccepted, unfunded task.
func (s *TaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityTasks); err != nil {
		return nil, err
	}

	task, err := entities.NewTask(req.Name, req.Description)
	if err != nil {
		return nil, err
	}

	err = s.store.Atomically(ctx, func(tx ports.LedgerTx) error {
		state, err := liveState(ctx, tx)
		if err != nil {
			return err
		}

		state.TaskCount++
		task.ID = state.TaskCount

		if err := tx.InsertTask(ctx, task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return tx.UpdateState(ctx, state)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task created", "task_id", task.ID, "name", task.Name)
	s.metrics.TaskCreated()

	return task, nil
}

// UpdateTitle overwrites the task name.
func (s *TaskService) UpdateTitle(ctx context.Context, id int64, req ports.UpdateTitleRequest) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityTasks); err != nil {
		return nil, err
	}

	var task *entities.Task
	err := s.store.Atomically(ctx, func(tx ports.LedgerTx) error {
		if _, err := liveState(ctx, tx); err != nil {
			return err
		}

		var err error
		task, err = tx.TaskForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := task.Rename(req.Name); err != nil {
			return err
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task title updated", "task_id", id)

	return task, nil
}

// UpdateDescription overwrites the task description.
func (s *TaskService) UpdateDescription(ctx context.Context, id int64, req ports.UpdateDescriptionRequest) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityTasks); err != nil {
		return nil, err
	}

	var task *entities.Task
	err := s.store.Atomically(ctx, func(tx ports.LedgerTx) error {
		if _, err := liveState(ctx, tx); err != nil {
			return err
		}

		var err error
		task, err = tx.TaskForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if err := task.Redescribe(req.Description); err != nil {
			return err
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task description updated", "task_id", id)

	return task, nil
}

// GetTask returns a read-only snapshot of the task.
func (s *TaskService) GetTask(ctx context.Context, id int64) (*entities.Task, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	if state.Retired {
		return nil, entities.ErrLedgerRetired
	}

	return s.store.Task(ctx, id)
}

// ListTasks returns task snapshots bounded by the filter.
func (s *TaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}
	if state.Retired {
		return nil, entities.ErrLedgerRetired
	}

	tasks, err := s.store.Tasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Ledger returns the ledger-wide counters and identity. Readable even
// after retirement so operators can see the terminal state.
func (s *TaskService) Ledger(ctx context.Context) (*entities.LedgerState, error) {
	state, err := s.store.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger state: %w", err)
	}

	return state, nil
}
