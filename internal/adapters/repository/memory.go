package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/ports"
)

// MemoryStore is an in-process LedgerStore. A single mutex serializes
// units of work and every unit runs against copies that are swapped in
// only on success, giving the same all-or-nothing semantics as the
// Postgres store. Used by tests and by serve --in-memory.
type MemoryStore struct {
	mu    sync.Mutex
	state entities.LedgerState
	tasks map[int64]*entities.Task
}

// NewMemoryStore creates a store bound to the given ledger identity.
func NewMemoryStore(identityName, tokenContract string) *MemoryStore {
	return &MemoryStore{
		state: entities.LedgerState{
			IdentityName:  identityName,
			SchemaVersion: entities.SchemaVersion,
			TokenContract: tokenContract,
			UpdatedAt:     time.Now().UTC(),
		},
		tasks: make(map[int64]*entities.Task),
	}
}

type memoryTx struct {
	state *entities.LedgerState
	tasks map[int64]*entities.Task
}

// Atomically runs fn against a copy of the ledger and commits the copy on
// success. Any error from fn discards every change the unit made.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateCopy := s.state
	tasksCopy := make(map[int64]*entities.Task, len(s.tasks))
	for id, task := range s.tasks {
		t := *task
		tasksCopy[id] = &t
	}

	tx := &memoryTx{state: &stateCopy, tasks: tasksCopy}
	if err := fn(tx); err != nil {
		return err
	}

	s.state = *tx.state
	s.tasks = tx.tasks
	return nil
}

func (tx *memoryTx) State(ctx context.Context) (*entities.LedgerState, error) {
	return tx.state, nil
}

func (tx *memoryTx) UpdateState(ctx context.Context, state *entities.LedgerState) error {
	state.UpdatedAt = time.Now().UTC()
	tx.state = state
	return nil
}

func (tx *memoryTx) TaskForUpdate(ctx context.Context, id int64) (*entities.Task, error) {
	task, ok := tx.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return task, nil
}

func (tx *memoryTx) InsertTask(ctx context.Context, task *entities.Task) error {
	t := *task
	tx.tasks[task.ID] = &t
	return nil
}

func (tx *memoryTx) UpdateTask(ctx context.Context, task *entities.Task) error {
	if _, ok := tx.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now().UTC()
	t := *task
	tx.tasks[task.ID] = &t
	return nil
}

// State returns a snapshot of the ledger state row.
func (s *MemoryStore) State(ctx context.Context) (*entities.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	return &state, nil
}

// Task returns a snapshot of one task.
func (s *MemoryStore) Task(ctx context.Context, id int64) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}

	t := *task
	return &t, nil
}

// Tasks returns task snapshots ordered by id.
func (s *MemoryStore) Tasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if filter.Offset > 0 {
		if filter.Offset >= len(ids) {
			return nil, nil
		}
		ids = ids[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(ids) {
		ids = ids[:filter.Limit]
	}

	tasks := make([]*entities.Task, 0, len(ids))
	for _, id := range ids {
		t := *s.tasks[id]
		tasks = append(tasks, &t)
	}
	return tasks, nil
}
