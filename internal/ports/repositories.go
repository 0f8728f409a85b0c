package ports

import (
	"context"

	"github.com/colonyledger/core/internal/domain/entities"
)

// LedgerTx is the mutating view of the ledger inside one atomic unit of
// work. State and TaskForUpdate return locked rows; nothing written through
// the tx is visible to other calls until the unit commits.
type LedgerTx interface {
	State(ctx context.Context) (*entities.LedgerState, error)
	UpdateState(ctx context.Context, state *entities.LedgerState) error
	TaskForUpdate(ctx context.Context, id int64) (*entities.Task, error)
	InsertTask(ctx context.Context, task *entities.Task) error
	UpdateTask(ctx context.Context, task *entities.Task) error
}

// LedgerStore owns the task arena and the ledger state row.
//
// Atomically runs fn as a fully serialized, all-or-nothing unit: an error
// from fn (including a failed external transfer issued inside it) unwinds
// every state change the unit made. This is the service-side rendering of
// the platform guarantee the ledger's invariants depend on.
type LedgerStore interface {
	Atomically(ctx context.Context, fn func(tx LedgerTx) error) error

	// Read-only snapshots, no locks taken.
	State(ctx context.Context) (*entities.LedgerState, error)
	Task(ctx context.Context, id int64) (*entities.Task, error)
	Tasks(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
}

// TaskFilter bounds task listings.
type TaskFilter struct {
	Limit  int
	Offset int
}
