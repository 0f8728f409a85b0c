package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/domain/safemath"
	"github.com/colonyledger/core/internal/infrastructure/database"
	"github.com/colonyledger/core/internal/ports"
)

// pgAmount narrows a ledger amount to the BIGINT columns. Amounts past
// MaxInt64 would flip sign in the cast and surface as an opaque CHECK
// violation; fail them as overflow instead.
func pgAmount(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, safemath.ErrOverflow
	}
	return int64(v), nil
}

// PostgresStore implements LedgerStore on Postgres. Units of work map to
// transactions; the ledger_state row and the task row are locked with
// SELECT ... FOR UPDATE so the reservation total and per-task fields can
// only move together.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new Postgres-backed ledger store
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureState seeds the singleton ledger_state row on first boot and
// verifies the identity binding afterwards. The token contract binding is
// immutable for the life of the instance.
func (s *PostgresStore) EnsureState(ctx context.Context, identityName, tokenContract string) error {
	query := `
		INSERT INTO ledger_state (id, identity_name, schema_version, token_contract)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.DB.ExecContext(ctx, query, identityName, entities.SchemaVersion, tokenContract); err != nil {
		return fmt.Errorf("seed ledger state: %w", err)
	}

	state, err := s.State(ctx)
	if err != nil {
		return err
	}
	if state.IdentityName != identityName || state.TokenContract != tokenContract {
		return fmt.Errorf("ledger binding mismatch: database holds %q/%q, config says %q/%q",
			state.IdentityName, state.TokenContract, identityName, tokenContract)
	}

	return nil
}

type postgresTx struct {
	tx *sqlx.Tx
}

// Atomically executes fn inside a transaction.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(tx ports.LedgerTx) error) error {
	return s.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		return fn(&postgresTx{tx: tx})
	})
}

const stateColumns = `identity_name, schema_version, token_contract, task_count, total_reserved_tokens, retired, updated_at`

func (p *postgresTx) State(ctx context.Context) (*entities.LedgerState, error) {
	query := `SELECT ` + stateColumns + ` FROM ledger_state WHERE id = 1 FOR UPDATE`

	var state entities.LedgerState
	if err := p.tx.GetContext(ctx, &state, query); err != nil {
		return nil, fmt.Errorf("get ledger state: %w", err)
	}

	return &state, nil
}

func (p *postgresTx) UpdateState(ctx context.Context, state *entities.LedgerState) error {
	query := `
		UPDATE ledger_state
		SET task_count = $1, total_reserved_tokens = $2, retired = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING updated_at`

	totalReserved, err := pgAmount(state.TotalReservedTokens)
	if err != nil {
		return err
	}

	err = p.tx.QueryRowContext(ctx, query,
		state.TaskCount, totalReserved, state.Retired,
	).Scan(&state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update ledger state: %w", err)
	}

	return nil
}

const taskColumns = `id, name, description, accepted, eth_funding, token_funding, reserved_tokens, funded, created_at, updated_at`

// taskAmounts narrows a task's funding fields for the BIGINT columns.
func taskAmounts(task *entities.Task) (ethFunding, tokenFunding, reservedTokens int64, err error) {
	if ethFunding, err = pgAmount(task.EthFunding); err != nil {
		return 0, 0, 0, err
	}
	if tokenFunding, err = pgAmount(task.TokenFunding); err != nil {
		return 0, 0, 0, err
	}
	if reservedTokens, err = pgAmount(task.ReservedTokens); err != nil {
		return 0, 0, 0, err
	}
	return ethFunding, tokenFunding, reservedTokens, nil
}

func (p *postgresTx) TaskForUpdate(ctx context.Context, id int64) (*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 FOR UPDATE`

	var task entities.Task
	if err := p.tx.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task for update: %w", err)
	}

	return &task, nil
}

func (p *postgresTx) InsertTask(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (id, name, description, accepted, eth_funding, token_funding, reserved_tokens, funded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	ethFunding, tokenFunding, reservedTokens, err := taskAmounts(task)
	if err != nil {
		return err
	}

	err = p.tx.QueryRowContext(ctx, query,
		task.ID, task.Name, task.Description, task.Accepted,
		ethFunding, tokenFunding, reservedTokens, task.Funded,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

func (p *postgresTx) UpdateTask(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET name = $2, description = $3, accepted = $4, eth_funding = $5,
			token_funding = $6, reserved_tokens = $7, funded = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`

	ethFunding, tokenFunding, reservedTokens, err := taskAmounts(task)
	if err != nil {
		return err
	}

	err = p.tx.QueryRowContext(ctx, query,
		task.ID, task.Name, task.Description, task.Accepted,
		ethFunding, tokenFunding, reservedTokens, task.Funded,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

// State returns a snapshot of the ledger state row, no lock taken.
func (s *PostgresStore) State(ctx context.Context) (*entities.LedgerState, error) {
	query := `SELECT ` + stateColumns + ` FROM ledger_state WHERE id = 1`

	var state entities.LedgerState
	if err := s.db.DB.GetContext(ctx, &state, query); err != nil {
		return nil, fmt.Errorf("get ledger state: %w", err)
	}

	return &state, nil
}

// Task returns a snapshot of one task.
func (s *PostgresStore) Task(ctx context.Context, id int64) (*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var task entities.Task
	if err := s.db.DB.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	return &task, nil
}

// Tasks returns task snapshots ordered by id.
func (s *PostgresStore) Tasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY id LIMIT $1 OFFSET $2`

	var tasks []*entities.Task
	if err := s.db.DB.SelectContext(ctx, &tasks, query, limit, filter.Offset); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}
