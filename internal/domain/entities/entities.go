package entities

import (
	"errors"
	"strings"
	"time"

	"github.com/colonyledger/core/internal/domain/safemath"
)

// Common errors
var (
	ErrEmptyField                = errors.New("name and description must not be empty")
	ErrTaskNotFound              = errors.New("task not found")
	ErrTaskAlreadyAccepted       = errors.New("task is already accepted")
	ErrTaskNotAccepted           = errors.New("task is not accepted")
	ErrInsufficientColonyBalance = errors.New("insufficient colony token balance")
	ErrNotAuthorized             = errors.New("caller is not authorized")
	ErrTransferFailed            = errors.New("value transfer failed")
	ErrLedgerRetired             = errors.New("ledger is retired")
)

// SchemaVersion identifies the ledger schema this build speaks.
const SchemaVersion = 4

// Task is a unit of work with funding fields and an accepted/unaccepted
// status. Ids are dense, 1-indexed and assigned by the store; a task is
// never deleted, its history is retained even after reservation release.
type Task struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	Accepted       bool      `json:"accepted" db:"accepted"`
	EthFunding     uint64    `json:"eth_funding" db:"eth_funding"`
	TokenFunding   uint64    `json:"token_funding" db:"token_funding"`
	ReservedTokens uint64    `json:"reserved_tokens" db:"reserved_tokens"`
	Funded         bool      `json:"funded" db:"funded"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerState is the colony-wide ledger row: identity, the reservation
// total backing the affordability invariant, and the terminal retired flag.
type LedgerState struct {
	IdentityName        string    `json:"identity_name" db:"identity_name"`
	SchemaVersion       int       `json:"schema_version" db:"schema_version"`
	TokenContract       string    `json:"token_contract" db:"token_contract"`
	TaskCount           int64     `json:"task_count" db:"task_count"`
	TotalReservedTokens uint64    `json:"total_reserved_tokens" db:"total_reserved_tokens"`
	Retired             bool      `json:"retired" db:"retired"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// NewTask validates the text fields and returns an unaccepted, unfunded task.
func NewTask(name, description string) (*Task, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(description) == "" {
		return nil, ErrEmptyField
	}

	now := time.Now().UTC()
	return &Task{
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// mutable rejects updates to a closed task. Acceptance is terminal: the
// only mutation allowed afterwards is releasing the reservation.
func (t *Task) mutable() error {
	if t.Accepted {
		return ErrTaskAlreadyAccepted
	}
	return nil
}

// Rename overwrites the task name.
func (t *Task) Rename(name string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return ErrEmptyField
	}
	t.Name = name
	return nil
}

// Redescribe overwrites the task description.
func (t *Task) Redescribe(description string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if strings.TrimSpace(description) == "" {
		return ErrEmptyField
	}
	t.Description = description
	return nil
}

// AddEthFunding adds amount of wei to the task's cumulative ETH funding.
func (t *Task) AddEthFunding(amount uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}

	total, err := safemath.Add(t.EthFunding, amount)
	if err != nil {
		return err
	}

	t.EthFunding = total
	t.Funded = true
	return nil
}

// AddTokenFunding adds amount of token units to the task's cumulative token
// funding. Contributed tokens start unreserved.
func (t *Task) AddTokenFunding(amount uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}

	total, err := safemath.Add(t.TokenFunding, amount)
	if err != nil {
		return err
	}

	t.TokenFunding = total
	t.Funded = true
	return nil
}

// Reserve replaces the task's reservation with amount. The existing token
// slice, reserved and unreserved alike, is folded into the new reservation:
// afterwards ReservedTokens == TokenFunding == amount. Affordability against
// the colony balance is the caller's responsibility.
func (t *Task) Reserve(amount uint64) error {
	if err := t.mutable(); err != nil {
		return err
	}

	t.ReservedTokens = amount
	t.TokenFunding = amount
	t.Funded = true
	return nil
}

// Accept closes the task. Once accepted a task never becomes unaccepted.
func (t *Task) Accept() error {
	if t.Accepted {
		return ErrTaskAlreadyAccepted
	}
	t.Accepted = true
	return nil
}

// ReleaseReservation zeroes the task's reservation, leaving TokenFunding
// untouched. Release is only valid on an accepted task.
func (t *Task) ReleaseReservation() (uint64, error) {
	if !t.Accepted {
		return 0, ErrTaskNotAccepted
	}

	released := t.ReservedTokens
	t.ReservedTokens = 0
	return released, nil
}

// Reserved reports whether the task currently holds a reservation.
func (t *Task) Reserved() bool {
	return t.ReservedTokens > 0
}

// ReserveTokens moves the ledger total from a task's old reservation to its
// new one in one step, so the total always equals the sum of per-task
// reservations.
func (s *LedgerState) ReserveTokens(oldReservation, newReservation uint64) error {
	remainder, err := safemath.Sub(s.TotalReservedTokens, oldReservation)
	if err != nil {
		return err
	}

	total, err := safemath.Add(remainder, newReservation)
	if err != nil {
		return err
	}

	s.TotalReservedTokens = total
	return nil
}

// ReleaseTokens removes a released reservation from the ledger total.
func (s *LedgerState) ReleaseTokens(amount uint64) error {
	remainder, err := safemath.Sub(s.TotalReservedTokens, amount)
	if err != nil {
		return err
	}

	s.TotalReservedTokens = remainder
	return nil
}

// AvailableTokens applies the affordability rule: the colony's on-hand
// balance minus what the other tasks hold reserved. The asking task's own
// reservation is given back before the subtraction, so it is not blocked
// by itself but can never reserve past the real balance.
func (s *LedgerState) AvailableTokens(colonyBalance, taskReservation uint64) (uint64, error) {
	othersReserved, err := safemath.Sub(s.TotalReservedTokens, taskReservation)
	if err != nil {
		// The total always covers each task's reservation; underflow here
		// means corrupted state.
		return 0, err
	}

	available, err := safemath.Sub(colonyBalance, othersReserved)
	if err != nil {
		// An external drain left less on hand than the other tasks hold
		// reserved. Nothing is available.
		return 0, nil
	}

	return available, nil
}

// Retire moves the ledger to its terminal state. One-way.
func (s *LedgerState) Retire() error {
	if s.Retired {
		return ErrLedgerRetired
	}
	s.Retired = true
	return nil
}
