package ports

import (
	"context"

	"github.com/colonyledger/core/internal/domain/entities"
)

// Capability names the action classes the access gate distinguishes. The
// ledger never learns how authority is computed, only whether the caller
// holds the capability for the entry point being invoked.
type Capability string

const (
	CapabilityTasks      Capability = "tasks:write"
	CapabilityFunding    Capability = "funding:write"
	CapabilityGovernance Capability = "governance:execute"
)

// AccessGate is the external permission check consulted before every
// mutating entry point. A denial surfaces as entities.ErrNotAuthorized.
type AccessGate interface {
	Authorize(ctx context.Context, caller Caller, capability Capability) error
}

// TokenOracle is the external fungible-token contract the colony accounts
// against. The ledger reads balances and requests transfers and mints; it
// never mutates the token contract's internal accounting directly.
type TokenOracle interface {
	BalanceOf(ctx context.Context, account string) (uint64, error)
	Transfer(ctx context.Context, to string, amount uint64, reference string) error
	Mint(ctx context.Context, amount uint64, reference string) error
}

// NativeVault holds the colony's native currency. Pay moves an exact
// amount of wei; Sweep drains the whole balance to a successor and reports
// how much moved.
type NativeVault interface {
	Pay(ctx context.Context, to string, amountWei uint64, reference string) error
	Sweep(ctx context.Context, to string, reference string) (uint64, error)
}

// TaskService is the task store surface: creation, text updates, snapshots.
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	UpdateTitle(ctx context.Context, id int64, req UpdateTitleRequest) (*entities.Task, error)
	UpdateDescription(ctx context.Context, id int64, req UpdateDescriptionRequest) (*entities.Task, error)
	GetTask(ctx context.Context, id int64) (*entities.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	Ledger(ctx context.Context) (*entities.LedgerState, error)
}

// FundingService is the reservation ledger surface.
type FundingService interface {
	ContributeEth(ctx context.Context, id int64, req ContributionRequest) (*entities.Task, error)
	ContributeTokens(ctx context.Context, id int64, req ContributionRequest) (*entities.Task, error)
	SetReservation(ctx context.Context, id int64, req ReservationRequest) (*entities.Task, error)
	ReleaseReservation(ctx context.Context, id int64) (*entities.Task, error)
}

// PayoutService accepts tasks and pays out their two-asset funding.
type PayoutService interface {
	Accept(ctx context.Context, id int64) (*entities.Task, error)
	CompleteAndPay(ctx context.Context, id int64, req PayoutRequest) (*entities.Task, error)
}

// GovernanceService covers minting, the one-shot migration, and the no-op
// native-currency acceptance path.
type GovernanceService interface {
	Mint(ctx context.Context, req MintRequest) error
	Migrate(ctx context.Context, req MigrateRequest) (*MigrationReport, error)
	Receive(ctx context.Context, notice DepositNotice) error
}

// Request/response types

type CreateTaskRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
}

type UpdateTitleRequest struct {
	Name string `json:"name" validate:"required"`
}

type UpdateDescriptionRequest struct {
	Description string `json:"description" validate:"required"`
}

type ContributionRequest struct {
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type ReservationRequest struct {
	Amount uint64 `json:"amount"`
}

type PayoutRequest struct {
	Recipient string `json:"recipient" validate:"required"`
}

type MintRequest struct {
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}

type MigrateRequest struct {
	Successor string `json:"successor" validate:"required"`
}

// DepositNotice announces an unconditioned native-currency transfer into
// the vault. Accepting it changes no ledger state.
type DepositNotice struct {
	From   string `json:"from"`
	Amount uint64 `json:"amount"`
}

// MigrationReport records what the one-shot migration moved.
type MigrationReport struct {
	Successor         string `json:"successor"`
	TokensTransferred uint64 `json:"tokens_transferred"`
	WeiSwept          uint64 `json:"wei_swept"`
	Reference         string `json:"reference"`
}
