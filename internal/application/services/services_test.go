package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/colonyledger/core/internal/adapters/repository"
	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/ports"
)

type stubGate struct {
	err error
}

func (g *stubGate) Authorize(ctx context.Context, caller ports.Caller, capability ports.Capability) error {
	return g.err
}

type transferCall struct {
	to        string
	amount    uint64
	reference string
}

type fakeOracle struct {
	balance     uint64
	balanceErr  error
	transferErr error
	mintErr     error
	transfers   []transferCall
	mints       []uint64
}

func (o *fakeOracle) BalanceOf(ctx context.Context, account string) (uint64, error) {
	return o.balance, o.balanceErr
}

func (o *fakeOracle) Transfer(ctx context.Context, to string, amount uint64, reference string) error {
	if o.transferErr != nil {
		return o.transferErr
	}
	o.transfers = append(o.transfers, transferCall{to: to, amount: amount, reference: reference})
	return nil
}

func (o *fakeOracle) Mint(ctx context.Context, amount uint64, reference string) error {
	if o.mintErr != nil {
		return o.mintErr
	}
	o.mints = append(o.mints, amount)
	return nil
}

type fakeVault struct {
	payErr      error
	sweepErr    error
	sweepAmount uint64
	payments    []transferCall
	sweeps      []string
}

func (v *fakeVault) Pay(ctx context.Context, to string, amountWei uint64, reference string) error {
	if v.payErr != nil {
		return v.payErr
	}
	v.payments = append(v.payments, transferCall{to: to, amount: amountWei, reference: reference})
	return nil
}

func (v *fakeVault) Sweep(ctx context.Context, to string, reference string) (uint64, error) {
	if v.sweepErr != nil {
		return 0, v.sweepErr
	}
	v.sweeps = append(v.sweeps, to)
	return v.sweepAmount, nil
}

type fixture struct {
	store      *repository.MemoryStore
	oracle     *fakeOracle
	vault      *fakeVault
	tasks      *TaskService
	funding    *FundingService
	payouts    *PayoutService
	governance *GovernanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore("beekeepers", "0xtoken")
	gate := &stubGate{}
	oracle := &fakeOracle{balance: 1000}
	vault := &fakeVault{}
	log := logger.NewNop()

	return &fixture{
		store:      store,
		oracle:     oracle,
		vault:      vault,
		tasks:      NewTaskService(store, gate, log, nil),
		funding:    NewFundingService(store, gate, oracle, "colony", log, nil),
		payouts:    NewPayoutService(store, gate, oracle, vault, "colony", log, nil),
		governance: NewGovernanceService(store, gate, oracle, vault, "colony", log, nil),
	}
}

func (f *fixture) mustCreateTask(t *testing.T) *entities.Task {
	t.Helper()

	task, err := f.tasks.CreateTask(context.Background(), ports.CreateTaskRequest{
		Name:        "Clear brown field",
		Description: "Clear a brown field for development",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return task
}

func TestCreateTaskAssignsDenseIds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		task, err := f.tasks.CreateTask(ctx, ports.CreateTaskRequest{
			Name:        fmt.Sprintf("Task %d", want),
			Description: "Work",
		})
		if err != nil {
			t.Fatalf("CreateTask() error = %v", err)
		}
		if task.ID != want {
			t.Fatalf("task id = %d, want %d", task.ID, want)
		}
	}

	state, err := f.tasks.Ledger(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if state.TaskCount != 3 {
		t.Fatalf("task count = %d, want 3", state.TaskCount)
	}
}

func TestCreateTaskDeniedByGate(t *testing.T) {
	f := newFixture(t)
	denied := &stubGate{err: entities.ErrNotAuthorized}
	tasks := NewTaskService(f.store, denied, logger.NewNop(), nil)

	_, err := tasks.CreateTask(context.Background(), ports.CreateTaskRequest{
		Name:        "Task",
		Description: "Work",
	})
	if !errors.Is(err, entities.ErrNotAuthorized) {
		t.Fatalf("CreateTask() error = %v, want ErrNotAuthorized", err)
	}

	state, _ := f.store.State(context.Background())
	if state.TaskCount != 0 {
		t.Fatalf("denied create must not allocate an id, task count = %d", state.TaskCount)
	}
}

func TestContributionsAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.mustCreateTask(t)

	if _, err := f.funding.ContributeEth(ctx, task.ID, ports.ContributionRequest{Amount: 10}); err != nil {
		t.Fatal(err)
	}
	got, err := f.funding.ContributeEth(ctx, task.ID, ports.ContributionRequest{Amount: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got.EthFunding != 15 {
		t.Fatalf("eth funding = %d, want 15", got.EthFunding)
	}

	if _, err := f.funding.ContributeTokens(ctx, task.ID, ports.ContributionRequest{Amount: 100}); err != nil {
		t.Fatal(err)
	}
	got, err = f.funding.ContributeTokens(ctx, task.ID, ports.ContributionRequest{Amount: 20})
	if err != nil {
		t.Fatal(err)
	}
	if got.TokenFunding != 120 {
		t.Fatalf("token funding = %d, want 120", got.TokenFunding)
	}
	if got.ReservedTokens != 0 {
		t.Fatalf("contributed tokens must start unreserved, reserved = %d", got.ReservedTokens)
	}
	if !got.Funded {
		t.Fatal("funded flag must be set after a contribution")
	}
}

func TestContributeToMissingTask(t *testing.T) {
	f := newFixture(t)

	_, err := f.funding.ContributeEth(context.Background(), 42, ports.ContributionRequest{Amount: 10})
	if !errors.Is(err, entities.ErrTaskNotFound) {
		t.Fatalf("ContributeEth() error = %v, want ErrTaskNotFound", err)
	}
}

func TestSetReservationFoldsTokenSlice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.mustCreateTask(t)

	if _, err := f.funding.ContributeTokens(ctx, task.ID, ports.ContributionRequest{Amount: 100}); err != nil {
		t.Fatal(err)
	}

	got, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 60})
	if err != nil {
		t.Fatal(err)
	}
	if got.ReservedTokens != 60 || got.TokenFunding != 60 {
		t.Fatalf("after reservation reserved/funding = %d/%d, want 60/60", got.ReservedTokens, got.TokenFunding)
	}

	state, _ := f.tasks.Ledger(ctx)
	if state.TotalReservedTokens != 60 {
		t.Fatalf("ledger reserved total = %d, want 60", state.TotalReservedTokens)
	}

	// A later contribution tops up funding without touching the reservation.
	got, err = f.funding.ContributeTokens(ctx, task.ID, ports.ContributionRequest{Amount: 40})
	if err != nil {
		t.Fatal(err)
	}
	if got.TokenFunding != 100 || got.ReservedTokens != 60 {
		t.Fatalf("after top-up funding/reserved = %d/%d, want 100/60", got.TokenFunding, got.ReservedTokens)
	}
}

func TestSetReservationAffordability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.oracle.balance = 100

	first := f.mustCreateTask(t)
	second := f.mustCreateTask(t)

	if _, err := f.funding.SetReservation(ctx, first.ID, ports.ReservationRequest{Amount: 80}); err != nil {
		t.Fatal(err)
	}

	// Only 20 of the balance is left for the second task.
	_, err := f.funding.SetReservation(ctx, second.ID, ports.ReservationRequest{Amount: 30})
	if !errors.Is(err, entities.ErrInsufficientColonyBalance) {
		t.Fatalf("SetReservation() error = %v, want ErrInsufficientColonyBalance", err)
	}

	// The failed reservation must leave the ledger untouched.
	state, _ := f.tasks.Ledger(ctx)
	if state.TotalReservedTokens != 80 {
		t.Fatalf("ledger reserved total = %d, want 80", state.TotalReservedTokens)
	}
	got, _ := f.tasks.GetTask(ctx, second.ID)
	if got.ReservedTokens != 0 || got.TokenFunding != 0 {
		t.Fatalf("failed reservation mutated the task: %+v", got)
	}

	// The first task's own reservation is given back before the check, so
	// raising it to the full balance is affordable.
	got, err = f.funding.SetReservation(ctx, first.ID, ports.ReservationRequest{Amount: 100})
	if err != nil {
		t.Fatalf("re-reservation within own slice failed: %v", err)
	}
	if got.ReservedTokens != 100 {
		t.Fatalf("reserved = %d, want 100", got.ReservedTokens)
	}
}

func TestSetReservationAfterExternalDrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.oracle.balance = 100

	task := f.mustCreateTask(t)
	if _, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 60}); err != nil {
		t.Fatal(err)
	}

	// An external party drains the token account below the reservation.
	f.oracle.balance = 50

	// Giving the task's own 60 back leaves only the real balance of 50
	// available; asking for more must fail.
	_, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 55})
	if !errors.Is(err, entities.ErrInsufficientColonyBalance) {
		t.Fatalf("SetReservation(55) after drain = %v, want ErrInsufficientColonyBalance", err)
	}

	got, _ := f.tasks.GetTask(ctx, task.ID)
	if got.ReservedTokens != 60 {
		t.Fatalf("failed reservation mutated the task, reserved = %d, want 60", got.ReservedTokens)
	}
	state, _ := f.tasks.Ledger(ctx)
	if state.TotalReservedTokens != 60 {
		t.Fatalf("failed reservation moved the ledger total = %d, want 60", state.TotalReservedTokens)
	}

	// Shrinking the reservation to what is actually on hand still works.
	got, err = f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 50})
	if err != nil {
		t.Fatalf("SetReservation(50) within the drained balance = %v", err)
	}
	if got.ReservedTokens != 50 {
		t.Fatalf("reserved = %d, want 50", got.ReservedTokens)
	}
}

func TestSetReservationOnAcceptedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.mustCreateTask(t)

	if _, err := f.payouts.Accept(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 10})
	if !errors.Is(err, entities.ErrTaskAlreadyAccepted) {
		t.Fatalf("SetReservation() error = %v, want ErrTaskAlreadyAccepted", err)
	}
}

func TestReleaseReservationRequiresAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.mustCreateTask(t)

	if _, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 60}); err != nil {
		t.Fatal(err)
	}

	_, err := f.funding.ReleaseReservation(ctx, task.ID)
	if !errors.Is(err, entities.ErrTaskNotAccepted) {
		t.Fatalf("ReleaseReservation() error = %v, want ErrTaskNotAccepted", err)
	}

	if _, err := f.payouts.Accept(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	got, err := f.funding.ReleaseReservation(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReservedTokens != 0 {
		t.Fatalf("reserved = %d after release, want 0", got.ReservedTokens)
	}
	if got.TokenFunding != 60 {
		t.Fatalf("release must keep funding history, funding = %d, want 60", got.TokenFunding)
	}

	state, _ := f.tasks.Ledger(ctx)
	if state.TotalReservedTokens != 0 {
		t.Fatalf("ledger reserved total = %d after release, want 0", state.TotalReservedTokens)
	}
}

func TestCompleteAndPayTwoAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.sweepAmount = 0

	task := f.mustCreateTask(t)
	if _, err := f.funding.ContributeEth(ctx, task.ID, ports.ContributionRequest{Amount: 25}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 60}); err != nil {
		t.Fatal(err)
	}

	got, err := f.payouts.CompleteAndPay(ctx, task.ID, ports.PayoutRequest{Recipient: "worker"})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Accepted {
		t.Fatal("paid task must be accepted")
	}
	if got.ReservedTokens != 0 {
		t.Fatalf("paid task reserved = %d, want 0", got.ReservedTokens)
	}

	if len(f.vault.payments) != 1 || f.vault.payments[0].amount != 25 || f.vault.payments[0].to != "worker" {
		t.Fatalf("vault payments = %+v, want one 25 wei payment to worker", f.vault.payments)
	}
	if len(f.oracle.transfers) != 1 || f.oracle.transfers[0].amount != 60 || f.oracle.transfers[0].to != "worker" {
		t.Fatalf("token transfers = %+v, want one 60 token transfer to worker", f.oracle.transfers)
	}
	if f.vault.payments[0].reference != f.oracle.transfers[0].reference {
		t.Fatal("both legs of a payout must share one reference")
	}

	state, _ := f.tasks.Ledger(ctx)
	if state.TotalReservedTokens != 0 {
		t.Fatalf("ledger reserved total = %d after payout, want 0", state.TotalReservedTokens)
	}
}

func TestCompleteAndPaySkipsEmptyLegs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.mustCreateTask(t)
	if _, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 60}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.payouts.CompleteAndPay(ctx, task.ID, ports.PayoutRequest{Recipient: "worker"}); err != nil {
		t.Fatal(err)
	}
	if len(f.vault.payments) != 0 {
		t.Fatalf("zero eth funding must not touch the vault, payments = %+v", f.vault.payments)
	}
	if len(f.oracle.transfers) != 1 {
		t.Fatalf("token transfers = %+v, want exactly one", f.oracle.transfers)
	}
}

func TestCompleteAndPayRollsBackOnFailedTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.mustCreateTask(t)
	if _, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 60}); err != nil {
		t.Fatal(err)
	}

	f.oracle.transferErr = fmt.Errorf("%w: contract rejected transfer", entities.ErrTransferFailed)

	_, err := f.payouts.CompleteAndPay(ctx, task.ID, ports.PayoutRequest{Recipient: "worker"})
	if !errors.Is(err, entities.ErrTransferFailed) {
		t.Fatalf("CompleteAndPay() error = %v, want ErrTransferFailed", err)
	}

	// The failed transfer must unwind acceptance and the release.
	got, _ := f.tasks.GetTask(ctx, task.ID)
	if got.Accepted {
		t.Fatal("failed payout left the task accepted")
	}
	if got.ReservedTokens != 60 {
		t.Fatalf("failed payout changed the reservation, reserved = %d, want 60", got.ReservedTokens)
	}
	state, _ := f.tasks.Ledger(ctx)
	if state.TotalReservedTokens != 60 {
		t.Fatalf("failed payout changed the ledger total, total = %d, want 60", state.TotalReservedTokens)
	}
}

func TestCompleteAndPayInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.oracle.balance = 100

	task := f.mustCreateTask(t)
	if _, err := f.funding.SetReservation(ctx, task.ID, ports.ReservationRequest{Amount: 80}); err != nil {
		t.Fatal(err)
	}

	// An external drain between reservation and payout.
	f.oracle.balance = 10

	_, err := f.payouts.CompleteAndPay(ctx, task.ID, ports.PayoutRequest{Recipient: "worker"})
	if !errors.Is(err, entities.ErrInsufficientColonyBalance) {
		t.Fatalf("CompleteAndPay() error = %v, want ErrInsufficientColonyBalance", err)
	}
}

func TestCompleteAndPayRejectsAcceptedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.mustCreateTask(t)
	if _, err := f.payouts.Accept(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.payouts.CompleteAndPay(ctx, task.ID, ports.PayoutRequest{Recipient: "worker"})
	if !errors.Is(err, entities.ErrTaskAlreadyAccepted) {
		t.Fatalf("CompleteAndPay() error = %v, want ErrTaskAlreadyAccepted", err)
	}
}

func TestMintForwardsToOracle(t *testing.T) {
	f := newFixture(t)

	if err := f.governance.Mint(context.Background(), ports.MintRequest{Amount: 500}); err != nil {
		t.Fatal(err)
	}
	if len(f.oracle.mints) != 1 || f.oracle.mints[0] != 500 {
		t.Fatalf("mints = %v, want [500]", f.oracle.mints)
	}
}

func TestMigrateMovesHoldingsAndRetires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.oracle.balance = 700
	f.vault.sweepAmount = 31

	report, err := f.governance.Migrate(ctx, ports.MigrateRequest{Successor: "0xsuccessor"})
	if err != nil {
		t.Fatal(err)
	}
	if report.TokensTransferred != 700 || report.WeiSwept != 31 {
		t.Fatalf("report = %+v, want 700 tokens and 31 wei", report)
	}
	if len(f.oracle.transfers) != 1 || f.oracle.transfers[0].to != "0xsuccessor" {
		t.Fatalf("transfers = %+v, want one to the successor", f.oracle.transfers)
	}

	state, err := f.tasks.Ledger(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !state.Retired {
		t.Fatal("migration must retire the ledger")
	}

	// Retirement is terminal and one-shot.
	if _, err := f.governance.Migrate(ctx, ports.MigrateRequest{Successor: "0xother"}); !errors.Is(err, entities.ErrLedgerRetired) {
		t.Fatalf("second Migrate() error = %v, want ErrLedgerRetired", err)
	}
}

func TestMigrateStaysLiveOnFailedSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.vault.sweepErr = fmt.Errorf("%w: vault unreachable", entities.ErrTransferFailed)

	_, err := f.governance.Migrate(ctx, ports.MigrateRequest{Successor: "0xsuccessor"})
	if !errors.Is(err, entities.ErrTransferFailed) {
		t.Fatalf("Migrate() error = %v, want ErrTransferFailed", err)
	}

	state, _ := f.tasks.Ledger(ctx)
	if state.Retired {
		t.Fatal("failed migration must not retire the ledger")
	}
}

func TestRetiredLedgerRejectsMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.mustCreateTask(t)
	if _, err := f.governance.Migrate(ctx, ports.MigrateRequest{Successor: "0xsuccessor"}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.tasks.CreateTask(ctx, ports.CreateTaskRequest{Name: "Late", Description: "Too late"}); !errors.Is(err, entities.ErrLedgerRetired) {
		t.Fatalf("CreateTask() after retirement = %v, want ErrLedgerRetired", err)
	}
	if _, err := f.funding.ContributeEth(ctx, task.ID, ports.ContributionRequest{Amount: 1}); !errors.Is(err, entities.ErrLedgerRetired) {
		t.Fatalf("ContributeEth() after retirement = %v, want ErrLedgerRetired", err)
	}
	if err := f.governance.Mint(ctx, ports.MintRequest{Amount: 1}); !errors.Is(err, entities.ErrLedgerRetired) {
		t.Fatalf("Mint() after retirement = %v, want ErrLedgerRetired", err)
	}

	// The terminal state itself stays readable.
	state, err := f.tasks.Ledger(ctx)
	if err != nil {
		t.Fatalf("Ledger() after retirement = %v, want readable state", err)
	}
	if !state.Retired {
		t.Fatal("state must report retired")
	}
}

func TestDepositNoticeChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, _ := f.tasks.Ledger(ctx)
	if err := f.governance.Receive(ctx, ports.DepositNotice{From: "0xdonor", Amount: 12}); err != nil {
		t.Fatal(err)
	}
	after, _ := f.tasks.Ledger(ctx)

	if before.TaskCount != after.TaskCount || before.TotalReservedTokens != after.TotalReservedTokens {
		t.Fatal("deposit notice must not change ledger state")
	}
}
