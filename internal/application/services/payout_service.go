package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/infrastructure/metrics"
	"github.com/colonyledger/core/internal/ports"
)

// PayoutService closes tasks and pays out their two-asset funding.
type PayoutService struct {
	store   ports.LedgerStore
	gate    ports.AccessGate
	oracle  ports.TokenOracle
	vault   ports.NativeVault
	account string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewPayoutService creates a new payout service
func NewPayoutService(store ports.LedgerStore, gate ports.AccessGate, oracle ports.TokenOracle, vault ports.NativeVault, account string, logger *logger.Logger, metrics *metrics.Metrics) *PayoutService {
	return &PayoutService{
		store:   store,
		gate:    gate,
		oracle:  oracle,
		vault:   vault,
		account: account,
		logger:  logger,
		metrics: metrics,
	}
}

// Accept closes the task to further funding and text mutation. Terminal.
func (s *PayoutService) Accept(ctx context.Context, id int64) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityFunding); err != nil {
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

		if err := task.Accept(); err != nil {
			return err
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task accepted", "task_id", id)

	return task, nil
}

// CompleteAndPay accepts the task and pays its ETH and token funding to
// the recipient in one atomic unit. All local bookkeeping (acceptance,
// reservation release, the ledger total) is finalized before any value
// leaves the colony; a failed transfer unwinds the entire unit, so the
// task is never left accepted-but-unpaid.
func (s *PayoutService) CompleteAndPay(ctx context.Context, id int64, req ports.PayoutRequest) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityFunding); err != nil {
		return nil, err
	}

	reference := uuid.NewString()

	var task *entities.Task
	err := s.store.Atomically(ctx, func(tx ports.LedgerTx) error {
		state, err := liveState(ctx, tx)
		if err != nil {
			return err
		}

		task, err = tx.TaskForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if task.Accepted {
			return entities.ErrTaskAlreadyAccepted
		}

		balance, err := s.oracle.BalanceOf(ctx, s.account)
		if err != nil {
			return fmt.Errorf("token oracle balance: %w", err)
		}
		if balance < task.TokenFunding {
			return entities.ErrInsufficientColonyBalance
		}

		if err := task.Accept(); err != nil {
			return err
		}
		released, err := task.ReleaseReservation()
		if err != nil {
			return err
		}
		if err := state.ReleaseTokens(released); err != nil {
			return err
		}

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if err := tx.UpdateState(ctx, state); err != nil {
			return err
		}

		// Local state is final; external transfers run last so any
		// failure rolls the whole unit back.
		if task.EthFunding > 0 {
			if err := s.vault.Pay(ctx, req.Recipient, task.EthFunding, reference); err != nil {
				return fmt.Errorf("eth payout: %w", err)
			}
		}
		if task.TokenFunding > 0 {
			if err := s.oracle.Transfer(ctx, req.Recipient, task.TokenFunding, reference); err != nil {
				return fmt.Errorf("token payout: %w", err)
			}
		}

		s.metrics.ReservedTokensTotal(state.TotalReservedTokens)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Task paid out",
		"task_id", id,
		"recipient", req.Recipient,
		"eth_wei", task.EthFunding,
		"tokens", task.TokenFunding,
		"reference", reference,
	)
	s.metrics.PayoutCompleted()

	return task, nil
}
