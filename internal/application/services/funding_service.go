package services

import (
	"context"
	"fmt"

	"github.com/colonyledger/core/internal/domain/entities"
	"github.com/colonyledger/core/internal/infrastructure/logger"
	"github.com/colonyledger/core/internal/infrastructure/metrics"
	"github.com/colonyledger/core/internal/ports"
)

// FundingService is the reservation ledger: contributions, the colony-wide
// reserved-token total, and the affordability invariant.
type FundingService struct {
	store   ports.LedgerStore
	gate    ports.AccessGate
	oracle  ports.TokenOracle
	account string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewFundingService creates a new funding service. account is the ledger's
// own address with the token oracle.
func NewFundingService(store ports.LedgerStore, gate ports.AccessGate, oracle ports.TokenOracle, account string, logger *logger.Logger, metrics *metrics.Metrics) *FundingService {
	return &FundingService{
		store:   store,
		gate:    gate,
		oracle:  oracle,
		account: account,
		logger:  logger,
		metrics: metrics,
	}
}

// ContributeEth adds wei to the task's cumulative ETH funding.
func (s *FundingService) ContributeEth(ctx context.Context, id int64, req ports.ContributionRequest) (*entities.Task, error) {
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

		if err := task.AddEthFunding(req.Amount); err != nil {
			return err
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ETH contributed", "task_id", id, "amount_wei", req.Amount)
	s.metrics.EthContributed(req.Amount)

	return task, nil
}

// ContributeTokens adds token units to the task's cumulative token funding.
// Contributed tokens start unreserved.
func (s *FundingService) ContributeTokens(ctx context.Context, id int64, req ports.ContributionRequest) (*entities.Task, error) {
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

		if err := task.AddTokenFunding(req.Amount); err != nil {
			return err
		}
		return tx.UpdateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tokens contributed", "task_id", id, "amount", req.Amount)
	s.metrics.TokensContributed(req.Amount)

	return task, nil
}

// SetReservation replaces the task's reservation after the affordability
// check: the requested amount must fit in the colony's on-hand balance
// minus everything reserved, with the task's own existing reservation
// given back first. The ledger total and the task's fields move in the
// same atomic unit, so the total always equals the sum of reservations.
func (s *FundingService) SetReservation(ctx context.Context, id int64, req ports.ReservationRequest) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityFunding); err != nil {
		return nil, err
	}

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

		available, err := state.AvailableTokens(balance, task.ReservedTokens)
		if err != nil {
			return err
		}
		if req.Amount > available {
			return entities.ErrInsufficientColonyBalance
		}

		previous := task.ReservedTokens
		if err := task.Reserve(req.Amount); err != nil {
			return err
		}
		if err := state.ReserveTokens(previous, req.Amount); err != nil {
			return err
		}

		if err := tx.UpdateTask(ctx, task); err != nil {
			return err
		}
		if err := tx.UpdateState(ctx, state); err != nil {
			return err
		}

		s.metrics.ReservedTokensTotal(state.TotalReservedTokens)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reservation set", "task_id", id, "amount", req.Amount)

	return task, nil
}

// ReleaseReservation gives an accepted task's reservation back to the
// colony pool, leaving the task's funding history intact.
func (s *FundingService) ReleaseReservation(ctx context.Context, id int64) (*entities.Task, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityFunding); err != nil {
		return nil, err
	}

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

		s.metrics.ReservedTokensTotal(state.TotalReservedTokens)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reservation released", "task_id", id)

	return task, nil
}
