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

// GovernanceService forwards mint requests to the token contract and
// performs the one-shot migration to a successor ledger.
type GovernanceService struct {
	store   ports.LedgerStore
	gate    ports.AccessGate
	oracle  ports.TokenOracle
	vault   ports.NativeVault
	account string
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewGovernanceService creates a new governance service
func NewGovernanceService(store ports.LedgerStore, gate ports.AccessGate, oracle ports.TokenOracle, vault ports.NativeVault, account string, logger *logger.Logger, metrics *metrics.Metrics) *GovernanceService {
	return &GovernanceService{
		store:   store,
		gate:    gate,
		oracle:  oracle,
		vault:   vault,
		account: account,
		logger:  logger,
		metrics: metrics,
	}
}

// Mint forwards a privileged mint request to the token contract. No local
// ledger state changes.
func (s *GovernanceService) Mint(ctx context.Context, req ports.MintRequest) error {
	if err := authorize(ctx, s.gate, ports.CapabilityGovernance); err != nil {
		return err
	}

	state, err := s.store.State(ctx)
	if err != nil {
		return fmt.Errorf("load ledger state: %w", err)
	}
	if state.Retired {
		return entities.ErrLedgerRetired
	}

	reference := uuid.NewString()
	if err := s.oracle.Mint(ctx, req.Amount, reference); err != nil {
		return fmt.Errorf("token mint: %w", err)
	}

	s.logger.LogLedgerAction(ports.CallerFromContext(ctx).Subject, "mint", map[string]interface{}{
		"amount":    req.Amount,
		"reference": reference,
	})
	s.metrics.MintRequested()

	return nil
}

// Migrate transfers the ledger's full token balance and native holdings to
// the successor and retires this instance. Retirement happens in the same
// atomic unit as the transfers: if any transfer fails the ledger stays
// live and keeps custody, never the other way around.
func (s *GovernanceService) Migrate(ctx context.Context, req ports.MigrateRequest) (*ports.MigrationReport, error) {
	if err := authorize(ctx, s.gate, ports.CapabilityGovernance); err != nil {
		return nil, err
	}

	report := &ports.MigrationReport{
		Successor: req.Successor,
		Reference: uuid.NewString(),
	}

	err := s.store.Atomically(ctx, func(tx ports.LedgerTx) error {
		state, err := liveState(ctx, tx)
		if err != nil {
			return err
		}

		if err := state.Retire(); err != nil {
			return err
		}
		if err := tx.UpdateState(ctx, state); err != nil {
			return err
		}

		balance, err := s.oracle.BalanceOf(ctx, s.account)
		if err != nil {
			return fmt.Errorf("token oracle balance: %w", err)
		}

		if balance > 0 {
			if err := s.oracle.Transfer(ctx, req.Successor, balance, report.Reference); err != nil {
				return fmt.Errorf("migrate token balance: %w", err)
			}
		}
		report.TokensTransferred = balance

		swept, err := s.vault.Sweep(ctx, req.Successor, report.Reference)
		if err != nil {
			return fmt.Errorf("sweep native balance: %w", err)
		}
		report.WeiSwept = swept

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogLedgerAction(ports.CallerFromContext(ctx).Subject, "migrate", map[string]interface{}{
		"successor":          req.Successor,
		"tokens_transferred": report.TokensTransferred,
		"wei_swept":          report.WeiSwept,
		"reference":          report.Reference,
	})

	return report, nil
}

// Receive acknowledges an unconditioned native-currency deposit. The vault
// balance simply grows; no ledger state changes.
func (s *GovernanceService) Receive(ctx context.Context, notice ports.DepositNotice) error {
	s.logger.Info("Deposit received", "from", notice.From, "amount_wei", notice.Amount)
	s.metrics.DepositReceived()
	return nil
}
