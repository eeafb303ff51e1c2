package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
)

// Outcome is the expected result of one execution attempt.
// Faults that are not outcomes are returned as errors.
type Outcome string

const (
	OutcomeExecuted          Outcome = "EXECUTED"
	OutcomeInsufficientFunds Outcome = "INSUFFICIENT_FUNDS"
	OutcomeAccountNotFound   Outcome = "ACCOUNT_NOT_FOUND"
	OutcomeAlreadyExecuted   Outcome = "ALREADY_EXECUTED"
)

// Result describes one execution attempt
type Result struct {
	Outcome Outcome

	// Balances after the transfer; SourceBalance holds the observed balance on INSUFFICIENT_FUNDS
	SourceBalance decimal.Decimal
	TargetBalance decimal.Decimal

	DebitEntry  *domain.LedgerEntry
	CreditEntry *domain.LedgerEntry // nil unless credits are mirrored
	ExecutedAt  time.Time
}

// AuditMirror receives committed ledger entries
type AuditMirror interface {
	Mirror(ctx context.Context, entries []*domain.LedgerEntry) error
}

// TransferExecutor moves the amount of one standing order between two accounts
type TransferExecutor struct {
	Transactor domain.Transactor
	// ClearingAccountID is credited for orders whose target is external
	ClearingAccountID uuid.UUID
	// MirrorCredits appends a CREDIT entry on the target besides the source DEBIT entry
	MirrorCredits bool
	// Audit is optional and called after commit only
	Audit  AuditMirror
	Logger *slog.Logger
	Now    func() time.Time

	locks *LockSet
}

// NewTransferExecutor creates a new TransferExecutor instance
func NewTransferExecutor(
	transactor domain.Transactor,
	clearingAccountID uuid.UUID,
	mirrorCredits bool,
	logger *slog.Logger,
) *TransferExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferExecutor{
		Transactor:        transactor,
		ClearingAccountID: clearingAccountID,
		MirrorCredits:     mirrorCredits,
		Logger:            logger,
		Now:               time.Now,
		locks:             NewLockSet(),
	}
}

// Execute runs the order for runDate as a single unit of work.
//
// Logic:
//  1. Take the in-process locks of source and target in ascending ID order
//  2. Inside one transaction:
//     - claim the (order, runDate) idempotency key
//     - lock both account rows, read the source balance
//     - if balance < amount, abort with INSUFFICIENT_FUNDS (the claim is rolled back too)
//     - debit source, credit target, append the source DEBIT entry (and the target CREDIT entry)
//  3. After commit, hand the entries to the audit mirror
//
// Expected outcomes are returned in Result with a nil error.
// Any other failure wraps domain.ErrPersistence and leaves no partial state.
func (e *TransferExecutor) Execute(ctx context.Context, order *domain.StandingOrder, runDate time.Time) (*Result, error) {
	if !order.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderInactive, order.ID)
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	sourceID := order.SourceAccountID
	targetID := e.ClearingAccountID
	if order.TargetAccountID != nil {
		targetID = *order.TargetAccountID
	}

	runDay := domain.DateOf(runDate)
	now := e.Now().UTC()
	orderID := order.ID

	release := e.locks.Acquire(sourceID, targetID)
	defer release()

	result := &Result{ExecutedAt: now}

	err := e.Transactor.WithinTx(ctx, func(ctx context.Context, s domain.Stores) error {
		debit := &domain.LedgerEntry{
			ID:          uuid.New(),
			AccountID:   sourceID,
			OrderID:     &orderID,
			Kind:        domain.EntryKindTransfer,
			Direction:   domain.EntryDirectionDebit,
			Amount:      order.Amount,
			Description: transferDescription(order, "to", targetLabel(order)),
			CreatedAt:   now,
		}

		if err := s.Executions.Claim(ctx, &domain.Execution{
			OrderID:    order.ID,
			RunDate:    runDay,
			EntryID:    debit.ID,
			ExecutedAt: now,
		}); err != nil {
			return err
		}

		if err := s.Accounts.Lock(ctx, OrderedIDs(sourceID, targetID)...); err != nil {
			return err
		}

		balance, err := s.Accounts.GetBalance(ctx, sourceID)
		if err != nil {
			return err
		}
		if balance.LessThan(order.Amount) {
			result.SourceBalance = balance
			return fmt.Errorf("%w: balance %s, amount %s", domain.ErrInsufficientFunds, balance, order.Amount)
		}

		sourceAfter, err := s.Accounts.ApplyDelta(ctx, sourceID, order.Amount.Neg())
		if err != nil {
			return err
		}
		targetAfter, err := s.Accounts.ApplyDelta(ctx, targetID, order.Amount)
		if err != nil {
			return err
		}

		debit.BalanceAfter = sourceAfter
		if _, err := s.Ledger.Append(ctx, debit); err != nil {
			return err
		}
		result.DebitEntry = debit

		if e.MirrorCredits {
			credit := &domain.LedgerEntry{
				ID:           uuid.New(),
				AccountID:    targetID,
				OrderID:      &orderID,
				Kind:         domain.EntryKindTransfer,
				Direction:    domain.EntryDirectionCredit,
				Amount:       order.Amount,
				BalanceAfter: targetAfter,
				Description:  transferDescription(order, "from", sourceID.String()),
				CreatedAt:    now,
			}
			if _, err := s.Ledger.Append(ctx, credit); err != nil {
				return err
			}
			result.CreditEntry = credit
		}

		result.SourceBalance = sourceAfter
		result.TargetBalance = targetAfter
		return nil
	})

	switch {
	case err == nil:
		result.Outcome = OutcomeExecuted
	case errors.Is(err, domain.ErrAlreadyExecuted):
		return &Result{Outcome: OutcomeAlreadyExecuted}, nil
	case errors.Is(err, domain.ErrInsufficientFunds):
		return &Result{Outcome: OutcomeInsufficientFunds, SourceBalance: result.SourceBalance}, nil
	case errors.Is(err, domain.ErrAccountNotFound):
		return &Result{Outcome: OutcomeAccountNotFound}, nil
	case errors.Is(err, domain.ErrPersistence):
		return nil, fmt.Errorf("failed to execute order %s: %w", order.ID, err)
	default:
		return nil, fmt.Errorf("failed to execute order %s: %w: %w", order.ID, domain.ErrPersistence, err)
	}

	e.mirror(ctx, result)
	return result, nil
}

func (e *TransferExecutor) mirror(ctx context.Context, result *Result) {
	if e.Audit == nil {
		return
	}

	entries := []*domain.LedgerEntry{result.DebitEntry}
	if result.CreditEntry != nil {
		entries = append(entries, result.CreditEntry)
	}

	// The transfer is committed; a mirror failure only loses the audit copy
	if err := e.Audit.Mirror(ctx, entries); err != nil {
		e.Logger.WarnContext(ctx, "audit mirror failed",
			"entry_id", result.DebitEntry.ID,
			"error", err,
		)
	}
}

func targetLabel(order *domain.StandingOrder) string {
	if order.TargetAccountNumber != "" {
		return order.TargetAccountNumber
	}
	return order.TargetAccountID.String()
}

func transferDescription(order *domain.StandingOrder, direction, counterparty string) string {
	desc := fmt.Sprintf("Standing order transfer %s %s", direction, counterparty)
	if order.Description != "" {
		desc += ": " + order.Description
	}
	return desc
}
