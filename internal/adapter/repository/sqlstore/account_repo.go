package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
)

// accountRepository implements domain.AccountStore
type accountRepository struct {
	c conn
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountStore {
	return &accountRepository{c: db.base()}
}

const accountColumns = `id, account_number, owner_id, balance, is_system, created_at`

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.c.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

// GetByNumber retrieves an account by its account number
func (r *accountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	row := r.c.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = ?`, number)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account number %s: %w", number, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}
	return account, nil
}

// Exists reports whether an account with the given ID exists
func (r *accountRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int
	err := r.c.queryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}
	return count > 0, nil
}

// GetBalance returns the current balance of the account
func (r *accountRepository) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	return r.balance(ctx, id, "")
}

// ApplyDelta adds delta to the balance with a locked read followed by a write
func (r *accountRepository) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := r.balance(ctx, id, r.c.forUpdate())
	if err != nil {
		return decimal.Zero, err
	}

	updated := current.Add(delta)
	_, err = r.c.exec(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`, updated.String(), id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update account balance: %w", err)
	}

	return updated, nil
}

// Lock takes row locks on the accounts in the order given
func (r *accountRepository) Lock(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		var locked uuid.UUID
		err := r.c.queryRow(ctx, `SELECT id FROM accounts WHERE id = ?`+r.c.forUpdate(), id).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to lock account %s: %w", id, domain.ErrAccountNotFound)
			}
			return fmt.Errorf("failed to lock account %s: %w", id, err)
		}
	}
	return nil
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	_, err := r.c.exec(ctx, `
		INSERT INTO accounts (id, account_number, owner_id, balance, is_system, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		account.ID,
		account.AccountNumber,
		account.OwnerID,
		account.Balance.String(),
		account.IsSystem,
		formatTime(account.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (r *accountRepository) balance(ctx context.Context, id uuid.UUID, suffix string) (decimal.Decimal, error) {
	var balanceStr string
	err := r.c.queryRow(ctx, `SELECT balance FROM accounts WHERE id = ?`+suffix, id).Scan(&balanceStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
		}
		return decimal.Zero, fmt.Errorf("failed to get account balance: %w", err)
	}

	// Parse balance (DECIMAL)
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}
	return balance, nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string

	err := row.Scan(
		&account.ID,
		&account.AccountNumber,
		&account.OwnerID,
		&balanceStr,
		&account.IsSystem,
		scanTime(&account.CreatedAt),
	)
	if err != nil {
		return nil, err
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance

	return &account, nil
}
