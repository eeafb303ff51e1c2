package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
)

// Fixed UUIDs for system accounts
var (
	SYS_EXTERNAL_CLEARING = uuid.MustParse("00000000-0000-0000-0000-000000000001")
)

// SystemAccount defines the structure for a system account to be seeded
type SystemAccount struct {
	ID            uuid.UUID
	AccountNumber string
}

// SystemAccounts lists the accounts the executor relies on
var SystemAccounts = []SystemAccount{
	{
		// Credited by orders whose target is not a local account
		ID:            SYS_EXTERNAL_CLEARING,
		AccountNumber: "SYS-EXTERNAL-CLEARING",
	},
}

// SystemSeeder handles seeding of required system accounts
type SystemSeeder struct {
	repo domain.AccountStore
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(repo domain.AccountStore) *SystemSeeder {
	return &SystemSeeder{
		repo: repo,
	}
}

// Seed ensures all required system accounts exist in the database.
// Existing accounts are left untouched, balance included.
func (s *SystemSeeder) Seed(ctx context.Context) error {
	for _, sys := range SystemAccounts {
		_, err := s.repo.GetByID(ctx, sys.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return fmt.Errorf("failed to look up system account %s: %w", sys.AccountNumber, err)
		}

		account := &domain.Account{
			ID:            sys.ID,
			AccountNumber: sys.AccountNumber,
			// System accounts are owned by themselves
			OwnerID:  sys.ID,
			Balance:  decimal.Zero,
			IsSystem: true,
		}

		// Validate before creating
		if err := account.Validate(); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, account); err != nil {
			return err
		}
	}

	return nil
}
