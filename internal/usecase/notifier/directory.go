package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/simaogato/standing-orders/internal/domain"
)

const (
	DefaultDirectoryExpiration = 15 * time.Minute
	directoryCleanupInterval   = 30 * time.Minute
)

// AccountIdentity is the immutable part of an account needed to address notifications.
// Balances are never cached.
type AccountIdentity struct {
	AccountID     uuid.UUID
	AccountNumber string
	OwnerID       uuid.UUID
}

// AccountDirectory resolves account identities through a short-lived cache
type AccountDirectory struct {
	accounts domain.AccountStore
	cache    *cache.Cache
}

// NewAccountDirectory creates a new AccountDirectory instance
func NewAccountDirectory(accounts domain.AccountStore, expiration time.Duration) *AccountDirectory {
	if expiration <= 0 {
		expiration = DefaultDirectoryExpiration
	}
	return &AccountDirectory{
		accounts: accounts,
		cache:    cache.New(expiration, directoryCleanupInterval),
	}
}

// Lookup returns the identity of an account
func (d *AccountDirectory) Lookup(ctx context.Context, accountID uuid.UUID) (AccountIdentity, error) {
	cacheKey := accountID.String()
	if cached, found := d.cache.Get(cacheKey); found {
		return cached.(AccountIdentity), nil
	}

	account, err := d.accounts.GetByID(ctx, accountID)
	if err != nil {
		return AccountIdentity{}, err
	}

	identity := AccountIdentity{
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		OwnerID:       account.OwnerID,
	}
	d.cache.Set(cacheKey, identity, cache.DefaultExpiration)
	return identity, nil
}
