package immudb

import (
	"context"
	"fmt"
	"sync"

	"github.com/codenotary/immudb/pkg/api/schema"
	"github.com/codenotary/immudb/pkg/client"
	"github.com/simaogato/standing-orders/internal/domain"
)

const defaultTable = "ledger_mirror"

// sqlClient is the part of the immudb session client the mirror uses
type sqlClient interface {
	OpenSession(ctx context.Context, user []byte, pass []byte, database string) error
	SQLExec(ctx context.Context, sql string, params map[string]interface{}) (*schema.SQLExecResult, error)
	CloseSession(ctx context.Context) error
}

// Options configures the immudb connection
type Options struct {
	Address  string
	Port     int
	Username string
	Password string
	Database string
}

// Mirror copies committed ledger entries into a tamper-evident immudb table
type Mirror struct {
	mu     sync.Mutex
	client sqlClient
	table  string
}

// NewMirror opens a session and ensures the mirror table exists
func NewMirror(ctx context.Context, opts Options) (*Mirror, error) {
	clientOpts := client.DefaultOptions().
		WithAddress(opts.Address).
		WithPort(opts.Port).
		WithUsername(opts.Username).
		WithPassword(opts.Password).
		WithDatabase(opts.Database)

	c := client.NewClient().WithOptions(clientOpts)
	if err := c.OpenSession(ctx, []byte(opts.Username), []byte(opts.Password), opts.Database); err != nil {
		return nil, fmt.Errorf("failed to connect to immudb: %w", err)
	}

	m := newMirror(c)
	if err := m.ensureTable(ctx); err != nil {
		c.CloseSession(ctx)
		return nil, err
	}
	return m, nil
}

func newMirror(c sqlClient) *Mirror {
	return &Mirror{client: c, table: defaultTable}
}

func (m *Mirror) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"id VARCHAR[36] NOT NULL, "+
		"account_id VARCHAR[36] NOT NULL, "+
		"order_id VARCHAR[36], "+
		"direction VARCHAR[6] NOT NULL, "+
		"amount VARCHAR[40] NOT NULL, "+
		"balance_after VARCHAR[40] NOT NULL, "+
		"created_at INTEGER NOT NULL, "+
		"PRIMARY KEY id"+
		")", m.table)

	if _, err := m.client.SQLExec(ctx, stmt, nil); err != nil {
		return fmt.Errorf("failed to create mirror table: %w", err)
	}

	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS ON %s(account_id)", m.table)
	if _, err := m.client.SQLExec(ctx, index, nil); err != nil {
		return fmt.Errorf("failed to create mirror index: %w", err)
	}
	return nil
}

// Mirror writes the entries; re-mirroring the same entry overwrites it with identical values
func (m *Mirror) Mirror(ctx context.Context, entries []*domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stmt := fmt.Sprintf(
		"UPSERT INTO %s (id, account_id, order_id, direction, amount, balance_after, created_at) "+
			"VALUES (@id, @account_id, @order_id, @direction, @amount, @balance_after, @created_at)",
		m.table,
	)

	for _, entry := range entries {
		var orderID interface{}
		if entry.OrderID != nil {
			orderID = entry.OrderID.String()
		}

		params := map[string]interface{}{
			"id":            entry.ID.String(),
			"account_id":    entry.AccountID.String(),
			"order_id":      orderID,
			"direction":     string(entry.Direction),
			"amount":        entry.Amount.String(),
			"balance_after": entry.BalanceAfter.String(),
			"created_at":    entry.CreatedAt.UnixNano(),
		}

		if _, err := m.client.SQLExec(ctx, stmt, params); err != nil {
			return fmt.Errorf("failed to mirror ledger entry %s: %w", entry.ID, err)
		}
	}

	return nil
}

// Close ends the immudb session
func (m *Mirror) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client.CloseSession(ctx)
}
