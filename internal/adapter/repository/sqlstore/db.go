package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/simaogato/standing-orders/internal/domain"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Dialect selects the SQL flavour of the underlying database
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
	dialect Dialect
}

// NewDB creates a new database connection
// For postgres, dsn should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=standing_orders sslmode=disable"
// For sqlite, dsn is a file path; parent directories are created
func NewDB(dialect Dialect, dsn string) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("postgres", dsn)
	case DialectSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)&_txlock=immediate")
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// A single connection serializes SQLite writers inside the process
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, dialect: dialect}, nil
}

// Dialect returns the SQL flavour of the connection
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// WithinTx runs fn in one database transaction with repositories bound to it.
// The transaction commits only when fn returns nil.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, stores domain.Stores) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", domain.ErrPersistence, err)
	}
	defer tx.Rollback()

	c := conn{q: tx, dialect: db.dialect}
	stores := domain.Stores{
		Accounts:   &accountRepository{c: c},
		Ledger:     &ledgerRepository{c: c},
		Executions: &executionRepository{c: c},
	}

	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w: %w", domain.ErrPersistence, err)
	}

	return nil
}

func (db *DB) base() conn {
	return conn{q: db.DB, dialect: db.dialect}
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn rewrites ?-style placeholders for the target dialect
type conn struct {
	q       querier
	dialect Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// forUpdate returns the row-locking suffix; SQLite serializes writers instead
func (c conn) forUpdate() string {
	if c.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (c conn) rebind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// storedTimeLayout is fixed width so TEXT columns sort chronologically
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Timestamps and dates are written as text so both dialects accept them
func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	domain.DateLayout,
}

// timeValue scans DATE, TIMESTAMPTZ and TEXT columns into a time.Time
type timeValue struct {
	t      *time.Time
	asDate bool
}

func scanTime(t *time.Time) timeValue { return timeValue{t: t} }
func scanDate(t *time.Time) timeValue { return timeValue{t: t, asDate: true} }

func (v timeValue) Scan(src any) error {
	var parsed time.Time

	switch s := src.(type) {
	case nil:
		*v.t = time.Time{}
		return nil
	case time.Time:
		parsed = s
	case string:
		p, err := parseTime(s)
		if err != nil {
			return err
		}
		parsed = p
	case []byte:
		p, err := parseTime(string(s))
		if err != nil {
			return err
		}
		parsed = p
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}

	if v.asDate {
		*v.t = domain.DateOf(parsed)
	} else {
		*v.t = parsed.UTC()
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}
