package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountStore is a mock implementation of AccountStore for testing
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountStore) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountStore) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountStore) Lock(ctx context.Context, ids ...uuid.UUID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockLedger is a mock implementation of LedgerAppender for testing
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Append(ctx context.Context, entry *domain.LedgerEntry) (uuid.UUID, error) {
	args := m.Called(ctx, entry)
	return entry.ID, args.Error(0)
}

func (m *MockLedger) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LedgerEntry), args.Error(1)
}

// MockExecutionLog is a mock implementation of ExecutionLog for testing
type MockExecutionLog struct {
	mock.Mock
}

func (m *MockExecutionLog) Claim(ctx context.Context, exec *domain.Execution) error {
	args := m.Called(ctx, exec)
	return args.Error(0)
}

func (m *MockExecutionLog) Exists(ctx context.Context, orderID uuid.UUID, runDate time.Time) (bool, error) {
	args := m.Called(ctx, orderID, runDate)
	return args.Bool(0), args.Error(1)
}

// fakeTransactor runs fn against the mocks and reports whether the unit of work committed
type fakeTransactor struct {
	stores    domain.Stores
	committed int
	rolled    int
	beginErr  error
}

func (f *fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, stores domain.Stores) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	if err := fn(ctx, f.stores); err != nil {
		f.rolled++
		return err
	}
	f.committed++
	return nil
}

type fakeMirror struct {
	entries []*domain.LedgerEntry
	err     error
}

func (f *fakeMirror) Mirror(ctx context.Context, entries []*domain.LedgerEntry) error {
	f.entries = append(f.entries, entries...)
	return f.err
}

type fixture struct {
	accounts   *MockAccountStore
	ledger     *MockLedger
	executions *MockExecutionLog
	tx         *fakeTransactor
	exec       *TransferExecutor
	order      *domain.StandingOrder
	runDate    time.Time
}

func decimalEq(n int64) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(n))
	})
}

var clearingID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func newFixture(t *testing.T) *fixture {
	accounts := new(MockAccountStore)
	ledger := new(MockLedger)
	executions := new(MockExecutionLog)
	tx := &fakeTransactor{stores: domain.Stores{Accounts: accounts, Ledger: ledger, Executions: executions}}

	exec := NewTransferExecutor(tx, clearingID, false, nil)
	exec.Now = func() time.Time { return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC) }

	target := uuid.New()
	order := &domain.StandingOrder{
		ID:                  uuid.New(),
		Amount:              decimal.NewFromInt(100),
		StartDate:           time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
		Frequency:           domain.FrequencyMonthly,
		Description:         "Rent",
		Active:              true,
		SourceAccountID:     uuid.New(),
		TargetAccountID:     &target,
		TargetAccountNumber: "ACC-TARGET",
	}

	return &fixture{
		accounts:   accounts,
		ledger:     ledger,
		executions: executions,
		tx:         tx,
		exec:       exec,
		order:      order,
		runDate:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) target() uuid.UUID {
	return *f.order.TargetAccountID
}

func TestExecute_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src, dst := f.order.SourceAccountID, f.target()

	f.executions.On("Claim", ctx, mock.MatchedBy(func(e *domain.Execution) bool {
		return e.OrderID == f.order.ID && e.RunDate.Equal(f.runDate) && e.EntryID != uuid.Nil
	})).Return(nil)
	f.accounts.On("Lock", ctx, OrderedIDs(src, dst)).Return(nil)
	f.accounts.On("GetBalance", ctx, src).Return(decimal.NewFromInt(250), nil)
	f.accounts.On("ApplyDelta", ctx, src, decimalEq(-100)).Return(decimal.NewFromInt(150), nil)
	f.accounts.On("ApplyDelta", ctx, dst, decimalEq(100)).Return(decimal.NewFromInt(150), nil)
	f.ledger.On("Append", ctx, mock.MatchedBy(func(e *domain.LedgerEntry) bool {
		return e.AccountID == src &&
			e.Direction == domain.EntryDirectionDebit &&
			e.Kind == domain.EntryKindTransfer &&
			e.Amount.Equal(decimal.NewFromInt(100)) &&
			e.BalanceAfter.Equal(decimal.NewFromInt(150)) &&
			*e.OrderID == f.order.ID
	})).Return(nil).Once()

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, result.Outcome)
	assert.True(t, result.SourceBalance.Equal(decimal.NewFromInt(150)))
	assert.True(t, result.TargetBalance.Equal(decimal.NewFromInt(150)))
	require.NotNil(t, result.DebitEntry)
	assert.Contains(t, result.DebitEntry.Description, "ACC-TARGET")
	assert.Nil(t, result.CreditEntry)
	assert.Equal(t, 1, f.tx.committed)

	f.accounts.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
	f.executions.AssertExpectations(t)
	assert.Equal(t, 0, f.exec.locks.Len())
}

func TestExecute_MirrorsCreditEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.exec.MirrorCredits = true
	mirror := &fakeMirror{}
	f.exec.Audit = mirror
	src, dst := f.order.SourceAccountID, f.target()

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, mock.Anything).Return(nil)
	f.accounts.On("GetBalance", ctx, src).Return(decimal.NewFromInt(100), nil)
	f.accounts.On("ApplyDelta", ctx, src, mock.Anything).Return(decimal.Zero, nil)
	f.accounts.On("ApplyDelta", ctx, dst, mock.Anything).Return(decimal.NewFromInt(175), nil)
	f.ledger.On("Append", ctx, mock.MatchedBy(func(e *domain.LedgerEntry) bool {
		return e.Direction == domain.EntryDirectionDebit && e.BalanceAfter.IsZero()
	})).Return(nil).Once()
	f.ledger.On("Append", ctx, mock.MatchedBy(func(e *domain.LedgerEntry) bool {
		return e.Direction == domain.EntryDirectionCredit &&
			e.AccountID == dst &&
			e.BalanceAfter.Equal(decimal.NewFromInt(175))
	})).Return(nil).Once()

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, result.Outcome)
	require.NotNil(t, result.CreditEntry)
	assert.Len(t, mirror.entries, 2)
	f.ledger.AssertExpectations(t)
}

func TestExecute_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.order.SourceAccountID

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, mock.Anything).Return(nil)
	f.accounts.On("GetBalance", ctx, src).Return(decimal.NewFromInt(99), nil)

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeInsufficientFunds, result.Outcome)
	assert.True(t, result.SourceBalance.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, 0, f.tx.committed)
	assert.Equal(t, 1, f.tx.rolled)
	f.accounts.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestExecute_ExactBalanceIsEnough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src, dst := f.order.SourceAccountID, f.target()

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, mock.Anything).Return(nil)
	f.accounts.On("GetBalance", ctx, src).Return(decimal.NewFromInt(100), nil)
	f.accounts.On("ApplyDelta", ctx, src, mock.Anything).Return(decimal.Zero, nil)
	f.accounts.On("ApplyDelta", ctx, dst, mock.Anything).Return(decimal.NewFromInt(100), nil)
	f.ledger.On("Append", ctx, mock.Anything).Return(nil)

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, result.Outcome)
	assert.True(t, result.SourceBalance.IsZero())
}

func TestExecute_AlreadyExecuted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.executions.On("Claim", ctx, mock.Anything).
		Return(fmt.Errorf("claim: %w", domain.ErrAlreadyExecuted))

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyExecuted, result.Outcome)
	f.accounts.AssertNotCalled(t, "Lock", mock.Anything, mock.Anything)
	f.accounts.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
}

func TestExecute_AccountNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, mock.Anything).
		Return(fmt.Errorf("failed to lock account: %w", domain.ErrAccountNotFound))

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeAccountNotFound, result.Outcome)
	assert.Equal(t, 1, f.tx.rolled)
}

func TestExecute_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src, dst := f.order.SourceAccountID, f.target()

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, mock.Anything).Return(nil)
	f.accounts.On("GetBalance", ctx, src).Return(decimal.NewFromInt(500), nil)
	f.accounts.On("ApplyDelta", ctx, src, mock.Anything).Return(decimal.NewFromInt(400), nil)
	f.accounts.On("ApplyDelta", ctx, dst, mock.Anything).Return(decimal.NewFromInt(100), nil)
	f.ledger.On("Append", ctx, mock.Anything).Return(errors.New("disk full"))

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, f.tx.committed)
}

func TestExecute_BeginFailureKeepsPersistenceSentinel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tx.beginErr = fmt.Errorf("failed to begin transaction: %w", domain.ErrPersistence)

	_, err := f.exec.Execute(ctx, f.order, f.runDate)

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, 0, f.exec.locks.Len())
}

func TestExecute_ExternalTargetCreditsClearingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.order.TargetAccountID = nil
	f.order.TargetAccountNumber = "DE89370400440532013000"
	src := f.order.SourceAccountID

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, OrderedIDs(src, clearingID)).Return(nil)
	f.accounts.On("GetBalance", ctx, src).Return(decimal.NewFromInt(300), nil)
	f.accounts.On("ApplyDelta", ctx, src, decimalEq(-100)).Return(decimal.NewFromInt(200), nil)
	f.accounts.On("ApplyDelta", ctx, clearingID, decimalEq(100)).Return(decimal.NewFromInt(100), nil)
	f.ledger.On("Append", ctx, mock.MatchedBy(func(e *domain.LedgerEntry) bool {
		return e.AccountID == src && e.Description == "Standing order transfer to DE89370400440532013000: Rent"
	})).Return(nil)

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, result.Outcome)
	f.accounts.AssertExpectations(t)
}

func TestExecute_MirrorFailureDoesNotFailTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.exec.Audit = &fakeMirror{err: errors.New("immudb unavailable")}

	f.executions.On("Claim", ctx, mock.Anything).Return(nil)
	f.accounts.On("Lock", ctx, mock.Anything).Return(nil)
	f.accounts.On("GetBalance", ctx, mock.Anything).Return(decimal.NewFromInt(1000), nil)
	f.accounts.On("ApplyDelta", ctx, mock.Anything, mock.Anything).Return(decimal.NewFromInt(900), nil)
	f.ledger.On("Append", ctx, mock.Anything).Return(nil)

	result, err := f.exec.Execute(ctx, f.order, f.runDate)

	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, result.Outcome)
}

func TestExecute_InactiveOrder(t *testing.T) {
	f := newFixture(t)
	f.order.Active = false

	_, err := f.exec.Execute(context.Background(), f.order, f.runDate)

	assert.ErrorIs(t, err, domain.ErrOrderInactive)
	assert.Equal(t, 0, f.tx.committed+f.tx.rolled)
}

func TestExecute_InvalidFrequency(t *testing.T) {
	f := newFixture(t)
	f.order.Frequency = "FORTNIGHTLY"

	_, err := f.exec.Execute(context.Background(), f.order, f.runDate)

	assert.ErrorIs(t, err, domain.ErrInvalidFrequency)
}
