package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/standing-orders/internal/domain"
	"github.com/simaogato/standing-orders/internal/usecase/executor"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository for testing
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindDueCandidates(ctx context.Context, asOf time.Time) ([]*domain.StandingOrder, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StandingOrder), args.Error(1)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.StandingOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StandingOrder), args.Error(1)
}

func (m *MockOrderRepository) ListBySource(ctx context.Context, sourceAccountID uuid.UUID) ([]*domain.StandingOrder, error) {
	args := m.Called(ctx, sourceAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StandingOrder), args.Error(1)
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.StandingOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

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

// MockExecutor is a mock implementation of Executor for testing
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, order *domain.StandingOrder, runDate time.Time) (*executor.Result, error) {
	args := m.Called(ctx, order, runDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*executor.Result), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier for testing
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OnExecuted(ctx context.Context, order *domain.StandingOrder, runDate time.Time) (bool, error) {
	args := m.Called(ctx, order, runDate)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotifier) OnReminderDue(ctx context.Context, order *domain.StandingOrder, executionTime time.Time) (bool, error) {
	args := m.Called(ctx, order, executionTime)
	return args.Bool(0), args.Error(1)
}

// recordingMetrics collects what the service reports
type recordingMetrics struct {
	mu       sync.Mutex
	runs     int
	executed int
	failures map[string]int
	outcomes map[string]int
}

func (r *recordingMetrics) RunCompleted(executed, skipped int, failures map[string]int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	r.executed += executed
	r.failures = failures
}

func (r *recordingMetrics) TransferOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}
