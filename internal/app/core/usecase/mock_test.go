package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// MockGateway is a mock implementation of Gateway for testing
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Begin(ctx context.Context) (Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Tx), args.Error(1)
}

func (m *MockGateway) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockGateway) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockGateway) GetTransferByRef(ctx context.Context, refID uuid.UUID) (*domain.Transfer, error) {
	args := m.Called(ctx, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

func (m *MockGateway) ListTransfers(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transfer), args.Error(1)
}

// MockTx is a mock implementation of Tx for testing
type MockTx struct {
	MockGateway
}

func (m *MockTx) InsertCustomer(ctx context.Context, customer *domain.Customer) error {
	return m.Called(ctx, customer).Error(0)
}

func (m *MockTx) InsertAccount(ctx context.Context, account *domain.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockTx) InsertTransfer(ctx context.Context, transfer *domain.Transfer) error {
	return m.Called(ctx, transfer).Error(0)
}

func (m *MockTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]*domain.Account), args.Error(1)
}

func (m *MockTx) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	return m.Called(ctx, id, balance, updatedAt).Error(0)
}

func (m *MockTx) Commit() error {
	return m.Called().Error(0)
}

func (m *MockTx) Rollback() error {
	return m.Called().Error(0)
}
