package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層 (Ledger Facade)。
// 只負責協調 repository 與 TransferEngine，本身沒有持久層邏輯。
// 在 main 建立一次後注入給 request layer
type CoreUseCase struct {
	customers *CustomerRepository
	accounts  *AccountRepository
	transfers *TransferRepository
	engine    *TransferEngine
}

// Option 設定 CoreUseCase
type Option func(*CoreUseCase)

// WithLockStripes 設定行程內帳戶鎖的分段數量
func WithLockStripes(n int) Option {
	return func(c *CoreUseCase) {
		c.accounts.locks = newAccountLocks(n)
	}
}

func NewCoreUseCase(gateway Gateway, opts ...Option) *CoreUseCase {
	customers := NewCustomerRepository(gateway)
	accounts := NewAccountRepository(gateway)
	transfers := NewTransferRepository(gateway)
	c := &CoreUseCase{
		customers: customers,
		accounts:  accounts,
		transfers: transfers,
		engine:    NewTransferEngine(gateway, accounts, transfers),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCustomer 建立客戶
func (c *CoreUseCase) CreateCustomer(ctx context.Context, name string) (*domain.Customer, error) {
	return c.customers.Create(ctx, name)
}

// OpenAccount 為客戶開戶並存入初始金額
func (c *CoreUseCase) OpenAccount(ctx context.Context, customerID int64, initialDeposit decimal.Decimal) (*domain.Account, error) {
	return c.accounts.Create(ctx, customerID, initialDeposit)
}

// TransferFunds 轉帳，由伺服器產生 RefID
func (c *CoreUseCase) TransferFunds(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	return c.TransferFundsWithRef(ctx, uuid.Nil, fromID, toID, amount)
}

// TransferFundsWithRef 以呼叫端提供的 RefID 轉帳 (uuid.Nil 表示由伺服器產生)
func (c *CoreUseCase) TransferFundsWithRef(ctx context.Context, refID uuid.UUID, fromID, toID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	req, err := domain.NewTransfer(refID, fromID, toID, amount)
	if err != nil {
		return nil, err
	}
	return c.engine.Transfer(ctx, req)
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := c.accounts.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetTransferHistory 取得帳戶 (來源或目的) 的轉帳紀錄
func (c *CoreUseCase) GetTransferHistory(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	return c.transfers.ListForAccount(ctx, accountID)
}

var _ Ledger = (*CoreUseCase)(nil)
