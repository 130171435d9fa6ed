package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// Ledger 是帳務系統對外 (request layer) 的介面
type Ledger interface {
	CreateCustomer(ctx context.Context, name string) (*domain.Customer, error)
	OpenAccount(ctx context.Context, customerID int64, initialDeposit decimal.Decimal) (*domain.Account, error)
	TransferFunds(ctx context.Context, fromID, toID int64, amount decimal.Decimal) (*domain.Transfer, error)
	// TransferFundsWithRef 同 TransferFunds，但以 refID 做冪等，重送不會重複扣款
	TransferFundsWithRef(ctx context.Context, refID uuid.UUID, fromID, toID int64, amount decimal.Decimal) (*domain.Transfer, error)
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	GetTransferHistory(ctx context.Context, accountID int64) ([]*domain.Transfer, error)
}
