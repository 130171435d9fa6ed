package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// ErrRecordNotFound 儲存層查無資料 (屬於領域條件，不是寫入失敗)
var ErrRecordNotFound = errors.New("record not found")

// Reader 儲存層的讀取操作
type Reader interface {
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetTransferByRef(ctx context.Context, refID uuid.UUID) (*domain.Transfer, error)
	// ListTransfers 回傳帳戶為來源或目的的所有轉帳，依 CreatedAt、ID 遞增排序，不重複
	ListTransfers(ctx context.Context, accountID int64) ([]*domain.Transfer, error)
}

// Tx 一個全有或全無的工作單元。Commit 或 Rollback 之後不可再使用
type Tx interface {
	Reader

	// InsertCustomer / InsertAccount / InsertTransfer 寫入後回填 ID
	InsertCustomer(ctx context.Context, customer *domain.Customer) error
	InsertAccount(ctx context.Context, account *domain.Account) error
	InsertTransfer(ctx context.Context, transfer *domain.Transfer) error

	// LockAccounts 以 ID 由小到大鎖定帳戶直到交易結束 (悲觀鎖)，不存在的 ID 不會出現在結果中
	LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error

	Commit() error
	Rollback() error
}

// Gateway 是帳務系統的持久層介面
type Gateway interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
}

// withTx 在單一交易中執行 fn；fn 回傳錯誤或 Commit 失敗都會回滾
func withTx(ctx context.Context, gw Gateway, fn func(tx Tx) error) error {
	tx, err := gw.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
