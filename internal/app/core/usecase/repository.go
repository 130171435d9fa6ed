package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// CustomerRepository 客戶的型別化存取，將儲存層錯誤轉成領域錯誤
type CustomerRepository struct {
	gateway Gateway
	now     func() time.Time
}

func NewCustomerRepository(gateway Gateway) *CustomerRepository {
	return &CustomerRepository{gateway: gateway, now: time.Now}
}

// Create 建立客戶；任何寫入失敗 (含限制違反) 都以 ErrCustomerNotCreated 回傳，且已回滾
func (r *CustomerRepository) Create(ctx context.Context, name string) (*domain.Customer, error) {
	customer, err := domain.NewCustomer(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCustomerNotCreated, err)
	}
	customer.Touch(r.now())

	err = withTx(ctx, r.gateway, func(tx Tx) error {
		return tx.InsertCustomer(ctx, customer)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: name %q: %w", domain.ErrCustomerNotCreated, customer.Name, err)
	}
	return customer, nil
}

// Get 依主鍵查詢客戶
func (r *CustomerRepository) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	return getCustomer(ctx, r.gateway, id)
}

func getCustomer(ctx context.Context, reader Reader, id int64) (*domain.Customer, error) {
	customer, err := reader.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrCustomerNotFound, id)
		}
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return customer, nil
}

// AccountRepository 帳戶的型別化存取
type AccountRepository struct {
	gateway Gateway
	locks   *accountLocks
	now     func() time.Time
}

// NewAccountRepository 建立帳戶 repository，帶有自己的行程內帳戶鎖。
// 與 CoreUseCase 共用同一個 Gateway 時，兩邊的鎖互不相干：
// 同一帳戶的並行更新要靠 Gateway 自己的列鎖 (MySQL FOR UPDATE) 或提交時的衝突檢查 (memory ErrWriteConflict)，
// 衝突的一方以 ErrAccountNotUpdated / ErrTransferFailed 失敗，不會覆寫另一方的結果
func NewAccountRepository(gateway Gateway) *AccountRepository {
	return &AccountRepository{
		gateway: gateway,
		locks:   newAccountLocks(defaultLockStripes),
		now:     time.Now,
	}
}

// Create 先確認客戶存在，再以初始存款建立帳戶
//
// 回傳:
//
//	*domain.Account: 已寫入的帳戶
//	error: ErrInvalidAmount / ErrCustomerNotFound / ErrAccountNotCreated
func (r *AccountRepository) Create(ctx context.Context, customerID int64, initialDeposit decimal.Decimal) (*domain.Account, error) {
	account, err := domain.NewAccount(customerID, initialDeposit)
	if err != nil {
		return nil, err
	}
	account.Touch(r.now())

	err = withTx(ctx, r.gateway, func(tx Tx) error {
		if _, err := getCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		if err := tx.InsertAccount(ctx, account); err != nil {
			return fmt.Errorf("%w: customer %d: %w", domain.ErrAccountNotCreated, customerID, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) || errors.Is(err, domain.ErrAccountNotCreated) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: customer %d: %w", domain.ErrAccountNotCreated, customerID, err)
	}
	return account, nil
}

// Get 依主鍵查詢帳戶
func (r *AccountRepository) Get(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccount(ctx, r.gateway, id)
}

func getAccount(ctx context.Context, reader Reader, id int64) (*domain.Account, error) {
	account, err := reader.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return account, nil
}

// UpdateBalance 覆寫單一帳戶的餘額。
// 注意: 這不是跨帳戶的原子操作，轉帳不可用兩次 UpdateBalance 完成 (請用 TransferEngine)
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	if err := domain.ValidateDeposit(newBalance); err != nil {
		return err
	}

	unlock, err := r.locks.Acquire(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: id %d: %w", domain.ErrAccountNotUpdated, id, err)
	}
	defer unlock()

	err = withTx(ctx, r.gateway, func(tx Tx) error {
		locked, err := r.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, ok := locked[id]; !ok {
			return fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, id)
		}
		return tx.UpdateAccountBalance(ctx, id, newBalance, r.now())
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("%w: id %d: %w", domain.ErrAccountNotUpdated, id, err)
	}
	return nil
}

// lock 在交易內以悲觀鎖讀取帳戶
func (r *AccountRepository) lock(ctx context.Context, tx Tx, ids ...int64) (map[int64]*domain.Account, error) {
	accounts, err := tx.LockAccounts(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts %v: %w", ids, err)
	}
	return accounts, nil
}

// writeBalance 在交易內寫回帳戶餘額
func (r *AccountRepository) writeBalance(ctx context.Context, tx Tx, account *domain.Account) error {
	if err := tx.UpdateAccountBalance(ctx, account.ID, account.Balance, account.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update balance of account %d: %w", account.ID, err)
	}
	return nil
}

// TransferRepository 轉帳紀錄的型別化存取 (只增不改)
type TransferRepository struct {
	gateway Gateway
}

func NewTransferRepository(gateway Gateway) *TransferRepository {
	return &TransferRepository{gateway: gateway}
}

// Create 在呼叫端的交易內新增轉帳紀錄，失敗以 ErrTransferFailed 回傳
func (r *TransferRepository) Create(ctx context.Context, tx Tx, transfer *domain.Transfer) error {
	if err := tx.InsertTransfer(ctx, transfer); err != nil {
		return fmt.Errorf("%w: from %d to %d: %w", domain.ErrTransferFailed, transfer.FromAccountID, transfer.ToAccountID, err)
	}
	return nil
}

// GetByRef 依外部追蹤號查詢轉帳；不存在時回傳 (nil, nil)
func (r *TransferRepository) GetByRef(ctx context.Context, reader Reader, refID uuid.UUID) (*domain.Transfer, error) {
	if reader == nil {
		reader = r.gateway
	}
	transfer, err := reader.GetTransferByRef(ctx, refID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transfer by ref %s: %w", refID, err)
	}
	return transfer, nil
}

// ListForAccount 帳戶為任一端的所有轉帳。查無資料回傳空切片，不代表帳戶存在
func (r *TransferRepository) ListForAccount(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	transfers, err := r.gateway.ListTransfers(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers of account %d: %w", accountID, err)
	}
	if transfers == nil {
		transfers = []*domain.Transfer{}
	}
	return transfers, nil
}
