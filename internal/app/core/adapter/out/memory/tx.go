package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
)

// tx 暫存一個交易的寫入集合。
// 讀取時先看交易內的暫存，再看已提交的資料 (read-your-writes)。
// 帳戶之間的互斥由 usecase 的帳戶鎖負責，tx 本身不持有 Store 的鎖；
// 提交時若要覆寫的帳戶已被其他交易改過，整筆提交以 ErrWriteConflict 失敗
type tx struct {
	ctx   context.Context
	store *Store
	done  bool

	customers    map[int64]domain.Customer
	accounts     map[int64]domain.Account
	accountOrder []int64
	transfers    []domain.Transfer

	// 從已提交資料讀到的帳戶版本，提交時比對
	readVersions map[int64]domain.Account
}

func newTx(ctx context.Context, s *Store) *tx {
	return &tx{
		ctx:       ctx,
		store:     s,
		customers:    make(map[int64]domain.Customer),
		accounts:     make(map[int64]domain.Account),
		readVersions: make(map[int64]domain.Account),
	}
}

func (t *tx) check() error {
	if t.done {
		return ErrTxDone
	}
	return t.ctx.Err()
}

func (t *tx) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if c, ok := t.customers[id]; ok {
		return &c, nil
	}
	return t.store.GetCustomer(ctx, id)
}

func (t *tx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if a, ok := t.accounts[id]; ok {
		return &a, nil
	}
	a, err := t.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := t.readVersions[id]; !ok {
		t.readVersions[id] = *a
	}
	return a, nil
}

func (t *tx) GetTransferByRef(ctx context.Context, refID uuid.UUID) (*domain.Transfer, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	for i := range t.transfers {
		if t.transfers[i].RefID == refID {
			tr := t.transfers[i]
			return &tr, nil
		}
	}
	return t.store.GetTransferByRef(ctx, refID)
}

func (t *tx) ListTransfers(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	out, err := t.store.ListTransfers(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := range t.transfers {
		if t.transfers[i].Involves(accountID) {
			tr := t.transfers[i]
			out = append(out, &tr)
		}
	}
	sortTransfers(out)
	return out, nil
}

func (t *tx) InsertCustomer(ctx context.Context, customer *domain.Customer) error {
	if err := t.check(); err != nil {
		return err
	}
	if strings.TrimSpace(customer.Name) == "" {
		return fmt.Errorf("%w: customers.name is empty", ErrConstraint)
	}
	customer.ID = t.store.customerSeq.Add(1)
	t.customers[customer.ID] = *customer
	return nil
}

func (t *tx) InsertAccount(ctx context.Context, account *domain.Account) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, err := t.GetCustomer(ctx, account.CustomerID); err != nil {
		return fmt.Errorf("%w: accounts.customer_id %d references no customer", ErrConstraint, account.CustomerID)
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("%w: accounts.balance %s < 0", ErrConstraint, account.Balance)
	}
	account.ID = t.store.accountSeq.Add(1)
	t.putAccount(*account)
	return nil
}

func (t *tx) InsertTransfer(ctx context.Context, transfer *domain.Transfer) error {
	if err := t.check(); err != nil {
		return err
	}
	for _, id := range []int64{transfer.FromAccountID, transfer.ToAccountID} {
		if _, err := t.GetAccount(ctx, id); err != nil {
			return fmt.Errorf("%w: transfers references unknown account %d", ErrConstraint, id)
		}
	}
	if !transfer.Amount.IsPositive() {
		return fmt.Errorf("%w: transfers.amount %s <= 0", ErrConstraint, transfer.Amount)
	}
	if _, err := t.GetTransferByRef(ctx, transfer.RefID); err == nil {
		return fmt.Errorf("%w: duplicate transfer ref %s", ErrConstraint, transfer.RefID)
	}
	transfer.ID = t.store.transferSeq.Add(1)
	t.transfers = append(t.transfers, *transfer)
	return nil
}

// LockAccounts 記憶體實作只負責讀取；互斥由呼叫端的帳戶鎖保證
func (t *tx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]*domain.Account, len(sorted))
	for _, id := range sorted {
		if _, ok := out[id]; ok {
			continue
		}
		a, err := t.GetAccount(ctx, id)
		if err != nil {
			if errors.Is(err, usecase.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}

func (t *tx) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	if err := t.check(); err != nil {
		return err
	}
	if balance.IsNegative() {
		return fmt.Errorf("%w: accounts.balance %s < 0", ErrConstraint, balance)
	}
	a, err := t.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	a.Balance = balance
	a.UpdatedAt = updatedAt
	t.putAccount(*a)
	return nil
}

func (t *tx) putAccount(a domain.Account) {
	if _, ok := t.accounts[a.ID]; !ok {
		t.accountOrder = append(t.accountOrder, a.ID)
	}
	t.accounts[a.ID] = a
}

// Commit 一次套用所有暫存寫入；ctx 已取消時視同回滾
func (t *tx) Commit() error {
	if err := t.check(); err != nil {
		t.done = true
		return err
	}
	t.done = true

	rec := &walRecord{Transfers: t.transfers, versions: t.readVersions}
	for _, c := range t.customers {
		rec.Customers = append(rec.Customers, c)
	}
	sort.Slice(rec.Customers, func(i, j int) bool { return rec.Customers[i].ID < rec.Customers[j].ID })
	for _, id := range t.accountOrder {
		rec.Accounts = append(rec.Accounts, t.accounts[id])
	}
	if len(rec.Customers) == 0 && len(rec.Accounts) == 0 && len(rec.Transfers) == 0 {
		return nil
	}
	return t.store.commit(rec)
}

// Rollback 丟棄暫存寫入
func (t *tx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return nil
}

var _ usecase.Tx = (*tx)(nil)
