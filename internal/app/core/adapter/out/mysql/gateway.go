package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
	"github.com/JoeShih716/go-ledger-service/pkg/mysql"
)

// ErrConstraint 資料庫限制 (唯一索引、CHECK) 拒絕寫入
var ErrConstraint = errors.New("mysql: constraint violation")

// Gateway 以 MySQL (GORM) 實作 usecase.Gateway
type Gateway struct {
	client *mysql.Client
}

func NewGateway(client *mysql.Client) *Gateway {
	return &Gateway{
		client: client,
	}
}

// Migrate 建立或更新資料表
func (g *Gateway) Migrate(ctx context.Context) error {
	if err := g.client.DB().WithContext(ctx).AutoMigrate(&sqlCustomer{}, &sqlAccount{}, &sqlTransfer{}); err != nil {
		return fmt.Errorf("failed to migrate ledger tables: %w", err)
	}
	return nil
}

// Begin 開啟資料庫交易
func (g *Gateway) Begin(ctx context.Context) (usecase.Tx, error) {
	db := g.client.DB().WithContext(ctx).Begin()
	if db.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", db.Error)
	}
	return &tx{db: db}, nil
}

func (g *Gateway) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return getCustomer(g.client.DB().WithContext(ctx), id)
}

func (g *Gateway) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccount(g.client.DB().WithContext(ctx), id)
}

func (g *Gateway) GetTransferByRef(ctx context.Context, refID uuid.UUID) (*domain.Transfer, error) {
	return getTransferByRef(g.client.DB().WithContext(ctx), refID)
}

func (g *Gateway) ListTransfers(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	return listTransfers(g.client.DB().WithContext(ctx), accountID)
}

// tx 包裝一個已開啟的 GORM 交易
type tx struct {
	db *gorm.DB
}

func (t *tx) session(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx)
}

func (t *tx) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return getCustomer(t.session(ctx), id)
}

func (t *tx) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return getAccount(t.session(ctx), id)
}

func (t *tx) GetTransferByRef(ctx context.Context, refID uuid.UUID) (*domain.Transfer, error) {
	return getTransferByRef(t.session(ctx), refID)
}

func (t *tx) ListTransfers(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	return listTransfers(t.session(ctx), accountID)
}

func (t *tx) InsertCustomer(ctx context.Context, customer *domain.Customer) error {
	row := newSQLCustomer(customer)
	if err := t.session(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	customer.ID = row.ID
	return nil
}

func (t *tx) InsertAccount(ctx context.Context, account *domain.Account) error {
	row := newSQLAccount(account)
	if err := t.session(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	account.ID = row.ID
	return nil
}

func (t *tx) InsertTransfer(ctx context.Context, transfer *domain.Transfer) error {
	row := newSQLTransfer(transfer)
	if err := t.session(ctx).Create(row).Error; err != nil {
		return translate(err)
	}
	transfer.ID = row.ID
	transfer.CreatedAt = row.CreatedAt
	transfer.UpdatedAt = row.UpdatedAt
	return nil
}

// LockAccounts 悲觀鎖: SELECT ... WHERE id IN (...) ORDER BY id FOR UPDATE
func (t *tx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*domain.Account, error) {
	var rows []sqlAccount
	if err := lockAccountsQuery(t.session(ctx), ids).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	accounts := make(map[int64]*domain.Account, len(rows))
	for i := range rows {
		accounts[rows[i].ID] = rows[i].toDomain()
	}
	return accounts, nil
}

// UpdateAccountBalance 只更新餘額與更新時間；呼叫前帳戶已在 LockAccounts 中鎖定
func (t *tx) UpdateAccountBalance(ctx context.Context, id int64, balance decimal.Decimal, updatedAt time.Time) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: account %d balance %s", ErrConstraint, id, balance)
	}
	err := updateBalanceQuery(t.session(ctx), id, balance, updatedAt).Error
	return translate(err)
}

func (t *tx) Commit() error {
	return t.db.Commit().Error
}

func (t *tx) Rollback() error {
	return t.db.Rollback().Error
}

func getCustomer(db *gorm.DB, id int64) (*domain.Customer, error) {
	var row sqlCustomer
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toDomain(), nil
}

func getAccount(db *gorm.DB, id int64) (*domain.Account, error) {
	var row sqlAccount
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toDomain(), nil
}

func getTransferByRef(db *gorm.DB, refID uuid.UUID) (*domain.Transfer, error) {
	var row sqlTransfer
	if err := db.Where("ref_id = ?", refID[:]).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toDomain()
}

func listTransfers(db *gorm.DB, accountID int64) ([]*domain.Transfer, error) {
	var rows []sqlTransfer
	if err := listTransfersQuery(db, accountID).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	transfers := make([]*domain.Transfer, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, nil
}

func lockAccountsQuery(db *gorm.DB, ids []int64) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id")
}

func listTransfersQuery(db *gorm.DB, accountID int64) *gorm.DB {
	// 自己轉給自己只有一筆紀錄，OR 條件不會重複
	return db.Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("created_at").
		Order("id")
}

func updateBalanceQuery(db *gorm.DB, id int64, balance decimal.Decimal, updatedAt time.Time) *gorm.DB {
	return db.Model(&sqlAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance":    balance,
			"updated_at": dbTime(updatedAt),
		})
}

// translate 將 GORM 錯誤轉為 usecase 層認得的錯誤
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return usecase.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	default:
		return err
	}
}

var _ usecase.Gateway = (*Gateway)(nil)
var _ usecase.Tx = (*tx)(nil)
