package mysql

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// sqlCustomer 對應資料庫的 customers 表
type sqlCustomer struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"type:datetime(6);not null"`
	UpdatedAt time.Time `gorm:"type:datetime(6);not null"`
}

func (*sqlCustomer) TableName() string {
	return "customers"
}

// sqlAccount 對應資料庫的 accounts 表，餘額不可為負由資料庫再把關一次
type sqlAccount struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	CustomerID int64           `gorm:"not null;index"`
	Balance    decimal.Decimal `gorm:"type:decimal(20,4);not null;check:chk_accounts_balance,balance >= 0"`
	CreatedAt  time.Time       `gorm:"type:datetime(6);not null"`
	UpdatedAt  time.Time       `gorm:"type:datetime(6);not null"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransfer 對應資料庫的 transfers 表 (只新增，不更新)
type sqlTransfer struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	RefID         []byte          `gorm:"column:ref_id;type:binary(16);not null;uniqueIndex"` // 對應 domain.Transfer.RefID
	FromAccountID int64           `gorm:"not null;index"`
	ToAccountID   int64           `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	CreatedAt     time.Time       `gorm:"type:datetime(6);not null;index"`
	UpdatedAt     time.Time       `gorm:"type:datetime(6);not null"`
}

func (*sqlTransfer) TableName() string {
	return "transfers"
}

// datetime(6) 只存到微秒
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func newSQLCustomer(c *domain.Customer) *sqlCustomer {
	return &sqlCustomer{
		ID:        c.ID,
		Name:      c.Name,
		CreatedAt: dbTime(c.CreatedAt),
		UpdatedAt: dbTime(c.UpdatedAt),
	}
}

func (row *sqlCustomer) toDomain() *domain.Customer {
	return &domain.Customer{
		Record: domain.Record{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		Name:   row.Name,
	}
}

func newSQLAccount(a *domain.Account) *sqlAccount {
	return &sqlAccount{
		ID:         a.ID,
		CustomerID: a.CustomerID,
		Balance:    a.Balance,
		CreatedAt:  dbTime(a.CreatedAt),
		UpdatedAt:  dbTime(a.UpdatedAt),
	}
}

func (row *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		Record:     domain.Record{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		CustomerID: row.CustomerID,
		Balance:    row.Balance,
	}
}

func newSQLTransfer(t *domain.Transfer) *sqlTransfer {
	return &sqlTransfer{
		ID:            t.ID,
		RefID:         t.RefID[:],
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		CreatedAt:     dbTime(t.CreatedAt),
		UpdatedAt:     dbTime(t.UpdatedAt),
	}
}

func (row *sqlTransfer) toDomain() (*domain.Transfer, error) {
	refID, err := uuid.FromBytes(row.RefID)
	if err != nil {
		return nil, fmt.Errorf("transfer %d has invalid ref_id: %w", row.ID, err)
	}
	return &domain.Transfer{
		Record:        domain.Record{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		RefID:         refID,
		FromAccountID: row.FromAccountID,
		ToAccountID:   row.ToAccountID,
		Amount:        row.Amount,
	}, nil
}
