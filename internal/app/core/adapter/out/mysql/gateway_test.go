package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
)

// dryRunDB 建立不會連線的 GORM 實例，只用來產生 SQL
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/ledger?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestLockAccountsQuery(t *testing.T) {
	db := dryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return lockAccountsQuery(tx, []int64{3, 7}).Find(&[]sqlAccount{})
	})

	assert.Contains(t, sql, "`accounts`")
	assert.Contains(t, sql, "id IN (3,7)")
	assert.Contains(t, sql, "ORDER BY id")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestListTransfersQuery(t *testing.T) {
	db := dryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return listTransfersQuery(tx, 7).Find(&[]sqlTransfer{})
	})

	assert.Contains(t, sql, "`transfers`")
	assert.Contains(t, sql, "from_account_id = 7 OR to_account_id = 7")
	assert.Contains(t, sql, "ORDER BY created_at")
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestUpdateBalanceQuery(t *testing.T) {
	db := dryRunDB(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return updateBalanceQuery(tx, 3, decimal.RequireFromString("12.5"), time.Now())
	})

	assert.Contains(t, sql, "UPDATE `accounts` SET")
	assert.Contains(t, sql, "`balance`")
	assert.Contains(t, sql, "WHERE id = 3")
}

func TestTransferMapping(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	transfer := &domain.Transfer{
		Record:        domain.Record{ID: 9, CreatedAt: created, UpdatedAt: created},
		RefID:         uuid.New(),
		FromAccountID: 1,
		ToAccountID:   2,
		Amount:        decimal.RequireFromString("40.0001"),
	}

	row := newSQLTransfer(transfer)
	assert.Len(t, row.RefID, 16)
	assert.Equal(t, 123456000, row.CreatedAt.Nanosecond())

	got, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, transfer.RefID, got.RefID)
	assert.Equal(t, transfer.FromAccountID, got.FromAccountID)
	assert.True(t, transfer.Amount.Equal(got.Amount))

	row.RefID = []byte{1, 2, 3}
	_, err = row.toDomain()
	assert.Error(t, err)
}

func TestAccountMapping(t *testing.T) {
	account := &domain.Account{Record: domain.Record{ID: 4}, CustomerID: 2, Balance: decimal.RequireFromString("0.5")}
	got := newSQLAccount(account).toDomain()
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, account.CustomerID, got.CustomerID)
	assert.True(t, account.Balance.Equal(got.Balance))

	customer := &domain.Customer{Record: domain.Record{ID: 1}, Name: "John Doe"}
	assert.Equal(t, "John Doe", newSQLCustomer(customer).toDomain().Name)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), usecase.ErrRecordNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrConstraint)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), gorm.ErrDuplicatedKey)

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
}

func TestTx_RejectsNegativeBalance(t *testing.T) {
	tx := &tx{db: dryRunDB(t)}
	err := tx.UpdateAccountBalance(context.Background(), 1, decimal.NewFromInt(-1), time.Now())
	assert.ErrorIs(t, err, ErrConstraint)
}
