package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	acc, err := NewAccount(7, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(7), acc.CustomerID)
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(100)))

	_, err = NewAccount(7, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAccount_DebitCredit(t *testing.T) {
	acc := &Account{Record: Record{ID: 1}, Balance: decimal.NewFromInt(100)}

	require.NoError(t, acc.Debit(decimal.NewFromInt(40)))
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(60)))

	err := acc.Debit(decimal.NewFromInt(61))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	// 餘額不足時不可改變餘額
	assert.True(t, acc.Balance.Equal(decimal.NewFromInt(60)))

	require.NoError(t, acc.Credit(decimal.RequireFromString("0.5")))
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("60.5")))

	assert.ErrorIs(t, acc.Credit(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, acc.Debit(decimal.NewFromInt(-3)), ErrInvalidAmount)
}
