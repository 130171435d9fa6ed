package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer_LockIDs(t *testing.T) {
	tests := []struct {
		name     string
		from, to int64
		want     []int64
	}{
		{name: "ascending", from: 1, to: 2, want: []int64{1, 2}},
		{name: "descending", from: 9, to: 3, want: []int64{3, 9}},
		{name: "self transfer", from: 4, to: 4, want: []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Transfer{FromAccountID: tt.from, ToAccountID: tt.to}
			assert.Equal(t, tt.want, tr.LockIDs())
		})
	}
}

func TestNewTransfer(t *testing.T) {
	tr, err := NewTransfer(uuid.Nil, 1, 2, decimal.NewFromInt(40))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tr.RefID)
	assert.True(t, tr.Involves(1))
	assert.True(t, tr.Involves(2))
	assert.False(t, tr.Involves(3))

	ref := uuid.New()
	tr, err = NewTransfer(ref, 1, 2, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, ref, tr.RefID)

	_, err = NewTransfer(uuid.Nil, 1, 2, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCustomer_Validate(t *testing.T) {
	c, err := NewCustomer("  John Doe ")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", c.Name)

	_, err = NewCustomer("   ")
	assert.ErrorIs(t, err, ErrEmptyName)
}
