package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account 帳戶。Balance 在每個交易邊界都必須 >= 0
type Account struct {
	Record
	CustomerID int64           `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// NewAccount 以初始存款建立帳戶 (尚未寫入儲存層)
func NewAccount(customerID int64, initialDeposit decimal.Decimal) (*Account, error) {
	if err := ValidateDeposit(initialDeposit); err != nil {
		return nil, err
	}
	return &Account{
		CustomerID: customerID,
		Balance:    initialDeposit,
	}, nil
}

// Credit 入帳
func (a *Account) Credit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Debit 扣款，餘額不足時不改變任何狀態
func (a *Account) Debit(amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if a.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account %d", ErrInsufficientFunds, a.ID)
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}
