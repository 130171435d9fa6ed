package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// 金額使用 decimal，並定義精度：小數點後 4 位
const MoneyScale int32 = 4

// ParseAmount 解析字串金額並檢查精度，不檢查正負
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := checkScale(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount 轉帳金額必須為正數，且不超過 MoneyScale 位小數
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount)
	}
	return checkScale(amount)
}

// ValidateDeposit 開戶存款可為 0，但不可為負
func ValidateDeposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidAmount, amount)
	}
	return checkScale(amount)
}

func checkScale(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d, MoneyScale)
	}
	return nil
}
