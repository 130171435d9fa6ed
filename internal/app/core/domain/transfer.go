package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer 轉帳紀錄，建立後只增不改 (append-only)
type Transfer struct {
	Record
	// RefID: 外部追蹤號，重送同一個 RefID 不會重複扣款
	RefID         uuid.UUID       `json:"ref_id"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// NewTransfer 建立轉帳請求；refID 為 uuid.Nil 時自動產生
func NewTransfer(refID uuid.UUID, fromID, toID int64, amount decimal.Decimal) (*Transfer, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if refID == uuid.Nil {
		refID = uuid.New()
	}
	return &Transfer{
		RefID:         refID,
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
	}, nil
}

// IsSelfTransfer 來源與目的為同一帳戶
func (t *Transfer) IsSelfTransfer() bool {
	return t.FromAccountID == t.ToAccountID
}

// Involves 帳戶是否為此轉帳的任一端
func (t *Transfer) Involves(accountID int64) bool {
	return t.FromAccountID == accountID || t.ToAccountID == accountID
}

// LockIDs 回傳需要鎖定的帳號 ID，並確保順序 (由小到大) 以避免死鎖
func (t *Transfer) LockIDs() []int64 {
	switch {
	case t.IsSelfTransfer():
		return []int64{t.FromAccountID}
	case t.FromAccountID < t.ToAccountID:
		return []int64{t.FromAccountID, t.ToAccountID}
	default:
		return []int64{t.ToAccountID, t.FromAccountID}
	}
}
