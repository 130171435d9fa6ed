package domain

import "errors"

var (
	// ErrCustomerNotFound 找不到客戶
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrCustomerNotCreated 客戶建立失敗 (寫入已回滾)
	ErrCustomerNotCreated = errors.New("customer not created")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountNotCreated 帳戶建立失敗 (寫入已回滾)
	ErrAccountNotCreated = errors.New("account not created")

	// ErrAccountNotUpdated 帳戶餘額更新失敗 (寫入已回滾)
	ErrAccountNotUpdated = errors.New("account not updated")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransferFailed 轉帳提交失敗，帳本維持呼叫前的狀態
	ErrTransferFailed = errors.New("transfer failed")

	// ErrDuplicateRef RefID 已被另一筆內容不同的轉帳使用
	ErrDuplicateRef = errors.New("transfer ref already used")

	// ErrInvalidAmount 金額不合法 (非正數或超過精度)
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEmptyName 客戶名稱不可為空
	ErrEmptyName = errors.New("customer name must not be empty")
)
