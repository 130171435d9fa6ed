package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
)

// TransferEngine 轉帳核心。
// 資金檢查、雙邊餘額寫入與轉帳紀錄新增在同一個交易內完成，
// 並以兩層鎖保護 read-check-write：
//  1. 行程內的帳戶鎖 (依帳戶 ID 由小到大取得)
//  2. 交易內的悲觀鎖 (LockAccounts，MySQL 為 SELECT ... FOR UPDATE)，跨行程部署時仍然成立
type TransferEngine struct {
	gateway   Gateway
	accounts  *AccountRepository
	transfers *TransferRepository
	now       func() time.Time
}

func NewTransferEngine(gateway Gateway, accounts *AccountRepository, transfers *TransferRepository) *TransferEngine {
	return &TransferEngine{
		gateway:   gateway,
		accounts:  accounts,
		transfers: transfers,
		now:       time.Now,
	}
}

// Transfer 執行一筆轉帳
//
// 參數:
//
//	ctx: 上下文 (取消時帳本維持原狀)
//	req: 由 domain.NewTransfer 建立的轉帳請求
//
// 回傳:
//
//	*domain.Transfer: 已提交的轉帳紀錄 (RefID 已處理過時回傳原紀錄)
//	error: ErrAccountNotFound / ErrInsufficientFunds / ErrTransferFailed
func (e *TransferEngine) Transfer(ctx context.Context, req *domain.Transfer) (*domain.Transfer, error) {
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	// 0. Idempotency Check (Fast path，不需要鎖)
	if done, err := e.transfers.GetByRef(ctx, nil, req.RefID); err != nil {
		return nil, e.failed(req, err)
	} else if done != nil {
		return replay(done, req)
	}

	// 1. 取得行程內的帳戶鎖
	unlock, err := e.accounts.locks.Acquire(ctx, req.LockIDs()...)
	if err != nil {
		return nil, e.failed(req, err)
	}
	defer unlock()

	var result *domain.Transfer
	err = withTx(ctx, e.gateway, func(tx Tx) error {
		var err error
		result, err = e.apply(ctx, tx, req)
		return err
	})
	if err != nil {
		if isValidationError(err) || errors.Is(err, domain.ErrDuplicateRef) {
			return nil, err
		}
		// 另一個行程可能同時提交了相同 RefID (唯一索引衝突)：以已提交的紀錄為準
		if done, lookupErr := e.transfers.GetByRef(ctx, nil, req.RefID); lookupErr == nil && done != nil {
			return replay(done, req)
		}
		return nil, e.failed(req, err)
	}
	return result, nil
}

// apply 在交易內執行: 鎖定 -> 檢查 -> 扣款/入帳 -> 新增紀錄
func (e *TransferEngine) apply(ctx context.Context, tx Tx, req *domain.Transfer) (*domain.Transfer, error) {
	locked, err := e.accounts.lock(ctx, tx, req.LockIDs()...)
	if err != nil {
		return nil, err
	}

	// 取得帳戶的列鎖之後再檢查一次 RefID：
	// 持有相同帳戶鎖的前一筆交易 (含其他行程) 此時已提交，看得到它的紀錄
	done, err := e.transfers.GetByRef(ctx, tx, req.RefID)
	if err != nil {
		return nil, err
	}
	if done != nil {
		return replay(done, req)
	}
	from, ok := locked[req.FromAccountID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, req.FromAccountID)
	}
	to, ok := locked[req.ToAccountID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", domain.ErrAccountNotFound, req.ToAccountID)
	}

	// 自己轉給自己時 from 與 to 是同一個指標，扣款後入帳餘額不變
	if err := from.Debit(req.Amount); err != nil {
		return nil, err
	}
	if err := to.Credit(req.Amount); err != nil {
		return nil, err
	}

	now := e.now()
	from.UpdatedAt = now
	to.UpdatedAt = now
	if err := e.accounts.writeBalance(ctx, tx, from); err != nil {
		return nil, err
	}
	if !req.IsSelfTransfer() {
		if err := e.accounts.writeBalance(ctx, tx, to); err != nil {
			return nil, err
		}
	}

	transfer := *req
	transfer.ID = 0
	transfer.CreatedAt = now
	transfer.UpdatedAt = now
	if err := e.transfers.Create(ctx, tx, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// replay 重送已處理過的 RefID：內容一致時回傳原紀錄，不一致視為衝突
func replay(done, req *domain.Transfer) (*domain.Transfer, error) {
	if done.FromAccountID != req.FromAccountID ||
		done.ToAccountID != req.ToAccountID ||
		!done.Amount.Equal(req.Amount) {
		return nil, fmt.Errorf("%w: %w: ref %s by transfer %d", domain.ErrTransferFailed, domain.ErrDuplicateRef, req.RefID, done.ID)
	}
	return done, nil
}

// failed 將非驗證類的錯誤包成 ErrTransferFailed
func (e *TransferEngine) failed(req *domain.Transfer, err error) error {
	if errors.Is(err, domain.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: from %d to %d: %w", domain.ErrTransferFailed, req.FromAccountID, req.ToAccountID, err)
}

// isValidationError 在任何寫入之前就能判定的錯誤，原樣回傳給呼叫端
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrInvalidAmount)
}
