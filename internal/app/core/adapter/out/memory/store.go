package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/JoeShih716/go-ledger-service/internal/app/core/domain"
	"github.com/JoeShih716/go-ledger-service/internal/app/core/usecase"
	"github.com/JoeShih716/go-ledger-service/pkg/wal"
)

var (
	// ErrConstraint 違反儲存層限制 (對應關聯式資料庫的 NOT NULL / FK / CHECK / UNIQUE)
	ErrConstraint = errors.New("constraint violation")

	// ErrTxDone 交易已 Commit 或 Rollback
	ErrTxDone = errors.New("transaction has already been committed or rolled back")

	// ErrWALWriteFailed 寫入 WAL 失敗，本次提交不生效
	ErrWALWriteFailed = errors.New("wal write failed")

	// ErrWriteConflict 交易讀取後，帳戶已被其他交易提交修改
	ErrWriteConflict = errors.New("write conflict")
)

// walRecord 一次提交的寫入集合 (帳戶存的是提交後的完整狀態)
type walRecord struct {
	Customers []domain.Customer `json:"customers,omitempty"`
	Accounts  []domain.Account  `json:"accounts,omitempty"`
	Transfers []domain.Transfer `json:"transfers,omitempty"`

	// 交易讀到的帳戶版本，不寫入 WAL
	versions map[int64]domain.Account
}

// Store 是一個記憶體內的 Gateway 實作
//
// 結構:
//
//	customers / accounts / transfers: 已提交的資料
//	byRef: RefID 對應轉帳 ID (唯一索引)
//	byAccount: 帳戶 ID 對應其參與的轉帳 ID
//	mu: 保護以上所有 Map，提交時整批套用
//	wal: Write-Ahead Log，可為 nil (純記憶體)
type Store struct {
	mu        sync.RWMutex
	customers map[int64]domain.Customer
	accounts  map[int64]domain.Account
	transfers map[int64]domain.Transfer
	byRef     map[uuid.UUID]int64
	byAccount map[int64][]int64

	// 自動遞增主鍵，回滾不會歸還 (與資料庫 AUTO_INCREMENT 相同)
	customerSeq atomic.Int64
	accountSeq  atomic.Int64
	transferSeq atomic.Int64

	wal *wal.WAL
}

// NewStore 建立一個新的 Store 實例，若有 WAL 則先重放
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 表示不落地
//
// 回傳:
//
//	*Store: Store 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewStore(w *wal.WAL) (*Store, error) {
	s := &Store{
		customers: make(map[int64]domain.Customer),
		accounts:  make(map[int64]domain.Account),
		transfers: make(map[int64]domain.Transfer),
		byRef:     make(map[uuid.UUID]int64),
		byAccount: make(map[int64][]int64),
		wal:       w,
	}
	if w != nil {
		if err := s.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recoverFromWAL 從 WAL 檔案恢復 Store 狀態
// 只有 NewStore 呼叫，無需 Lock (單執行緒)
func (s *Store) recoverFromWAL() error {
	return s.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return fmt.Errorf("failed to decode wal record: %w", err)
		}
		s.apply(&rec)
		return nil
	})
}

// apply 套用一筆提交 (呼叫端需持有寫鎖，或在恢復階段)
func (s *Store) apply(rec *walRecord) {
	for _, c := range rec.Customers {
		s.customers[c.ID] = c
		bumpSeq(&s.customerSeq, c.ID)
	}
	for _, a := range rec.Accounts {
		s.accounts[a.ID] = a
		bumpSeq(&s.accountSeq, a.ID)
	}
	for _, t := range rec.Transfers {
		s.transfers[t.ID] = t
		s.byRef[t.RefID] = t.ID
		s.byAccount[t.FromAccountID] = append(s.byAccount[t.FromAccountID], t.ID)
		if !t.IsSelfTransfer() {
			s.byAccount[t.ToAccountID] = append(s.byAccount[t.ToAccountID], t.ID)
		}
		bumpSeq(&s.transferSeq, t.ID)
	}
}

func bumpSeq(seq *atomic.Int64, id int64) {
	for {
		cur := seq.Load()
		if cur >= id || seq.CompareAndSwap(cur, id) {
			return
		}
	}
}

// commit 寫入 WAL 後整批套用；WAL 失敗時不套用任何變更
func (s *Store) commit(rec *walRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 要覆寫的帳戶必須仍是交易讀到的版本，否則會蓋掉別人的更新
	for _, a := range rec.Accounts {
		read, ok := rec.versions[a.ID]
		if !ok {
			continue
		}
		cur := s.accounts[a.ID]
		if !cur.Balance.Equal(read.Balance) || !cur.UpdatedAt.Equal(read.UpdatedAt) {
			return fmt.Errorf("%w: account %d changed since read", ErrWriteConflict, a.ID)
		}
	}

	// 唯一索引在提交時再檢查一次 (其他交易可能已先提交相同 RefID)
	for _, t := range rec.Transfers {
		if _, ok := s.byRef[t.RefID]; ok {
			return fmt.Errorf("%w: duplicate transfer ref %s", ErrConstraint, t.RefID)
		}
	}

	// 1. 寫入 WAL (Critical Path)
	if s.wal != nil {
		if err := s.wal.Write(rec); err != nil {
			return fmt.Errorf("%w: %w", ErrWALWriteFailed, err)
		}
	}

	// 2. 套用到記憶體
	s.apply(rec)
	return nil
}

// Begin 開始一個交易。寫入會暫存在交易內，Commit 時才一次套用
func (s *Store) Begin(ctx context.Context) (usecase.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newTx(ctx, s), nil
}

// GetCustomer 依 ID 取得客戶
func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, usecase.ErrRecordNotFound
	}
	return &c, nil
}

// GetAccount 依 ID 取得帳戶
func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, usecase.ErrRecordNotFound
	}
	return &a, nil
}

// GetTransferByRef 依外部追蹤號取得轉帳
func (s *Store) GetTransferByRef(ctx context.Context, refID uuid.UUID) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[refID]
	if !ok {
		return nil, usecase.ErrRecordNotFound
	}
	t := s.transfers[id]
	return &t, nil
}

// ListTransfers 帳戶參與的所有轉帳 (來源或目的)
func (s *Store) ListTransfers(ctx context.Context, accountID int64) ([]*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byAccount[accountID]
	out := make([]*domain.Transfer, 0, len(ids))
	for _, id := range ids {
		t := s.transfers[id]
		out = append(out, &t)
	}
	sortTransfers(out)
	return out, nil
}

// sortTransfers 依 CreatedAt、ID 遞增排序
func sortTransfers(ts []*domain.Transfer) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}

var _ usecase.Gateway = (*Store)(nil)
