package usecase

import (
	"context"
	"sort"
)

const defaultLockStripes = 256

// accountLocks 以分段 (striped) 的方式提供帳戶層級的互斥鎖。
// 每個 stripe 是容量為 1 的 channel，因此等待中的呼叫可以被 ctx 取消。
// 多個帳戶一律依 stripe 編號由小到大取得，避免死鎖。
type accountLocks struct {
	stripes []chan struct{}
}

func newAccountLocks(n int) *accountLocks {
	if n <= 0 {
		n = defaultLockStripes
	}
	l := &accountLocks{stripes: make([]chan struct{}, n)}
	for i := range l.stripes {
		l.stripes[i] = make(chan struct{}, 1)
	}
	return l
}

func (l *accountLocks) stripe(accountID int64) int {
	idx := accountID % int64(len(l.stripes))
	if idx < 0 {
		idx = -idx
	}
	return int(idx)
}

// Acquire 鎖定所有傳入的帳戶，回傳解鎖函式。
// ctx 被取消時釋放已取得的鎖並回傳 ctx.Err()
func (l *accountLocks) Acquire(ctx context.Context, accountIDs ...int64) (func(), error) {
	seen := make(map[int]struct{}, len(accountIDs))
	order := make([]int, 0, len(accountIDs))
	for _, id := range accountIDs {
		s := l.stripe(id)
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		order = append(order, s)
	}
	sort.Ints(order)

	held := make([]int, 0, len(order))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-l.stripes[held[i]]
		}
	}

	for _, s := range order {
		select {
		case l.stripes[s] <- struct{}{}:
			held = append(held, s)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}
