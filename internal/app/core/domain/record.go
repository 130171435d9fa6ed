package domain

import "time"

// Record 所有實體共用的欄位 (主鍵與時間戳)
type Record struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch 更新 UpdatedAt；第一次呼叫時一併設定 CreatedAt
func (r *Record) Touch(now time.Time) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}
