package usecase

import (
	"context"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
)

// BalanceStore 是使用者目前餘額的儲存介面
type BalanceStore interface {
	// Get 取得使用者點數，不存在時回傳 domain.ErrUserNotFound
	Get(ctx context.Context, userID int64) (domain.UserPoint, error)
	// Set 寫入使用者點數 (upsert，可重複呼叫)
	Set(ctx context.Context, point domain.UserPoint) error
	// GetOrCreate 不存在時寫入 point，已存在時回傳目前點數且不覆寫
	// 必須是單一原子操作，多個實例共用儲存時也不能蓋掉別人的餘額
	GetOrCreate(ctx context.Context, point domain.UserPoint) (domain.UserPoint, error)
}

// HistoryLog 是點數異動紀錄的 append-only 介面
type HistoryLog interface {
	// Append 新增一筆紀錄
	Append(ctx context.Context, history domain.PointHistory) error
	// ListByUser 依寫入順序回傳該使用者的所有紀錄
	ListByUser(ctx context.Context, userID int64) ([]domain.PointHistory, error)
}

// Transactor 由支援交易的儲存實作 (例如 MySQL)
// fn 內透過傳入的 ctx 呼叫 BalanceStore / HistoryLog 即會在同一個交易中執行
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
