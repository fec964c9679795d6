package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-point/pkg/wal"
)

// BalanceStore 是記憶體中的使用者餘額表
//
// 結構:
//
//	points: 使用者 ID 對應的點數
//	mu: 只保護 map 本身，讀改寫的序列化由 usecase 的使用者鎖負責
//	wal: 可選的 Write-Ahead Log，nil 時不落地
type BalanceStore struct {
	mu     sync.RWMutex
	points map[int64]domain.UserPoint
	wal    *wal.WAL
}

// NewBalanceStore 建立一個空的 BalanceStore
func NewBalanceStore(w *wal.WAL) *BalanceStore {
	return &BalanceStore{
		points: make(map[int64]domain.UserPoint),
		wal:    w,
	}
}

// Get 取得使用者點數
//
// 回傳:
//
//	domain.UserPoint: 使用者點數
//	error: domain.ErrUserNotFound
func (s *BalanceStore) Get(ctx context.Context, userID int64) (domain.UserPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	point, ok := s.points[userID]
	if !ok {
		return domain.UserPoint{}, fmt.Errorf("%w: %d", domain.ErrUserNotFound, userID)
	}
	return point, nil
}

// Set 寫入使用者點數，先寫 WAL 再更新記憶體
// 在 Transaction 內呼叫時只暫存，commit 時才落地
func (s *BalanceStore) Set(ctx context.Context, point domain.UserPoint) error {
	if point.Point < 0 {
		return fmt.Errorf("%w: negative balance %d for user %d", domain.ErrInvalidArgument, point.Point, point.UserID)
	}
	rec := walRecord{Op: opSet, Point: &point}
	if b, ok := batchFrom(ctx); ok {
		b.stage(rec, func() { s.apply(point) })
		return nil
	}
	if err := writeWAL(s.wal, rec); err != nil {
		return err
	}
	s.apply(point)
	return nil
}

// GetOrCreate 使用者不存在時寫入 point，已存在則回傳目前點數且不覆寫
func (s *BalanceStore) GetOrCreate(ctx context.Context, point domain.UserPoint) (domain.UserPoint, error) {
	if point.Point < 0 {
		return domain.UserPoint{}, fmt.Errorf("%w: negative balance %d for user %d", domain.ErrInvalidArgument, point.Point, point.UserID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.points[point.UserID]; ok {
		return existing, nil
	}
	if err := writeWAL(s.wal, walRecord{Op: opSet, Point: &point}); err != nil {
		return domain.UserPoint{}, err
	}
	s.points[point.UserID] = point
	return point, nil
}

// Len 目前的使用者數量
func (s *BalanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

func (s *BalanceStore) apply(point domain.UserPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[point.UserID] = point
}

var _ usecase.BalanceStore = (*BalanceStore)(nil)
