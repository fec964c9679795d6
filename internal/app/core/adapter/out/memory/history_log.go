package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-point/pkg/wal"
)

// HistoryLog 是記憶體中的 append-only 異動紀錄
type HistoryLog struct {
	mu      sync.RWMutex
	entries map[int64][]domain.PointHistory
	wal     *wal.WAL
}

// NewHistoryLog 建立一個空的 HistoryLog
func NewHistoryLog(w *wal.WAL) *HistoryLog {
	return &HistoryLog{
		entries: make(map[int64][]domain.PointHistory),
		wal:     w,
	}
}

// Append 新增一筆紀錄，先寫 WAL 再更新記憶體
// 在 Transaction 內呼叫時只暫存，commit 時與餘額一起落地
func (h *HistoryLog) Append(ctx context.Context, history domain.PointHistory) error {
	if !history.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %s", domain.ErrInvalidArgument, history.Type)
	}
	if history.Amount <= 0 {
		return fmt.Errorf("%w: history amount must be positive, got %d", domain.ErrInvalidArgument, history.Amount)
	}
	rec := walRecord{Op: opAppend, History: &history}
	if b, ok := batchFrom(ctx); ok {
		b.stage(rec, func() { h.apply(history) })
		return nil
	}
	if err := writeWAL(h.wal, rec); err != nil {
		return err
	}
	h.apply(history)
	return nil
}

// ListByUser 依寫入順序回傳紀錄 (複本，呼叫端可自由修改)
func (h *HistoryLog) ListByUser(ctx context.Context, userID int64) ([]domain.PointHistory, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.entries[userID]), nil
}

func (h *HistoryLog) apply(history domain.PointHistory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[history.UserID] = append(h.entries[history.UserID], history)
}

var _ usecase.HistoryLog = (*HistoryLog)(nil)
