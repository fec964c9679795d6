package memory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/pkg/wal"
)

const (
	opSet    = "set"
	opAppend = "append"
	// 一次交易內的多筆 set / append，重放時整批套用
	opBatch = "batch"
)

// walRecord 是 BalanceStore 與 HistoryLog 共用的 WAL 紀錄格式
type walRecord struct {
	Op      string               `json:"op"`
	Point   *domain.UserPoint    `json:"point,omitempty"`
	History *domain.PointHistory `json:"history,omitempty"`
	Records []walRecord          `json:"records,omitempty"`
}

func writeWAL(w *wal.WAL, rec walRecord) error {
	if w == nil {
		return nil
	}
	if err := w.Write(rec); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	return nil
}

// Open 從 WAL 重放並建立 BalanceStore 與 HistoryLog
// w 為 nil 時回傳純記憶體、不落地的實例
// 回傳的 BalanceStore 同時是兩者共用的 Transactor
//
// 回傳:
//
//	*BalanceStore: 重放後的餘額表
//	*HistoryLog: 重放後的異動紀錄
//	error: 重放錯誤
func Open(w *wal.WAL) (*BalanceStore, *HistoryLog, error) {
	store := NewBalanceStore(nil)
	history := NewHistoryLog(nil)
	if w == nil {
		return store, history, nil
	}

	// 重放期間不寫 WAL，也不經過使用者鎖 (單執行緒)
	err := w.ReadAll(func(raw json.RawMessage) error {
		var rec walRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if rec.Op != opBatch {
			return replayRecord(store, history, rec)
		}
		// 先檢查整批，避免只套用一半
		for _, inner := range rec.Records {
			if err := checkRecord(inner); err != nil {
				return err
			}
		}
		for _, inner := range rec.Records {
			if err := replayRecord(store, history, inner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("recover from wal: %w", err)
	}

	store.wal = w
	history.wal = w
	return store, history, nil
}

func checkRecord(rec walRecord) error {
	switch rec.Op {
	case opSet:
		if rec.Point == nil {
			return errors.New("wal set record without point")
		}
	case opAppend:
		if rec.History == nil {
			return errors.New("wal append record without history")
		}
	default:
		return fmt.Errorf("unknown wal op %q", rec.Op)
	}
	return nil
}

func replayRecord(store *BalanceStore, history *HistoryLog, rec walRecord) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	if rec.Op == opSet {
		store.apply(*rec.Point)
	} else {
		history.apply(*rec.History)
	}
	return nil
}
