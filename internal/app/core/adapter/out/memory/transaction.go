package memory

import (
	"context"
	"fmt"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-point/pkg/wal"
)

type batchKey struct{}

// batch 收集同一個交易內的寫入
// commit 時先以一筆 WAL 紀錄落地，再依序套用到記憶體
type batch struct {
	records []walRecord
	applies []func()
}

func batchFrom(ctx context.Context) (*batch, bool) {
	b, ok := ctx.Value(batchKey{}).(*batch)
	return b, ok
}

func (b *batch) stage(rec walRecord, apply func()) {
	b.records = append(b.records, rec)
	b.applies = append(b.applies, apply)
}

func (b *batch) commit(w *wal.WAL) error {
	if len(b.records) == 0 {
		return nil
	}
	if w != nil {
		if err := w.Write(walRecord{Op: opBatch, Records: b.records}); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
		}
	}
	for _, apply := range b.applies {
		apply()
	}
	return nil
}

// Transaction 讓 fn 內的 Set 與 Append 合併成一筆 WAL 紀錄
// fn 回傳錯誤 (或中途結束) 時暫存的寫入全部丟棄
// 交易內的寫入在 commit 之後才可見
//
// 只適用於 Open 建立、共用同一個 WAL 的 BalanceStore 與 HistoryLog
func (s *BalanceStore) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := batchFrom(ctx); ok {
		return fn(ctx)
	}
	b := &batch{}
	if err := fn(context.WithValue(ctx, batchKey{}, b)); err != nil {
		return err
	}
	return b.commit(s.wal)
}

var _ usecase.Transactor = (*BalanceStore)(nil)
