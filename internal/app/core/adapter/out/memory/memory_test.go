package memory

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-point/pkg/wal"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBalanceStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewBalanceStore(nil)

	_, err := store.Get(ctx, 1)
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, store.Set(ctx, domain.UserPoint{UserID: 1, Point: 1000, UpdatedAt: testNow}))
	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Point)

	require.NoError(t, store.Set(ctx, domain.UserPoint{UserID: 1, Point: 0, UpdatedAt: testNow}))
	got, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Point)
	assert.Equal(t, 1, store.Len())

	err = store.Set(ctx, domain.UserPoint{UserID: 2, Point: -1})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBalanceStore_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := NewBalanceStore(nil)

	created, err := store.GetOrCreate(ctx, domain.NewUserPoint(1, testNow))
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.Point)

	require.NoError(t, store.Set(ctx, domain.UserPoint{UserID: 1, Point: 300, UpdatedAt: testNow}))
	existing, err := store.GetOrCreate(ctx, domain.NewUserPoint(1, testNow.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, int64(300), existing.Point)
	assert.True(t, testNow.Equal(existing.UpdatedAt))

	_, err = store.GetOrCreate(ctx, domain.UserPoint{UserID: 2, Point: -1})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 1, store.Len())
}

func TestBalanceStore_Transaction(t *testing.T) {
	ctx := context.Background()
	store, history, err := Open(nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, domain.UserPoint{UserID: 1, Point: 100}))

	t.Run("commit applies both writes", func(t *testing.T) {
		err := store.Transaction(ctx, func(ctx context.Context) error {
			if err := store.Set(ctx, domain.UserPoint{UserID: 1, Point: 150}); err != nil {
				return err
			}
			// commit 前不可見
			got, err := store.Get(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(100), got.Point)
			return history.Append(ctx, domain.NewPointHistory(1, 50, domain.TransactionTypeCharge, testNow))
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(150), got.Point)
		entries, err := history.ListByUser(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("error discards both writes", func(t *testing.T) {
		failed := errors.New("failed")
		err := store.Transaction(ctx, func(ctx context.Context) error {
			require.NoError(t, store.Set(ctx, domain.UserPoint{UserID: 1, Point: 999}))
			require.NoError(t, history.Append(ctx, domain.NewPointHistory(1, 849, domain.TransactionTypeCharge, testNow)))
			return failed
		})
		require.ErrorIs(t, err, failed)

		got, err := store.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(150), got.Point)
		entries, err := history.ListByUser(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestHistoryLog_AppendAndList(t *testing.T) {
	ctx := context.Background()
	log := NewHistoryLog(nil)

	first := domain.NewPointHistory(1, 3000, domain.TransactionTypeCharge, testNow)
	second := domain.NewPointHistory(1, 1000, domain.TransactionTypeUse, testNow.Add(time.Second))
	other := domain.NewPointHistory(2, 50, domain.TransactionTypeCharge, testNow)
	for _, h := range []domain.PointHistory{first, other, second} {
		require.NoError(t, log.Append(ctx, h))
	}

	got, err := log.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)

	// 回傳的是複本
	got[0].Amount = 1
	again, err := log.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), again[0].Amount)

	empty, err := log.ListByUser(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryLog_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	log := NewHistoryLog(nil)

	err := log.Append(ctx, domain.NewPointHistory(1, 0, domain.TransactionTypeCharge, testNow))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	err = log.Append(ctx, domain.NewPointHistory(1, 10, domain.TransactionType(0), testNow))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	got, err := log.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen_RecoversLedgerState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := wal.NewWAL(path, wal.WithoutSync())
	require.NoError(t, err)
	store, history, err := Open(w)
	require.NoError(t, err)

	clock := func() time.Time { return testNow }
	ledger := usecase.NewPointLedger(store, history, usecase.WithClock(clock), usecase.WithTransactor(store))
	_, err = ledger.Open(ctx, 1)
	require.NoError(t, err)
	_, err = ledger.Charge(ctx, 1, 3000)
	require.NoError(t, err)
	_, err = ledger.Use(ctx, 1, 1000)
	require.NoError(t, err)
	_, err = ledger.Use(ctx, 1, 5000)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	_, err = ledger.Open(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = wal.NewWAL(path, wal.WithoutSync())
	require.NoError(t, err)
	defer w.Close()
	store, history, err = Open(w)
	require.NoError(t, err)

	recovered := usecase.NewPointLedger(store, history, usecase.WithClock(clock), usecase.WithTransactor(store))
	point, err := recovered.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), point.Point)

	histories, err := recovered.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, histories, 2)
	assert.Equal(t, domain.TransactionTypeCharge, histories[0].Type)
	assert.Equal(t, int64(3000), histories[0].Amount)
	assert.Equal(t, domain.TransactionTypeUse, histories[1].Type)
	assert.True(t, testNow.Equal(histories[1].CreatedAt))

	point, err = recovered.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), point.Point)

	rec, err := recovered.Reconcile(ctx, 1, 0)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)

	// 重放後繼續寫入
	_, err = recovered.Charge(ctx, 1, 500)
	require.NoError(t, err)
	point, err = recovered.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), point.Point)
}

func TestOpen_NilWAL(t *testing.T) {
	store, history, err := Open(nil)
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NotNil(t, history)
	assert.Equal(t, 0, store.Len())
}

// crashingHistory 在寫入紀錄前結束 goroutine，模擬餘額寫完後行程中止
type crashingHistory struct {
	*HistoryLog
}

func (crashingHistory) Append(context.Context, domain.PointHistory) error {
	runtime.Goexit()
	return nil
}

func TestOpen_CrashBeforeHistoryAppendLeavesNoBalance(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wal.log")
	clock := func() time.Time { return testNow }

	w, err := wal.NewWAL(path, wal.WithoutSync())
	require.NoError(t, err)
	store, history, err := Open(w)
	require.NoError(t, err)

	ledger := usecase.NewPointLedger(store, history, usecase.WithClock(clock), usecase.WithTransactor(store))
	_, err = ledger.Open(ctx, 1)
	require.NoError(t, err)
	_, err = ledger.Charge(ctx, 1, 100)
	require.NoError(t, err)

	crashing := usecase.NewPointLedger(store, crashingHistory{history},
		usecase.WithClock(clock), usecase.WithTransactor(store))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = crashing.Charge(ctx, 1, 50)
	}()
	<-done

	point, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), point.Point)
	require.NoError(t, w.Close())

	w, err = wal.NewWAL(path, wal.WithoutSync())
	require.NoError(t, err)
	defer w.Close()
	store, history, err = Open(w)
	require.NoError(t, err)

	recovered := usecase.NewPointLedger(store, history, usecase.WithClock(clock), usecase.WithTransactor(store))
	point, err = recovered.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), point.Point)

	histories, err := recovered.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, histories, 1)

	rec, err := recovered.Reconcile(ctx, 1, 0)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
}

func TestOpen_RejectsMalformedBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := wal.NewWAL(path, wal.WithoutSync())
	require.NoError(t, err)
	defer w.Close()

	point := domain.UserPoint{UserID: 1, Point: 10}
	require.NoError(t, w.Write(walRecord{Op: opBatch, Records: []walRecord{
		{Op: opSet, Point: &point},
		{Op: opAppend},
	}}))

	_, _, err = Open(w)
	require.Error(t, err)
}
