package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
)

// PointLedger 是點數核心業務邏輯層
//
// 結構:
//
//	store: 目前餘額
//	history: 異動紀錄
//	tx: 可選的交易支援，nil 時改用補償寫回
//	locks: 每個使用者一把鎖
type PointLedger struct {
	store   BalanceStore
	history HistoryLog
	tx      Transactor
	locks   userLocks
	now     func() time.Time
}

// Option 定義了 PointLedger 的配置選項函數
type Option func(*PointLedger)

// WithTransactor 讓餘額寫回與紀錄寫入在同一個儲存交易內完成
func WithTransactor(tx Transactor) Option {
	return func(l *PointLedger) {
		l.tx = tx
	}
}

// WithClock 設定時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(l *PointLedger) {
		l.now = now
	}
}

// NewPointLedger 建立 PointLedger
//
// 參數:
//
//	store: 餘額儲存
//	history: 異動紀錄儲存
//	opts: ...Option
//
// 回傳:
//
//	*PointLedger: PointLedger 實例
func NewPointLedger(store BalanceStore, history HistoryLog, opts ...Option) *PointLedger {
	l := &PointLedger{
		store:   store,
		history: history,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reconciliation 對帳結果
type Reconciliation struct {
	UserID int64
	// Stored: 儲存中的餘額
	Stored int64
	// Computed: opening + sum(CHARGE) - sum(USE)
	Computed   int64
	Entries    int
	Consistent bool
}

// Open 初始化使用者 (點數 0)，已存在則回傳目前點數
func (l *PointLedger) Open(ctx context.Context, userID int64) (domain.UserPoint, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.UserPoint{}, err
	}

	unlock := l.locks.lock(userID)
	defer unlock()

	point, err := l.store.GetOrCreate(ctx, domain.NewUserPoint(userID, l.now()))
	if err != nil {
		return domain.UserPoint{}, fmt.Errorf("open user %d: %w", userID, err)
	}
	return point, nil
}

// GetBalance 取得使用者目前點數
func (l *PointLedger) GetBalance(ctx context.Context, userID int64) (domain.UserPoint, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.UserPoint{}, err
	}

	unlock := l.locks.rlock(userID)
	defer unlock()

	return l.store.Get(ctx, userID)
}

// Charge 充值
//
// 參數:
//
//	ctx: 上下文
//	userID: 使用者 ID
//	amount: 充值金額 (> 0)
//
// 回傳:
//
//	domain.UserPoint: 充值後的點數
//	error: ErrInvalidArgument / ErrUserNotFound / ErrBalanceOverflow / 儲存錯誤
func (l *PointLedger) Charge(ctx context.Context, userID, amount int64) (domain.UserPoint, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.UserPoint{}, err
	}
	if err := domain.ValidateChargeAmount(amount); err != nil {
		return domain.UserPoint{}, err
	}
	return l.mutate(ctx, userID, amount, domain.TransactionTypeCharge, domain.UserPoint.Charge)
}

// Use 使用點數
//
// 參數:
//
//	ctx: 上下文
//	userID: 使用者 ID
//	amount: 使用金額 (> 0)
//
// 回傳:
//
//	domain.UserPoint: 扣除後的點數
//	error: ErrInvalidArgument / ErrUserNotFound / ErrInsufficientBalance / 儲存錯誤
func (l *PointLedger) Use(ctx context.Context, userID, amount int64) (domain.UserPoint, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return domain.UserPoint{}, err
	}
	if err := domain.ValidateUseAmount(amount); err != nil {
		return domain.UserPoint{}, err
	}
	return l.mutate(ctx, userID, amount, domain.TransactionTypeUse, domain.UserPoint.Use)
}

// History 依寫入順序回傳使用者的異動紀錄
func (l *PointLedger) History(ctx context.Context, userID int64) ([]domain.PointHistory, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	unlock := l.locks.rlock(userID)
	defer unlock()

	if _, err := l.store.Get(ctx, userID); err != nil {
		return nil, err
	}
	return l.history.ListByUser(ctx, userID)
}

// Reconcile 以異動紀錄重新計算餘額並與儲存值比對
// opening 為沒有紀錄的初始點數 (一般為 0)
func (l *PointLedger) Reconcile(ctx context.Context, userID, opening int64) (Reconciliation, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return Reconciliation{}, err
	}

	unlock := l.locks.rlock(userID)
	defer unlock()

	current, err := l.store.Get(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}
	histories, err := l.history.ListByUser(ctx, userID)
	if err != nil {
		return Reconciliation{}, err
	}

	result := Reconciliation{
		UserID:  userID,
		Stored:  current.Point,
		Entries: len(histories),
	}
	computed, ok := replay(opening, histories)
	result.Computed = computed
	result.Consistent = ok && computed == current.Point
	if !result.Consistent {
		return result, fmt.Errorf("%w: user %d stored %d, computed %d from %d entries",
			domain.ErrReconciliationMismatch, userID, current.Point, computed, len(histories))
	}
	return result, nil
}

// mutate 在使用者鎖內執行 讀取 -> 計算 -> 寫回 -> 寫紀錄
func (l *PointLedger) mutate(
	ctx context.Context,
	userID, amount int64,
	tranType domain.TransactionType,
	apply func(domain.UserPoint, int64, time.Time) (domain.UserPoint, error),
) (domain.UserPoint, error) {
	unlock := l.locks.lock(userID)
	defer unlock()

	now := l.now()
	run := func(ctx context.Context, compensate bool) (domain.UserPoint, error) {
		current, err := l.store.Get(ctx, userID)
		if err != nil {
			return domain.UserPoint{}, err
		}
		next, err := apply(current, amount, now)
		if err != nil {
			return domain.UserPoint{}, err
		}
		history := domain.NewPointHistory(userID, amount, tranType, now)
		if err := l.write(ctx, current, next, history, compensate); err != nil {
			return domain.UserPoint{}, err
		}
		return next, nil
	}

	if l.tx == nil {
		return run(ctx, true)
	}

	var result domain.UserPoint
	err := l.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = run(ctx, false)
		return err
	})
	if err != nil {
		return domain.UserPoint{}, err
	}
	return result, nil
}

// write 寫回餘額後寫入紀錄
// compensate 為 true 時，紀錄寫入失敗會把餘額還原為 current
func (l *PointLedger) write(
	ctx context.Context,
	current, next domain.UserPoint,
	history domain.PointHistory,
	compensate bool,
) error {
	if err := l.store.Set(ctx, next); err != nil {
		return fmt.Errorf("set balance of user %d: %w", next.UserID, err)
	}
	if err := l.history.Append(ctx, history); err != nil {
		appendErr := fmt.Errorf("append %s history of user %d: %w", history.Type, history.UserID, err)
		if !compensate {
			return appendErr
		}
		if rbErr := l.store.Set(ctx, current); rbErr != nil {
			return errors.Join(appendErr, fmt.Errorf("restore balance of user %d: %w", current.UserID, rbErr))
		}
		return appendErr
	}
	return nil
}

// replay 依序套用紀錄，任何中間值超出 [0, MaxInt64] 視為不一致
func replay(opening int64, histories []domain.PointHistory) (int64, bool) {
	sum := opening
	for _, h := range histories {
		if !h.Type.Valid() || h.Amount <= 0 {
			return sum, false
		}
		delta := h.Delta()
		if delta > 0 && sum > math.MaxInt64-delta {
			return sum, false
		}
		sum += delta
		if sum < 0 {
			return sum, false
		}
	}
	return sum, true
}
