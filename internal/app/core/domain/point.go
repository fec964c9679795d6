package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// TransactionType 點數異動類型
// 與原帳本一致使用 uint8
type TransactionType uint8

const (
	// 充值
	TransactionTypeCharge TransactionType = 1
	// 使用
	TransactionTypeUse TransactionType = 2
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeCharge:
		return "CHARGE"
	case TransactionTypeUse:
		return "USE"
	default:
		return fmt.Sprintf("TransactionType(%d)", uint8(t))
	}
}

// Valid 是否為已知的交易類型
func (t TransactionType) Valid() bool {
	return t == TransactionTypeCharge || t == TransactionTypeUse
}

// UserPoint 使用者目前的點數餘額 (值物件，不可變)
type UserPoint struct {
	UserID    int64
	Point     int64
	UpdatedAt time.Time
}

// NewUserPoint 建立一個點數為 0 的使用者
func NewUserPoint(userID int64, now time.Time) UserPoint {
	return UserPoint{
		UserID:    userID,
		Point:     0,
		UpdatedAt: now,
	}
}

// Charge 充值，回傳新的 UserPoint，原值不變
//
// 參數:
//
//	amount: 充值金額，必須大於 0
//	now: 異動時間
//
// 回傳:
//
//	UserPoint: 充值後的點數
//	error: ErrInvalidArgument 或 ErrBalanceOverflow
func (p UserPoint) Charge(amount int64, now time.Time) (UserPoint, error) {
	if err := ValidateChargeAmount(amount); err != nil {
		return p, err
	}
	// 先檢查再相加，避免 wraparound
	if p.Point > math.MaxInt64-amount {
		return p, fmt.Errorf("%w: user %d balance %d + %d", ErrBalanceOverflow, p.UserID, p.Point, amount)
	}
	return UserPoint{
		UserID:    p.UserID,
		Point:     p.Point + amount,
		UpdatedAt: now,
	}, nil
}

// Use 使用點數，回傳新的 UserPoint，原值不變
//
// 參數:
//
//	amount: 使用金額，必須大於 0 且不超過目前餘額
//	now: 異動時間
//
// 回傳:
//
//	UserPoint: 扣除後的點數
//	error: ErrInvalidArgument 或 ErrInsufficientBalance
func (p UserPoint) Use(amount int64, now time.Time) (UserPoint, error) {
	if err := ValidateUseAmount(amount); err != nil {
		return p, err
	}
	if amount > p.Point {
		return p, fmt.Errorf("%w: user %d has %d, requested %d", ErrInsufficientBalance, p.UserID, p.Point, amount)
	}
	return UserPoint{
		UserID:    p.UserID,
		Point:     p.Point - amount,
		UpdatedAt: now,
	}, nil
}

// PointHistory 點數異動紀錄，寫入後不再修改
type PointHistory struct {
	// ID: 外部追蹤號 (UUID)
	ID     uuid.UUID
	UserID int64
	// Amount: 異動量 (永遠為正數)，不是異動後的餘額
	Amount    int64
	Type      TransactionType
	CreatedAt time.Time
}

// NewPointHistory 建立一筆異動紀錄
func NewPointHistory(userID, amount int64, tranType TransactionType, now time.Time) PointHistory {
	return PointHistory{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Type:      tranType,
		CreatedAt: now,
	}
}

// Delta 對餘額的影響量 (CHARGE 為正、USE 為負)
func (h PointHistory) Delta() int64 {
	if h.Type == TransactionTypeUse {
		return -h.Amount
	}
	return h.Amount
}

// ValidateUserID 檢查 userID 是否為正整數
func ValidateUserID(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive, got %d", ErrInvalidArgument, userID)
	}
	return nil
}

// ValidateChargeAmount 檢查充值金額
func ValidateChargeAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: charge amount must be greater than zero", ErrInvalidArgument)
	}
	return nil
}

// ValidateUseAmount 檢查使用金額
func ValidateUseAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: use amount must be greater than zero", ErrInvalidArgument)
	}
	return nil
}
