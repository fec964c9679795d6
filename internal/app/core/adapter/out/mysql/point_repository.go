package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-mem-point/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-point/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-point/pkg/mysql"
)

// sqlUserPoint 對應資料庫的 user_points 表
type sqlUserPoint struct {
	UserID      int64 `gorm:"primaryKey;autoIncrement:false"`
	Point       int64 `gorm:"not null"`
	UpdatedAtMs int64 `gorm:"column:updated_at_ms"`
}

func (*sqlUserPoint) TableName() string {
	return "user_points"
}

// sqlPointHistory 對應資料庫的 point_histories 表
type sqlPointHistory struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RefID       []byte `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.PointHistory.ID
	UserID      int64  `gorm:"index"`
	Amount      int64
	Type        uint8
	CreatedAtMs int64 `gorm:"column:created_at_ms"`
}

func (*sqlPointHistory) TableName() string {
	return "point_histories"
}

type txKey struct{}

// PointRepository 以 MySQL 實作 BalanceStore、HistoryLog 與 Transactor
type PointRepository struct {
	client *mysql.Client
}

func NewPointRepository(client *mysql.Client) *PointRepository {
	return &PointRepository{
		client: client,
	}
}

// AutoMigrate 建立或更新資料表
func (r *PointRepository) AutoMigrate(ctx context.Context) error {
	return r.client.DB().WithContext(ctx).AutoMigrate(&sqlUserPoint{}, &sqlPointHistory{})
}

// Transaction 在同一個資料庫交易內執行 fn
// fn 收到的 ctx 帶著交易，Get 會改用 SELECT ... FOR UPDATE
func (r *PointRepository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}
	return r.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Get 取得使用者點數
func (r *PointRepository) Get(ctx context.Context, userID int64) (domain.UserPoint, error) {
	db := r.conn(ctx)
	if _, ok := txFrom(ctx); ok {
		// 悲觀鎖
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row sqlUserPoint
	err := db.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserPoint{}, fmt.Errorf("%w: %d", domain.ErrUserNotFound, userID)
	}
	if err != nil {
		return domain.UserPoint{}, fmt.Errorf("select user point %d: %w", userID, err)
	}
	return row.toDomain(), nil
}

// Set 寫入使用者點數 (INSERT ... ON DUPLICATE KEY UPDATE)
func (r *PointRepository) Set(ctx context.Context, point domain.UserPoint) error {
	if point.Point < 0 {
		return fmt.Errorf("%w: negative balance %d for user %d", domain.ErrInvalidArgument, point.Point, point.UserID)
	}
	row := toSQLUserPoint(point)
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"point", "updated_at_ms"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert user point %d: %w", point.UserID, err)
	}
	return nil
}

// GetOrCreate 插入使用者，已存在時不覆寫，最後讀回目前的列
// MySQL 方言會轉成 INSERT ... ON DUPLICATE KEY UPDATE user_id = user_id
func (r *PointRepository) GetOrCreate(ctx context.Context, point domain.UserPoint) (domain.UserPoint, error) {
	if point.Point < 0 {
		return domain.UserPoint{}, fmt.Errorf("%w: negative balance %d for user %d", domain.ErrInvalidArgument, point.Point, point.UserID)
	}
	row := toSQLUserPoint(point)
	if err := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return domain.UserPoint{}, fmt.Errorf("insert user point %d: %w", point.UserID, err)
	}
	return r.Get(ctx, point.UserID)
}

// Append 新增一筆異動紀錄
func (r *PointRepository) Append(ctx context.Context, history domain.PointHistory) error {
	if !history.Type.Valid() || history.Amount <= 0 {
		return fmt.Errorf("%w: history %s amount %d", domain.ErrInvalidArgument, history.Type, history.Amount)
	}
	row := sqlPointHistory{
		RefID:       history.ID[:],
		UserID:      history.UserID,
		Amount:      history.Amount,
		Type:        uint8(history.Type),
		CreatedAtMs: history.CreatedAt.UnixMilli(),
	}
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert point history of user %d: %w", history.UserID, err)
	}
	return nil
}

// ListByUser 依寫入順序 (自增 ID) 回傳紀錄
func (r *PointRepository) ListByUser(ctx context.Context, userID int64) ([]domain.PointHistory, error) {
	var rows []sqlPointHistory
	err := r.conn(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select point histories of user %d: %w", userID, err)
	}

	histories := make([]domain.PointHistory, 0, len(rows))
	for _, row := range rows {
		h, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, nil
}

func (r *PointRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return r.client.DB().WithContext(ctx)
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}

func toSQLUserPoint(point domain.UserPoint) sqlUserPoint {
	return sqlUserPoint{
		UserID:      point.UserID,
		Point:       point.Point,
		UpdatedAtMs: point.UpdatedAt.UnixMilli(),
	}
}

func (row *sqlUserPoint) toDomain() domain.UserPoint {
	return domain.UserPoint{
		UserID:    row.UserID,
		Point:     row.Point,
		UpdatedAt: time.UnixMilli(row.UpdatedAtMs).UTC(),
	}
}

func (row *sqlPointHistory) toDomain() (domain.PointHistory, error) {
	id, err := uuid.FromBytes(row.RefID)
	if err != nil {
		return domain.PointHistory{}, fmt.Errorf("parse ref_id of history %d: %w", row.ID, err)
	}
	return domain.PointHistory{
		ID:        id,
		UserID:    row.UserID,
		Amount:    row.Amount,
		Type:      domain.TransactionType(row.Type),
		CreatedAt: time.UnixMilli(row.CreatedAtMs).UTC(),
	}, nil
}

var (
	_ usecase.BalanceStore = (*PointRepository)(nil)
	_ usecase.HistoryLog   = (*PointRepository)(nil)
	_ usecase.Transactor   = (*PointRepository)(nil)
)
