package pointrpc

import "time"

type UserIDRequest struct {
	UserID int64 `json:"user_id"`
}

type AmountRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

type ReconcileRequest struct {
	UserID int64 `json:"user_id"`
	// Opening: 沒有紀錄的初始點數
	Opening int64 `json:"opening,omitempty"`
}

type UserPoint struct {
	UserID    int64     `json:"user_id"`
	Point     int64     `json:"point"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PointHistory struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryList struct {
	Histories []PointHistory `json:"histories"`
}

type Reconciliation struct {
	UserID     int64 `json:"user_id"`
	Stored     int64 `json:"stored"`
	Computed   int64 `json:"computed"`
	Entries    int   `json:"entries"`
	Consistent bool  `json:"consistent"`
}
