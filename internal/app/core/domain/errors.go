package domain

import "errors"

var (
	// ErrInvalidArgument 參數不合法 (userID 或 amount 非正數)
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUserNotFound 找不到使用者點數紀錄
	ErrUserNotFound = errors.New("user not found")

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBalanceOverflow 充值後超出 int64 上限
	ErrBalanceOverflow = errors.New("balance overflow")

	// ErrReconciliationMismatch 餘額與歷史紀錄加總不一致
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)
