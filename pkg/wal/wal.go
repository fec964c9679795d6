package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// rw-r--r-- (擁有者讀寫，其他人唯讀)
const FileModeReadOnly fs.FileMode = 0644

// WAL 以 JSON Lines 格式寫入的 Write-Ahead Log
type WAL struct {
	file *os.File
	mu   sync.Mutex
	// 每次寫入後是否 fsync
	syncOnWrite bool
	// ReadAll 截掉的殘缺尾端位元組數
	tornBytes int64
}

// Option 定義了 WAL 的配置選項函數
type Option func(*WAL)

// WithoutSync 關閉每次寫入後的 fsync (測試或可接受資料遺失的場景)
func WithoutSync() Option {
	return func(w *WAL) {
		w.syncOnWrite = false
	}
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string, opts ...Option) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModeReadOnly)
	if err != nil {
		return nil, fmt.Errorf("open wal %s: %w", path, err)
	}
	w := &WAL{
		file:        file,
		syncOnWrite: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Write 寫入一筆資料
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	if !w.syncOnWrite {
		return nil
	}
	return w.file.Sync()
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// TornBytes 回傳上一次 ReadAll 截掉的殘缺尾端大小，0 表示檔案完整
func (w *WAL) TornBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tornBytes
}

// ReadAll 讀取所有資料
// callback 逐筆接收 json.RawMessage，避免一次將所有資料載入記憶體
// 檔尾只寫了一半的紀錄 (寫入途中崩潰) 會被截掉，視為沒有寫入
func (w *WAL) ReadAll(callback func(jsonRaw json.RawMessage) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 確保從頭讀取 (O_APPEND 下寫入仍會跳到檔尾)
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	w.tornBytes = 0
	decoder := json.NewDecoder(w.file)
	var offset int64
	for {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncate(offset)
			}
			return fmt.Errorf("decode wal record: %w", err)
		}
		offset = decoder.InputOffset()
		if err := callback(raw); err != nil {
			return err
		}
	}
}

// truncate 把檔案截到 offset (最後一筆完整紀錄的結尾) 並補回換行
func (w *WAL) truncate(offset int64) error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate torn wal tail: %w", err)
	}
	kept := offset
	if offset > 0 {
		if _, err := w.file.Write([]byte("\n")); err != nil {
			return fmt.Errorf("truncate torn wal tail: %w", err)
		}
		kept++
	}
	w.tornBytes = info.Size() - kept
	return w.file.Sync()
}
