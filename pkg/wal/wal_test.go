package wal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func readRecords(t *testing.T, w *WAL) []record {
	t.Helper()
	var got []record
	err := w.ReadAll(func(raw json.RawMessage) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestWAL_WriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(record{Seq: 1, Note: "a"}))
	require.NoError(t, w.Write(record{Seq: 2, Note: "b"}))

	assert.Equal(t, []record{{1, "a"}, {2, "b"}}, readRecords(t, w))

	// 讀完後繼續寫入，仍然接在檔尾
	require.NoError(t, w.Write(record{Seq: 3, Note: "c"}))
	require.NoError(t, w.Close())

	reopened, err := NewWAL(path, WithoutSync())
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []record{{1, "a"}, {2, "b"}, {3, "c"}}, readRecords(t, reopened))
}

func TestWAL_ReadAllEmpty(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "empty.log"))
	require.NoError(t, err)
	defer w.Close()

	assert.Empty(t, readRecords(t, w))
}

func TestWAL_ReadAllCallbackError(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"), WithoutSync())
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Write(record{Seq: 1}))

	stop := errors.New("stop")
	err = w.ReadAll(func(json.RawMessage) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestWAL_ReadAllDropsTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := NewWAL(path, WithoutSync())
	require.NoError(t, err)
	require.NoError(t, w.Write(record{Seq: 1, Note: "a"}))
	require.NoError(t, w.Write(record{Seq: 2, Note: "b"}))
	require.NoError(t, w.Close())

	// 模擬寫到一半崩潰
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, FileModeReadOnly)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":3,"no`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = NewWAL(path, WithoutSync())
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, []record{{1, "a"}, {2, "b"}}, readRecords(t, w))
	assert.Equal(t, int64(len(`{"seq":3,"no`)), w.TornBytes())

	require.NoError(t, w.Write(record{Seq: 3, Note: "c"}))
	assert.Equal(t, []record{{1, "a"}, {2, "b"}, {3, "c"}}, readRecords(t, w))
}

func TestWAL_ReadAllRejectsCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\n}garbage{\n"), FileModeReadOnly))

	w, err := NewWAL(path, WithoutSync())
	require.NoError(t, err)
	defer w.Close()
	err = w.ReadAll(func(json.RawMessage) error { return nil })
	require.Error(t, err)
}
