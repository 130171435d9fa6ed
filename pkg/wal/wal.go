// Package wal 提供 JSON Lines 格式的 Write-Ahead Log。
// 每筆紀錄寫入後立即 fsync；重放時容忍最後一筆寫到一半的紀錄 (程序在寫入中途終止)。
package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// 自己定義常用的權限常量
const (
	// rw-r--r-- (擁有者讀寫，其他人唯讀) - 適用於大多數檔案
	FileModeReadOnly fs.FileMode = 0644

	// rw------- (只有擁有者可讀寫) - 適用於私鑰、機密檔
	FileModePrivate fs.FileMode = 0600
)

var (
	// ErrClosed WAL 已關閉
	ErrClosed = errors.New("wal is closed")

	// ErrBroken 寫入失敗後無法把檔案退回寫入前的長度，之後的寫入一律拒絕
	ErrBroken = errors.New("wal is broken")
)

// file 是 WAL 用到的檔案操作 (*os.File 即滿足)
type file interface {
	io.ReadWriteSeeker
	io.Closer
	Stat() (fs.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

type WAL struct {
	path   string
	file   file
	mu     sync.Mutex
	closed bool
	broken error
}

// NewWAL 開啟或建立一個 WAL 檔案
// O_RDWR讀寫模式
// O_APPEND 每次寫入時自動跳到文件末尾
// O_CREATE 如果文件不存在則建立
func NewWAL(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, FileModePrivate)
	if err != nil {
		return nil, fmt.Errorf("failed to open wal %s: %w", path, err)
	}
	return &WAL{path: path, file: file}, nil
}

// Path 回傳 WAL 檔案路徑
func (w *WAL) Path() string {
	return w.path
}

// Write 寫入一筆資料並刷入硬碟。
// 整筆紀錄以單次 write 寫入，避免與其他紀錄交錯。
// write 或 fsync 失敗時，檔案會被截回寫入前的長度，回傳錯誤即代表這筆紀錄不存在；
// 截不回去時 WAL 進入 broken 狀態，之後的 Write 都回傳 ErrBroken
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode wal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.broken != nil {
		return fmt.Errorf("%w: %w", ErrBroken, w.broken)
	}

	info, err := w.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat wal: %w", err)
	}
	offset := info.Size()

	if err := w.append(line); err != nil {
		if rewindErr := w.truncate(offset); rewindErr != nil {
			w.broken = rewindErr
			return fmt.Errorf("%w: %w: %w", ErrBroken, err, rewindErr)
		}
		return err
	}
	return nil
}

func (w *WAL) append(line []byte) error {
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("failed to append wal record: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync wal: %w", err)
	}
	return nil
}

// Sync 強制刷入硬碟
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.file.Sync()
}

// Close 關閉檔案
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// ReadAll 依序讀取所有紀錄。
// callback 每次收到一筆完整的 JSON 紀錄，避免一次將所有資料載入記憶體。
// 最後一行若不完整 (沒有換行或不是合法 JSON)，視為寫入中斷，會被截斷
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	// 確保從頭讀取
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(w.file)
	var offset int64
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(bytes.TrimSpace(line)) > 0 {
				// 寫到一半的紀錄
				return w.truncate(offset)
			}
			return nil
		}
		if err != nil {
			return err
		}

		raw := bytes.TrimSpace(line)
		if len(raw) > 0 {
			if !json.Valid(raw) {
				if _, peekErr := reader.Peek(1); errors.Is(peekErr, io.EOF) {
					return w.truncate(offset)
				}
				return fmt.Errorf("corrupted wal record at offset %d", offset)
			}
			if err := callback(raw); err != nil {
				return err
			}
		}
		offset += int64(len(line))
	}
}

// truncate 截掉 offset 之後的資料 (呼叫端需持有鎖)
func (w *WAL) truncate(offset int64) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("failed to truncate wal at %d: %w", offset, err)
	}
	return w.file.Sync()
}
