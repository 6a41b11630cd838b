package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStorage はJSONファイル1つに全キーを保存するStorage実装。
// 書き込みのたびにファイル全体を一時ファイル経由で置き換える。
type FileStorage struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	items map[string]string
}

// NewFileStorage はpathのファイルを読み込んでFileStorageを生成する。
// ファイルが存在しない場合は空の状態から始める。
// ファイルが壊れている場合は警告を残して空の状態として扱う（セッション無しに縮退させる）。
// 壊れた内容は次の書き込みで上書きされる。
func NewFileStorage(path string, logger *slog.Logger) (*FileStorage, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage file path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStorage{
		path:   path,
		logger: logger,
		items:  make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStorage) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *FileStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return s.persistLocked()
}

func (s *FileStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return nil
	}
	delete(s.items, key)
	return s.persistLocked()
}

func (s *FileStorage) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read storage file: %w", err)
	}
	if len(b) == 0 {
		return nil
	}

	var decoded map[string]string
	if err := json.Unmarshal(b, &decoded); err != nil {
		s.logger.Warn("discarding corrupt storage file",
			slog.String("path", s.path),
			slog.Int("size", len(b)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	for k, v := range decoded {
		s.items[k] = v
	}
	return nil
}

func (s *FileStorage) persistLocked() error {
	b, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir storage dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
