package storage

import (
	"fmt"
	"log/slog"

	"github.com/gorilla/securecookie"
)

// Sealed は値をsecurecookieで署名・暗号化してから下位ストレージに保存するラッパー。
// 改ざん・別キーで保存された値・鍵の変更で復号できない値は「存在しない」として扱う。
type Sealed struct {
	inner  Storage
	codec  *securecookie.SecureCookie
	logger *slog.Logger
}

// NewSealed はsecretから署名鍵と暗号鍵を導出してSealedを生成する。
// secretは32バイト以上を想定する。
func NewSealed(inner Storage, secret string, logger *slog.Logger) (*Sealed, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner storage is required")
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("storage secret must be at least 32 bytes")
	}
	if logger == nil {
		logger = slog.Default()
	}

	hashKey := []byte(secret)
	blockKey := []byte(secret[:32])
	codec := securecookie.New(hashKey, blockKey)
	// 保存期間はセッションストア側の管理に任せる
	codec.MaxAge(0)
	codec.MaxLength(0)

	return &Sealed{inner: inner, codec: codec, logger: logger}, nil
}

func (s *Sealed) GetItem(key string) (string, bool, error) {
	raw, ok, err := s.inner.GetItem(key)
	if err != nil || !ok {
		return "", false, err
	}

	var value string
	if err := s.codec.Decode(key, raw, &value); err != nil {
		s.logger.Warn("discarding unreadable sealed storage item",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return "", false, nil
	}
	return value, true, nil
}

func (s *Sealed) SetItem(key, value string) error {
	encoded, err := s.codec.Encode(key, value)
	if err != nil {
		return fmt.Errorf("seal storage item: %w", err)
	}
	return s.inner.SetItem(key, encoded)
}

func (s *Sealed) RemoveItem(key string) error {
	return s.inner.RemoveItem(key)
}
