// Package session はログイン中のユーザーとトークンを保持するセッションストアを提供する。
//
// Store はプロセス全体で1つだけ生成し、APIクライアント・各フック・ルートガードに
// 明示的に渡して使う。生成時に永続ストレージから状態を復元し、ログアウト時に
// ClearUser で破棄する。トークンの有効期限はこの層では扱わない。
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/storage"
)

const (
	// TokenKey は生のトークン文字列を保存するキー。
	TokenKey = "HARRYWEB_TOKEN_KEY"
	// UserKey はJSONシリアライズしたユーザー情報を保存するキー。
	UserKey = "HARRYWEB_USER_KEY"
	// DefaultAggregateKey は {user, token} をまとめて保存するキーの既定値。
	DefaultAggregateKey = "blog_storage"
)

var (
	// ErrNotLoggedIn はユーザー情報またはトークンが無い状態で更新しようとした場合のエラー。
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrNilUser はユーザー情報無しで SetUser を呼んだ場合のエラー。
	ErrNilUser = errors.New("session: user is required")
)

// aggregate は集約キーに保存するレコード。
type aggregate struct {
	User  *model.UserProfile `json:"user"`
	Token string             `json:"token"`
}

// Options はStoreの生成オプション。
type Options struct {
	// AggregateKey は集約レコードのキー。空の場合は DefaultAggregateKey。
	AggregateKey string
	Logger       *slog.Logger
}

// Store はセッション（トークンとユーザー情報）の唯一の保持者。
// メモリ上の状態と永続ストレージの両方を更新する。
type Store struct {
	storage      storage.Storage
	aggregateKey string
	logger       *slog.Logger

	mu    sync.RWMutex
	token string
	user  *model.UserProfile
}

// New は永続ストレージから状態を復元してStoreを生成する。
// 保存済みユーザー情報が壊れている場合や読み取りに失敗した場合は
// 「ユーザー無し」として扱い、エラーにはしない。
func New(st storage.Storage, opts Options) *Store {
	if opts.AggregateKey == "" {
		opts.AggregateKey = DefaultAggregateKey
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		storage:      st,
		aggregateKey: opts.AggregateKey,
		logger:       opts.Logger,
	}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	if token, ok, err := s.storage.GetItem(TokenKey); err != nil {
		s.logger.Warn("failed to read stored token", slog.String("error", err.Error()))
	} else if ok {
		s.token = token
	}

	raw, ok, err := s.storage.GetItem(UserKey)
	if err != nil {
		s.logger.Warn("failed to read stored user", slog.String("error", err.Error()))
		return
	}
	if !ok || raw == "" {
		return
	}

	var user *model.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("ignoring malformed stored user", slog.String("error", err.Error()))
		return
	}
	// "null" やUIDの無いプロフィールは保存済みユーザー無しとみなす
	if user == nil || user.UID == "" {
		s.logger.Warn("ignoring stored user without uid")
		return
	}
	s.user = user
}

// SetUser はメモリ上のユーザー情報とトークンを無条件に上書きし、永続ストレージへ書き込む。
// トークンは不透明な資格情報として扱い、形式や期限は検証しない。
// user が nil の場合は何も変更せず ErrNilUser を返す。
func (s *Store) SetUser(user *model.UserProfile, token string) error {
	if user == nil {
		return ErrNilUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(user.Clone(), token)
}

func (s *Store) setLocked(user *model.UserProfile, token string) error {
	s.user = user
	s.token = token

	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	aggJSON, err := json.Marshal(aggregate{User: user, Token: token})
	if err != nil {
		return fmt.Errorf("encode session aggregate: %w", err)
	}

	if err := s.storage.SetItem(UserKey, string(userJSON)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	if err := s.storage.SetItem(TokenKey, token); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.storage.SetItem(s.aggregateKey, string(aggJSON)); err != nil {
		return fmt.Errorf("persist session aggregate: %w", err)
	}
	return nil
}

// ClearUser はメモリ上の状態と永続ストレージのエントリをすべて削除する。
// セッションが無い状態で呼んでも安全。
func (s *Store) ClearUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	s.token = ""

	var errs []error
	for _, key := range []string{UserKey, TokenKey, s.aggregateKey} {
		if err := s.storage.RemoveItem(key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// GetUser は現在のユーザー情報のコピーを返す。未ログインの場合はnil。
func (s *Store) GetUser() *model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// GetToken は現在のトークンを返す。未ログインの場合は空文字列。
func (s *Store) GetToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsLoggedIn は永続ストレージに両キーが空でない値で存在し、
// かつメモリ上にもトークンとユーザー情報がある場合のみtrueを返す。
// 他プロセスによるストレージ削除を検知するため、毎回ストレージを読み直す。
func (s *Store) IsLoggedIn() bool {
	storedToken, ok, err := s.storage.GetItem(TokenKey)
	if err != nil || !ok || storedToken == "" {
		return false
	}
	storedUser, ok, err := s.storage.GetItem(UserKey)
	if err != nil || !ok || storedUser == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// IsSuperuser は現在のユーザーが管理者かどうかを返す。
// ユーザー情報が無い場合はfalse。
func (s *Store) IsSuperuser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsSuperuser
}

// UpdateUser は現在のユーザー情報のコピーにmutateを適用し、
// 現在のトークンと共にメモリと永続ストレージへ書き戻す。
// 更新後のユーザー情報のコピーを返す。
func (s *Store) UpdateUser(mutate func(u *model.UserProfile)) (*model.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil || s.token == "" {
		return nil, ErrNotLoggedIn
	}

	updated := s.user.Clone()
	mutate(updated)
	if err := s.setLocked(updated, s.token); err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}
