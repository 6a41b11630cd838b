// Package middleware はローカルサーバーのHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

const (
	flashSessionName = "harryweb_flash"

	targetKey = "target"
	csrfKey   = "csrf"
)

func init() {
	gob.Register(notify.Notification{})
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// FlashConfig はフラッシュ用Cookieの設定。
type FlashConfig struct {
	Secret       string
	CookieSecure bool
}

// FlashStore はブラウザ側のCookieセッションにフラッシュ通知、
// ログイン後に戻る遷移先、CSRFトークンを保持する。
// 認証情報はここには置かない。トークンはセッションストア側にある。
type FlashStore struct {
	store  sessions.Store
	logger *slog.Logger
}

// NewFlashStore はgorilla/sessionsのCookieStoreを使うFlashStoreを生成する。
func NewFlashStore(cfg FlashConfig, logger *slog.Logger) *FlashStore {
	if logger == nil {
		logger = slog.Default()
	}
	cs := sessions.NewCookieStore([]byte(cfg.Secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	return &FlashStore{store: cs, logger: logger}
}

// get はセッションを取得する。Cookieが壊れている場合も新しいセッションを返す。
func (f *FlashStore) get(r *http.Request) *sessions.Session {
	sess, err := f.store.Get(r, flashSessionName)
	if err != nil {
		f.logger.Warn("discarding unreadable flash cookie", slog.String("error", err.Error()))
	}
	return sess
}

func (f *FlashStore) save(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash session: %w", err)
	}
	return nil
}

// AddFlash は次のビューで表示する通知を追加する。
func (f *FlashStore) AddFlash(w http.ResponseWriter, r *http.Request, n notify.Notification) error {
	sess := f.get(r)
	sess.AddFlash(n)
	return f.save(w, r, sess)
}

// Flashes は溜まっているフラッシュ通知を取り出して消す。
func (f *FlashStore) Flashes(w http.ResponseWriter, r *http.Request) []notify.Notification {
	sess := f.get(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]notify.Notification, 0, len(raw))
	for _, v := range raw {
		if n, ok := v.(notify.Notification); ok {
			out = append(out, n)
		}
	}
	if err := f.save(w, r, sess); err != nil {
		f.logger.Error("failed to clear flashes", slog.String("error", err.Error()))
	}
	return out
}

// RememberTarget はログイン後に戻る遷移先を記録する。
func (f *FlashStore) RememberTarget(w http.ResponseWriter, r *http.Request, path string) error {
	sess := f.get(r)
	sess.Values[targetKey] = path
	return f.save(w, r, sess)
}

// PopTarget は記録された遷移先を取り出して消す。無ければ空文字。
func (f *FlashStore) PopTarget(w http.ResponseWriter, r *http.Request) string {
	sess := f.get(r)
	target, _ := sess.Values[targetKey].(string)
	if target == "" {
		return ""
	}
	delete(sess.Values, targetKey)
	if err := f.save(w, r, sess); err != nil {
		f.logger.Error("failed to clear redirect target", slog.String("error", err.Error()))
	}
	return target
}

// CSRFToken はセッションのCSRFトークンを返す。未発行なら生成して保存する。
func (f *FlashStore) CSRFToken(w http.ResponseWriter, r *http.Request) (string, error) {
	sess := f.get(r)
	if token, ok := sess.Values[csrfKey].(string); ok && token != "" {
		return token, nil
	}
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return "", fmt.Errorf("failed to generate CSRF token")
	}
	token := hex.EncodeToString(key)
	sess.Values[csrfKey] = token
	if err := f.save(w, r, sess); err != nil {
		return "", err
	}
	return token, nil
}

// storedCSRFToken は保存済みのCSRFトークンを返す。生成はしない。
func (f *FlashStore) storedCSRFToken(r *http.Request) string {
	token, _ := f.get(r).Values[csrfKey].(string)
	return token
}

// UserReader はログイン中ユーザーの参照。session.Store が満たす。
type UserReader interface {
	GetUser() *model.UserProfile
}

// NewUserContextMiddleware はログイン中ユーザーのUIDをリクエストコンテキストに注入する。
// 未ログインでもリクエストは通す。可否の判定はガードミドルウェアが行う。
func NewUserContextMiddleware(reader UserReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := reader.GetUser(); u != nil && u.UID != "" {
				r = r.WithContext(ContextWithUserID(r.Context(), u.UID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
