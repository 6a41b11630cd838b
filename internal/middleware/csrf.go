package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/harryweb/internal/model"
)

// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
const csrfHeaderName = "X-CSRF-Token"

// NewCSRFMiddleware はCSRFトークンの検証ミドルウェアを返す。
// ローカルサーバーは保存済みトークンでバックエンドを呼ぶため、
// 他サイトからの状態変更リクエストはここで止める。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証をスキップする。
// 状態変更メソッドはフラッシュCookieに保存したトークンとヘッダーの一致を必須とする。
func NewCSRFMiddleware(flashes *FlashStore, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			stored := flashes.storedCSRFToken(r)
			header := r.Header.Get(csrfHeaderName)
			if stored == "" || header == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(header)) != 1 {
				logger.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("has_cookie_token", stored != ""),
					slog.Bool("has_header_token", header != ""),
				)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "CSRF_TOKEN_INVALID",
					Message:  "CSRFトークンが無効です。",
					Category: "auth",
					Action:   "GET /csrf-token でトークンを取得し、X-CSRF-Token ヘッダーに付与してください。",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /csrf-token
// 既存のトークンがあればそれを返し、なければ新規生成する。
func NewCSRFTokenHandler(flashes *FlashStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := flashes.CSRFToken(w, r)
		if err != nil {
			logger.Error("failed to issue CSRF token", slog.String("error", err.Error()))
			WriteInternalServerError(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"token": token,
		})
	})
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
