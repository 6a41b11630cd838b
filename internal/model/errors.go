package model

import "fmt"

// APIError はローカルサーバーが返す統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInvalidID      = "INVALID_ID"
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
	ErrCodeInvalidAvatar  = "INVALID_AVATAR"
)

// NewUnauthorizedError は未ログインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidIDError はパスパラメータのID不正エラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %s", id),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewUpstreamFailedError はバックエンド呼び出し失敗エラーを生成する。
// message にはバックエンドが返したメッセージ、または操作ごとの既定メッセージを渡す。
func NewUpstreamFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  message,
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidAvatarError はアバター画像の検証エラーを生成する。
func NewInvalidAvatarError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatar,
		Message:  reason,
		Category: "validation",
		Action:   "JPG/PNG/GIF形式で2MB未満の画像を選択してください。",
	}
}
