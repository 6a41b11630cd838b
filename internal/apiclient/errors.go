package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind はクライアントが返すエラーの種別。
type Kind int

const (
	// KindNetwork はレスポンスを受け取れなかった失敗（接続失敗、タイムアウトなど）。
	KindNetwork Kind = iota + 1
	// KindHTTPStatus は2xx以外のステータスが返った失敗。
	KindHTTPStatus
	// KindParse はリクエスト・レスポンスボディのエンコード/デコード失敗。
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http_status"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// NetworkErrorMessage はネットワーク失敗時にユーザーへ表示する共通メッセージ。
const NetworkErrorMessage = "ネットワークエラーが発生しました。接続を確認してください。"

// Error はAPIクライアントが返す唯一のエラー型。
// 呼び出し側は errors.As で取り出し、Kind で分岐する。
type Error struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int    // KindHTTPStatus / KindParse(レスポンス) のときのみ
	ServerMsg  string // バックエンドが返したメッセージ（あれば）
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		if e.ServerMsg != "" {
			return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.ServerMsg)
		}
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	default:
		return fmt.Sprintf("%s %s: %s error: %v", e.Method, e.Path, e.Kind, e.Err)
	}
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout はクライアント全体のタイムアウトを超えた失敗かどうかを返す。
func (e *Error) Timeout() bool {
	if e.Kind != KindNetwork || e.Err == nil {
		return false
	}
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return false
}

// AsError はerrから *Error を取り出す。
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode はerrがHTTPステータスエラーであればそのステータスを返す。それ以外は0。
func StatusCode(err error) int {
	if e, ok := AsError(err); ok && e.Kind == KindHTTPStatus {
		return e.StatusCode
	}
	return 0
}

// Message はユーザー向け通知に使うメッセージを選ぶ。
//   - ネットワーク失敗は共通メッセージ
//   - サーバーがメッセージを返していればそのまま
//   - それ以外は操作ごとの既定メッセージ fallback
func Message(err error, fallback string) string {
	e, ok := AsError(err)
	if !ok {
		return fallback
	}
	if e.Kind == KindNetwork {
		return NetworkErrorMessage
	}
	if e.ServerMsg != "" {
		return e.ServerMsg
	}
	return fallback
}

// serverMessage はエラーレスポンスのボディからメッセージを取り出す。
// message、detail の順に参照し、どちらも無ければ空文字列を返す。
func serverMessage(body []byte) string {
	var payload struct {
		Message any `json:"message"`
		Detail  any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, v := range []any{payload.Message, payload.Detail} {
		if s := flattenMessage(v); s != "" {
			return s
		}
	}
	return ""
}

// flattenMessage は文字列または文字列配列のメッセージを1行にする。
func flattenMessage(v any) string {
	switch m := v.(type) {
	case string:
		return strings.TrimSpace(m)
	case []any:
		parts := make([]string, 0, len(m))
		for _, p := range m {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
