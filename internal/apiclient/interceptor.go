package apiclient

import (
	"net/http"

	"github.com/google/uuid"
)

// Interceptor は送信直前のリクエストを受け取り、加工したリクエストを返す。
// エラーを返した場合、リクエストは送信されず KindNetwork として扱われる。
type Interceptor func(req *http.Request) (*http.Request, error)

// CredentialProvider は送信時点のトークンを返す。
// session.Store がこれを満たす。
type CredentialProvider interface {
	GetToken() string
}

// AuthScheme はAuthorizationヘッダーのスキーム。
const AuthScheme = "JWT"

// TokenInterceptor はリクエストごとにproviderからトークンを読み、
// 存在すれば "Authorization: JWT <token>" を付与する。
// トークンが無い場合もリクエストは止めずにそのまま送る（認可の判断はバックエンドに任せる）。
func TokenInterceptor(provider CredentialProvider) Interceptor {
	return func(req *http.Request) (*http.Request, error) {
		if token := provider.GetToken(); token != "" {
			req.Header.Set("Authorization", AuthScheme+" "+token)
		}
		return req, nil
	}
}

// RequestIDInterceptor はX-Request-IDが未設定のリクエストにUUIDを付与する。
// バックエンドのログとクライアントのログを突き合わせるために使う。
func RequestIDInterceptor() Interceptor {
	return func(req *http.Request) (*http.Request, error) {
		if req.Header.Get("X-Request-ID") == "" {
			req.Header.Set("X-Request-ID", uuid.NewString())
		}
		return req, nil
	}
}
