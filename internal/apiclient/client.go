// Package apiclient はバックエンドREST APIへの唯一の送信口となるHTTPクライアントを提供する。
//
// すべてのリクエストはインターセプタ（トークン付与など）を通過してから送信され、
// レスポンスは {Status, Data} の Envelope に正規化される。
// リトライ、キャッシュ、同一リクエストの集約は行わない。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout はリクエスト全体のタイムアウトの既定値。
	DefaultTimeout = 10 * time.Second
	// maxErrorBodySize はエラーレスポンスから読み取る最大バイト数。
	maxErrorBodySize = 1 << 20
	// defaultUploadField はUploadでフィールド名が省略された場合の名前。
	defaultUploadField = "file"
)

// Envelope はすべての動詞メソッドが返す正規化済みレスポンス。
// Status は常にトランスポートのステータスコードで、Data 内の業務コードは解釈しない。
type Envelope[T any] struct {
	Status int
	Data   T
}

// Recorder はAPI呼び出しの計測先。metrics.Collector が満たす。
type Recorder interface {
	RecordAPIRequest(method string, statusCode int, duration time.Duration)
	RecordAPIFailure(method string, kind string)
}

// Config はClientの固定設定。
type Config struct {
	// BaseURL はAPIルート（例: "http://127.0.0.1:8000/api"）。
	BaseURL string
	// Timeout はリクエスト全体のタイムアウト。0の場合は DefaultTimeout。
	Timeout time.Duration
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithHTTPClient は送信に使う *http.Client を差し替える。
// Timeout が未設定の場合は Config.Timeout を設定する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithInterceptor はインターセプタを末尾に追加する。
func WithInterceptor(i Interceptor) Option {
	return func(c *Client) {
		c.interceptors = append(c.interceptors, i)
	}
}

// WithRecorder は計測先を設定する。
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// Client は認証付きHTTPクライアント。
// 生成後の状態は変更されないため、複数goroutineから同時に使用できる。
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	logger       *slog.Logger
	interceptors []Interceptor
	recorder     Recorder
}

// New はClientを生成する。BaseURLが不正な場合はエラーを返す。
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: base,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.httpClient.Timeout == 0 {
		c.httpClient.Timeout = timeout
	}
	return c, nil
}

// BaseURL はAPIルートを返す。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// resolve はAPIルートからの相対パスと追加クエリから送信先URLを組み立てる。
// path 自体に含まれるクエリ（"?page=2" など）は保持する。
func (c *Client) resolve(path string, params url.Values) (string, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(rel.Path, "/")
	q := rel.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// request は1回の送信を行い、ステータスとボディを返す。
// 2xx以外のステータスは KindHTTPStatus の *Error になる。
func (c *Client) request(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (int, []byte, error) {
	target, err := c.resolve(path, params)
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Method: method, Path: path, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for _, intercept := range c.interceptors {
		req, err = intercept(req)
		if err != nil {
			return 0, nil, c.fail(&Error{Kind: KindNetwork, Method: method, Path: path, Err: fmt.Errorf("interceptor: %w", err)})
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, c.fail(&Error{Kind: KindNetwork, Method: method, Path: path, Err: err})
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	if c.recorder != nil {
		c.recorder.RecordAPIRequest(method, resp.StatusCode, duration)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return resp.StatusCode, nil, c.fail(&Error{
			Kind:       KindHTTPStatus,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			ServerMsg:  serverMessage(errBody),
		})
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, c.fail(&Error{Kind: KindNetwork, Method: method, Path: path, StatusCode: resp.StatusCode, Err: err})
	}

	c.logger.Debug("api request completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
	)
	return resp.StatusCode, data, nil
}

// fail は失敗を記録・ログ出力してそのまま返す。
func (c *Client) fail(e *Error) *Error {
	if c.recorder != nil {
		c.recorder.RecordAPIFailure(e.Method, e.Kind.String())
	}
	attrs := []any{
		slog.String("method", e.Method),
		slog.String("path", e.Path),
		slog.String("kind", e.Kind.String()),
	}
	if e.StatusCode != 0 {
		attrs = append(attrs, slog.Int("status", e.StatusCode))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	c.logger.Warn("api request failed", attrs...)
	return e
}

// send はJSONボディ付きで送信し、レスポンスをTにデコードする。
func send[T any](ctx context.Context, c *Client, method, path string, params url.Values, payload any) (Envelope[T], error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope[T]{}, c.fail(&Error{Kind: KindParse, Method: method, Path: path, Err: fmt.Errorf("encode request body: %w", err)})
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	status, data, err := c.request(ctx, method, path, params, body, contentType)
	if err != nil {
		return Envelope[T]{Status: status}, err
	}
	return decode[T](c, method, path, status, data)
}

func decode[T any](c *Client, method, path string, status int, data []byte) (Envelope[T], error) {
	env := Envelope[T]{Status: status}
	if len(bytes.TrimSpace(data)) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(data, &env.Data); err != nil {
		return Envelope[T]{Status: status}, c.fail(&Error{
			Kind:       KindParse,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Err:        fmt.Errorf("decode response body: %w", err),
		})
	}
	return env, nil
}

// Get はGETリクエストを送信する。paramsはそのままクエリに追加する。
func Get[T any](ctx context.Context, c *Client, path string, params url.Values) (Envelope[T], error) {
	return send[T](ctx, c, http.MethodGet, path, params, nil)
}

// Post はJSONボディ付きのPOSTリクエストを送信する。
func Post[T any](ctx context.Context, c *Client, path string, payload any) (Envelope[T], error) {
	return send[T](ctx, c, http.MethodPost, path, nil, payload)
}

// Put はJSONボディ付きのPUTリクエストを送信する。
func Put[T any](ctx context.Context, c *Client, path string, payload any) (Envelope[T], error) {
	return send[T](ctx, c, http.MethodPut, path, nil, payload)
}

// Patch はJSONボディ付きのPATCHリクエストを送信する。
func Patch[T any](ctx context.Context, c *Client, path string, payload any) (Envelope[T], error) {
	return send[T](ctx, c, http.MethodPatch, path, nil, payload)
}

// Delete はDELETEリクエストを送信する。
func Delete[T any](ctx context.Context, c *Client, path string) (Envelope[T], error) {
	return send[T](ctx, c, http.MethodDelete, path, nil, nil)
}

// Upload はfileをmultipart/form-dataのfieldNameフィールドとしてPOSTする。
// Content-Typeは他の動詞の既定値に関わらず常にmultipart/form-data（boundary付き）になる。
func Upload[T any](ctx context.Context, c *Client, path string, file io.Reader, filename, fieldName string) (Envelope[T], error) {
	if fieldName == "" {
		fieldName = defaultUploadField
	}
	if filename == "" {
		filename = fieldName
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		return Envelope[T]{}, c.fail(&Error{Kind: KindParse, Method: http.MethodPost, Path: path, Err: fmt.Errorf("create form file: %w", err)})
	}
	if _, err := io.Copy(part, file); err != nil {
		return Envelope[T]{}, c.fail(&Error{Kind: KindParse, Method: http.MethodPost, Path: path, Err: fmt.Errorf("copy upload payload: %w", err)})
	}
	if err := mw.Close(); err != nil {
		return Envelope[T]{}, c.fail(&Error{Kind: KindParse, Method: http.MethodPost, Path: path, Err: fmt.Errorf("close multipart writer: %w", err)})
	}

	status, data, err := c.request(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType())
	if err != nil {
		return Envelope[T]{Status: status}, err
	}
	return decode[T](c, http.MethodPost, path, status, data)
}
