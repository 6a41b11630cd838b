package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeCredentials はテスト用のCredentialProvider。
type fakeCredentials struct {
	mu    sync.Mutex
	token string
}

func (f *fakeCredentials) GetToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCredentials) set(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// fakeRecorder はテスト用のRecorder。
type fakeRecorder struct {
	mu       sync.Mutex
	requests []int
	failures []string
}

func (r *fakeRecorder) RecordAPIRequest(method string, statusCode int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, statusCode)
}

func (r *fakeRecorder) RecordAPIFailure(method string, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, kind)
}

func newTestClient(t *testing.T, server *httptest.Server, creds CredentialProvider, opts ...Option) *Client {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	all := []Option{WithHTTPClient(server.Client()), WithLogger(logger)}
	if creds != nil {
		all = append(all, WithInterceptor(TokenInterceptor(creds)))
	}
	all = append(all, opts...)
	c, err := New(Config{BaseURL: server.URL + "/api", Timeout: 2 * time.Second}, all...)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return c
}

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) should fail", base)
		}
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:8000/api"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
}

func TestVerbs_AttachTokenOnEveryRequest(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.Method] = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":1,"name":"ok"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, &fakeCredentials{token: "abc"})
	ctx := context.Background()

	if _, err := Get[item](ctx, c, "/x/", nil); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if _, err := Post[item](ctx, c, "/x/", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if _, err := Put[item](ctx, c, "/x/", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if _, err := Patch[item](ctx, c, "/x/", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if _, err := Delete[item](ctx, c, "/x/"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		if seen[m] != "JWT abc" {
			t.Errorf("%s Authorization = %q, want %q", m, seen[m], "JWT abc")
		}
	}
}

func TestUpload_AttachesToken(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, &fakeCredentials{token: "abc"})
	if _, err := Upload[map[string]any](context.Background(), c, "/up/", strings.NewReader("x"), "a.png", "avatar"); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if auth != "JWT abc" {
		t.Errorf("Authorization = %q, want %q", auth, "JWT abc")
	}
}

func TestVerbs_NoTokenSendsWithoutAuthorization(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := r.Header["Authorization"]; ok {
			t.Errorf("Authorization header should be absent, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server, &fakeCredentials{})
	if _, err := Get[item](context.Background(), c, "/x/", nil); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !called {
		t.Error("request must still be dispatched without a token")
	}
}

func TestTokenInterceptor_ReadsTokenAtDispatch(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	creds := &fakeCredentials{}
	c := newTestClient(t, server, creds)

	// クライアント生成後に取得したトークンも使われる
	creds.set("late-token")
	if _, err := Get[item](context.Background(), c, "/x/", nil); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if auth != "JWT late-token" {
		t.Errorf("Authorization = %q, want %q", auth, "JWT late-token")
	}
}

func TestGet_NormalizesEnvelopeAndPassesParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/blog/blogs/" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/blog/blogs/")
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("search") != "go" {
			t.Errorf("query = %q, want page=2&search=go", r.URL.RawQuery)
		}
		w.Header().Set("X-Extra", "dropped")
		w.Write([]byte(`{"id":7,"name":"seven"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	env, err := Get[item](context.Background(), c, "/blog/blogs/", url.Values{"page": {"2"}, "search": {"go"}})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if env.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", env.Status)
	}
	if env.Data.ID != 7 || env.Data.Name != "seven" {
		t.Errorf("Data = %+v, want {7 seven}", env.Data)
	}
}

func TestGet_KeepsQueryInPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "3" {
			t.Errorf("page = %q, want 3", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	if _, err := Get[item](context.Background(), c, "/msgboard/messages/?page=3", nil); err != nil {
		t.Fatalf("Get error: %v", err)
	}
}

func TestPost_SendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["content"] != "hello" {
			t.Errorf("body content = %q, want hello", body["content"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	env, err := Post[item](context.Background(), c, "/msgboard/messages/", map[string]string{"content": "hello"})
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if env.Status != http.StatusCreated {
		t.Errorf("Status = %d, want 201", env.Status)
	}
}

func TestUpload_SendsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
			t.Errorf("Content-Type = %q, want multipart/form-data with boundary", r.Header.Get("Content-Type"))
		}
		file, header, err := r.FormFile("avatar")
		if err != nil {
			t.Fatalf("FormFile error: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "PNGDATA" {
			t.Errorf("uploaded data = %q, want PNGDATA", data)
		}
		if header.Filename != "avatar.png" {
			t.Errorf("filename = %q, want avatar.png", header.Filename)
		}
		w.Write([]byte(`{"url":"https://cdn.example.com/a.png"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	env, err := Upload[struct {
		URL string `json:"url"`
	}](context.Background(), c, "/user/avatar/upload/", bytes.NewReader([]byte("PNGDATA")), "avatar.png", "avatar")
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if env.Data.URL != "https://cdn.example.com/a.png" {
		t.Errorf("URL = %q", env.Data.URL)
	}
}

func TestUpload_DefaultFieldName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected default field 'file': %v", err)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	if _, err := Upload[map[string]any](context.Background(), c, "/up/", strings.NewReader("x"), "", ""); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
}

func TestHTTPStatusError_CarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":400,"message":"邮箱或密码错误"}`))
	}))
	defer server.Close()

	rec := &fakeRecorder{}
	c := newTestClient(t, server, nil, WithRecorder(rec))
	env, err := Post[item](context.Background(), c, "/user/login/", map[string]string{})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if env.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", env.Status)
	}

	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("error should be *Error, got %T", err)
	}
	if apiErr.Kind != KindHTTPStatus || apiErr.StatusCode != 400 {
		t.Errorf("Kind=%v Status=%d, want http_status 400", apiErr.Kind, apiErr.StatusCode)
	}
	if apiErr.ServerMsg != "邮箱或密码错误" {
		t.Errorf("ServerMsg = %q", apiErr.ServerMsg)
	}
	if got := Message(err, "fallback"); got != "邮箱或密码错误" {
		t.Errorf("Message() = %q, want server message", got)
	}
	if len(rec.requests) != 1 || len(rec.failures) != 1 || rec.failures[0] != "http_status" {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestHTTPStatusError_DetailAndFallback(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail", `{"detail":"Authentication credentials were not provided."}`, "Authentication credentials were not provided."},
		{"list message", `{"message":["a","b"]}`, "a b"},
		{"not json", `<html>oops</html>`, "fallback"},
		{"empty", ``, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server, nil)
			_, err := Get[item](context.Background(), c, "/x/", nil)
			if got := Message(err, "fallback"); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
			if StatusCode(err) != http.StatusForbidden {
				t.Errorf("StatusCode() = %d, want 403", StatusCode(err))
			}
		})
	}
}

func TestParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"not-a-number"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	_, err := Get[item](context.Background(), c, "/x/", nil)
	apiErr, ok := AsError(err)
	if !ok || apiErr.Kind != KindParse {
		t.Fatalf("err = %v, want KindParse", err)
	}
	if apiErr.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", apiErr.StatusCode)
	}
	if got := Message(err, "fallback"); got != "fallback" {
		t.Errorf("Message() = %q, want fallback", got)
	}
}

func TestNoContent_ReturnsZeroData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	env, err := Delete[item](context.Background(), c, "/x/1/")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if env.Status != http.StatusNoContent || env.Data != (item{}) {
		t.Errorf("env = %+v, want 204 with zero data", env)
	}
}

func TestTimeout_IsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	hc := server.Client()
	hc.Timeout = 50 * time.Millisecond
	c, err := New(Config{BaseURL: server.URL}, WithHTTPClient(hc), WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	_, err = Get[item](context.Background(), c, "/slow/", nil)
	apiErr, ok := AsError(err)
	if !ok || apiErr.Kind != KindNetwork {
		t.Fatalf("err = %v, want KindNetwork", err)
	}
	if !apiErr.Timeout() {
		t.Error("Timeout() should be true")
	}
	if got := Message(err, "fallback"); got != NetworkErrorMessage {
		t.Errorf("Message() = %q, want network message", got)
	}
}

func TestNetworkError_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	c, err := New(Config{BaseURL: base}, WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	_, err = Get[item](context.Background(), c, "/x/", nil)
	apiErr, ok := AsError(err)
	if !ok || apiErr.Kind != KindNetwork {
		t.Fatalf("err = %v, want KindNetwork", err)
	}
}

func TestInterceptorError_StopsDispatch(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	failing := func(req *http.Request) (*http.Request, error) {
		return nil, errors.New("no credentials source")
	}
	c := newTestClient(t, server, nil, WithInterceptor(failing))
	if _, err := Get[item](context.Background(), c, "/x/", nil); err == nil {
		t.Fatal("expected interceptor error")
	}
	if called {
		t.Error("request must not be dispatched when an interceptor fails")
	}
}

func TestRequestIDInterceptor(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
	}))
	defer server.Close()

	c := newTestClient(t, server, nil, WithInterceptor(RequestIDInterceptor()))
	if _, err := Get[item](context.Background(), c, "/x/", nil); err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(got) != 36 {
		t.Errorf("X-Request-ID = %q, want a UUID", got)
	}
}
