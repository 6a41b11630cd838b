package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSessionReader struct {
	loggedIn  bool
	superuser bool
}

func (f fakeSessionReader) IsLoggedIn() bool  { return f.loggedIn }
func (f fakeSessionReader) IsSuperuser() bool { return f.superuser }

func guarded(reader fakeSessionReader, fs *FlashStore) http.Handler {
	return NewGuardMiddleware(reader, fs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestGuardMiddleware_Navigation(t *testing.T) {
	guest := fakeSessionReader{}
	member := fakeSessionReader{loggedIn: true}
	admin := fakeSessionReader{loggedIn: true, superuser: true}

	tests := []struct {
		name         string
		reader       fakeSessionReader
		path         string
		wantStatus   int
		wantLocation string
	}{
		{"公開ページ", guest, "/", http.StatusOK, ""},
		{"ブログ詳細は公開", guest, "/home/blog/3", http.StatusOK, ""},
		{"home は aboutme へ", guest, "/home", http.StatusFound, "/home/aboutme"},
		{"home/ も aboutme へ", member, "/home/", http.StatusFound, "/home/aboutme"},
		{"未ログインで userinfo", guest, "/home/userinfo", http.StatusFound, "/login"},
		{"ログイン済みで userinfo", member, "/home/userinfo", http.StatusOK, ""},
		{"ログイン済みで login", member, "/login", http.StatusFound, "/home"},
		{"一般ユーザーで admin", member, "/admin/useradmin", http.StatusFound, "/login"},
		{"管理者で admin", admin, "/admin/useradmin", http.StatusOK, ""},
		{"ルート表に無いパス", guest, "/health", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			guarded(tt.reader, newTestFlashStore()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestGuardMiddleware_RemembersTargetAndFlash(t *testing.T) {
	fs := newTestFlashStore()

	rec := httptest.NewRecorder()
	guarded(fakeSessionReader{}, fs).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/welcomeadmin?tab=1", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	next := httptest.NewRequest(http.MethodGet, "/login", nil)
	carryCookies(next, rec)
	rec2 := httptest.NewRecorder()
	flashes := fs.Flashes(rec2, next)
	if len(flashes) != 1 || flashes[0].Message != msgLoginRequired {
		t.Errorf("Flashes() = %+v", flashes)
	}

	again := httptest.NewRequest(http.MethodPost, "/login", nil)
	carryCookies(again, rec2)
	if got := fs.PopTarget(httptest.NewRecorder(), again); got != "/admin/welcomeadmin?tab=1" {
		t.Errorf("PopTarget() = %q", got)
	}
}

func TestGuardMiddleware_WriteActions(t *testing.T) {
	tests := []struct {
		name       string
		reader     fakeSessionReader
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"未ログインでコメント投稿", fakeSessionReader{}, http.MethodPost, "/home/blog/3/comments", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"ログイン済みでコメント投稿", fakeSessionReader{loggedIn: true}, http.MethodPost, "/home/blog/3/comments", http.StatusOK, ""},
		{"未ログインで留言削除", fakeSessionReader{}, http.MethodDelete, "/home/board/messages/1", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"ログイン済みでログイン送信", fakeSessionReader{loggedIn: true}, http.MethodPost, "/login", http.StatusForbidden, "ALREADY_LOGGED_IN"},
		{"一般ユーザーでブログ作成", fakeSessionReader{loggedIn: true}, http.MethodPost, "/admin/blogs", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"ログアウトは常に可", fakeSessionReader{}, http.MethodPost, "/logout", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			guarded(tt.reader, newTestFlashStore()).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				return
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}
