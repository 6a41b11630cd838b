// Package handler はローカルサーバーのビュー・アクションハンドラーを提供する。
//
// 各ビューはJSONのビューモデルとして返し、溜まった通知（フラッシュ含む）と
// ログイン中ユーザーを必ず同梱する。描画は行わない。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

// NotificationSource はフックが積んだ通知の取り出し口。notify.Center が満たす。
type NotificationSource interface {
	Drain() []notify.Notification
}

// FlashReader はCookieセッション側の通知と遷移先の取り出し口。middleware.FlashStore が満たす。
type FlashReader interface {
	Flashes(w http.ResponseWriter, r *http.Request) []notify.Notification
	PopTarget(w http.ResponseWriter, r *http.Request) string
}

// SessionView はビューに載せるログイン状態。session.Store が満たす。
type SessionView interface {
	GetUser() *model.UserProfile
	IsLoggedIn() bool
	IsSuperuser() bool
}

// viewResponse はすべてのビュー・アクションのレスポンス形式。
type viewResponse struct {
	View          string                `json:"view"`
	User          *model.UserProfile    `json:"user"`
	Data          any                   `json:"data,omitempty"`
	OK            *bool                 `json:"ok,omitempty"`
	Redirect      string                `json:"redirect,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

// renderer はビューモデルの書き出しを担う。各ハンドラーが埋め込む。
type renderer struct {
	session SessionView
	center  NotificationSource
	flashes FlashReader
	logger  *slog.Logger
}

func newRenderer(session SessionView, center NotificationSource, flashes FlashReader, logger *slog.Logger) renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return renderer{session: session, center: center, flashes: flashes, logger: logger}
}

// notifications はフラッシュとフックの通知を古い順に取り出す。
func (rd renderer) notifications(w http.ResponseWriter, r *http.Request) []notify.Notification {
	out := []notify.Notification{}
	if rd.flashes != nil {
		out = append(out, rd.flashes.Flashes(w, r)...)
	}
	if rd.center != nil {
		out = append(out, rd.center.Drain()...)
	}
	return out
}

// view は参照系のビューモデルを200で書き出す。
func (rd renderer) view(w http.ResponseWriter, r *http.Request, name string, data any) {
	rd.write(w, r, http.StatusOK, viewResponse{View: name, Data: data})
}

// action は更新系の結果を書き出す。失敗はフックが通知済みのため502で返す。
func (rd renderer) action(w http.ResponseWriter, r *http.Request, name string, ok bool, data any) {
	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
	}
	rd.write(w, r, status, viewResponse{View: name, Data: data, OK: &ok})
}

// redirectAction は成功時に遷移先を添えて結果を書き出す。
func (rd renderer) redirectAction(w http.ResponseWriter, r *http.Request, name string, ok bool, redirect string) {
	status := http.StatusOK
	if !ok {
		status = http.StatusBadGateway
		redirect = ""
	}
	rd.write(w, r, status, viewResponse{View: name, OK: &ok, Redirect: redirect})
}

func (rd renderer) write(w http.ResponseWriter, r *http.Request, status int, body viewResponse) {
	if rd.session != nil {
		body.User = rd.session.GetUser()
	}
	body.Notifications = rd.notifications(w, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rd.logger.Error("failed to encode view", slog.String("view", body.View), slog.String("error", err.Error()))
	}
}

// upstreamError はフックが返したエラーをローカルのエラーレスポンスに変換する。
func (rd renderer) upstreamError(w http.ResponseWriter, err error, fallback string) {
	switch apiclient.StatusCode(err) {
	case http.StatusNotFound:
		middleware.WriteNotFound(w)
	case http.StatusUnauthorized, http.StatusForbidden:
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
	default:
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError(apiclient.Message(err, fallback)))
	}
}

// decodeJSON はリクエストボディをJSONとして読む。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return false
	}
	return true
}

// idParam はパスパラメータを正の整数IDとして読む。失敗時は400を書き込みfalseを返す。
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(raw))
		return 0, false
	}
	return id, true
}

// queryInt はクエリパラメータを整数として読む。無い・不正な場合は0。
func queryInt(r *http.Request, name string) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
