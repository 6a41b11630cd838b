package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。auth.Service が満たす。
type AuthServiceInterface interface {
	Login(ctx context.Context, form model.LoginForm) bool
	Logout() bool
	SendInitCode(ctx context.Context, form model.InitCodeForm) bool
	Register(ctx context.Context, form model.RegisterForm) bool
	ResetPassword(ctx context.Context, params model.ResetPasswordParams) bool
	ActivateUser(ctx context.Context, params model.ActiveUserParams) bool
}

// defaultLandingPath はログイン後に戻る先が記録されていない場合の遷移先。
const defaultLandingPath = "/home"

// AuthHandler はログイン・登録・有効化・パスワード変更のハンドラー。
type AuthHandler struct {
	renderer
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, rd renderer) *AuthHandler {
	return &AuthHandler{renderer: rd, service: service}
}

// LoginView はログイン画面を返す。
// GET /login
func (h *AuthHandler) LoginView(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "login", nil)
}

// Login はログインする。成功時はガードが記録した元の遷移先を返す。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form model.LoginForm
	if !decodeJSON(w, r, &form) {
		return
	}
	if form.Email == "" || form.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("メールアドレスとパスワードは必須です"))
		return
	}

	ok := h.service.Login(r.Context(), form)
	redirect := ""
	if ok {
		redirect = defaultLandingPath
		if h.flashes != nil {
			if target := h.flashes.PopTarget(w, r); target != "" {
				redirect = target
			}
		}
	}
	h.redirectAction(w, r, "login", ok, redirect)
}

// Logout はローカルのセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ok := h.service.Logout()
	h.redirectAction(w, r, "logout", ok, "/login")
}

// RegisterView は登録画面を返す。
// GET /register
func (h *AuthHandler) RegisterView(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "register", nil)
}

// SendInitCode は登録用の認証コードを送信させる。
// POST /register/code
func (h *AuthHandler) SendInitCode(w http.ResponseWriter, r *http.Request) {
	var form model.InitCodeForm
	if !decodeJSON(w, r, &form) {
		return
	}
	if form.Email == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("メールアドレスは必須です"))
		return
	}
	h.action(w, r, "register", h.service.SendInitCode(r.Context(), form), nil)
}

// Register はユーザー登録を申請する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var form model.RegisterForm
	if !decodeJSON(w, r, &form) {
		return
	}
	if form.Email == "" || form.Code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("メールアドレスと認証コードは必須です"))
		return
	}
	h.action(w, r, "register", h.service.Register(r.Context(), form), nil)
}

// activeView は有効化画面のビューモデル。
type activeView struct {
	ActiveKey string `json:"activekey"`
}

// ActiveView は有効化画面を返す。メールのリンクに含まれる key を引き継ぐ。
// GET /active?key=...
func (h *AuthHandler) ActiveView(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "active", activeView{ActiveKey: r.URL.Query().Get("key")})
}

// Activate はアカウントを有効化し、初期パスワードを設定する。
// POST /active
func (h *AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var params model.ActiveUserParams
	if !decodeJSON(w, r, &params) {
		return
	}
	if params.ActiveKey == "" || params.Password == "" || params.Password != params.ConfirmPassword {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("有効化キーと一致するパスワードを入力してください"))
		return
	}
	ok := h.service.ActivateUser(r.Context(), params)
	h.redirectAction(w, r, "active", ok, "/login")
}

// ChangePassword はログイン中ユーザーのパスワードを変更する。
// uid と email はセッションのユーザー情報で補う。
// POST /home/userinfo/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var params model.ResetPasswordParams
	if !decodeJSON(w, r, &params) {
		return
	}
	user := h.session.GetUser()
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	params.UID = user.UID
	params.Email = user.Email
	if params.OldPassword == "" || params.Password == "" || params.Password != params.ConfirmPassword {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("現在のパスワードと一致する新しいパスワードを入力してください"))
		return
	}
	h.action(w, r, "userinfo", h.service.ResetPassword(r.Context(), params), nil)
}
