package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/user"
)

// UserServiceInterface はユーザー情報・ユーザー管理のサービス。user.Service が満たす。
type UserServiceInterface interface {
	Users() []model.UserProfile
	GetUsers(ctx context.Context)
	AgreeUser(ctx context.Context, params model.AgreeUserParams) bool
	DeleteUser(ctx context.Context, uid string) bool
	UpdateUserInfo(ctx context.Context, form model.UserForm) bool
	ValidateAvatar(file user.AvatarFile) bool
	UploadAvatar(ctx context.Context, file user.AvatarFile) *model.UploadResponse
}

// avatarFormField はアバター画像を受け取るmultipartのフィールド名。
const avatarFormField = "avatar"

// UserHandler はユーザー情報画面とユーザー管理画面のハンドラー。
type UserHandler struct {
	renderer
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, rd renderer) *UserHandler {
	return &UserHandler{renderer: rd, service: service}
}

// UserInfo はログイン中ユーザーの情報画面を返す。ユーザー情報はビュー共通の user に載る。
// GET /home/userinfo
func (h *UserHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "userinfo", nil)
}

// UpdateUserInfo は表示名を更新する。
// POST /home/userinfo
func (h *UserHandler) UpdateUserInfo(w http.ResponseWriter, r *http.Request) {
	var form model.UserForm
	if !decodeJSON(w, r, &form) {
		return
	}
	if form.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("名前は必須です"))
		return
	}
	h.action(w, r, "userinfo", h.service.UpdateUserInfo(r.Context(), form), nil)
}

// UploadAvatar はアバター画像をアップロードする。
// 形式とサイズはアップロード前に検証し、不正な場合はバックエンドを呼ばない。
// POST /home/userinfo/avatar (multipart/form-data, field "avatar")
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, user.MaxAvatarSize+1<<20)
	if err := r.ParseMultipartForm(user.MaxAvatarSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, user.CheckAvatar("image/png", user.MaxAvatarSize))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("multipart/form-data で送信してください"))
		return
	}
	file, header, err := r.FormFile(avatarFormField)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("avatar フィールドが必要です"))
		return
	}
	defer file.Close()

	avatar := user.AvatarFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	if !h.service.ValidateAvatar(avatar) {
		h.action(w, r, "userinfo", false, nil)
		return
	}
	res := h.service.UploadAvatar(r.Context(), avatar)
	if res == nil {
		h.action(w, r, "userinfo", false, nil)
		return
	}
	h.action(w, r, "userinfo", true, res)
}

// Admin は管理画面トップを返す。
// GET /admin
func (h *UserHandler) Admin(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "admin", nil)
}

// usersView はユーザー管理画面のビューモデル。
type usersView struct {
	Users []model.UserProfile `json:"users"`
}

// UserAdmin はユーザー一覧を返す。
// GET /admin/useradmin
func (h *UserHandler) UserAdmin(w http.ResponseWriter, r *http.Request) {
	h.service.GetUsers(r.Context())
	h.view(w, r, "useradmin", usersView{Users: h.service.Users()})
}

// AgreeUser は登録申請を承認する。
// POST /admin/useradmin/agree
func (h *UserHandler) AgreeUser(w http.ResponseWriter, r *http.Request) {
	var params model.AgreeUserParams
	if !decodeJSON(w, r, &params) {
		return
	}
	if params.Email == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("メールアドレスは必須です"))
		return
	}
	ok := h.service.AgreeUser(r.Context(), params)
	h.action(w, r, "useradmin", ok, usersView{Users: h.service.Users()})
}

// DeleteUser はユーザーを削除する。
// DELETE /admin/useradmin/{uid}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(uid))
		return
	}
	ok := h.service.DeleteUser(r.Context(), uid)
	h.action(w, r, "useradmin", ok, usersView{Users: h.service.Users()})
}
