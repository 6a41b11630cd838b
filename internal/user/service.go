// Package user はユーザー一覧の管理とプロフィール編集を提供する。
package user

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/loading"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

const (
	usersPath        = "/user/user/"
	agreeUserPath    = "/user/agreeuser/"
	avatarUploadPath = "/user/avatar/upload/"
	avatarField      = "avatar"

	// MaxAvatarSize はアバター画像の上限サイズ（この値未満のみ受け付ける）。
	MaxAvatarSize = 2 << 20
)

const (
	msgListFailed       = "ユーザー一覧の取得に失敗しました"
	msgAgreed           = "有効化メールを送信しました"
	msgAgreeFailed      = "有効化メールの送信に失敗しました"
	msgDeleted          = "ユーザーを削除しました"
	msgDeleteFailed     = "ユーザーの削除に失敗しました"
	msgProfileUpdated   = "ユーザー情報を更新しました"
	msgUpdateFailed     = "更新に失敗しました"
	msgNoCurrentUser    = "ユーザー情報の取得に失敗しました"
	msgAvatarUploaded   = "アバターをアップロードしました"
	msgUploadFailed     = "アップロードに失敗しました。もう一度お試しください"
	msgAvatarBadType    = "アバター画像はJPG/PNG/GIF形式のみアップロードできます"
	msgAvatarTooLarge   = "アバター画像は2MB未満にしてください"
	msgSessionNotSynced = "ユーザー情報の保存に失敗しました"
)

// allowedAvatarTypes はアップロードを受け付ける画像のContent-Type。
var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// SessionEditor はプロフィール編集で読み書きするセッションストア。
// session.Store が満たす。
type SessionEditor interface {
	GetUser() *model.UserProfile
	UpdateUser(mutate func(u *model.UserProfile)) (*model.UserProfile, error)
}

// Service はユーザー管理とプロフィール編集の操作をまとめたもの。
type Service struct {
	client   *apiclient.Client
	session  SessionEditor
	notifier notify.Notifier
	logger   *slog.Logger
	loading  loading.Flag

	mu    sync.RWMutex
	users []model.UserProfile
}

// NewService はServiceを生成する。
func NewService(client *apiclient.Client, session SessionEditor, notifier notify.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, session: session, notifier: notifier, logger: logger}
}

// Loading は一覧取得またはプロフィール更新が進行中かどうかを返す。
func (s *Service) Loading() bool {
	return s.loading.Active()
}

// Users は保持しているユーザー一覧のコピーを返す。
func (s *Service) Users() []model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.UserProfile, len(s.users))
	for i := range s.users {
		out[i] = *s.users[i].Clone()
	}
	return out
}

// GetUsers はユーザー一覧を取得して置き換える。失敗時は通知のみ行う。
func (s *Service) GetUsers(ctx context.Context) {
	done := s.loading.Start()
	defer done()

	res, err := apiclient.Get[model.List[model.UserProfile]](ctx, s.client, usersPath, nil)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgListFailed))
		return
	}
	if res.Status != http.StatusOK {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = res.Data
}

// AgreeUser は登録申請を承認し、有効化メールを送らせる。
func (s *Service) AgreeUser(ctx context.Context, params model.AgreeUserParams) bool {
	res, err := apiclient.Post[model.StatusMessage](ctx, s.client, agreeUserPath, params)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgAgreeFailed))
		return false
	}
	if res.Status != http.StatusOK {
		s.notifier.Error(msgAgreeFailed)
		return false
	}
	s.notifier.Success(msgAgreed)
	return true
}

// DeleteUser はユーザーを削除し、保持中の一覧から取り除く。
func (s *Service) DeleteUser(ctx context.Context, uid string) bool {
	res, err := apiclient.Delete[struct{}](ctx, s.client, usersPath+url.PathEscape(uid)+"/")
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgDeleteFailed))
		return false
	}
	if res.Status != http.StatusNoContent {
		s.notifier.Error(msgDeleteFailed)
		return false
	}

	s.mu.Lock()
	next := make([]model.UserProfile, 0, len(s.users))
	for _, u := range s.users {
		if u.UID != uid {
			next = append(next, u)
		}
	}
	s.users = next
	s.mu.Unlock()

	s.notifier.Success(msgDeleted)
	return true
}

// UpdateUserInfo はログイン中のユーザーの表示名を更新し、成功したらセッションにも反映する。
func (s *Service) UpdateUserInfo(ctx context.Context, form model.UserForm) bool {
	done := s.loading.Start()
	defer done()

	current := s.session.GetUser()
	if current == nil || current.UID == "" {
		s.notifier.Error(msgNoCurrentUser)
		return false
	}

	res, err := apiclient.Patch[model.UploadResponse](ctx, s.client, usersPath+url.PathEscape(current.UID)+"/", map[string]string{
		"name": form.Name,
	})
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgUpdateFailed))
		return false
	}
	if res.Status != http.StatusOK {
		s.notifier.Error(msgUpdateFailed)
		return false
	}

	if _, err := s.session.UpdateUser(func(u *model.UserProfile) { u.Name = form.Name }); err != nil {
		s.logger.Error("failed to update session user", slog.String("error", err.Error()))
		s.notifier.Error(msgSessionNotSynced)
		return false
	}
	s.notifier.Success(msgProfileUpdated)
	return true
}

// AvatarFile はアップロードするアバター画像。
type AvatarFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ValidateAvatar はアップロード前にアバター画像の形式とサイズを確認する。
// 不正な場合は通知した上でfalseを返す。
func (s *Service) ValidateAvatar(file AvatarFile) bool {
	if apiErr := CheckAvatar(file.ContentType, file.Size); apiErr != nil {
		s.notifier.Error(apiErr.Message)
		return false
	}
	return true
}

// CheckAvatar はContent-Typeとサイズがアバターとして受け付けられるかを確認する。
// 不正な場合はローカルサーバーがそのまま返せる *model.APIError を返す。
func CheckAvatar(contentType string, size int64) *model.APIError {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedAvatarTypes[mediaType] {
		return model.NewInvalidAvatarError(msgAvatarBadType)
	}
	if size < 0 || size >= MaxAvatarSize {
		return model.NewInvalidAvatarError(msgAvatarTooLarge)
	}
	return nil
}

// UploadAvatar はアバター画像を "avatar" フィールドとしてアップロードし、
// 返されたURLをセッションのユーザー情報に反映する。失敗時はnilを返す。
func (s *Service) UploadAvatar(ctx context.Context, file AvatarFile) *model.UploadResponse {
	name := file.Name
	if name == "" {
		name = "avatar" + extensionFor(file.ContentType)
	}

	res, err := apiclient.Upload[model.UploadResponse](ctx, s.client, avatarUploadPath, file.Body, path.Base(name), avatarField)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgUploadFailed))
		return nil
	}

	if s.session.GetUser() != nil {
		avatarURL := res.Data.URL
		if _, err := s.session.UpdateUser(func(u *model.UserProfile) { u.Avatar = avatarURL }); err != nil {
			s.logger.Warn("failed to update session avatar", slog.String("error", err.Error()))
		}
	}

	s.notifier.Success(msgAvatarUploaded)
	out := res.Data
	return &out
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
