// Package auth はログイン・ログアウト・登録・アカウント有効化・パスワード変更を提供する。
//
// 成否はboolで返し、失敗はすべて通知に変換する（呼び出し側へエラーは伝播しない）。
// ログイン成功時のみセッションストアを更新する。
package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/loading"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

const (
	loginPath         = "/user/login/"
	initCodePath      = "/user/initcode/"
	registerPath      = "/user/register/"
	resetPasswordPath = "/user/resetpassword/"
	activeUserPath    = "/user/activeuser/"
)

const (
	msgWelcome           = "ようこそ"
	msgLoginFailed       = "ログインに失敗しました"
	msgLoggedOut         = "ログアウトしました"
	msgCodeSent          = "認証コードをメールに送信しました"
	msgCodeFailed        = "認証コードの送信に失敗しました"
	msgRegistered        = "登録を受け付けました"
	msgRegisterFailed    = "登録に失敗しました"
	msgPasswordChanged   = "パスワードを変更しました"
	msgPasswordFailed    = "パスワードの変更に失敗しました。もう一度お試しください"
	msgActivated         = "アカウントを有効化しました。ログインしてください"
	msgActivateFailed    = "アカウントの有効化に失敗しました"
	msgSessionSaveFailed = "ログイン状態を保存できませんでした"
)

// SessionWriter はログイン・ログアウトで更新するセッションストア。
// session.Store が満たす。
type SessionWriter interface {
	SetUser(user *model.UserProfile, token string) error
	ClearUser() error
}

// LoginRecorder はログイン結果の計測先。metrics.Collector が満たす。
type LoginRecorder interface {
	RecordLogin(success bool)
}

// Service は認証まわりの操作をまとめたもの。
type Service struct {
	client   *apiclient.Client
	session  SessionWriter
	notifier notify.Notifier
	recorder LoginRecorder
	logger   *slog.Logger
	loading  loading.Flag
}

// NewService はServiceを生成する。recorder はnilでもよい。
func NewService(client *apiclient.Client, session SessionWriter, notifier notify.Notifier, recorder LoginRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		session:  session,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
	}
}

// Loading はログインまたは登録が進行中かどうかを返す。
func (s *Service) Loading() bool {
	return s.loading.Active()
}

func (s *Service) recordLogin(success bool) {
	if s.recorder != nil {
		s.recorder.RecordLogin(success)
	}
}

// Login はログインし、成功した場合はユーザー情報とトークンをセッションに保存する。
func (s *Service) Login(ctx context.Context, form model.LoginForm) bool {
	done := s.loading.Start()
	defer done()

	res, err := apiclient.Post[model.LoginResponse](ctx, s.client, loginPath, form)
	if err != nil {
		s.recordLogin(false)
		s.notifier.Error(apiclient.Message(err, msgLoginFailed))
		return false
	}
	if res.Status != http.StatusOK || res.Data.Token == "" || res.Data.User == nil {
		s.recordLogin(false)
		s.notifier.Error(msgLoginFailed)
		return false
	}

	if err := s.session.SetUser(res.Data.User, res.Data.Token); err != nil {
		s.logger.Error("failed to persist session", slog.String("error", err.Error()))
		s.recordLogin(false)
		s.notifier.Error(msgSessionSaveFailed)
		return false
	}

	s.recordLogin(true)
	s.logger.Info("user logged in", slog.String("uid", res.Data.User.UID))
	s.notifier.Success(msgWelcome)
	return true
}

// Logout はセッションを破棄する。バックエンドへの通知は行わない。
func (s *Service) Logout() bool {
	if err := s.session.ClearUser(); err != nil {
		s.logger.Error("failed to clear session", slog.String("error", err.Error()))
		return false
	}
	s.notifier.Success(msgLoggedOut)
	return true
}

// SendInitCode は登録用の認証コードをメールで送信させる。
func (s *Service) SendInitCode(ctx context.Context, form model.InitCodeForm) bool {
	res, err := apiclient.Post[model.StatusMessage](ctx, s.client, initCodePath, form)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgCodeFailed))
		return false
	}
	if res.Status != http.StatusOK {
		s.notifier.Error(msgCodeFailed)
		return false
	}
	s.notifier.Success(msgCodeSent)
	return true
}

// Register は新規登録を申請する。成功時はサーバーのメッセージを通知する。
func (s *Service) Register(ctx context.Context, form model.RegisterForm) bool {
	done := s.loading.Start()
	defer done()

	res, err := apiclient.Post[model.StatusMessage](ctx, s.client, registerPath, form)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgRegisterFailed))
		return false
	}
	if res.Status != http.StatusOK {
		s.notifier.Error(msgRegisterFailed)
		return false
	}
	s.notifier.Success(orDefault(res.Data.Message, msgRegistered))
	return true
}

// ResetPassword はログイン中のユーザーのパスワードを変更する。
func (s *Service) ResetPassword(ctx context.Context, params model.ResetPasswordParams) bool {
	res, err := apiclient.Post[model.StatusMessage](ctx, s.client, resetPasswordPath, params)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgPasswordFailed))
		return false
	}
	if res.Status != http.StatusOK {
		s.notifier.Error(msgPasswordFailed)
		return false
	}
	s.notifier.Success(msgPasswordChanged)
	return true
}

// ActivateUser は招待メールの有効化キーとパスワードでアカウントを有効化する。
func (s *Service) ActivateUser(ctx context.Context, params model.ActiveUserParams) bool {
	res, err := apiclient.Post[model.StatusMessage](ctx, s.client, activeUserPath, params)
	if err != nil {
		s.notifier.Error(apiclient.Message(err, msgActivateFailed))
		return false
	}
	if res.Status != http.StatusOK {
		s.notifier.Error(msgActivateFailed)
		return false
	}
	s.notifier.Success(msgActivated)
	return true
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
