// Package model はドメインモデルとバックエンドAPIのワイヤ型を定義する。
package model

// UserProfile はログイン中のユーザー情報を表す。
// ログイン成功時に丸ごと置き換えられ、プロフィール編集・アバター更新時は
// コピーに一部フィールドを上書きしてから書き戻す。
type UserProfile struct {
	UID         string  `json:"uid"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Avatar      string  `json:"avatar,omitempty"`
	AvatarURL   string  `json:"avatar_url,omitempty"`
	Telephone   string  `json:"telephone"`
	IsSuperuser bool    `json:"is_superuser"`
	IsActive    *bool   `json:"is_active,omitempty"`
	LastLogin   *string `json:"last_login"`
}

// Clone はUserProfileのディープコピーを返す。
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	if u.IsActive != nil {
		v := *u.IsActive
		c.IsActive = &v
	}
	if u.LastLogin != nil {
		v := *u.LastLogin
		c.LastLogin = &v
	}
	return &c
}

// DisplayAvatar は表示に使うアバターURLを返す。
// avatar_url が返ってくる場合はそちらを優先する。
func (u *UserProfile) DisplayAvatar() string {
	if u == nil {
		return ""
	}
	if u.AvatarURL != "" {
		return u.AvatarURL
	}
	return u.Avatar
}

// StatusMessage は一部エンドポイントがボディに包んで返す業務ステータス。
// クライアントはトランスポートのステータスを正とし、こちらはメッセージ表示にのみ使う。
type StatusMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LoginForm は POST /user/login/ のリクエストボディ。
type LoginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse は POST /user/login/ のレスポンスボディ。
type LoginResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *UserProfile `json:"user"`
}

// InitCodeForm は POST /user/initcode/ のリクエストボディ。
type InitCodeForm struct {
	Email string `json:"email"`
}

// RegisterForm は POST /user/register/ のリクエストボディ。
type RegisterForm struct {
	Email     string `json:"email"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Telephone string `json:"telephone"`
}

// ActiveUserParams は POST /user/activeuser/ のリクエストボディ。
type ActiveUserParams struct {
	ActiveKey       string `json:"activekey"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AgreeUserParams は POST /user/agreeuser/ のリクエストボディ。
type AgreeUserParams struct {
	Email string `json:"email"`
}

// ResetPasswordParams は POST /user/resetpassword/ のリクエストボディ。
type ResetPasswordParams struct {
	UID             string `json:"uid"`
	Email           string `json:"email"`
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UserForm はプロフィール編集フォーム。
type UserForm struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// UploadResponse は POST /user/avatar/upload/ のレスポンスボディ。
type UploadResponse struct {
	URL     string `json:"url"`
	Message string `json:"message,omitempty"`
}
