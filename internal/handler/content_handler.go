package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/harryweb/internal/model"
)

// WelcomeHookInterface はウェルカム画面のフック。welcome.Hook が満たす。
type WelcomeHookInterface interface {
	GetWelcome(ctx context.Context)
	Welcome() model.Welcome
	SaveWelcome(ctx context.Context, w model.Welcome) bool
}

// AboutmeHookInterface は自己紹介のフック。aboutme.Hook が満たす。
type AboutmeHookInterface interface {
	FetchAboutme(ctx context.Context)
	Aboutme() model.Aboutme
	Sections() []model.Section
	SaveAboutme(ctx context.Context, a model.Aboutme) bool
}

// ContentHandler はウェルカム・自己紹介の表示と管理画面での編集を扱う。
type ContentHandler struct {
	renderer
	welcome WelcomeHookInterface
	aboutme AboutmeHookInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(welcome WelcomeHookInterface, aboutme AboutmeHookInterface, rd renderer) *ContentHandler {
	return &ContentHandler{renderer: rd, welcome: welcome, aboutme: aboutme}
}

// Welcome はウェルカム画面を返す。取得に失敗しても既定の内容で表示する。
// GET /
func (h *ContentHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	h.welcome.GetWelcome(r.Context())
	h.view(w, r, "welcome", h.welcome.Welcome())
}

// WelcomeAdmin はウェルカム編集画面を返す。
// GET /admin/welcomeadmin
func (h *ContentHandler) WelcomeAdmin(w http.ResponseWriter, r *http.Request) {
	h.welcome.GetWelcome(r.Context())
	h.view(w, r, "welcomeadmin", h.welcome.Welcome())
}

// SaveWelcome はウェルカム画面の内容を保存する。
// PUT /admin/welcomeadmin
func (h *ContentHandler) SaveWelcome(w http.ResponseWriter, r *http.Request) {
	var in model.Welcome
	if !decodeJSON(w, r, &in) {
		return
	}
	ok := h.welcome.SaveWelcome(r.Context(), in)
	h.action(w, r, "welcomeadmin", ok, h.welcome.Welcome())
}

// aboutmeView は自己紹介画面のビューモデル。
type aboutmeView struct {
	Sections []model.Section `json:"sections"`
}

// Aboutme は自己紹介画面を返す。
// GET /home/aboutme
func (h *ContentHandler) Aboutme(w http.ResponseWriter, r *http.Request) {
	h.aboutme.FetchAboutme(r.Context())
	h.view(w, r, "aboutme", aboutmeView{Sections: h.aboutme.Sections()})
}

// AboutmeAdmin は自己紹介の編集画面を返す。
// GET /admin/aboutmeadmin
func (h *ContentHandler) AboutmeAdmin(w http.ResponseWriter, r *http.Request) {
	h.aboutme.FetchAboutme(r.Context())
	h.view(w, r, "aboutmeadmin", h.aboutme.Aboutme())
}

// SaveAboutme は自己紹介の内容を保存する。
// PUT /admin/aboutmeadmin
func (h *ContentHandler) SaveAboutme(w http.ResponseWriter, r *http.Request) {
	var in model.Aboutme
	if !decodeJSON(w, r, &in) {
		return
	}
	ok := h.aboutme.SaveAboutme(r.Context(), in)
	h.action(w, r, "aboutmeadmin", ok, h.aboutme.Aboutme())
}
