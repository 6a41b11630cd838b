package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/security"
)

// BoardHookInterface は掲示板のフック。board.Hook が満たす。
type BoardHookInterface interface {
	GetMessages(ctx context.Context, page int)
	Messages() []model.Message
	Cursor() model.PageCursor
	Page() int
	CreateMessage(ctx context.Context, content string) bool
	CreateReply(ctx context.Context, messageID int64, content string, parentReply *int64) error
	DeleteMessage(ctx context.Context, id int64) bool
	DeleteReply(ctx context.Context, messageID, replyID int64) bool
}

// BoardHandler は掲示板の表示と投稿・返信・削除を扱う。
type BoardHandler struct {
	renderer
	hook      BoardHookInterface
	sanitizer security.ContentSanitizer
}

// NewBoardHandler はBoardHandlerを生成する。
func NewBoardHandler(hook BoardHookInterface, sanitizer security.ContentSanitizer, rd renderer) *BoardHandler {
	return &BoardHandler{renderer: rd, hook: hook, sanitizer: sanitizer}
}

// boardView は掲示板画面のビューモデル。
type boardView struct {
	Messages []model.Message  `json:"messages"`
	Cursor   model.PageCursor `json:"cursor"`
	Page     int              `json:"page"`
}

func (h *BoardHandler) current() boardView {
	messages := h.hook.Messages()
	for i := range messages {
		m := &messages[i]
		m.Content = h.sanitizer.SanitizeComment(m.Content)
		for j := range m.Replies {
			rp := &m.Replies[j]
			rp.Content = h.sanitizer.SanitizeComment(rp.Content)
			for k := range rp.Replies {
				rp.Replies[k].Content = h.sanitizer.SanitizeComment(rp.Replies[k].Content)
			}
		}
	}
	return boardView{Messages: messages, Cursor: h.hook.Cursor(), Page: h.hook.Page()}
}

// List は掲示板の指定ページを返す。
// GET /home/board?page=N
func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	h.hook.GetMessages(r.Context(), int(queryInt(r, "page")))
	h.view(w, r, "board", h.current())
}

// contentRequest は本文のみのリクエストボディ。
type contentRequest struct {
	Content string `json:"content"`
}

// replyRequest は返信のリクエストボディ。parent_reply を指定すると返信への返信になる。
type replyRequest struct {
	Content     string `json:"content"`
	ParentReply *int64 `json:"parent_reply"`
}

func requireContent(w http.ResponseWriter, content string) bool {
	if content == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("内容を入力してください"))
		return false
	}
	return true
}

// CreateMessage は留言を投稿する。
// POST /home/board/messages
func (h *BoardHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) || !requireContent(w, req.Content) {
		return
	}
	ok := h.hook.CreateMessage(r.Context(), req.Content)
	h.action(w, r, "board", ok, h.current())
}

// DeleteMessage は留言を削除する。
// DELETE /home/board/messages/{id}
func (h *BoardHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ok = h.hook.DeleteMessage(r.Context(), id)
	h.action(w, r, "board", ok, h.current())
}

// CreateReply は留言、または既存の返信に返信する。
// POST /home/board/messages/{id}/replies
func (h *BoardHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req replyRequest
	if !decodeJSON(w, r, &req) || !requireContent(w, req.Content) {
		return
	}
	err := h.hook.CreateReply(r.Context(), id, req.Content, req.ParentReply)
	h.action(w, r, "board", err == nil, h.current())
}

// DeleteReply は返信を削除する。
// DELETE /home/board/messages/{id}/replies/{rid}
func (h *BoardHandler) DeleteReply(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	rid, ok := idParam(w, r, "rid")
	if !ok {
		return
	}
	ok = h.hook.DeleteReply(r.Context(), id, rid)
	h.action(w, r, "board", ok, h.current())
}
