// Package board は掲示板（留言と返信）のフックを提供する。
package board

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/loading"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

const messagesPath = "/msgboard/messages/"

const (
	msgListFailed        = "留言一覧の取得に失敗しました"
	msgCreateFailed      = "留言の投稿に失敗しました"
	msgCreated           = "留言を投稿しました"
	msgDeleteFailed      = "留言の削除に失敗しました"
	msgDeleted           = "留言を削除しました"
	msgReplyFailed       = "返信の投稿に失敗しました"
	msgReplied           = "返信を投稿しました"
	msgDeleteReplyFailed = "返信の削除に失敗しました"
	msgReplyDeleted      = "返信を削除しました"
)

// Hook は掲示板のローカル状態と操作をまとめたもの。
type Hook struct {
	client   *apiclient.Client
	notifier notify.Notifier
	logger   *slog.Logger
	loading  loading.Flag

	mu       sync.RWMutex
	messages []model.Message
	cursor   model.PageCursor
	page     int
}

// NewHook はHookを生成する。
func NewHook(client *apiclient.Client, notifier notify.Notifier, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{client: client, notifier: notifier, logger: logger, page: 1}
}

// Loading は一覧取得が進行中かどうかを返す。
func (h *Hook) Loading() bool {
	return h.loading.Active()
}

// Messages は保持している留言一覧のコピーを返す。
func (h *Hook) Messages() []model.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.Message, len(h.messages))
	for i, m := range h.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Cursor はページング状態を返す。
func (h *Hook) Cursor() model.PageCursor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// Page は最後に取得したページ番号を返す。
func (h *Hook) Page() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.page
}

func cloneMessage(m model.Message) model.Message {
	c := m
	if m.Replies != nil {
		c.Replies = make([]model.Reply, len(m.Replies))
		for i, r := range m.Replies {
			rc := r
			if r.Replies != nil {
				rc.Replies = append([]model.SubReply(nil), r.Replies...)
			}
			c.Replies[i] = rc
		}
	}
	return c
}

func messagePath(id int64) string {
	return fmt.Sprintf("%s%d/", messagesPath, id)
}

// GetMessages は指定ページの留言一覧を取得して置き換える。
// 1未満のページは1として扱う。失敗時は通知のみ行う。
func (h *Hook) GetMessages(ctx context.Context, page int) {
	if page < 1 {
		page = 1
	}
	done := h.loading.Start()
	defer done()

	params := url.Values{"page": []string{strconv.Itoa(page)}}
	res, err := apiclient.Get[model.Page[model.Message]](ctx, h.client, messagesPath, params)
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgListFailed))
		return
	}
	if res.Status != http.StatusOK {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = res.Data.Results
	h.cursor = res.Data.Cursor()
	h.page = page
}

// LoadNext は次ページを取得する。次ページが無ければ何もしない。
func (h *Hook) LoadNext(ctx context.Context) {
	h.loadLink(ctx, h.Cursor().Next)
}

// LoadPrevious は前ページを取得する。前ページが無ければ何もしない。
func (h *Hook) LoadPrevious(ctx context.Context) {
	h.loadLink(ctx, h.Cursor().Previous)
}

func (h *Hook) loadLink(ctx context.Context, link string) {
	if link == "" {
		return
	}
	page, err := model.PageFromLink(link)
	if err != nil {
		h.logger.Warn("ignoring unusable page link", slog.String("link", link), slog.String("error", err.Error()))
		return
	}
	h.GetMessages(ctx, page)
}

// CreateMessage は留言を投稿し、一覧の先頭に追加する。
func (h *Hook) CreateMessage(ctx context.Context, content string) bool {
	res, err := apiclient.Post[model.Message](ctx, h.client, messagesPath, model.MessageInput{Content: content})
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgCreateFailed))
		return false
	}
	if res.Status != http.StatusCreated {
		h.notifier.Error(msgCreateFailed)
		return false
	}

	h.mu.Lock()
	next := make([]model.Message, 0, len(h.messages)+1)
	next = append(next, res.Data)
	h.messages = append(next, h.messages...)
	h.cursor.Total++
	h.mu.Unlock()

	h.notifier.Success(msgCreated)
	return true
}

// CreateReply は留言または返信に返信する。parentReplyがnilの場合は留言への直接の返信。
// 失敗時は通知した上でエラーを返す（呼び出し側で入力内容を保持するため）。
func (h *Hook) CreateReply(ctx context.Context, messageID int64, content string, parentReply *int64) error {
	res, err := apiclient.Post[model.Reply](ctx, h.client, messagePath(messageID)+"create_reply/", model.ReplyInput{
		Content:     content,
		ParentReply: parentReply,
	})
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgReplyFailed))
		return err
	}
	if res.Status != http.StatusCreated {
		h.notifier.Error(msgReplyFailed)
		return fmt.Errorf("create reply to message %d: unexpected status %d", messageID, res.Status)
	}

	created := res.Data
	h.patchMessage(messageID, func(m *model.Message) {
		if parentReply == nil {
			m.Replies = append(m.Replies, created)
			return
		}
		for i := range m.Replies {
			if m.Replies[i].ID == *parentReply {
				m.Replies[i].Replies = append(m.Replies[i].Replies, model.SubReply{
					ID:       created.ID,
					Username: created.Username,
					Avatar:   created.Avatar,
					Time:     created.Time,
					Content:  created.Content,
					ReplyTo:  parentReply,
				})
			}
		}
	})

	h.notifier.Success(msgReplied)
	return nil
}

// DeleteMessage は留言を削除し、一覧から取り除いて総数を減らす。
func (h *Hook) DeleteMessage(ctx context.Context, id int64) bool {
	res, err := apiclient.Delete[struct{}](ctx, h.client, messagePath(id))
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgDeleteFailed))
		return false
	}
	if res.Status != http.StatusNoContent {
		h.notifier.Error(msgDeleteFailed)
		return false
	}

	h.mu.Lock()
	next := make([]model.Message, 0, len(h.messages))
	for _, m := range h.messages {
		if m.ID != id {
			next = append(next, m)
		}
	}
	h.messages = next
	if h.cursor.Total > 0 {
		h.cursor.Total--
	}
	h.mu.Unlock()

	h.notifier.Success(msgDeleted)
	return true
}

// DeleteReply は返信を削除し、該当する留言の返信（ネストした返信を含む）から取り除く。
func (h *Hook) DeleteReply(ctx context.Context, messageID, replyID int64) bool {
	res, err := apiclient.Delete[struct{}](ctx, h.client, fmt.Sprintf("%sreplies/%d/", messagePath(messageID), replyID))
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgDeleteReplyFailed))
		return false
	}
	if res.Status != http.StatusNoContent {
		h.notifier.Error(msgDeleteReplyFailed)
		return false
	}

	h.patchMessage(messageID, func(m *model.Message) {
		replies := make([]model.Reply, 0, len(m.Replies))
		for _, r := range m.Replies {
			if r.ID == replyID {
				continue
			}
			if len(r.Replies) > 0 {
				subs := make([]model.SubReply, 0, len(r.Replies))
				for _, s := range r.Replies {
					if s.ID != replyID {
						subs = append(subs, s)
					}
				}
				r.Replies = subs
			}
			replies = append(replies, r)
		}
		m.Replies = replies
	})

	h.notifier.Success(msgReplyDeleted)
	return true
}

// patchMessage はidが一致する留言をmutateを適用したコピーで置き換える。
func (h *Hook) patchMessage(id int64, mutate func(m *model.Message)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := make([]model.Message, len(h.messages))
	copy(next, h.messages)
	for i := range next {
		if next[i].ID == id {
			m := cloneMessage(next[i])
			mutate(&m)
			next[i] = m
		}
	}
	h.messages = next
}
