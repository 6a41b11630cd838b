// Package blog はブログ一覧・詳細・コメント・カテゴリ・タグのフックを提供する。
//
// Hook はバックエンドの /blog/ 以下のエンドポイントをラップし、
// 取得結果をローカル状態として保持する。一覧取得は結果で丸ごと置き換え、
// 作成・更新・削除・ピン留めは該当要素だけを差し替えて再取得を避ける。
// コメント投稿後だけは詳細を再取得する。
package blog

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

const (
	blogsPath      = "/blog/blogs/"
	categoriesPath = "/blog/categories/"
	tagsPath       = "/blog/tags/"
	commentsPath   = "/blog/comments/"
)

// 操作ごとの既定メッセージ
const (
	msgListFailed      = "ブログ一覧の取得に失敗しました"
	msgDetailFailed    = "ブログ詳細の取得に失敗しました"
	msgCreateFailed    = "ブログの作成に失敗しました"
	msgCreated         = "ブログを作成しました"
	msgUpdateFailed    = "ブログの更新に失敗しました"
	msgUpdated         = "ブログを更新しました"
	msgDeleteFailed    = "ブログの削除に失敗しました"
	msgDeleted         = "ブログを削除しました"
	msgToggleFailed    = "ピン留めの切り替えに失敗しました"
	msgPinned          = "ブログをピン留めしました"
	msgUnpinned        = "ピン留めを解除しました"
	msgCommentFailed   = "コメントの投稿に失敗しました"
	msgCommented       = "コメントを投稿しました"
	msgUncommentFailed = "コメントの削除に失敗しました"
	msgUncommented     = "コメントを削除しました"
	msgTaxonomyFailed  = "カテゴリ・タグの取得に失敗しました"
)

// Hook はブログ関連のローカル状態と操作をまとめたもの。
// 複数goroutineから同時に使用できる。
type Hook struct {
	client   *apiclient.Client
	notifier notify.Notifier
	logger   *slog.Logger
	loading  loading.Flag

	mu         sync.RWMutex
	blogs      []model.Blog
	cursor     model.PageCursor
	query      model.BlogQuery
	detail     *model.Blog
	categories []model.Category
	tags       []model.Tag
}

// NewHook はHookを生成する。
func NewHook(client *apiclient.Client, notifier notify.Notifier, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		client:   client,
		notifier: notifier,
		logger:   logger,
	}
}

// Loading は一覧・詳細などの呼び出しが進行中かどうかを返す。
func (h *Hook) Loading() bool {
	return h.loading.Active()
}

// Blogs は保持している一覧のコピーを返す。
func (h *Hook) Blogs() []model.Blog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.Blog, len(h.blogs))
	for i, b := range h.blogs {
		out[i] = b.Clone()
	}
	return out
}

// Cursor は一覧のページング状態を返す。
func (h *Hook) Cursor() model.PageCursor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// Query は最後に取得に成功した一覧の絞り込み条件を返す。
// 取得に失敗した場合は直前の条件のままなので、Blogs と常に対応する。
func (h *Hook) Query() model.BlogQuery {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.query
}

// Detail は最後に取得した詳細のコピーを返す。未取得の場合はnil。
func (h *Hook) Detail() *model.Blog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.detail == nil {
		return nil
	}
	d := h.detail.Clone()
	return &d
}

// Categories は保持しているカテゴリのコピーを返す。
func (h *Hook) Categories() []model.Category {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Category(nil), h.categories...)
}

// Tags は保持しているタグのコピーを返す。
func (h *Hook) Tags() []model.Tag {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Tag(nil), h.tags...)
}

// fail は失敗通知を出す。サーバーのメッセージがあればそれを、無ければfallbackを使う。
func (h *Hook) fail(err error, fallback string) {
	h.notifier.Error(apiclient.Message(err, fallback))
}

func blogPath(id int64) string {
	return fmt.Sprintf("%s%d/", blogsPath, id)
}

func queryParams(q model.BlogQuery) url.Values {
	params := url.Values{}
	if q.Page > 1 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Category != 0 {
		params.Set("category", strconv.FormatInt(q.Category, 10))
	}
	if q.Tag != 0 {
		params.Set("tag", strconv.FormatInt(q.Tag, 10))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	return params
}

// GetBlogs はブログ一覧を取得して保持中の一覧とページング状態を置き換える。
// 失敗時は通知のみ行い、エラーは返さない。
func (h *Hook) GetBlogs(ctx context.Context, q model.BlogQuery) {
	done := h.loading.Start()
	defer done()

	res, err := apiclient.Get[model.Page[model.Blog]](ctx, h.client, blogsPath, queryParams(q))
	if err != nil {
		h.fail(err, msgListFailed)
		return
	}
	if res.Status != http.StatusOK {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.blogs = res.Data.Results
	h.cursor = res.Data.Cursor()
	h.query = q
}

// LoadNext は次ページのリンクからページ番号を取り出し、同じ絞り込み条件で一覧を取得する。
// 次ページが無い場合は何もしない。
func (h *Hook) LoadNext(ctx context.Context) {
	h.loadLink(ctx, h.Cursor().Next)
}

// LoadPrevious は前ページのリンクからページ番号を取り出し、同じ絞り込み条件で一覧を取得する。
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

	h.mu.RLock()
	q := h.query
	h.mu.RUnlock()

	q.Page = page
	h.GetBlogs(ctx, q)
}

// GetBlogDetail はブログ詳細を取得して保持する。
// 失敗時は通知した上でエラーを返す。
func (h *Hook) GetBlogDetail(ctx context.Context, id int64) (*model.Blog, error) {
	done := h.loading.Start()
	defer done()

	res, err := apiclient.Get[model.Blog](ctx, h.client, blogPath(id), nil)
	if err != nil {
		h.fail(err, msgDetailFailed)
		return nil, err
	}

	h.mu.Lock()
	d := res.Data.Clone()
	h.detail = &d
	h.mu.Unlock()

	out := res.Data.Clone()
	return &out, nil
}

// ViewBlog は閲覧数を加算する。表示に影響しない操作のため、失敗はログのみ残す。
func (h *Hook) ViewBlog(ctx context.Context, id int64) {
	res, err := apiclient.Post[model.ViewResponse](ctx, h.client, blogPath(id)+"view/", nil)
	if err != nil {
		h.logger.Debug("failed to count blog view", slog.Int64("blog_id", id), slog.String("error", err.Error()))
		return
	}
	if res.Data.Views == nil {
		return
	}

	views := *res.Data.Views
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patchBlogLocked(id, func(b *model.Blog) { b.Views = views })
}

// SubmitComment はコメントを投稿し、成功したら詳細を再取得する。
// 失敗時は通知した上でエラーを返す（呼び出し側で入力欄を残すため）。
func (h *Hook) SubmitComment(ctx context.Context, blogID int64, content string) error {
	done := h.loading.Start()
	defer done()

	res, err := apiclient.Post[model.Comment](ctx, h.client, commentsPath, model.CommentInput{
		Blog:    blogID,
		Content: content,
	})
	if err != nil {
		h.fail(err, msgCommentFailed)
		return err
	}
	if res.Status != http.StatusCreated {
		h.notifier.Error(msgCommentFailed)
		return fmt.Errorf("submit comment: unexpected status %d", res.Status)
	}

	h.notifier.Success(msgCommented)
	_, err = h.GetBlogDetail(ctx, blogID)
	return err
}

// DeleteComment はコメントを削除し、保持中の詳細からも取り除く。
func (h *Hook) DeleteComment(ctx context.Context, blogID, commentID int64) bool {
	res, err := apiclient.Delete[struct{}](ctx, h.client, fmt.Sprintf("%s%d/", commentsPath, commentID))
	if err != nil {
		h.fail(err, msgUncommentFailed)
		return false
	}
	if res.Status != http.StatusNoContent {
		h.notifier.Error(msgUncommentFailed)
		return false
	}

	h.mu.Lock()
	if h.detail != nil && h.detail.ID == blogID {
		d := h.detail.Clone()
		kept := d.Comments[:0]
		for _, c := range d.Comments {
			if c.ID != commentID {
				kept = append(kept, c)
			}
		}
		d.Comments = kept
		h.detail = &d
	}
	h.mu.Unlock()

	h.notifier.Success(msgUncommented)
	return true
}

// CreateBlog はブログを作成し、一覧の先頭に追加する。
func (h *Hook) CreateBlog(ctx context.Context, in model.BlogInput) bool {
	res, err := apiclient.Post[model.Blog](ctx, h.client, blogsPath, in)
	if err != nil {
		h.fail(err, msgCreateFailed)
		return false
	}
	if res.Status != http.StatusCreated {
		h.notifier.Error(msgCreateFailed)
		return false
	}

	h.mu.Lock()
	blogs := make([]model.Blog, 0, len(h.blogs)+1)
	blogs = append(blogs, res.Data)
	h.blogs = append(blogs, h.blogs...)
	h.cursor.Total++
	h.mu.Unlock()

	h.notifier.Success(msgCreated)
	return true
}

// UpdateBlog はブログを更新し、一覧と詳細の該当要素を差し替える。
func (h *Hook) UpdateBlog(ctx context.Context, id int64, in model.BlogInput) bool {
	res, err := apiclient.Put[model.Blog](ctx, h.client, blogPath(id), in)
	if err != nil {
		h.fail(err, msgUpdateFailed)
		return false
	}
	if res.Status != http.StatusOK {
		h.notifier.Error(msgUpdateFailed)
		return false
	}

	updated := res.Data
	h.mu.Lock()
	h.patchBlogLocked(id, func(b *model.Blog) {
		comments := b.Comments
		*b = updated.Clone()
		if b.Comments == nil {
			b.Comments = comments
		}
	})
	h.mu.Unlock()

	h.notifier.Success(msgUpdated)
	return true
}

// DeleteBlog はブログを削除し、一覧から取り除く。
// 失敗時は通知した上でエラーを返す。
func (h *Hook) DeleteBlog(ctx context.Context, id int64) error {
	res, err := apiclient.Delete[struct{}](ctx, h.client, blogPath(id))
	if err != nil {
		h.fail(err, msgDeleteFailed)
		return err
	}
	if res.Status != http.StatusNoContent {
		h.notifier.Error(msgDeleteFailed)
		return fmt.Errorf("delete blog %d: unexpected status %d", id, res.Status)
	}

	h.mu.Lock()
	kept := make([]model.Blog, 0, len(h.blogs))
	removed := false
	for _, b := range h.blogs {
		if b.ID == id {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	h.blogs = kept
	if removed && h.cursor.Total > 0 {
		h.cursor.Total--
	}
	if h.detail != nil && h.detail.ID == id {
		h.detail = nil
	}
	h.mu.Unlock()

	h.notifier.Success(msgDeleted)
	return nil
}

// ToggleTop はピン留め状態を切り替え、一覧の該当要素だけを更新後のコピーに差し替える。
func (h *Hook) ToggleTop(ctx context.Context, id int64) bool {
	res, err := apiclient.Post[model.ToggleTopResponse](ctx, h.client, blogPath(id)+"toggle_top/", nil)
	if err != nil {
		h.fail(err, msgToggleFailed)
		return false
	}
	if res.Status != http.StatusOK {
		h.notifier.Error(msgToggleFailed)
		return false
	}

	var isTop bool
	h.mu.Lock()
	h.patchBlogLocked(id, func(b *model.Blog) {
		if res.Data.IsTop != nil {
			b.IsTop = *res.Data.IsTop
		} else {
			b.IsTop = !b.IsTop
		}
		isTop = b.IsTop
	})
	h.mu.Unlock()

	if isTop {
		h.notifier.Success(msgPinned)
	} else {
		h.notifier.Success(msgUnpinned)
	}
	return true
}

// patchBlogLocked はidが一致する一覧の要素と詳細を、mutateを適用したコピーで置き換える。
// 一覧は新しいスライスになり、他の要素の順序と値はそのまま保たれる。
// h.mu をロックした状態で呼ぶこと。
func (h *Hook) patchBlogLocked(id int64, mutate func(b *model.Blog)) {
	next := make([]model.Blog, len(h.blogs))
	copy(next, h.blogs)
	for i := range next {
		if next[i].ID == id {
			b := next[i].Clone()
			mutate(&b)
			next[i] = b
		}
	}
	h.blogs = next

	if h.detail != nil && h.detail.ID == id {
		d := h.detail.Clone()
		mutate(&d)
		h.detail = &d
	}
}
