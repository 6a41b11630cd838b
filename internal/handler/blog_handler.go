package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/security"
)

// BlogHookInterface はブログ画面のフック。blog.Hook が満たす。
type BlogHookInterface interface {
	GetBlogs(ctx context.Context, q model.BlogQuery)
	Blogs() []model.Blog
	Cursor() model.PageCursor
	Query() model.BlogQuery
	GetBlogDetail(ctx context.Context, id int64) (*model.Blog, error)
	Detail() *model.Blog
	ViewBlog(ctx context.Context, id int64)
	SubmitComment(ctx context.Context, blogID int64, content string) error
	DeleteComment(ctx context.Context, blogID, commentID int64) bool
	CreateBlog(ctx context.Context, in model.BlogInput) bool
	UpdateBlog(ctx context.Context, id int64, in model.BlogInput) bool
	DeleteBlog(ctx context.Context, id int64) error
	ToggleTop(ctx context.Context, id int64) bool

	GetCategoriesAndTags(ctx context.Context) error
	Categories() []model.Category
	Tags() []model.Tag
	CreateCategory(ctx context.Context, in model.TaxonomyInput) bool
	UpdateCategory(ctx context.Context, id int64, in model.TaxonomyInput) bool
	DeleteCategory(ctx context.Context, id int64) bool
	CreateTag(ctx context.Context, in model.TaxonomyInput) bool
	UpdateTag(ctx context.Context, id int64, in model.TaxonomyInput) bool
	DeleteTag(ctx context.Context, id int64) bool
}

// excerptRunes は一覧に表示する抜粋の文字数。
const excerptRunes = 120

const msgBlogFetchFailed = "ブログの取得に失敗しました"

// BlogHandler はブログの一覧・詳細・コメントと管理操作を扱う。
type BlogHandler struct {
	renderer
	hook      BlogHookInterface
	sanitizer security.ContentSanitizer
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(hook BlogHookInterface, sanitizer security.ContentSanitizer, rd renderer) *BlogHandler {
	return &BlogHandler{renderer: rd, hook: hook, sanitizer: sanitizer}
}

// blogSummary は一覧に並ぶ1記事。本文は抜粋のみ。
type blogSummary struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Excerpt   string          `json:"excerpt"`
	Author    model.Author    `json:"author"`
	Category  *model.Category `json:"category"`
	Tags      []model.Tag     `json:"tags"`
	IsTop     bool            `json:"is_top"`
	Views     int             `json:"views"`
	CreatedAt string          `json:"created_at"`
}

// blogListView はブログ一覧画面のビューモデル。
type blogListView struct {
	Blogs      []blogSummary    `json:"blogs"`
	Cursor     model.PageCursor `json:"cursor"`
	Page       int              `json:"page"`
	Category   int64            `json:"category,omitempty"`
	Tag        int64            `json:"tag,omitempty"`
	Search     string           `json:"search,omitempty"`
	Categories []model.Category `json:"categories"`
	Tags       []model.Tag      `json:"tags"`
}

func (h *BlogHandler) summarize(blogs []model.Blog) []blogSummary {
	out := make([]blogSummary, 0, len(blogs))
	for _, b := range blogs {
		out = append(out, blogSummary{
			ID:        b.ID,
			Title:     b.Title,
			Excerpt:   h.sanitizer.Excerpt(b.Content, excerptRunes),
			Author:    b.Author,
			Category:  b.Category,
			Tags:      b.Tags,
			IsTop:     b.IsTop,
			Views:     b.Views,
			CreatedAt: b.CreatedAt,
		})
	}
	return out
}

// sanitizeBlog は本文とコメントを無害化したコピーを返す。
func (h *BlogHandler) sanitizeBlog(b model.Blog) model.Blog {
	out := b.Clone()
	out.Content = h.sanitizer.SanitizeArticle(b.Content)
	for i := range out.Comments {
		out.Comments[i].Content = h.sanitizer.SanitizeComment(out.Comments[i].Content)
	}
	return out
}

// List はブログ一覧を返す。page, category, tag, search で絞り込む。
// GET /home/blog
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := model.BlogQuery{
		Page:     int(queryInt(r, "page")),
		Category: queryInt(r, "category"),
		Tag:      queryInt(r, "tag"),
		Search:   r.URL.Query().Get("search"),
	}
	if q.Page < 1 {
		q.Page = 1
	}

	// 一覧とサイドバーのカテゴリ・タグは独立して取得する
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.hook.GetCategoriesAndTags(r.Context())
	}()
	h.hook.GetBlogs(r.Context(), q)
	<-done

	// 取得に失敗した場合は前回の一覧が残るため、条件も保持中のものを表示する
	held := h.hook.Query()
	if held.Page < 1 {
		held.Page = 1
	}
	h.view(w, r, "blog", blogListView{
		Blogs:      h.summarize(h.hook.Blogs()),
		Cursor:     h.hook.Cursor(),
		Page:       held.Page,
		Category:   held.Category,
		Tag:        held.Tag,
		Search:     held.Search,
		Categories: h.hook.Categories(),
		Tags:       h.hook.Tags(),
	})
}

// Detail はブログ詳細を返す。閲覧数の加算も行う。
// GET /home/blog/{id}
func (h *BlogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	blog, err := h.hook.GetBlogDetail(r.Context(), id)
	if err != nil {
		h.upstreamError(w, err, msgBlogFetchFailed)
		return
	}
	h.hook.ViewBlog(r.Context(), id)
	h.view(w, r, "blog", h.sanitizeBlog(*blog))
}

// commentRequest はコメント投稿のリクエストボディ。
type commentRequest struct {
	Content string `json:"content"`
}

// SubmitComment はコメントを投稿する。成功時はフックが再取得した詳細を返す。
// POST /home/blog/{id}/comments
func (h *BlogHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Content == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("コメントを入力してください"))
		return
	}
	if err := h.hook.SubmitComment(r.Context(), id, req.Content); err != nil {
		h.action(w, r, "blog", false, nil)
		return
	}
	// 投稿成功時はフックが詳細を再取得済み
	blog := h.hook.Detail()
	if blog == nil || blog.ID != id {
		h.action(w, r, "blog", true, nil)
		return
	}
	h.action(w, r, "blog", true, h.sanitizeBlog(*blog))
}

// DeleteComment はコメントを削除する。
// DELETE /home/blog/{id}/comments/{cid}
func (h *BlogHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	cid, ok := idParam(w, r, "cid")
	if !ok {
		return
	}
	h.action(w, r, "blog", h.hook.DeleteComment(r.Context(), id, cid), nil)
}

// Create はブログを作成する。
// POST /admin/blogs
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.BlogInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Title == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("タイトルは必須です"))
		return
	}
	ok := h.hook.CreateBlog(r.Context(), in)
	if !ok {
		h.action(w, r, "admin", false, nil)
		return
	}
	h.action(w, r, "admin", true, h.summarize(h.hook.Blogs()))
}

// Update はブログを更新する。
// PUT /admin/blogs/{id}
func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var in model.BlogInput
	if !decodeJSON(w, r, &in) {
		return
	}
	h.action(w, r, "admin", h.hook.UpdateBlog(r.Context(), id, in), nil)
}

// Delete はブログを削除する。
// DELETE /admin/blogs/{id}
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.DeleteBlog(r.Context(), id) == nil, nil)
}

// ToggleTop はブログのピン留めを切り替える。
// POST /admin/blogs/{id}/toggle_top
func (h *BlogHandler) ToggleTop(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.ToggleTop(r.Context(), id), nil)
}

// taxonomyView はカテゴリ・タグ管理のビューモデル。
type taxonomyView struct {
	Categories []model.Category `json:"categories"`
	Tags       []model.Tag      `json:"tags"`
}

func (h *BlogHandler) taxonomy() taxonomyView {
	return taxonomyView{Categories: h.hook.Categories(), Tags: h.hook.Tags()}
}

// decodeTaxonomy は名前必須のカテゴリ・タグ入力を読む。
func decodeTaxonomy(w http.ResponseWriter, r *http.Request) (model.TaxonomyInput, bool) {
	var in model.TaxonomyInput
	if !decodeJSON(w, r, &in) {
		return in, false
	}
	if in.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("名前は必須です"))
		return in, false
	}
	return in, true
}

// CreateCategory はカテゴリを作成する。
// POST /admin/categories
func (h *BlogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTaxonomy(w, r)
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.CreateCategory(r.Context(), in), h.taxonomy())
}

// UpdateCategory はカテゴリを更新する。
// PUT /admin/categories/{id}
func (h *BlogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	in, ok := decodeTaxonomy(w, r)
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.UpdateCategory(r.Context(), id, in), h.taxonomy())
}

// DeleteCategory はカテゴリを削除する。
// DELETE /admin/categories/{id}
func (h *BlogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.DeleteCategory(r.Context(), id), h.taxonomy())
}

// CreateTag はタグを作成する。
// POST /admin/tags
func (h *BlogHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTaxonomy(w, r)
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.CreateTag(r.Context(), in), h.taxonomy())
}

// UpdateTag はタグを更新する。
// PUT /admin/tags/{id}
func (h *BlogHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	in, ok := decodeTaxonomy(w, r)
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.UpdateTag(r.Context(), id, in), h.taxonomy())
}

// DeleteTag はタグを削除する。
// DELETE /admin/tags/{id}
func (h *BlogHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	h.action(w, r, "admin", h.hook.DeleteTag(r.Context(), id), h.taxonomy())
}
