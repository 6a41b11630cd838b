package model

// Author はブログ・コメントに埋め込まれる投稿者情報。
type Author struct {
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Category はブログのカテゴリ。
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Tag はブログのタグ。
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Comment はブログへのコメント。
type Comment struct {
	ID        int64  `json:"id"`
	Blog      int64  `json:"blog"`
	Content   string `json:"content"`
	User      Author `json:"user"`
	CreatedAt string `json:"created_at"`
}

// Blog はブログ記事を表す。
// 一覧ではコメントが省略され、詳細でのみ埋め込まれる。
type Blog struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	Category  *Category `json:"category"`
	Tags      []Tag     `json:"tags"`
	IsTop     bool      `json:"is_top"`
	Views     int       `json:"views"`
	Comments  []Comment `json:"comments,omitempty"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// Clone はスライスを共有しないBlogのコピーを返す。
func (b Blog) Clone() Blog {
	c := b
	if b.Category != nil {
		cat := *b.Category
		c.Category = &cat
	}
	if b.Tags != nil {
		c.Tags = append([]Tag(nil), b.Tags...)
	}
	if b.Comments != nil {
		c.Comments = append([]Comment(nil), b.Comments...)
	}
	return c
}

// BlogInput はブログ作成・更新のリクエストボディ。
type BlogInput struct {
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category *int64  `json:"category"`
	Tags     []int64 `json:"tags"`
	IsTop    bool    `json:"is_top"`
}

// TaxonomyInput はカテゴリ・タグ作成・更新のリクエストボディ。
type TaxonomyInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CommentInput は POST /blog/comments/ のリクエストボディ。
type CommentInput struct {
	Blog    int64  `json:"blog"`
	Content string `json:"content"`
}

// BlogQuery はブログ一覧の絞り込み条件。
type BlogQuery struct {
	Page     int
	Category int64
	Tag      int64
	Search   string
}

// ToggleTopResponse は POST /blog/blogs/{id}/toggle_top/ のレスポンスボディ。
// IsTop が省略された場合はローカルの値を反転させる。
type ToggleTopResponse struct {
	IsTop *bool `json:"is_top"`
}

// ViewResponse は POST /blog/blogs/{id}/view/ のレスポンスボディ。
type ViewResponse struct {
	Views *int `json:"views"`
}
