package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Page は一覧系エンドポイントの共通レスポンス。
// next/previous はページパラメータ付きの完全なURL。
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// PageCursor はフックが保持するページング状態。
type PageCursor struct {
	Total    int    `json:"total"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// Cursor はPageからページング状態を取り出す。
func (p *Page[T]) Cursor() PageCursor {
	c := PageCursor{Total: p.Count}
	if p.Next != nil {
		c.Next = *p.Next
	}
	if p.Previous != nil {
		c.Previous = *p.Previous
	}
	return c
}

// PageFromLink はページングリンクからページ番号を取り出す。
// page パラメータが無いリンク（1ページ目への previous など）は1を返す。
func PageFromLink(link string) (int, error) {
	u, err := url.Parse(link)
	if err != nil {
		return 0, fmt.Errorf("invalid page link %q: %w", link, err)
	}
	raw := u.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page parameter %q in link %q", raw, link)
	}
	return page, nil
}

// List は配列そのもの、またはページング形式 {"results": [...]} のどちらでも受け付ける一覧。
// ページングの有無がバックエンドの設定で変わるエンドポイントに使う。
type List[T any] []T

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (l *List[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var page Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return err
	}
	*l = page.Results
	return nil
}
