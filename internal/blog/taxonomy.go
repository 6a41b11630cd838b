package blog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/model"
)

const (
	msgCategoryCreated      = "カテゴリを作成しました"
	msgCategoryCreateFailed = "カテゴリの作成に失敗しました"
	msgCategoryUpdated      = "カテゴリを更新しました"
	msgCategoryUpdateFailed = "カテゴリの更新に失敗しました"
	msgCategoryDeleted      = "カテゴリを削除しました"
	msgCategoryDeleteFailed = "カテゴリの削除に失敗しました"
	msgTagCreated           = "タグを作成しました"
	msgTagCreateFailed      = "タグの作成に失敗しました"
	msgTagUpdated           = "タグを更新しました"
	msgTagUpdateFailed      = "タグの更新に失敗しました"
	msgTagDeleted           = "タグを削除しました"
	msgTagDeleteFailed      = "タグの削除に失敗しました"
)

// GetCategoriesAndTags はカテゴリとタグを並行して取得し、両方の完了を待ってから返す。
// それぞれの結果は自分のコレクションだけを更新するため、片方が失敗しても
// もう片方は反映される。失敗時は通知した上で、失敗したエラーをまとめて返す。
func (h *Hook) GetCategoriesAndTags(ctx context.Context) error {
	done := h.loading.Start()
	defer done()

	var (
		wg          sync.WaitGroup
		categoryErr error
		tagErr      error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := apiclient.Get[model.List[model.Category]](ctx, h.client, categoriesPath, nil)
		if err != nil {
			categoryErr = err
			return
		}
		h.mu.Lock()
		h.categories = res.Data
		h.mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		res, err := apiclient.Get[model.List[model.Tag]](ctx, h.client, tagsPath, nil)
		if err != nil {
			tagErr = err
			return
		}
		h.mu.Lock()
		h.tags = res.Data
		h.mu.Unlock()
	}()
	wg.Wait()

	err := errors.Join(categoryErr, tagErr)
	if err != nil {
		first := categoryErr
		if first == nil {
			first = tagErr
		}
		h.fail(first, msgTaxonomyFailed)
	}
	return err
}

func categoryPath(id int64) string {
	return fmt.Sprintf("%s%d/", categoriesPath, id)
}

func tagPath(id int64) string {
	return fmt.Sprintf("%s%d/", tagsPath, id)
}

// CreateCategory はカテゴリを作成し、保持中の一覧の末尾に追加する。
func (h *Hook) CreateCategory(ctx context.Context, in model.TaxonomyInput) bool {
	res, err := apiclient.Post[model.Category](ctx, h.client, categoriesPath, in)
	if !h.expect(res.Status, http.StatusCreated, err, msgCategoryCreateFailed) {
		return false
	}
	h.mu.Lock()
	h.categories = append(append([]model.Category(nil), h.categories...), res.Data)
	h.mu.Unlock()
	h.notifier.Success(msgCategoryCreated)
	return true
}

// UpdateCategory はカテゴリを更新し、保持中の該当要素を差し替える。
func (h *Hook) UpdateCategory(ctx context.Context, id int64, in model.TaxonomyInput) bool {
	res, err := apiclient.Put[model.Category](ctx, h.client, categoryPath(id), in)
	if !h.expect(res.Status, http.StatusOK, err, msgCategoryUpdateFailed) {
		return false
	}
	h.mu.Lock()
	next := append([]model.Category(nil), h.categories...)
	for i := range next {
		if next[i].ID == id {
			next[i] = res.Data
		}
	}
	h.categories = next
	h.mu.Unlock()
	h.notifier.Success(msgCategoryUpdated)
	return true
}

// DeleteCategory はカテゴリを削除し、保持中の一覧から取り除く。
func (h *Hook) DeleteCategory(ctx context.Context, id int64) bool {
	res, err := apiclient.Delete[struct{}](ctx, h.client, categoryPath(id))
	if !h.expect(res.Status, http.StatusNoContent, err, msgCategoryDeleteFailed) {
		return false
	}
	h.mu.Lock()
	next := make([]model.Category, 0, len(h.categories))
	for _, c := range h.categories {
		if c.ID != id {
			next = append(next, c)
		}
	}
	h.categories = next
	h.mu.Unlock()
	h.notifier.Success(msgCategoryDeleted)
	return true
}

// CreateTag はタグを作成し、保持中の一覧の末尾に追加する。
func (h *Hook) CreateTag(ctx context.Context, in model.TaxonomyInput) bool {
	res, err := apiclient.Post[model.Tag](ctx, h.client, tagsPath, in)
	if !h.expect(res.Status, http.StatusCreated, err, msgTagCreateFailed) {
		return false
	}
	h.mu.Lock()
	h.tags = append(append([]model.Tag(nil), h.tags...), res.Data)
	h.mu.Unlock()
	h.notifier.Success(msgTagCreated)
	return true
}

// UpdateTag はタグを更新し、保持中の該当要素を差し替える。
func (h *Hook) UpdateTag(ctx context.Context, id int64, in model.TaxonomyInput) bool {
	res, err := apiclient.Put[model.Tag](ctx, h.client, tagPath(id), in)
	if !h.expect(res.Status, http.StatusOK, err, msgTagUpdateFailed) {
		return false
	}
	h.mu.Lock()
	next := append([]model.Tag(nil), h.tags...)
	for i := range next {
		if next[i].ID == id {
			next[i] = res.Data
		}
	}
	h.tags = next
	h.mu.Unlock()
	h.notifier.Success(msgTagUpdated)
	return true
}

// DeleteTag はタグを削除し、保持中の一覧から取り除く。
func (h *Hook) DeleteTag(ctx context.Context, id int64) bool {
	res, err := apiclient.Delete[struct{}](ctx, h.client, tagPath(id))
	if !h.expect(res.Status, http.StatusNoContent, err, msgTagDeleteFailed) {
		return false
	}
	h.mu.Lock()
	next := make([]model.Tag, 0, len(h.tags))
	for _, t := range h.tags {
		if t.ID != id {
			next = append(next, t)
		}
	}
	h.tags = next
	h.mu.Unlock()
	h.notifier.Success(msgTagDeleted)
	return true
}

// expect は呼び出し結果が期待したステータスかどうかを判定し、そうでなければ失敗を通知する。
func (h *Hook) expect(status, want int, err error, fallback string) bool {
	if err != nil {
		h.fail(err, fallback)
		return false
	}
	if status != want {
		h.notifier.Error(fallback)
		return false
	}
	return true
}
