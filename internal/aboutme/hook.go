// Package aboutme は自己紹介ページ（シングルトンリソース）のフックを提供する。
package aboutme

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/harryweb/internal/apiclient"
	"github.com/hitoshi/harryweb/internal/loading"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

const (
	aboutmePath       = "/aboutme/"
	aboutmeUpdatePath = "/aboutme/update/"
)

const (
	msgFetchFailed = "データの取得に失敗しました"
	msgSaved       = "保存しました"
	msgSaveFailed  = "保存に失敗しました"
)

// Hook は自己紹介のローカル状態と操作をまとめたもの。
type Hook struct {
	client   *apiclient.Client
	notifier notify.Notifier
	logger   *slog.Logger
	loading  loading.Flag

	mu       sync.RWMutex
	aboutme  model.Aboutme
	sections []model.Section
}

// NewHook はHookを生成する。
func NewHook(client *apiclient.Client, notifier notify.Notifier, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{client: client, notifier: notifier, logger: logger}
}

// Loading は取得が進行中かどうかを返す。
func (h *Hook) Loading() bool {
	return h.loading.Active()
}

// Aboutme は保持している自己紹介の内容を返す。
func (h *Hook) Aboutme() model.Aboutme {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneAboutme(h.aboutme)
}

// Sections は最後に取得に成功した内容から組み立てたセクション一覧を返す。
// 取得前は空。
func (h *Hook) Sections() []model.Section {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Section(nil), h.sections...)
}

// FetchAboutme は自己紹介を取得し、内容とセクション一覧を置き換える。
// 失敗時は通知のみ行う。
func (h *Hook) FetchAboutme(ctx context.Context) {
	done := h.loading.Start()
	defer done()

	res, err := apiclient.Get[model.AboutmeResponse](ctx, h.client, aboutmePath, nil)
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgFetchFailed))
		return
	}
	if res.Data.Code != http.StatusOK || res.Data.Data == nil {
		h.notifier.Error(nonEmpty(res.Data.Message, msgFetchFailed))
		return
	}

	data := cloneAboutme(*res.Data.Data)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aboutme = data
	h.sections = BuildSections(data)
}

// SaveAboutme は自己紹介を保存する。成功時はサーバーのメッセージを通知し、
// 保持中の内容とセクション一覧も置き換える。
func (h *Hook) SaveAboutme(ctx context.Context, a model.Aboutme) bool {
	res, err := apiclient.Put[model.AboutmeResponse](ctx, h.client, aboutmeUpdatePath, a)
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgSaveFailed))
		return false
	}
	if res.Data.Code != http.StatusOK {
		h.notifier.Error(nonEmpty(res.Data.Message, msgSaveFailed))
		return false
	}

	data := cloneAboutme(a)
	h.mu.Lock()
	h.aboutme = data
	h.sections = BuildSections(data)
	h.mu.Unlock()

	h.notifier.Success(nonEmpty(res.Data.Message, msgSaved))
	return true
}

// BuildSections は自己紹介の内容を表示順のセクション一覧に変換する。
func BuildSections(a model.Aboutme) []model.Section {
	return []model.Section{
		{ID: 1, Type: model.SectionWork, Title: "職歴", Icon: "briefcase", Content: a.Work},
		{ID: 2, Type: model.SectionEducation, Title: "学歴", Icon: "school", Content: a.Education},
		{ID: 3, Type: model.SectionProjects, Title: "プロジェクト", Icon: "folder", Content: a.Projects},
		{ID: 4, Type: model.SectionSkills, Title: "スキル", Icon: "tools", Content: a.Skills},
	}
}

func cloneAboutme(a model.Aboutme) model.Aboutme {
	return model.Aboutme{
		Work:      append([]model.WorkExperience(nil), a.Work...),
		Education: append([]model.Education(nil), a.Education...),
		Projects:  append([]model.Project(nil), a.Projects...),
		Skills:    append([]model.SkillCategory(nil), a.Skills...),
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
