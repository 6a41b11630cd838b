// Package welcome はトップページの歓迎文（シングルトンリソース）のフックを提供する。
//
// このリソースはボディ内の {code, message, data} で成否を返すため、
// トランスポートが2xxでも code が200でなければ失敗として扱う。
package welcome

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
	welcomePath       = "/welcome/"
	welcomeUpdatePath = "/welcome/update/"
)

const (
	msgFetchFailed = "歓迎メッセージの取得に失敗しました"
	msgSaved       = "保存しました"
	msgSaveFailed  = "保存に失敗しました"
)

// Hook は歓迎文のローカル状態と操作をまとめたもの。
type Hook struct {
	client   *apiclient.Client
	notifier notify.Notifier
	logger   *slog.Logger
	loading  loading.Flag

	mu      sync.RWMutex
	welcome model.Welcome
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

// Welcome は保持している歓迎文のコピーを返す。
func (h *Hook) Welcome() model.Welcome {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w := h.welcome
	w.Descriptions = append([]model.Description(nil), h.welcome.Descriptions...)
	return w
}

// GetWelcome は歓迎文を取得して置き換える。失敗時は通知のみ行う。
func (h *Hook) GetWelcome(ctx context.Context) {
	done := h.loading.Start()
	defer done()

	res, err := apiclient.Get[model.WelcomeResponse](ctx, h.client, welcomePath, nil)
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgFetchFailed))
		return
	}
	if res.Data.Code != http.StatusOK {
		h.logger.Warn("welcome fetch rejected", slog.Int("code", res.Data.Code), slog.String("message", res.Data.Message))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.welcome = res.Data.Data
}

// SaveWelcome は歓迎文を保存し、成功した場合は保持中の値も置き換える。
func (h *Hook) SaveWelcome(ctx context.Context, w model.Welcome) bool {
	res, err := apiclient.Put[model.WelcomeResponse](ctx, h.client, welcomeUpdatePath, w)
	if err != nil {
		h.notifier.Error(apiclient.Message(err, msgSaveFailed))
		return false
	}
	if res.Data.Code != http.StatusOK {
		h.notifier.Error(nonEmpty(res.Data.Message, msgSaveFailed))
		return false
	}

	h.mu.Lock()
	h.welcome = w
	h.welcome.Descriptions = append([]model.Description(nil), w.Descriptions...)
	h.mu.Unlock()

	h.notifier.Success(msgSaved)
	return true
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
