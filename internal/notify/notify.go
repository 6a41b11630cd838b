// Package notify はユーザー向け通知（トースト）の送り先を提供する。
//
// フックは成功・失敗を Notifier に通知するだけで、表示方法は知らない。
// Center は通知を溜めておき、ローカルサーバーがビューを返すときに取り出す。
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level は通知の種類。
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification は1件の通知。
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier はフックが使う通知先。
type Notifier interface {
	Success(message string)
	Error(message string)
}

// maxPending は取り出されずに溜まる通知の上限。超えた分は古いものから捨てる。
const maxPending = 50

// Center は通知を溜めるNotifier実装。複数goroutineから安全に使える。
// 通知はすべてロガーにも出力する。
type Center struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending []Notification
}

// NewCenter はCenterを生成する。
func NewCenter(logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{logger: logger}
}

// Success は成功通知を追加する。
func (c *Center) Success(message string) {
	c.push(LevelSuccess, message)
}

// Error は失敗通知を追加する。
func (c *Center) Error(message string) {
	c.push(LevelError, message)
}

func (c *Center) push(level Level, message string) {
	c.logger.Info("notification",
		slog.String("level", string(level)),
		slog.String("message", message),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, Notification{Level: level, Message: message, At: time.Now()})
	if over := len(c.pending) - maxPending; over > 0 {
		c.pending = append([]Notification(nil), c.pending[over:]...)
	}
}

// Drain は溜まっている通知を古い順に返し、空にする。
func (c *Center) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}
