package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/harryweb/internal/guard"
	"github.com/hitoshi/harryweb/internal/model"
	"github.com/hitoshi/harryweb/internal/notify"
)

const msgLoginRequired = "ログインしてください"

// NewGuardMiddleware はリクエストごとにセッションストアを参照して遷移可否を判定する。
//
// ルート表に無いパスは素通しする。GET/HEAD の遷移が拒否された場合は
// 判定結果のルートへ302で転送し、ログインへ転送するときは元のパスを
// フラッシュCookieに記録する。それ以外のメソッドはJSONエラーを返す。
func NewGuardMiddleware(reader guard.SessionReader, flashes *FlashStore, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := guard.Match(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			policy := guard.PolicyFor(route, r.Method)
			decision := guard.Check(reader, policy)
			if decision.Allow {
				if route.Redirect != "" && isNavigation(r) && trimPath(r.URL.Path) == route.Path {
					http.Redirect(w, r, route.Redirect, http.StatusFound)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("navigation denied",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route.Name),
				slog.String("policy", policy.String()),
				slog.String("redirect_to", decision.RedirectTo),
			)

			if !isNavigation(r) {
				writeGuardError(w, decision)
				return
			}

			if decision.RedirectTo == guard.RouteLogin {
				if err := flashes.RememberTarget(w, r, r.URL.RequestURI()); err != nil {
					logger.Error("failed to remember redirect target", slog.String("error", err.Error()))
				}
				if err := flashes.AddFlash(w, r, notify.Notification{
					Level:   notify.LevelError,
					Message: msgLoginRequired,
					At:      time.Now(),
				}); err != nil {
					logger.Error("failed to add flash", slog.String("error", err.Error()))
				}
			}
			http.Redirect(w, r, guard.PathFor(decision.RedirectTo), http.StatusFound)
		})
	}
}

func isNavigation(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

func trimPath(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

func writeGuardError(w http.ResponseWriter, decision guard.Decision) {
	if decision.RedirectTo == guard.RouteLogin {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     "ALREADY_LOGGED_IN",
		Message:  "すでにログインしています。",
		Category: "auth",
		Action:   "ログアウトしてから再度お試しください。",
	})
}
