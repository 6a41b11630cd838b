package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/harryweb/internal/guard"
	"github.com/hitoshi/harryweb/internal/middleware"
	"github.com/hitoshi/harryweb/internal/security"
)

// HealthChecker はヘルスチェックで疎通を確認する依存。SQLストレージ利用時の *sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Session           SessionView
	Flashes           *middleware.FlashStore
	Notifications     NotificationSource
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HealthChecker     HealthChecker
	Metrics           http.Handler

	Sanitizer security.ContentSanitizer

	// 画面ごとのフック
	Auth    AuthServiceInterface
	Users   UserServiceInterface
	Blogs   BlogHookInterface
	Board   BoardHookInterface
	Welcome WelcomeHookInterface
	Aboutme AboutmeHookInterface
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS → RateLimit → UserContext
//	  → (画面ルートのみ) CSRF → Guard
//
// /health, /metrics, /csrf-token はガードとCSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}
	r.Use(middleware.NewUserContextMiddleware(deps.Session))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteNotFound(w)
	})

	rd := newRenderer(deps.Session, deps.Notifications, deps.Flashes, logger)
	authHandler := NewAuthHandler(deps.Auth, rd)
	contentHandler := NewContentHandler(deps.Welcome, deps.Aboutme, rd)
	blogHandler := NewBlogHandler(deps.Blogs, deps.Sanitizer, rd)
	boardHandler := NewBoardHandler(deps.Board, deps.Sanitizer, rd)
	userHandler := NewUserHandler(deps.Users, rd)

	// --- ガード対象外 ---
	r.Get("/health", healthHandler(deps.HealthChecker, logger))
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.Flashes, logger))

	// --- 画面ルート ---
	// ミドルウェアスタック: CSRF → Guard
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.Flashes, logger))
		r.Use(middleware.NewGuardMiddleware(deps.Session, deps.Flashes, logger))

		r.Get("/", contentHandler.Welcome)

		r.Get("/login", authHandler.LoginView)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/register", authHandler.RegisterView)
		r.Post("/register/code", authHandler.SendInitCode)
		r.Post("/register", authHandler.Register)
		r.Get("/active", authHandler.ActiveView)
		r.Post("/active", authHandler.Activate)

		r.Route("/home", func(r chi.Router) {
			// ガードが先に転送するが、ルート表を経由しない呼び出しのために残す
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				home, _ := guard.Lookup(guard.RouteHome)
				http.Redirect(w, r, home.Redirect, http.StatusFound)
			})
			r.Get("/aboutme", contentHandler.Aboutme)

			r.Route("/blog", func(r chi.Router) {
				r.Get("/", blogHandler.List)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", blogHandler.Detail)
					r.Post("/comments", blogHandler.SubmitComment)
					r.Delete("/comments/{cid}", blogHandler.DeleteComment)
				})
			})

			r.Route("/board", func(r chi.Router) {
				r.Get("/", boardHandler.List)
				r.Post("/messages", boardHandler.CreateMessage)
				r.Route("/messages/{id}", func(r chi.Router) {
					r.Delete("/", boardHandler.DeleteMessage)
					r.Post("/replies", boardHandler.CreateReply)
					r.Delete("/replies/{rid}", boardHandler.DeleteReply)
				})
			})

			r.Route("/userinfo", func(r chi.Router) {
				r.Get("/", userHandler.UserInfo)
				r.Post("/", userHandler.UpdateUserInfo)
				r.Post("/avatar", userHandler.UploadAvatar)
				r.Post("/password", authHandler.ChangePassword)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/", userHandler.Admin)

			r.Get("/welcomeadmin", contentHandler.WelcomeAdmin)
			r.Put("/welcomeadmin", contentHandler.SaveWelcome)
			r.Get("/aboutmeadmin", contentHandler.AboutmeAdmin)
			r.Put("/aboutmeadmin", contentHandler.SaveAboutme)

			r.Route("/useradmin", func(r chi.Router) {
				r.Get("/", userHandler.UserAdmin)
				r.Post("/agree", userHandler.AgreeUser)
				r.Delete("/{uid}", userHandler.DeleteUser)
			})

			r.Route("/blogs", func(r chi.Router) {
				r.Post("/", blogHandler.Create)
				r.Put("/{id}", blogHandler.Update)
				r.Delete("/{id}", blogHandler.Delete)
				r.Post("/{id}/toggle_top", blogHandler.ToggleTop)
			})
			r.Route("/categories", func(r chi.Router) {
				r.Post("/", blogHandler.CreateCategory)
				r.Put("/{id}", blogHandler.UpdateCategory)
				r.Delete("/{id}", blogHandler.DeleteCategory)
			})
			r.Route("/tags", func(r chi.Router) {
				r.Post("/", blogHandler.CreateTag)
				r.Put("/{id}", blogHandler.UpdateTag)
				r.Delete("/{id}", blogHandler.DeleteTag)
			})
		})
	})

	return r
}

// healthHandler はプロセスとストレージの疎通を返す。
// GET /health
func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				logger.Error("health check failed", slog.String("error", err.Error()))
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
